package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/citizenwallet/boxdao/internal/config"
	"github.com/citizenwallet/boxdao/internal/version"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const programName = "boxdao"

var globalFlags = struct {
	env   string
	debug bool
}{}

// app holds what every subcommand shares once the root command ran
type app struct {
	conf   *config.Config
	db     *config.DBConfig
	logger *zap.Logger
}

var cur = &app{}

func newLogger(level string, debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

func initSentry(dsn string) error {
	if dsn == "" || dsn == "x" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          fmt.Sprintf("%s@%s", programName, version.Version),
		TracesSampleRate: 1.0,
	})
}

func setup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conf, err := config.New(ctx, globalFlags.env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	err = conf.Validate()
	if err != nil {
		return err
	}

	dbconf, err := config.NewDBConfig(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load db config: %w", err)
	}

	logger, err := newLogger(conf.LogLevel, globalFlags.debug)
	if err != nil {
		return err
	}

	err = initSentry(conf.SentryURL)
	if err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}

	cur.conf = conf
	cur.db = dbconf
	cur.logger = logger.With(zap.String("component", programName))

	return nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Version)
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Governor and Box automation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&globalFlags.env, "env", "", "path to .env file")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	withSetup := func(cmd *cobra.Command) *cobra.Command {
		cmd.PersistentPreRunE = setup
		return cmd
	}

	rootCmd.AddCommand(withSetup(runCommand()))
	rootCmd.AddCommand(withSetup(proposalsCommand()))
	rootCmd.AddCommand(withSetup(proposeCommand()))
	rootCmd.AddCommand(withSetup(voteCommand()))
	rootCmd.AddCommand(withSetup(membersCommand()))
	rootCmd.AddCommand(withSetup(boxCommand()))
	rootCmd.AddCommand(versionCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if cur.logger != nil {
		cur.logger.Sync()
	}

	if err != nil {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)

		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	sentry.Flush(2 * time.Second)
}
