package main

import (
	"context"
	"errors"

	"github.com/citizenwallet/boxdao/internal/config"
	"github.com/citizenwallet/boxdao/internal/governance"
	"github.com/citizenwallet/boxdao/internal/services/db/govdb"
	"github.com/citizenwallet/boxdao/internal/services/webhook"
	"github.com/citizenwallet/boxdao/pkg/automation"
	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/citizenwallet/boxdao/pkg/govindex"
	"github.com/citizenwallet/boxdao/pkg/membership"
	"github.com/citizenwallet/boxdao/pkg/queue"
	"github.com/citizenwallet/boxdao/pkg/resolve"
	"github.com/citizenwallet/boxdao/pkg/router"
	"github.com/citizenwallet/boxdao/pkg/submit"
	"github.com/ethereum/go-ethereum/common"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	notificationRetries = 3
	notificationBuffer  = 100
)

func runCommand() *cobra.Command {
	var (
		onlyAPI bool
		notify  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Follow the Governor, queue and execute proposals and serve the status api",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cur, onlyAPI, notify)
		},
	}

	cmd.Flags().BoolVar(&onlyAPI, "only-api", false, "only serve the status api, never write")
	cmd.Flags().BoolVar(&notify, "notify", true, "post notifications to DISCORD_URL")

	return cmd
}

// newEngine wires the automation components around one session store
func newEngine(conf *config.Config, store *dao.SessionStore, opts automation.Options) *automation.Driver {
	return automation.NewDriver(
		store,
		govindex.New(conf.LogRate, opts.Logger),
		resolve.New(opts.Logger),
		submit.New(conf.Confirmations(), conf.ConfirmationTimeout, opts.Logger),
		automation.NewBoxValue(conf.BoxValue),
		opts,
	)
}

func run(ctx context.Context, a *app, onlyAPI, notify bool) error {
	conf, logger := a.conf, a.logger

	sess, err := newSession(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer sess.EVM.Close()

	if onlyAPI {
		// a session without an account never submits
		ro := *sess
		ro.Account = common.Address{}
		sess = &ro
	}

	store := dao.NewSessionStore(sess)

	wm := webhook.Multi{
		webhook.NewMessager(conf.DiscordURL, conf.ChainName, notify).WithTimeout(conf.DiscordTimeout),
		webhook.NewSentryMessager(sentry.CurrentHub()),
	}

	q := queue.NewService(ctx, "notifications", notificationRetries, notificationBuffer, wm, logger)
	defer q.Close()

	opts := automation.Options{
		MaxInFlight: conf.MaxInFlight,
		Notifier:    q,
		Logger:      logger,
	}

	var history governance.History
	if a.db.Enabled() {
		logger.Info("starting snapshot history db...")

		gdb, err := govdb.NewDB(ctx, sess.ChainID, sess.Governor.Address(), a.db.DSN())
		if err != nil {
			return err
		}
		defer gdb.Close()

		opts.Store = gdb
		history = gdb.SnapshotsDB
	}

	driver := newEngine(conf, store, opts)

	gate := membership.NewGate(membership.NewProber(conf.MembershipMaxProbes, logger), store)
	if sess.HasSigner() {
		status, err := gate.Status(ctx)
		if err != nil {
			logger.Warn("membership undetermined", zap.Error(err))
		} else {
			logger.Info("membership",
				zap.Bool("member", status.IsMember),
				zap.String("weight", status.Weight.String()),
				zap.Uint64("block", status.AsOfBlock),
			)
		}
	}

	api := router.NewServer(conf.APIKey, governance.NewService(store, driver.Tracked(), gate, history, logger), logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return q.Start(webhook.NewProcessor(wm))
	})

	g.Go(func() error {
		logger.Info("starting automation driver...")
		return driver.Run(gctx)
	})

	g.Go(func() error {
		return api.Start(gctx, conf.APIPort)
	})

	g.Go(func() error {
		<-gctx.Done()
		q.Close()
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		wm.NotifyError(context.Background(), err)
		return err
	}

	logger.Info("stopped")

	return nil
}
