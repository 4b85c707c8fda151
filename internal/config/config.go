package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	ChainName string `env:"CHAIN_NAME,default=boxdao"`
	RPCURL    string `env:"RPC_URL,default=http://localhost:8545"`
	RPCWSURL  string `env:"RPC_WS_URL"`

	PrivateKey string `env:"PRIVATE_KEY"`

	GovernorAddress    string `env:"GOVERNOR_ADDRESS"`
	BoxAddress         string `env:"BOX_ADDRESS"`
	DeploymentsPath    string `env:"DEPLOYMENTS_PATH"`
	GovernorStartBlock uint64 `env:"GOVERNOR_START_BLOCK,default=0"`

	BoxValue []string `env:"BOX_VALUE"`

	QueueConfirmations   uint64        `env:"QUEUE_CONFIRMATIONS,default=2"`
	ExecuteConfirmations uint64        `env:"EXECUTE_CONFIRMATIONS,default=2"`
	ProposeConfirmations uint64        `env:"PROPOSE_CONFIRMATIONS,default=1"`
	VoteConfirmations    uint64        `env:"VOTE_CONFIRMATIONS,default=1"`
	ConfirmationTimeout  time.Duration `env:"CONFIRMATION_TIMEOUT,default=5m"`

	MembershipMaxProbes int           `env:"MEMBERSHIP_MAX_PROBES,default=64"`
	SyncInterval        time.Duration `env:"SYNC_INTERVAL,default=5s"`
	LogRate             uint64        `env:"LOG_RATE,default=5000"`
	MaxInFlight         int           `env:"MAX_IN_FLIGHT,default=8"`

	SentryURL      string        `env:"SENTRY_URL"`
	DiscordURL     string        `env:"DISCORD_URL"`
	DiscordTimeout time.Duration `env:"DISCORD_TIMEOUT,default=10s"`
	APIPort        int           `env:"API_PORT,default=3000"`
	APIKey         string        `env:"API_KEY"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
}

func New(ctx context.Context, envpath string) (*Config, error) {
	if err := loadEnv(envpath); err != nil {
		return nil, err
	}

	return process(ctx, envconfig.OsLookuper())
}

func loadEnv(envpath string) error {
	if envpath == "" {
		return nil
	}

	return godotenv.Load(envpath)
}

func process(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	err := envconfig.ProcessWith(ctx, cfg, l)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings that depend on each other
func (c *Config) Validate() error {
	errs := []error{}

	if c.RPCURL == "" {
		errs = append(errs, errors.New("RPC_URL is required"))
	}

	if c.DeploymentsPath == "" {
		if !common.IsHexAddress(c.GovernorAddress) {
			errs = append(errs, fmt.Errorf("GOVERNOR_ADDRESS %q is not an address and DEPLOYMENTS_PATH is not set", c.GovernorAddress))
		}
		if !common.IsHexAddress(c.BoxAddress) {
			errs = append(errs, fmt.Errorf("BOX_ADDRESS %q is not an address and DEPLOYMENTS_PATH is not set", c.BoxAddress))
		}
	} else {
		if c.GovernorAddress != "" && !common.IsHexAddress(c.GovernorAddress) {
			errs = append(errs, fmt.Errorf("GOVERNOR_ADDRESS %q is not an address", c.GovernorAddress))
		}
		if c.BoxAddress != "" && !common.IsHexAddress(c.BoxAddress) {
			errs = append(errs, fmt.Errorf("BOX_ADDRESS %q is not an address", c.BoxAddress))
		}
	}

	for name, n := range map[string]uint64{
		"QUEUE_CONFIRMATIONS":   c.QueueConfirmations,
		"EXECUTE_CONFIRMATIONS": c.ExecuteConfirmations,
		"PROPOSE_CONFIRMATIONS": c.ProposeConfirmations,
		"VOTE_CONFIRMATIONS":    c.VoteConfirmations,
		"LOG_RATE":              c.LogRate,
	} {
		if n == 0 {
			errs = append(errs, fmt.Errorf("%s must be at least 1", name))
		}
	}

	if c.MembershipMaxProbes < 1 {
		errs = append(errs, errors.New("MEMBERSHIP_MAX_PROBES must be at least 1"))
	}
	if c.MaxInFlight < 1 {
		errs = append(errs, errors.New("MAX_IN_FLIGHT must be at least 1"))
	}
	if c.ConfirmationTimeout <= 0 {
		errs = append(errs, errors.New("CONFIRMATION_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// Confirmations returns the configured depth per write
func (c *Config) Confirmations() map[dao.Action]uint64 {
	return map[dao.Action]uint64{
		dao.ActionPropose: c.ProposeConfirmations,
		dao.ActionVote:    c.VoteConfirmations,
		dao.ActionQueue:   c.QueueConfirmations,
		dao.ActionExecute: c.ExecuteConfirmations,
	}
}
