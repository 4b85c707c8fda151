package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// DBConfig configures the optional snapshot history database
type DBConfig struct {
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME,default=boxdao"`
	DBHost     string `env:"DB_HOST"`
	DBPort     string `env:"DB_PORT,default=5432"`
	DBSSLMode  string `env:"DB_SSLMODE,default=disable"`
}

func NewDBConfig(ctx context.Context, envpath string) (*DBConfig, error) {
	if err := loadEnv(envpath); err != nil {
		return nil, err
	}

	cfg := &DBConfig{}
	err := envconfig.Process(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Enabled reports whether a database is configured
func (c *DBConfig) Enabled() bool {
	return c.DBHost != ""
}

func (c *DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}
