package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	keyLogLevel     = "log_level"
	keyDbPath       = "db_path"
	keyTransactions = "transactions"
	keyKeysDir      = "keys_dir"
)

// Config is the resolved configuration of a command run.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	// DbPath is the bbolt file of the ledger. Empty keeps the ledger in memory.
	DbPath       string `mapstructure:"db_path"`
	Transactions int    `mapstructure:"transactions"`
	KeysDir      string `mapstructure:"keys_dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyDbPath, "")
	v.SetDefault(keyTransactions, 2)
	v.SetDefault(keyKeysDir, "contracts")
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil || c.LogLevel == "" {
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	if c.Transactions <= 0 {
		return errors.New("config: transactions must be positive")
	}
	if c.KeysDir == "" {
		return errors.New("config: keys_dir is empty")
	}
	return nil
}

func (c *Config) Logger() zerolog.Logger {
	level, _ := zerolog.ParseLevel(c.LogLevel)
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
