package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	vp := viper.New()
	setDefaults(vp)

	cfg, err := loadConfig(vp)
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Empty(t, cfg.DbPath)
	require.Equal(t, 2, cfg.Transactions)
	require.Equal(t, "contracts", cfg.KeysDir)
}

func TestConfigFromEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phoenix.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transactions: 5\ndb_path: /tmp/ledger.db\n"), 0644))
	t.Setenv("PHOENIX_LOG_LEVEL", "debug")

	vp := viper.New()
	setDefaults(vp)
	vp.SetEnvPrefix("PHOENIX")
	vp.AutomaticEnv()
	vp.SetConfigFile(path)
	require.NoError(t, vp.ReadInConfig())

	cfg, err := loadConfig(vp)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 5, cfg.Transactions)
	require.Equal(t, "/tmp/ledger.db", cfg.DbPath)
}

func TestConfigValidate(t *testing.T) {
	ok := Config{LogLevel: "warn", Transactions: 1, KeysDir: "out"}
	require.NoError(t, ok.Validate())

	for name, mutate := range map[string]func(*Config){
		"level":        func(c *Config) { c.LogLevel = "loud" },
		"empty level":  func(c *Config) { c.LogLevel = "" },
		"transactions": func(c *Config) { c.Transactions = 0 },
		"keys dir":     func(c *Config) { c.KeysDir = "" },
	} {
		t.Run(name, func(t *testing.T) {
			c := ok
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestSizeCommand(t *testing.T) {
	var out bytes.Buffer
	sizeCmd.SetOut(&out)
	require.NoError(t, sizeCmd.RunE(sizeCmd, nil))
	require.True(t, strings.Contains(out.String(), "transaction: "))
	require.Equal(t, 3, strings.Count(out.String(), "\n"))
}
