package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flagConfig string
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:           "phoenix",
	Short:         "phoenix transaction and ledger tooling",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	setDefaults(v)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("db", "", "bbolt ledger file, in memory when empty")
	_ = v.BindPFlag(keyLogLevel, pf.Lookup("log-level"))
	_ = v.BindPFlag(keyDbPath, pf.Lookup("db"))

	rootCmd.AddCommand(sizeCmd, demoCmd, exportVerifierCmd)

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	v.SetEnvPrefix("PHOENIX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flagConfig != "" {
		v.SetConfigFile(flagConfig)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}
}
