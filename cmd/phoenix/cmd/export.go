package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kysee/phoenix/phoenix/zk"
	"github.com/spf13/cobra"
)

var exportVerifierCmd = &cobra.Command{
	Use:   "export-verifier",
	Short: "write a Solidity verifier of the transfer circuit to keys_dir",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		log := cfg.Logger()

		p, err := zk.NewPlonk(zk.WithLogger(log))
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := p.ExportSolidity(&buf); err != nil {
			return fmt.Errorf("export verifier: %w", err)
		}
		if err := os.MkdirAll(cfg.KeysDir, 0755); err != nil {
			return err
		}
		path := filepath.Join(cfg.KeysDir, "PlonkVerifier.sol")
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("solidity verifier generated")
		return nil
	},
}

func init() {
	exportVerifierCmd.Flags().String("keys-dir", "contracts", "output directory")
	_ = v.BindPFlag(keyKeysDir, exportVerifierCmd.Flags().Lookup("keys-dir"))
}
