package cmd

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/kysee/phoenix/phoenix/crypto"
	"github.com/kysee/phoenix/phoenix/ledger"
	"github.com/kysee/phoenix/phoenix/merkle"
	"github.com/kysee/phoenix/phoenix/note"
	"github.com/kysee/phoenix/phoenix/transaction"
	"github.com/kysee/phoenix/phoenix/wallet"
	"github.com/kysee/phoenix/phoenix/zk"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	mintValue     = 100
	transferValue = 60
	feeValue      = 10
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "mint notes, then prove, encode, verify and store transfers of them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		log := cfg.Logger()

		db, err := openLedger(cfg, log)
		if err != nil {
			return err
		}
		defer db.Close()

		log.Info().Msg("compiling transfer circuit")
		p, err := zk.NewPlonk(zk.WithLogger(log))
		if err != nil {
			return err
		}

		alice, err := wallet.Generate(wallet.WithLogger(log))
		if err != nil {
			return err
		}
		bob, err := wallet.Generate(wallet.WithLogger(log))
		if err != nil {
			return err
		}
		for i := 0; i < cfg.Transactions; i++ {
			n, _, err := note.NewObfuscated(alice.PublicKey(), uint256.NewInt(mintValue))
			if err != nil {
				return err
			}
			if _, err := db.StoreUnspentNote(n); err != nil {
				return err
			}
		}
		if _, err := alice.Sync(db); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, owned := range alice.Spendable() {
			tx, err := transfer(db, alice, bob, owned, p)
			if err != nil {
				return fmt.Errorf("tx %d: %w", i, err)
			}

			data, err := tx.MarshalBinary()
			if err != nil {
				return err
			}
			decoded, err := transaction.Decode(data)
			if err != nil {
				return err
			}
			if err := decoded.Verify(p); err != nil {
				return fmt.Errorf("tx %d: %w", i, err)
			}

			idxs, err := db.Store(decoded)
			if err != nil {
				return err
			}
			root := db.Root()
			fmt.Fprintf(out, "tx %d: %d bytes, notes %v, root %x\n", i, len(data), idxs, root.Bytes())
		}

		for name, w := range map[string]*wallet.Wallet{"alice": alice, "bob": bob} {
			if _, err := w.Sync(db); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s: %s\n", name, w.Address, w.Balance().Dec())
		}
		return nil
	},
}

func init() {
	demoCmd.Flags().Int("transactions", 2, "number of transfers")
	_ = v.BindPFlag(keyTransactions, demoCmd.Flags().Lookup("transactions"))
}

func openLedger(cfg *Config, log zerolog.Logger) (*ledger.Db, error) {
	opts := []ledger.Option{
		ledger.WithLogger(log),
		ledger.WithCommitmentTree(merkle.NewTree()),
	}
	if cfg.DbPath != "" {
		backend, err := ledger.OpenBoltBackend(cfg.DbPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ledger.WithBackend(backend))
	}
	return ledger.New(opts...)
}

// transfer spends owned into a transfer to bob and change back to alice.
func transfer(db *ledger.Db, alice, bob *wallet.Wallet, owned *wallet.Owned, p zk.Pipeline) (*transaction.Transaction, error) {
	if owned.Value.Uint64() < transferValue+feeValue {
		return nil, fmt.Errorf("note %d holds %s", owned.Note.Idx(), owned.Value.Dec())
	}

	in, err := alice.Input(db, owned)
	if err != nil {
		return nil, err
	}
	tx := transaction.New()
	if err := tx.PushInput(in); err != nil {
		return nil, err
	}

	change := new(uint256.Int).Sub(owned.Value, uint256.NewInt(transferValue+feeValue))
	for _, o := range []struct {
		w     *wallet.Wallet
		value *uint256.Int
	}{{bob, uint256.NewInt(transferValue)}, {alice, change}} {
		it, err := transaction.NewObfuscatedOutput(o.w.PublicKey(), o.value)
		if err != nil {
			return nil, err
		}
		if err := tx.PushOutput(it); err != nil {
			return nil, err
		}
	}

	generator, err := crypto.NewKey()
	if err != nil {
		return nil, err
	}
	fee, err := transaction.NewTransparentOutput(&generator.PublicKey, uint256.NewInt(feeValue))
	if err != nil {
		return nil, err
	}
	if err := tx.SetFee(fee); err != nil {
		return nil, err
	}

	if err := tx.Prove(p); err != nil {
		return nil, err
	}
	return tx, nil
}
