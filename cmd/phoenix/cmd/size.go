package cmd

import (
	"fmt"

	"github.com/kysee/phoenix/phoenix/note"
	"github.com/kysee/phoenix/phoenix/transaction"
	"github.com/spf13/cobra"
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "print the wire layout sizes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "note:        %d\n", note.Size)
		fmt.Fprintf(out, "proof slot:  %d\n", transaction.ProofSlotSize)
		fmt.Fprintf(out, "transaction: %d\n", transaction.TxSerializedSize)
		return nil
	},
}
