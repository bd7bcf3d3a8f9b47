// Package cli implements salectl, the command line client of a settlement
// node.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"token_sales/internal/client"
	"token_sales/internal/sales"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Node      string
	ProgramID string
	Timeout   time.Duration
	Verbose   bool
}

// NewRootCommand creates the root command for salectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "salectl",
		Short: "salectl - token sale settlement client",
		Long:  "Create, fund, buy from and close token sales on a settlement node.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := solana.PublicKeyFromBase58(opts.ProgramID); err != nil {
				return fmt.Errorf("invalid program id %q: %w", opts.ProgramID, err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Node, "node", "http://localhost:8080", "settlement node URL")
	cmd.PersistentFlags().StringVar(&opts.ProgramID, "program-id", sales.DefaultProgramID.String(), "program id used to derive sale addresses")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "dump transactions before submitting")

	cmd.AddCommand(NewKeygenCommand())
	cmd.AddCommand(NewAddressCommand(opts))
	cmd.AddCommand(NewInitializeCommand(opts))
	cmd.AddCommand(NewDepositCommand(opts))
	cmd.AddCommand(NewPurchaseCommand(opts))
	cmd.AddCommand(NewCloseCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))

	return cmd
}

func (o *RootOptions) client() *client.Client {
	return client.New(o.Node, o.Timeout)
}

func (o *RootOptions) programKey() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(o.ProgramID)
}

// debug dumps v to w when --verbose is set.
func (o *RootOptions) debug(w io.Writer, v any) {
	if o.Verbose {
		spew.Fdump(w, v)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseKey(name, raw string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return key, nil
}
