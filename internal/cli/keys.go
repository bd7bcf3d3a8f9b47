package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"token_sales/internal/sales"
)

// writeKeypair stores key in the solana-keygen JSON format.
func writeKeypair(path string, key solana.PrivateKey) error {
	raw := make([]int, len(key))
	for i, b := range key {
		raw[i] = int(b)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keypair file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists", out)
			}
			key, err := solana.NewRandomPrivateKey()
			if err != nil {
				return err
			}
			if err := writeKeypair(out, key); err != nil {
				return fmt.Errorf("write keypair: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "outfile", "o", "id.json", "keypair file to create")
	return cmd
}

// NewAddressCommand creates the address command.
func NewAddressCommand(opts *RootOptions) *cobra.Command {
	var authority, mint string
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Derive the sale and vault addresses for an authority and mint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			authorityKey, err := parseKey("authority", authority)
			if err != nil {
				return err
			}
			mintKey, err := parseKey("mint", mint)
			if err != nil {
				return err
			}
			sale, _, err := sales.DeriveSaleAddress(opts.programKey(), authorityKey, mintKey)
			if err != nil {
				return err
			}
			vault, _, err := sales.DeriveVaultAddress(opts.programKey(), sale)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"sale":  sale.String(),
				"vault": vault.String(),
			})
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "sale authority")
	cmd.Flags().StringVar(&mint, "mint", "", "token mint")
	_ = cmd.MarkFlagRequired("authority")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}
