package cli

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"token_sales/internal/dispatch"
)

// txFlags are shared by every command that submits a transaction.
type txFlags struct {
	keypair string
	nonce   uint64
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.keypair, "keypair", "k", "id.json", "signer keypair file")
	cmd.Flags().Uint64Var(&f.nonce, "nonce", 0, "transaction nonce (0 picks one from the clock)")
}

func (f *txFlags) signer() (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(f.keypair)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", f.keypair, err)
	}
	return key, nil
}

func (f *txFlags) nextNonce() uint64 {
	if f.nonce != 0 {
		return f.nonce
	}
	return uint64(time.Now().UnixNano())
}

func submit(cmd *cobra.Command, opts *RootOptions, tx *dispatch.Transaction, key solana.PrivateKey) error {
	if err := tx.Sign(key); err != nil {
		return err
	}
	opts.debug(cmd.ErrOrStderr(), tx)
	res, err := opts.client().Submit(cmd.Context(), tx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

// NewInitializeCommand creates the initialize command.
func NewInitializeCommand(opts *RootOptions) *cobra.Command {
	var (
		flags        txFlags
		mint, paying string
		args         dispatch.Initialize
	)
	cmd := &cobra.Command{
		Use:   "initialize",
		Short: "Open a sale and move the initial inventory into its vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := flags.signer()
			if err != nil {
				return err
			}
			tokenMint, err := parseKey("mint", mint)
			if err != nil {
				return err
			}
			paymentMint, err := parseKey("payment-mint", paying)
			if err != nil {
				return err
			}
			tx, _, err := dispatch.NewInitializeTransaction(opts.programKey(), key.PublicKey(), tokenMint, paymentMint, args, flags.nextNonce())
			if err != nil {
				return err
			}
			return submit(cmd, opts, tx, key)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&mint, "mint", "", "token mint being sold")
	cmd.Flags().StringVar(&paying, "payment-mint", "", "mint buyers pay in")
	cmd.Flags().Uint64Var(&args.PricePerUnit, "price", 0, "price per token in payment units")
	cmd.Flags().Uint64Var(&args.InitialQuantity, "quantity", 0, "initial inventory")
	cmd.Flags().Int64Var(&args.EndTime, "end-time", 0, "unix time the sale ends (0 for none)")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("payment-mint")
	return cmd
}

// NewDepositCommand creates the deposit command.
func NewDepositCommand(opts *RootOptions) *cobra.Command {
	var (
		flags  txFlags
		sale   string
		amount uint64
	)
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Add inventory to a sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := flags.signer()
			if err != nil {
				return err
			}
			saleKey, err := parseKey("sale", sale)
			if err != nil {
				return err
			}
			tx, err := dispatch.NewDepositTransaction(key.PublicKey(), saleKey, amount, flags.nextNonce())
			if err != nil {
				return err
			}
			return submit(cmd, opts, tx, key)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&sale, "sale", "", "sale address")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "tokens to deposit")
	_ = cmd.MarkFlagRequired("sale")
	return cmd
}

// NewPurchaseCommand creates the purchase command.
func NewPurchaseCommand(opts *RootOptions) *cobra.Command {
	var (
		flags    txFlags
		sale     string
		quantity uint64
	)
	cmd := &cobra.Command{
		Use:   "purchase",
		Short: "Buy tokens from a sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := flags.signer()
			if err != nil {
				return err
			}
			saleKey, err := parseKey("sale", sale)
			if err != nil {
				return err
			}
			tx, err := dispatch.NewPurchaseTransaction(key.PublicKey(), saleKey, quantity, flags.nextNonce())
			if err != nil {
				return err
			}
			return submit(cmd, opts, tx, key)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&sale, "sale", "", "sale address")
	cmd.Flags().Uint64Var(&quantity, "quantity", 0, "tokens to buy")
	_ = cmd.MarkFlagRequired("sale")
	return cmd
}

// NewCloseCommand creates the close command.
func NewCloseCommand(opts *RootOptions) *cobra.Command {
	var (
		flags txFlags
		sale  string
	)
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a sale and return unsold inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := flags.signer()
			if err != nil {
				return err
			}
			saleKey, err := parseKey("sale", sale)
			if err != nil {
				return err
			}
			tx, err := dispatch.NewCloseTransaction(key.PublicKey(), saleKey, flags.nextNonce())
			if err != nil {
				return err
			}
			return submit(cmd, opts, tx, key)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&sale, "sale", "", "sale address")
	_ = cmd.MarkFlagRequired("sale")
	return cmd
}
