package cli

import (
	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	var events bool
	cmd := &cobra.Command{
		Use:   "show <sale>",
		Short: "Print a sale record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sale, err := parseKey("sale", args[0])
			if err != nil {
				return err
			}
			c := opts.client()
			if events {
				list, err := c.Events(cmd.Context(), sale)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), list)
			}
			record, err := c.Sale(cmd.Context(), sale)
			if err != nil {
				return err
			}
			opts.debug(cmd.ErrOrStderr(), record)
			return printJSON(cmd.OutOrStdout(), record)
		},
	}
	cmd.Flags().BoolVar(&events, "events", false, "print the settlement journal instead")
	return cmd
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <owner> <mint>",
		Short: "Print a ledger balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parseKey("owner", args[0])
			if err != nil {
				return err
			}
			mint, err := parseKey("mint", args[1])
			if err != nil {
				return err
			}
			amount, err := opts.client().Balance(cmd.Context(), owner, mint)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"owner":  owner.String(),
				"mint":   mint.String(),
				"amount": amount,
			})
		},
	}
}

// NewSearchCommand creates the search command.
func NewSearchCommand(opts *RootOptions) *cobra.Command {
	var authority, status string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "List sales by authority and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := opts.client().Search(cmd.Context(), authority, status)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "only sales of this authority")
	cmd.Flags().StringVar(&status, "status", "", "only sales in this status (active|closed)")
	return cmd
}
