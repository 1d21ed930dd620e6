package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/chrisrogers37/really-personal-finance/internal/model"
)

func newAccountCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage local accounts",
	}
	cmd.AddCommand(newAccountAddCommand(opts), newAccountListCommand(opts))
	return cmd
}

func newAccountAddCommand(opts *globalOptions) *cobra.Command {
	var name, accountType, mask string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an account statements can be imported into",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := opts.open()
			if err != nil {
				return err
			}
			acct, err := ws.AddAccount(cmd.Context(), name, model.AccountType(accountType), mask)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added account %s (%s)\n", acct.Name, acct.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "account name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&accountType, "type", string(model.AccountTypeChecking), "checking, savings or credit")
	cmd.Flags().StringVar(&mask, "mask", "", "last digits of the account number, used to suggest the account on import")

	return cmd
}

func newAccountListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := opts.open()
			if err != nil {
				return err
			}
			accts := ws.Accounts.All()
			if len(accts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts. Add one with: rpf account add --name <name>")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "NAME", "TYPE", "MASK")
			for _, a := range accts {
				t.Row(a.ID, a.Name, string(a.Type), a.Mask)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}
