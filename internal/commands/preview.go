package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/chrisrogers37/really-personal-finance/internal/imports"
	"github.com/chrisrogers37/really-personal-finance/internal/model"
	"github.com/chrisrogers37/really-personal-finance/internal/workspace"
)

var (
	newStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	probableStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	exactStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
)

func newPreviewCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool
	var format string

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Show what importing a statement file would do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.open()
			if err != nil {
				return err
			}
			f, err := ws.ReadFile(args[0], format)
			if err != nil {
				return err
			}

			p, err := ws.Imports.Preview(cmd.Context(), f)
			if err != nil && !errors.Is(err, imports.ErrNoTransactions) {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(p); encErr != nil {
					return fmt.Errorf("encoding preview: %w", encErr)
				}
			} else {
				printPreview(out, ws, f.Name, p)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the preview as JSON")
	cmd.Flags().StringVar(&format, "format", "", "parser to use instead of detection (ofx, amex-csv, bofa-csv, headerless-csv)")

	return cmd
}

func printPreview(w io.Writer, ws *workspace.Workspace, name string, p *imports.Preview) {
	fmt.Fprintf(w, "%s: %s", name, p.Format)
	if p.AccountHint != "" {
		fmt.Fprintf(w, ", account %s", p.AccountHint)
	}
	if acct, ok := ws.Accounts.Get(p.SuggestedAccountID); ok {
		fmt.Fprintf(w, " -> %s", acct.Name)
	}
	fmt.Fprintln(w)

	for _, t := range p.Transactions {
		line := fmt.Sprintf("%s | %-40.40s | %10s", t.Date, t.Description, t.Amount)
		switch t.DuplicateReason {
		case model.ReasonExactImportID:
			fmt.Fprintln(w, exactStyle.Render("= "+line))
		case model.ReasonSameDateAmount:
			fmt.Fprintln(w, probableStyle.Render("~ "+line))
		default:
			fmt.Fprintln(w, newStyle.Render("+ "+line))
		}
	}
	for _, e := range p.ParseErrors {
		fmt.Fprintln(w, errorStyle.Render("! "+e))
	}

	fmt.Fprintf(w, "\n%d transaction(s): %d new, %d duplicate(s)", p.TotalCount, p.NewCount, p.DuplicateCount)
	if len(p.ParseErrors) > 0 {
		fmt.Fprintf(w, ", %d parse error(s)", len(p.ParseErrors))
	}
	fmt.Fprintln(w)
}
