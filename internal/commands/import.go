package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrisrogers37/really-personal-finance/internal/importer"
	"github.com/chrisrogers37/really-personal-finance/internal/importlog"
	"github.com/chrisrogers37/really-personal-finance/internal/workspace"
)

type importOptions struct {
	account           string
	format            string
	includeDuplicates bool
	dryRun            bool
}

func newImportCommand(opts *globalOptions) *cobra.Command {
	var iopts importOptions

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import statement files into the ledger",
		Long: "Import statement files into the ledger. With no files, every statement in the\n" +
			"workspace's import/ directory is imported and moved to import/processed/.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.open()
			if err != nil {
				return err
			}

			inbox := len(args) == 0
			paths := args
			if inbox {
				files, err := importer.Scan(ws.Root)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to import in import/")
					return nil
				}
				for _, f := range files {
					paths = append(paths, f.Path)
				}
			}

			var errs []error
			for _, path := range paths {
				if err := importFile(cmd, ws, path, inbox, iopts); err != nil {
					ws.Logger.Error("import failed", "file", filepath.Base(path), "err", err)
					errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&iopts.account, "account", "", "account ID to import into (default: suggested from the file)")
	cmd.Flags().StringVar(&iopts.format, "format", "", "parser to use instead of detection")
	cmd.Flags().BoolVar(&iopts.includeDuplicates, "include-duplicates", false, "also submit exact duplicates (the ledger still skips them)")
	cmd.Flags().BoolVar(&iopts.dryRun, "dry-run", false, "show what would be imported without writing")

	return cmd
}

func importFile(cmd *cobra.Command, ws *workspace.Workspace, path string, inbox bool, opts importOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	f, err := ws.ReadFile(path, opts.format)
	if err != nil {
		return err
	}
	p, err := ws.Imports.Preview(ctx, f)
	if err != nil {
		return err
	}

	accountID := opts.account
	if accountID == "" {
		accountID = p.SuggestedAccountID
	}
	if accountID == "" && p.AccountHint == "" {
		return errors.New("file names no account: pass --account")
	}
	if accountID == "" {
		return fmt.Errorf("no account matches %q: pass --account", p.AccountHint)
	}

	sel := p.Selection(accountID, opts.includeDuplicates)
	sel.FileName = f.Name

	if opts.dryRun {
		report(out, f.Name, "Would import", len(sel.Transactions), p.TotalCount-len(sel.Transactions))
		return nil
	}

	imported, skipped := 0, p.TotalCount-len(sel.Transactions)
	if len(sel.Transactions) > 0 {
		res, err := ws.Imports.Confirm(ctx, sel)
		if err != nil {
			return err
		}
		imported = res.Imported
		skipped += res.Skipped
	}

	if inbox {
		if err := importer.MarkProcessed(ws.Root, f.Name); err != nil {
			return err
		}
	}

	if _, err := ws.Record(ctx, importlog.Entry{
		Timestamp:   time.Now(),
		File:        f.Name,
		Format:      string(p.Format),
		AccountID:   accountID,
		Total:       p.TotalCount,
		Imported:    imported,
		Skipped:     skipped,
		ParseErrors: len(p.ParseErrors),
	}); err != nil {
		return err
	}

	report(out, f.Name, "Imported", imported, skipped)
	return nil
}

func report(w io.Writer, name, verb string, n, skipped int) {
	fmt.Fprintf(w, "%s: %s %d transaction(s), skipped %d\n", name, verb, n, skipped)
}
