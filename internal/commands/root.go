package commands

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/chrisrogers37/really-personal-finance/internal/buildinfo"
	"github.com/chrisrogers37/really-personal-finance/internal/workspace"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	repo    string
	verbose bool
	logger  *log.Logger
}

func (o *globalOptions) open() (*workspace.Workspace, error) {
	return workspace.Open(o.repo, o.logger)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "rpf",
		Short:   "Import bank and card statements into a personal ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.logger = log.NewWithOptions(os.Stderr, log.Options{
				ReportTimestamp: true,
				Prefix:          "rpf",
			})
			if opts.verbose {
				opts.logger.SetLevel(log.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.repo, "repo", ".", "workspace directory")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newInitCommand(),
		newAccountCommand(opts),
		newPreviewCommand(opts),
		newImportCommand(opts),
		newServeCommand(opts),
	)

	return rootCmd
}
