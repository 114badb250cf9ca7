package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/proctape/internal/catalog"
)

// ListCmdOptions holds flags for the list command.
type ListCmdOptions struct {
	*RootOptions
	Catalog string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list --catalog <db>",
		Short:         "List registered recordings",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to catalog database (required)")
	_ = cmd.MarkFlagRequired("catalog")

	return cmd
}

func runList(opts *ListCmdOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cat, err := catalog.Open(opts.Catalog)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalog", err)
	}
	defer cat.Close()

	recordings, err := cat.List(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list recordings", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(recordings)
	}

	if len(recordings) == 0 {
		fmt.Fprintln(formatter.Writer, "no recordings registered")
		return nil
	}
	for _, rec := range recordings {
		fmt.Fprintf(formatter.Writer, "%-20s %3d entries  %s  %s\n",
			rec.Name, rec.Entries, rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Dir)
	}
	return nil
}
