package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/proctape/internal/catalog"
)

// RegisterCmdOptions holds flags for the register command.
type RegisterCmdOptions struct {
	*RootOptions
	Catalog string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register --catalog <db> <name> <recording-dir>",
		Short: "Register a recording in the catalog",
		Long: `Register a recording directory in the catalog database under a name, so
later commands can refer to it by name instead of by path. Registering an
existing name replaces the previous registration.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to catalog database (required)")
	_ = cmd.MarkFlagRequired("catalog")

	return cmd
}

func runRegister(opts *RegisterCmdOptions, name, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.loadOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	man, exitErr := loadManifest(dir, cfg.ManifestName, formatter)
	if exitErr != nil {
		return exitErr
	}

	cat, err := catalog.Open(opts.Catalog)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalog", err)
	}
	defer cat.Close()

	rec, err := cat.Register(cmd.Context(), name, dir, man)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register recording", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(rec)
	}
	fmt.Fprintf(formatter.Writer, "registered %q (%d entries) as %s\n", name, rec.Entries, rec.ID)
	return nil
}
