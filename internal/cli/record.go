package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/proctape/internal/proc"
	"github.com/roach88/proctape/internal/record"
)

// RecordCmdOptions holds flags for the record command.
type RecordCmdOptions struct {
	*RootOptions
	Dir          string
	Shell        bool
	DrainTimeout time.Duration
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record --dir <recording-dir> -- <command> [args...]",
		Short: "Run a command and record its invocation",
		Long: `Run a command against the real OS while recording the invocation into a
recording directory. The captured stdout and stderr are forwarded to the
terminal and persisted as blobs; the manifest is written when the command
finishes.

Example:
  proctape record --dir ./rec -- git status
  proctape record --dir ./rec --shell -- 'ls | wc -l'`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "recording directory (required)")
	cmd.Flags().BoolVar(&opts.Shell, "shell", false, "run the command through the shell")
	cmd.Flags().DurationVar(&opts.DrainTimeout, "drain-timeout", 5*time.Second, "how long to wait for running processes when flushing")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func runRecord(opts *RecordCmdOptions, args []string, cmd *cobra.Command) error {
	cfg, err := opts.loadOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create recording directory", err)
	}

	rec, err := record.New(proc.NewLocal(), opts.Dir, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open recording directory", err)
	}

	argv := make([]any, len(args))
	for i, a := range args {
		argv[i] = a
	}
	runOpts := proc.DefaultRunOptions()
	runOpts.RunInShell = opts.Shell

	res, err := rec.Run(cmd.Context(), argv, runOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "command failed to run", err)
	}

	cmd.OutOrStdout().Write(res.Stdout)
	cmd.ErrOrStderr().Write(res.Stderr)

	if err := rec.Flush(true, opts.DrainTimeout); err != nil {
		return WrapExitError(ExitCommandError, "failed to write manifest", err)
	}

	if res.ExitCode != 0 {
		// Recorded faithfully; the recorded command's exit code becomes ours.
		return NewExitError(res.ExitCode, fmt.Sprintf("command exited with code %d", res.ExitCode))
	}
	return nil
}
