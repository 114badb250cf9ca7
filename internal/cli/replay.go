package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/proctape/internal/proc"
	"github.com/roach88/proctape/internal/replay"
)

// ReplayCmdOptions holds flags for the replay command.
type ReplayCmdOptions struct {
	*RootOptions
	Dir   string
	Shell bool
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay --dir <recording-dir> -- <command> [args...]",
		Short: "Replay a recorded invocation",
		Long: `Replay a command from a recording directory instead of running it. The
command must match a pending recorded invocation; its captured stdout and
stderr are emitted and its recorded exit code becomes this command's exit
code. A command with no matching recording is an error.

Example:
  proctape replay --dir ./rec -- git status`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "recording directory (required)")
	cmd.Flags().BoolVar(&opts.Shell, "shell", false, "match a recording made through the shell")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func runReplay(opts *ReplayCmdOptions, args []string, cmd *cobra.Command) error {
	cfg, err := opts.loadOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	mgr, err := replay.New(opts.Dir, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load recording", err)
	}

	argv := make([]any, len(args))
	for i, a := range args {
		argv[i] = a
	}
	runOpts := proc.DefaultRunOptions()
	runOpts.RunInShell = opts.Shell

	res, err := mgr.Run(cmd.Context(), argv, runOpts)
	if err != nil {
		// Drift between the recording and the replayed command.
		return WrapExitError(ExitFailure, "replay failed", err)
	}

	cmd.OutOrStdout().Write(res.Stdout)
	cmd.ErrOrStderr().Write(res.Stderr)

	if res.ExitCode != 0 {
		return NewExitError(res.ExitCode, fmt.Sprintf("recorded command exited with code %d", res.ExitCode))
	}
	return nil
}
