package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/proctape/internal/manifest"
)

// ShowEntry is the JSON projection of one manifest entry.
type ShowEntry struct {
	Type          string   `json:"type"`
	Pid           int      `json:"pid,omitempty"`
	Basename      string   `json:"basename,omitempty"`
	Command       []string `json:"command,omitempty"`
	ExitCode      *int     `json:"exitCode,omitempty"`
	Daemon        bool     `json:"daemon,omitempty"`
	NotResponding bool     `json:"notResponding,omitempty"`
	Executable    string   `json:"executable,omitempty"`
	Result        *bool    `json:"result,omitempty"`
}

// ShowResult is the JSON payload of the show command.
type ShowResult struct {
	Dir     string      `json:"dir"`
	Entries []ShowEntry `json:"entries"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <recording-dir>",
		Short: "Show the contents of a recording",
		Long: `Show the manifest of a recording directory: every recorded invocation in
order with its pid, command, exit code and flags.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runShow(opts *RootOptions, dir string, cmd *cobra.Command) error {
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
	formatter.VerboseLog("Loaded %d manifest entries from %s", man.Len(), dir)

	result := ShowResult{Dir: dir, Entries: []ShowEntry{}}
	for _, entry := range man.Entries() {
		switch e := entry.(type) {
		case *manifest.RunEntry:
			result.Entries = append(result.Entries, ShowEntry{
				Type:          string(e.Type()),
				Pid:           e.Pid,
				Basename:      e.Basename,
				Command:       e.Command,
				ExitCode:      e.ExitCode,
				Daemon:        e.Daemon(),
				NotResponding: e.NotResponding(),
			})
		case *manifest.CanRunEntry:
			res := e.Result
			result.Entries = append(result.Entries, ShowEntry{
				Type:       string(e.Type()),
				Executable: e.Executable,
				Result:     &res,
			})
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%s: %d entries\n", dir, len(result.Entries))
	for i, e := range result.Entries {
		switch e.Type {
		case string(manifest.TypeRun):
			line := fmt.Sprintf("%3d  run      pid %-6d %s", i, e.Pid, strings.Join(e.Command, " "))
			if e.ExitCode != nil {
				line += fmt.Sprintf("  (exit %d)", *e.ExitCode)
			}
			if e.Daemon {
				line += "  [daemon]"
			}
			if e.NotResponding {
				line += "  [not responding]"
			}
			fmt.Fprintln(formatter.Writer, line)
		case string(manifest.TypeCanRun):
			fmt.Fprintf(formatter.Writer, "%3d  can_run  %s = %v\n", i, e.Executable, *e.Result)
		}
	}
	return nil
}

// loadManifest reads and parses a recording's manifest, mapping failures to
// the command-level exit contract.
func loadManifest(dir, manifestName string, formatter *OutputFormatter) (*manifest.Manifest, *ExitError) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		msg := fmt.Sprintf("recording directory not found: %s", dir)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return nil, NewExitError(ExitCommandError, msg)
	}

	path := filepath.Join(dir, manifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		msg := fmt.Sprintf("manifest not found: %s", path)
		_ = formatter.Error(ErrCodeNoManifest, msg, nil)
		return nil, NewExitError(ExitCommandError, msg)
	}

	man, err := manifest.Deserialize(data)
	if err != nil {
		msg := fmt.Sprintf("manifest did not parse: %v", err)
		_ = formatter.Error(ErrCodeBadManifest, msg, nil)
		return nil, NewExitError(ExitCommandError, msg)
	}
	return man, nil
}
