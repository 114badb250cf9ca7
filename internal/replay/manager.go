// Package replay implements the replay side of the harness: a Manager that
// loads a recording directory and answers process invocations out of the
// manifest, never touching the OS. Matching drift between the recorded and
// replayed invocation sequences surfaces as an error, never as a silent
// skip.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/proctape/internal/command"
	"github.com/roach88/proctape/internal/config"
	"github.com/roach88/proctape/internal/manifest"
	"github.com/roach88/proctape/internal/proc"
	"github.com/roach88/proctape/internal/streamenc"
)

// ErrNoRecordedProbe reports a CanRun call the recording has no pending
// answer for: the caller asked about an executable this recording never
// probed, or probed more often than it was recorded.
var ErrNoRecordedProbe = errors.New("no pending can_run entry in recording")

// Manager replays a recording. It takes read-only ownership of the
// recording directory for its lifetime; the only state it mutates is each
// matched entry's invoked flag, which enforces at most one match per
// recorded invocation.
type Manager struct {
	dir  string
	opts config.Options

	mu       sync.Mutex
	manifest *manifest.Manifest
}

// New loads a manifest from a recording directory. Construction fails if
// the directory does not exist, the manifest file is absent, or the
// manifest does not parse.
func New(dir string, opts config.Options) (*Manager, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("recording directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("recording directory %s: not a directory", dir)
	}

	path := filepath.Join(dir, opts.ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recording manifest %s: %w", path, err)
	}
	man, err := manifest.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("recording manifest %s: %w", path, err)
	}

	slog.Debug("replay manifest loaded", "path", path, "entries", man.Len())
	return &Manager{dir: dir, opts: opts, manifest: man}, nil
}

// Start implements proc.Manager by fabricating a process from the first
// pending entry recorded for the same sanitized command and start mode.
func (m *Manager) Start(ctx context.Context, argv []any, opts proc.StartOptions) (proc.Process, error) {
	sanitized := command.Sanitize(argv)
	mode := opts.Mode.String()

	entry := m.popRunEntry(manifest.RunCriteria{Command: sanitized, Mode: &mode})
	if entry == nil {
		return nil, &proc.InvocationError{Command: sanitized, Message: "no matching invocation found"}
	}

	stdout, stderr, err := m.readBlobs(entry)
	if err != nil {
		return nil, err
	}
	slog.Debug("replaying start", "pid", entry.Pid, "basename", entry.Basename, "daemon", entry.Daemon())
	return newFabricatedProcess(entry, stdout, stderr, m.opts.ReplayDelay), nil
}

// Run implements proc.Manager by answering from the first pending entry
// recorded for the same sanitized command and stream encodings.
func (m *Manager) Run(ctx context.Context, argv []any, opts proc.RunOptions) (*proc.Result, error) {
	return m.replayCompleted(command.Sanitize(argv), opts)
}

// RunSync implements proc.Manager; replay has nothing to block on, so it is
// Run without the context.
func (m *Manager) RunSync(argv []any, opts proc.RunOptions) (*proc.Result, error) {
	return m.replayCompleted(command.Sanitize(argv), opts)
}

func (m *Manager) replayCompleted(sanitized []string, opts proc.RunOptions) (*proc.Result, error) {
	entry := m.popRunEntry(manifest.RunCriteria{
		Command:        sanitized,
		StdoutEncoding: &opts.StdoutEncoding,
		StderrEncoding: &opts.StderrEncoding,
	})
	if entry == nil {
		return nil, &proc.InvocationError{Command: sanitized, Message: "no matching invocation found"}
	}

	stdout, stderr, err := m.readBlobs(entry)
	if err != nil {
		return nil, err
	}
	exitCode := 0
	if entry.ExitCode != nil {
		exitCode = *entry.ExitCode
	}
	slog.Debug("replaying run", "pid", entry.Pid, "basename", entry.Basename, "exitCode", exitCode)
	return &proc.Result{
		Pid:      entry.Pid,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
	}, nil
}

// CanRun implements proc.Manager from the recorded can_run pool. A missing
// entry is an argument error wrapping ErrNoRecordedProbe.
func (m *Manager) CanRun(executable, workingDirectory string) (bool, error) {
	m.mu.Lock()
	entry := m.manifest.FindPendingCanRunEntry(executable)
	m.mu.Unlock()
	if entry == nil {
		return false, fmt.Errorf("canRun %q: %w", executable, ErrNoRecordedProbe)
	}
	return entry.Result, nil
}

// KillPid is intentionally unimplemented for replayed processes: a test
// reaching for pid-level signal delivery needs a feature this harness does
// not have, and pretending otherwise would hide that.
func (m *Manager) KillPid(pid int, sig os.Signal) bool {
	panic("replay: signal delivery to replayed processes is not supported")
}

func (m *Manager) popRunEntry(c manifest.RunCriteria) *manifest.RunEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manifest.FindPendingRunEntry(c)
}

// readBlobs loads the entry's captured stdio: raw bytes when no encoding
// was recorded, decoded text otherwise.
func (m *Manager) readBlobs(entry *manifest.RunEntry) (stdout, stderr []byte, err error) {
	stdout, err = m.readBlob(entry.Basename+".stdout", entry.StdoutEncoding)
	if err != nil {
		return nil, nil, err
	}
	stderr, err = m.readBlob(entry.Basename+".stderr", entry.StderrEncoding)
	if err != nil {
		return nil, nil, err
	}
	return stdout, stderr, nil
}

func (m *Manager) readBlob(name, encoding string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read recorded blob %s: %w", name, err)
	}
	if encoding == "" {
		return data, nil
	}
	decoded, err := streamenc.Decode(encoding, data)
	if err != nil {
		return nil, fmt.Errorf("decode recorded blob %s: %w", name, err)
	}
	return decoded, nil
}
