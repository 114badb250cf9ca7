// Package record implements the recording side of the harness: a Manager
// that decorates a real process backend, captures stdio byte-for-byte, and
// persists a manifest plus per-invocation stdio blobs into a destination
// directory that a replay manager can later serve invocations from.
package record

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/roach88/proctape/internal/command"
	"github.com/roach88/proctape/internal/config"
	"github.com/roach88/proctape/internal/manifest"
	"github.com/roach88/proctape/internal/proc"
)

// Manager records every invocation it forwards to the wrapped backend.
//
// Delegate failures propagate unchanged: recording must never mask a real
// invocation failure. Capture durability failures, on the other hand, are
// fatal to the invocation being recorded.
type Manager struct {
	delegate proc.Manager
	dir      string
	opts     config.Options

	mu       sync.Mutex
	manifest *manifest.Manifest
	inflight map[int]*inflightProcess
}

// inflightProcess tracks one started process until it exits. done is closed
// by the reaper after the exit code has been backfilled.
type inflightProcess struct {
	pid   int
	entry *manifest.RunEntry
	done  chan struct{}
}

// New creates a recording Manager writing into dir. The destination must
// already exist and be empty; anything else fails construction.
func New(delegate proc.Manager, dir string, opts config.Options) (*Manager, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("recording destination %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("recording destination %s: not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("recording destination %s: %w", dir, err)
	}
	if len(entries) != 0 {
		return nil, fmt.Errorf("recording destination %s: not empty", dir)
	}

	return &Manager{
		delegate: delegate,
		dir:      dir,
		opts:     opts,
		manifest: manifest.New(),
		inflight: make(map[int]*inflightProcess),
	}, nil
}

// Start implements proc.Manager. The returned process forwards the child's
// streams chunk for chunk while the same chunks are written to the entry's
// stdio blobs.
func (m *Manager) Start(ctx context.Context, argv []any, opts proc.StartOptions) (proc.Process, error) {
	sanitized := command.Sanitize(argv)

	p, err := m.delegate.Start(ctx, argv, opts)
	if err != nil {
		return nil, err
	}
	pid := p.Pid()

	m.mu.Lock()
	entry := &manifest.RunEntry{
		Pid:                      pid,
		Basename:                 m.basenameFor(m.manifest.Len(), sanitized, pid),
		Command:                  sanitized,
		WorkingDirectory:         opts.WorkingDirectory,
		Environment:              opts.Environment,
		IncludeParentEnvironment: opts.IncludeParentEnvironment,
		RunInShell:               opts.RunInShell,
		Mode:                     opts.Mode.String(),
	}
	m.manifest.Add(entry)
	fl := &inflightProcess{pid: pid, entry: entry, done: make(chan struct{})}
	m.inflight[pid] = fl
	m.mu.Unlock()

	stdout, err := m.captureStream(p.Stdout(), entry.Basename+".stdout")
	if err != nil {
		m.abandonStart(fl, p)
		return nil, err
	}
	stderr, err := m.captureStream(p.Stderr(), entry.Basename+".stderr")
	if err != nil {
		m.abandonStart(fl, p)
		return nil, err
	}

	go m.reap(fl, p)
	slog.Debug("recording started process", "pid", pid, "basename", entry.Basename)

	return &recordedProcess{Process: p, stdout: stdout, stderr: stderr}, nil
}

// abandonStart undoes a registration whose capture setup failed. The entry
// and in-flight record are removed so a later Flush does not drain a process
// that has no reaper, and the child is killed rather than leaked.
func (m *Manager) abandonStart(fl *inflightProcess, p proc.Process) {
	m.mu.Lock()
	m.manifest.Remove(fl.entry)
	delete(m.inflight, fl.pid)
	m.mu.Unlock()
	p.Kill()
}

// reap waits for the process, backfills the exit code on its manifest
// entry, and removes it from the in-flight table.
func (m *Manager) reap(fl *inflightProcess, p proc.Process) {
	code := p.Wait()

	m.mu.Lock()
	if entry := m.manifest.RunEntryForPid(fl.pid); entry != nil {
		entry.SetExitCode(code)
	}
	delete(m.inflight, fl.pid)
	m.mu.Unlock()

	close(fl.done)
	slog.Debug("recorded process exited", "pid", fl.pid, "exitCode", code)
}

// Run implements proc.Manager for the run-to-completion style: the finished
// stdio buffers are written once, and the entry is fully populated at call
// time.
func (m *Manager) Run(ctx context.Context, argv []any, opts proc.RunOptions) (*proc.Result, error) {
	res, err := m.delegate.Run(ctx, argv, opts)
	if err != nil {
		return nil, err
	}
	if err := m.recordCompleted(command.Sanitize(argv), opts, res); err != nil {
		return nil, err
	}
	return res, nil
}

// RunSync implements proc.Manager for the blocking style.
func (m *Manager) RunSync(argv []any, opts proc.RunOptions) (*proc.Result, error) {
	res, err := m.delegate.RunSync(argv, opts)
	if err != nil {
		return nil, err
	}
	if err := m.recordCompleted(command.Sanitize(argv), opts, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (m *Manager) recordCompleted(sanitized []string, opts proc.RunOptions, res *proc.Result) error {
	m.mu.Lock()
	entry := &manifest.RunEntry{
		Pid:                      res.Pid,
		Basename:                 m.basenameFor(m.manifest.Len(), sanitized, res.Pid),
		Command:                  sanitized,
		WorkingDirectory:         opts.WorkingDirectory,
		Environment:              opts.Environment,
		IncludeParentEnvironment: opts.IncludeParentEnvironment,
		RunInShell:               opts.RunInShell,
		StdoutEncoding:           opts.StdoutEncoding,
		StderrEncoding:           opts.StderrEncoding,
	}
	entry.SetExitCode(res.ExitCode)
	m.manifest.Add(entry)
	m.mu.Unlock()

	if err := os.WriteFile(m.blobPath(entry.Basename+".stdout"), res.Stdout, 0o644); err != nil {
		return fmt.Errorf("record stdout blob: %w", err)
	}
	if err := os.WriteFile(m.blobPath(entry.Basename+".stderr"), res.Stderr, 0o644); err != nil {
		return fmt.Errorf("record stderr blob: %w", err)
	}
	return nil
}

// CanRun implements proc.Manager: the delegate's answer is recorded and
// returned unchanged.
func (m *Manager) CanRun(executable, workingDirectory string) (bool, error) {
	ok, err := m.delegate.CanRun(executable, workingDirectory)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	m.manifest.Add(&manifest.CanRunEntry{Executable: executable, Result: ok})
	m.mu.Unlock()
	return ok, nil
}

// KillPid implements proc.Manager by delegating; signal delivery is not
// part of the recorded history.
func (m *Manager) KillPid(pid int, sig os.Signal) bool {
	return m.delegate.KillPid(pid, sig)
}

// Flush makes the manifest durable, optionally draining in-flight processes
// first. Each call writes the manifest's current state in full; calling it
// again later simply rewrites the file.
//
// The drain is two-phase, with all in-flight processes treated as one
// batch: processes still pending after the first timeout window are marked
// daemon and sent SIGTERM; any still pending after a second window are
// additionally marked notResponding and left running.
func (m *Manager) Flush(finishRunningProcesses bool, timeout time.Duration) error {
	if finishRunningProcesses {
		m.drain(timeout)
	}

	m.mu.Lock()
	data, err := m.manifest.Serialize()
	entries := m.manifest.Len()
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("flush recording: %w", err)
	}

	path := filepath.Join(m.dir, m.opts.ManifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("flush recording: %w", err)
	}
	slog.Info("recording flushed", "path", path, "entries", entries)
	return nil
}

func (m *Manager) drain(timeout time.Duration) {
	m.mu.Lock()
	procs := make([]*inflightProcess, 0, len(m.inflight))
	for _, fl := range m.inflight {
		procs = append(procs, fl)
	}
	m.mu.Unlock()
	if len(procs) == 0 {
		return
	}

	slog.Info("draining in-flight processes", "count", len(procs), "timeout", timeout)
	pending := waitBatch(procs, timeout)
	if len(pending) == 0 {
		return
	}

	m.mu.Lock()
	for _, fl := range pending {
		fl.entry.MarkDaemon()
	}
	m.mu.Unlock()
	for _, fl := range pending {
		slog.Warn("process still running at flush, signaling", "pid", fl.pid)
		m.delegate.KillPid(fl.pid, syscall.SIGTERM)
	}

	still := waitBatch(pending, timeout)
	m.mu.Lock()
	for _, fl := range still {
		fl.entry.MarkNotResponding()
		slog.Warn("process ignored termination signal", "pid", fl.pid)
	}
	m.mu.Unlock()
}

// waitBatch waits for every process in the batch, bounded by a single
// shared timeout. Everything still pending when the bound elapses is
// returned together; there is no per-process deadline.
func waitBatch(procs []*inflightProcess, timeout time.Duration) []*inflightProcess {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var pending []*inflightProcess
	for _, fl := range procs {
		select {
		case <-fl.done:
		case <-ctx.Done():
			select {
			case <-fl.done:
			default:
				pending = append(pending, fl)
			}
		}
	}
	return pending
}

// basenameFor derives the stable blob identifier for a manifest entry:
// zero-padded manifest index, a human identifier, and the pid, dot-joined.
// The identifier is the first command element that is neither a flag nor a
// skippable wrapper executable.
func (m *Manager) basenameFor(index int, sanitized []string, pid int) string {
	identifier := "unknown"
	for _, el := range sanitized {
		if strings.HasPrefix(el, "-") {
			continue
		}
		base := filepath.Base(el)
		if m.opts.Skippable(base) {
			continue
		}
		identifier = base
		break
	}
	return fmt.Sprintf("%03d.%s.%d", index, identifier, pid)
}

func (m *Manager) blobPath(name string) string {
	return filepath.Join(m.dir, name)
}

// recordedProcess is the caller's view of a recorded Start invocation: same
// process, streams replaced by the capture tee.
type recordedProcess struct {
	proc.Process
	stdout io.Reader
	stderr io.Reader
}

func (p *recordedProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *recordedProcess) Stderr() io.Reader {
	return p.stderr
}
