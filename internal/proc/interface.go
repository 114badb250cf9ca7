// Package proc defines the process-invocation backend contract shared by the
// recording and replay managers, plus the local backend that spawns real OS
// processes.
//
// A Manager is the single seam through which application code invokes
// processes. The local manager calls the OS directly; the recording manager
// decorates it; the replay manager answers the same calls from a recording
// directory without touching the OS.
package proc

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// StartMode controls how a started process is attached to the caller.
type StartMode int

const (
	// StartModeNormal connects stdout and stderr back to the caller.
	StartModeNormal StartMode = iota

	// StartModeInheritStdio wires the child directly to the parent's stdio.
	StartModeInheritStdio

	// StartModeDetached starts the child in its own session with no stdio.
	StartModeDetached

	// StartModeDetachedWithStdio starts a detached child but keeps pipes.
	StartModeDetachedWithStdio
)

// String returns the persisted name of the mode.
func (m StartMode) String() string {
	switch m {
	case StartModeNormal:
		return "normal"
	case StartModeInheritStdio:
		return "inheritStdio"
	case StartModeDetached:
		return "detached"
	case StartModeDetachedWithStdio:
		return "detachedWithStdio"
	default:
		return "unknown"
	}
}

// ParseStartMode maps a persisted mode name back to its StartMode.
func ParseStartMode(name string) (StartMode, error) {
	switch name {
	case "", "normal":
		return StartModeNormal, nil
	case "inheritStdio":
		return StartModeInheritStdio, nil
	case "detached":
		return StartModeDetached, nil
	case "detachedWithStdio":
		return StartModeDetachedWithStdio, nil
	default:
		return StartModeNormal, fmt.Errorf("unknown start mode %q", name)
	}
}

// StartOptions configures a Start invocation.
type StartOptions struct {
	// WorkingDirectory is the child's working directory. Empty inherits
	// the caller's.
	WorkingDirectory string

	// Environment holds extra environment variables for the child.
	Environment map[string]string

	// IncludeParentEnvironment controls whether the parent's environment
	// is passed through in addition to Environment.
	IncludeParentEnvironment bool

	// RunInShell runs the command line through the system shell.
	RunInShell bool

	// Mode selects how the child is attached to the caller.
	Mode StartMode
}

// DefaultStartOptions returns the options used when callers pass none:
// parent environment included, normal attachment.
func DefaultStartOptions() StartOptions {
	return StartOptions{IncludeParentEnvironment: true, Mode: StartModeNormal}
}

// RunOptions configures a Run or RunSync invocation.
type RunOptions struct {
	StartOptions

	// StdoutEncoding names the expected stdout text encoding (IANA name,
	// or streamenc.SystemName). Empty means raw bytes.
	StdoutEncoding string

	// StderrEncoding is the stderr counterpart of StdoutEncoding.
	StderrEncoding string
}

// DefaultRunOptions returns RunOptions with DefaultStartOptions and raw
// byte streams.
func DefaultRunOptions() RunOptions {
	return RunOptions{StartOptions: DefaultStartOptions()}
}

// Result is the outcome of a run-to-completion invocation.
type Result struct {
	Pid      int
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Process is a started invocation, real or fabricated.
//
// In normal start mode the caller must drain Stdout and Stderr; an undrained
// pipe exerts backpressure on a real child exactly as the OS would.
type Process interface {
	// Pid returns the process id (the recorded one during replay).
	Pid() int

	// Stdout returns the live stdout stream. Reads return io.EOF once the
	// stream is closed.
	Stdout() io.Reader

	// Stderr returns the live stderr stream.
	Stderr() io.Reader

	// Wait blocks until the process exits and returns its exit code.
	// Safe to call from multiple goroutines.
	Wait() int

	// Kill requests termination. Returns true if the request was
	// delivered, false if the process had already exited (or, for a
	// fabricated process, was already killed).
	Kill() bool
}

// Manager is the process-invocation backend.
type Manager interface {
	// Start launches a process and returns without waiting for it.
	Start(ctx context.Context, argv []any, opts StartOptions) (Process, error)

	// Run launches a process and waits for it to complete.
	Run(ctx context.Context, argv []any, opts RunOptions) (*Result, error)

	// RunSync is Run without cancellation, for call sites that have no
	// context to thread through.
	RunSync(argv []any, opts RunOptions) (*Result, error)

	// CanRun reports whether the executable resolves to something
	// runnable from the given working directory.
	CanRun(executable, workingDirectory string) (bool, error)

	// KillPid delivers sig to an OS process by pid. Returns true if the
	// signal was delivered.
	KillPid(pid int, sig os.Signal) bool
}

// InvocationError reports a failed process invocation, carrying the command
// that was requested.
type InvocationError struct {
	Command []string
	Message string
	Err     error
}

func (e *InvocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Message, strings.Join(e.Command, " "), e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Command, " "))
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
