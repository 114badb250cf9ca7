package proc

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/roach88/proctape/internal/command"
)

// Resolver locates an executable by name relative to a working directory.
// It returns the resolved path and whether resolution succeeded; callers
// that only need a can-run answer use the boolean alone.
type Resolver func(name, workingDirectory string) (string, bool)

// LookPathResolver resolves via the PATH search, falling back to a direct
// stat for names that already contain a path separator.
func LookPathResolver(name, workingDirectory string) (string, bool) {
	if strings.ContainsRune(name, os.PathSeparator) {
		path := name
		if !filepath.IsAbs(path) && workingDirectory != "" {
			path = filepath.Join(workingDirectory, path)
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return "", false
		}
		return path, true
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}

// Local is the pass-through Manager that invokes the OS directly.
type Local struct {
	// Resolve locates executables for CanRun. Defaults to
	// LookPathResolver.
	Resolve Resolver
}

// NewLocal returns a Local manager with the default resolver.
func NewLocal() *Local {
	return &Local{Resolve: LookPathResolver}
}

// Start implements Manager.
func (l *Local) Start(ctx context.Context, argv []any, opts StartOptions) (Process, error) {
	raw := command.Raw(argv)
	cmd, err := l.buildCmd(ctx, raw, opts)
	if err != nil {
		return nil, err
	}

	p := &localProcess{cmd: cmd, done: make(chan struct{})}
	switch opts.Mode {
	case StartModeInheritStdio:
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		p.stdout = emptyReader{}
		p.stderr = emptyReader{}
	case StartModeDetached:
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		p.stdout = emptyReader{}
		p.stderr = emptyReader{}
	case StartModeDetachedWithStdio:
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		p.pipeStdio()
	default:
		p.pipeStdio()
	}

	if err := cmd.Start(); err != nil {
		return nil, &InvocationError{Command: raw, Message: "failed to start process", Err: err}
	}
	go p.reap()
	return p, nil
}

// Run implements Manager.
func (l *Local) Run(ctx context.Context, argv []any, opts RunOptions) (*Result, error) {
	raw := command.Raw(argv)
	cmd, err := l.buildCmd(ctx, raw, opts.StartOptions)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &InvocationError{Command: raw, Message: "failed to start process", Err: err}
	}
	pid := cmd.Process.Pid
	err = cmd.Wait()
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, &InvocationError{Command: raw, Message: "process failed", Err: err}
		}
	}
	return &Result{
		Pid:      pid,
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}, nil
}

// RunSync implements Manager.
func (l *Local) RunSync(argv []any, opts RunOptions) (*Result, error) {
	return l.Run(context.Background(), argv, opts)
}

// CanRun implements Manager using the configured Resolver.
func (l *Local) CanRun(executable, workingDirectory string) (bool, error) {
	resolve := l.Resolve
	if resolve == nil {
		resolve = LookPathResolver
	}
	_, ok := resolve(executable, workingDirectory)
	return ok, nil
}

// KillPid implements Manager.
func (l *Local) KillPid(pid int, sig os.Signal) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(sig) == nil
}

func (l *Local) buildCmd(ctx context.Context, raw []string, opts StartOptions) (*exec.Cmd, error) {
	if len(raw) == 0 {
		return nil, &InvocationError{Command: raw, Message: "empty command"}
	}

	var cmd *exec.Cmd
	if opts.RunInShell {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", strings.Join(raw, " "))
	} else {
		cmd = exec.CommandContext(ctx, raw[0], raw[1:]...)
	}
	cmd.Dir = opts.WorkingDirectory

	if opts.IncludeParentEnvironment {
		cmd.Env = os.Environ()
	} else {
		cmd.Env = []string{}
	}
	for k, v := range opts.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	return cmd, nil
}

// localProcess wraps a running exec.Cmd. Stdio is routed through io.Pipe so
// exec's own copy loop finishes before Wait returns; the caller sees exactly
// the bytes the child wrote, in order, per stream.
type localProcess struct {
	cmd     *exec.Cmd
	stdout  io.Reader
	stderr  io.Reader
	writers []*io.PipeWriter

	waitOnce sync.Once
	done     chan struct{}
	exitCode int
}

func (p *localProcess) pipeStdio() {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	p.cmd.Stdout = outW
	p.cmd.Stderr = errW
	p.stdout = outR
	p.stderr = errR
	p.writers = []*io.PipeWriter{outW, errW}
}

// reap waits for the child, records its exit code, and closes the caller's
// view of the streams.
func (p *localProcess) reap() {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		if p.cmd.ProcessState != nil {
			p.exitCode = p.cmd.ProcessState.ExitCode()
		} else if err != nil {
			p.exitCode = -1
		}
		for _, w := range p.writers {
			w.Close()
		}
		close(p.done)
	})
}

func (p *localProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *localProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *localProcess) Stderr() io.Reader {
	return p.stderr
}

func (p *localProcess) Wait() int {
	<-p.done
	return p.exitCode
}

func (p *localProcess) Kill() bool {
	select {
	case <-p.done:
		return false
	default:
	}
	return p.cmd.Process.Signal(syscall.SIGTERM) == nil
}

// emptyReader is the stdio view of modes that have none.
type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) {
	return 0, io.EOF
}
