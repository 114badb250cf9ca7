package record

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/roach88/proctape/internal/proc"
)

// fakeProcess is a scripted process whose exit is controlled by the test.
type fakeProcess struct {
	pid           int
	stdout        io.Reader
	stderr        io.Reader
	exitCode      int
	ignoreSignals bool

	once sync.Once
	done chan struct{}
}

func newFakeProcess(pid int, stdout, stderr string, exitCode int) *fakeProcess {
	return &fakeProcess{
		pid:    pid,
		stdout: strings.NewReader(stdout),
		stderr: strings.NewReader(stderr),
		exitCode: exitCode,
		done:     make(chan struct{}),
	}
}

func (p *fakeProcess) Pid() int          { return p.pid }
func (p *fakeProcess) Stdout() io.Reader { return p.stdout }
func (p *fakeProcess) Stderr() io.Reader { return p.stderr }

func (p *fakeProcess) Wait() int {
	<-p.done
	return p.exitCode
}

func (p *fakeProcess) exit() {
	p.once.Do(func() { close(p.done) })
}

func (p *fakeProcess) Kill() bool {
	if p.ignoreSignals {
		return true
	}
	p.exit()
	return true
}

// fakeBackend is a scripted proc.Manager: staged processes and results are
// consumed in order.
type fakeBackend struct {
	mu         sync.Mutex
	staged     []*fakeProcess
	runResults []*proc.Result
	startErr   error
	runErr     error
	canRun     map[string]bool
	killed     []int
	byPid      map[int]*fakeProcess
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{canRun: make(map[string]bool), byPid: make(map[int]*fakeProcess)}
}

func (b *fakeBackend) stage(p *fakeProcess) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.staged = append(b.staged, p)
	b.byPid[p.pid] = p
}

func (b *fakeBackend) stageResult(r *proc.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runResults = append(b.runResults, r)
}

func (b *fakeBackend) Start(ctx context.Context, argv []any, opts proc.StartOptions) (proc.Process, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return nil, b.startErr
	}
	if len(b.staged) == 0 {
		panic("fakeBackend: no staged process")
	}
	p := b.staged[0]
	b.staged = b.staged[1:]
	return p, nil
}

func (b *fakeBackend) Run(ctx context.Context, argv []any, opts proc.RunOptions) (*proc.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runErr != nil {
		return nil, b.runErr
	}
	if len(b.runResults) == 0 {
		panic("fakeBackend: no staged result")
	}
	r := b.runResults[0]
	b.runResults = b.runResults[1:]
	return r, nil
}

func (b *fakeBackend) RunSync(argv []any, opts proc.RunOptions) (*proc.Result, error) {
	return b.Run(context.Background(), argv, opts)
}

func (b *fakeBackend) CanRun(executable, workingDirectory string) (bool, error) {
	return b.canRun[executable], nil
}

func (b *fakeBackend) KillPid(pid int, sig os.Signal) bool {
	b.mu.Lock()
	b.killed = append(b.killed, pid)
	p := b.byPid[pid]
	b.mu.Unlock()
	if p == nil {
		return false
	}
	return p.Kill()
}

func (b *fakeBackend) killedPids() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.killed...)
}
