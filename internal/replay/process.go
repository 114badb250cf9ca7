package replay

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/roach88/proctape/internal/manifest"
)

// processState is the lifecycle of a fabricated process:
// pending → streaming → exited. Exited is terminal.
type processState int

const (
	statePending processState = iota
	stateStreaming
	stateExited
)

// fabricatedProcess replays one recorded Start invocation. A one-shot timer
// moves it from pending to streaming and emits the captured stdout and
// stderr bytes, each exactly once; a non-daemon process is then killed
// automatically, while a daemon stays streaming until an external Kill.
//
// Even with a zero delay the timer fires on its own goroutine, never inside
// the call that created the process, so a caller that attaches stream
// readers right after creation can never miss the emission.
type fabricatedProcess struct {
	pid      int
	exitCode int
	daemon   bool
	stdout   *fabricatedStream
	stderr   *fabricatedStream

	mu    sync.Mutex
	state processState
	done  chan struct{}
}

func newFabricatedProcess(entry *manifest.RunEntry, stdout, stderr []byte, delay time.Duration) *fabricatedProcess {
	exitCode := 0
	if entry.ExitCode != nil {
		exitCode = *entry.ExitCode
	}
	p := &fabricatedProcess{
		pid:      entry.Pid,
		exitCode: exitCode,
		daemon:   entry.Daemon(),
		stdout:   newFabricatedStream(stdout),
		stderr:   newFabricatedStream(stderr),
		done:     make(chan struct{}),
	}
	time.AfterFunc(delay, p.emit)
	return p
}

// emit performs the pending → streaming transition. The timer is one-shot
// and not cancellable; if the process was killed before it fired, there is
// nothing left to do.
func (p *fabricatedProcess) emit() {
	p.mu.Lock()
	if p.state != statePending {
		p.mu.Unlock()
		return
	}
	p.state = stateStreaming
	p.mu.Unlock()

	p.stdout.emit()
	p.stderr.emit()
	if !p.daemon {
		p.exit()
	}
}

// exit performs the transition to exited: closes both streams and resolves
// the exit code. Returns false if the process had already exited.
func (p *fabricatedProcess) exit() bool {
	p.mu.Lock()
	if p.state == stateExited {
		p.mu.Unlock()
		return false
	}
	p.state = stateExited
	p.mu.Unlock()

	p.stdout.closeStream()
	p.stderr.closeStream()
	close(p.done)
	return true
}

func (p *fabricatedProcess) Pid() int {
	return p.pid
}

func (p *fabricatedProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *fabricatedProcess) Stderr() io.Reader {
	return p.stderr
}

// Wait blocks until the process exits (for a daemon, until someone kills
// it) and returns the recorded exit code.
func (p *fabricatedProcess) Wait() int {
	<-p.done
	return p.exitCode
}

// Kill is idempotent: the first call from any live state exits the process
// and returns true; later calls return false with no further effect.
func (p *fabricatedProcess) Kill() bool {
	return p.exit()
}

// fabricatedStream gates the captured bytes of one stream behind the
// emission signal. Reads block while the process is pending; once emitted,
// the bytes drain in order; a daemon's stream then blocks again until the
// stream is closed by Kill.
type fabricatedStream struct {
	mu      sync.Mutex
	cond    *sync.Cond
	r       *bytes.Reader
	emitted bool
	closed  bool
}

func newFabricatedStream(data []byte) *fabricatedStream {
	s := &fabricatedStream{r: bytes.NewReader(data)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *fabricatedStream) emit() {
	s.mu.Lock()
	s.emitted = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *fabricatedStream) closeStream() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *fabricatedStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.emitted && s.r.Len() > 0 {
			return s.r.Read(p)
		}
		if s.closed {
			// Killed before emission, or emitted bytes fully drained.
			return 0, io.EOF
		}
		s.cond.Wait()
	}
}
