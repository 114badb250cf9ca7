package record

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// captureStream starts the capture task for one live stream: every chunk is
// written to the named blob file before being forwarded to the returned
// reader, so the blob is never behind what the caller has observed. The
// file is unbuffered; each chunk is durable as soon as it is forwarded.
//
// Capture write failures panic: a recording that can no longer persist what
// the process produced is unusable, and hiding that would corrupt the tape.
func (m *Manager) captureStream(src io.Reader, name string) (io.Reader, error) {
	f, err := os.Create(m.blobPath(name))
	if err != nil {
		return nil, fmt.Errorf("create capture blob %s: %w", name, err)
	}

	out := newStreamBuffer()
	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				if _, werr := f.Write(buf[:n]); werr != nil {
					panic(fmt.Sprintf("capture blob %s: %v", name, werr))
				}
				out.Write(buf[:n])
			}
			if err != nil {
				if cerr := f.Close(); cerr != nil {
					panic(fmt.Sprintf("capture blob %s: %v", name, cerr))
				}
				out.Close()
				return
			}
		}
	}()
	return out, nil
}

// streamBuffer is an unbounded ordered byte stream between the capture task
// and the caller. The capture task appends at stream arrival pace; the
// caller reads at its own, so a slow caller never stalls capture.
type streamBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

func newStreamBuffer() *streamBuffer {
	b := &streamBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *streamBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	b.cond.Broadcast()
}

func (b *streamBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// Read blocks until data arrives or the stream closes; after close it
// drains the remaining bytes, then returns io.EOF.
func (b *streamBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.buf.Len() == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.buf.Len() == 0 {
		return 0, io.EOF
	}
	return b.buf.Read(p)
}
