package pipeline

import (
	"bytes"
	"io"
	"sync"
)

// captureBuffer accumulates a pipeline's output while stages are still
// running. Readers can wait for the whole buffer or pull it line by line as
// it arrives.
type captureBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newCaptureBuffer() *captureBuffer {
	c := &captureBuffer{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *captureBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, p...)
	c.cond.Broadcast()
	return len(p), nil
}

// Close marks the buffer complete and wakes every waiter. Closing twice is
// harmless.
func (c *captureBuffer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
	return nil
}

// drainFrom copies r into the buffer until EOF, then closes the buffer.
// Runs on its own goroutine so buffering proceeds concurrently with the
// pipeline.
func (c *captureBuffer) drainFrom(r io.ReadCloser) {
	io.Copy(c, r)
	r.Close()
	c.Close()
}

// bytes blocks until the buffer is complete and returns its contents.
func (c *captureBuffer) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !c.closed {
		c.cond.Wait()
	}
	return c.buf
}

// nextLine blocks until a full line is available at or beyond off, or the
// buffer is complete. It returns the line without its trailing newline, the
// offset of the following line, and whether a line was produced.
func (c *captureBuffer) nextLine(off int) (string, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if idx := bytes.IndexByte(c.buf[min(off, len(c.buf)):], '\n'); idx >= 0 {
			end := off + idx
			return string(c.buf[off:end]), end + 1, true
		}
		if c.closed {
			if off < len(c.buf) {
				// Trailing partial line.
				return string(c.buf[off:]), len(c.buf), true
			}
			return "", off, false
		}
		c.cond.Wait()
	}
}
