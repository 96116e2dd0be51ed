package proc

import (
	"io"
	"os"
)

// IO bundles the three standard streams handed to a stage.
type IO struct {
	In  io.ReadCloser
	Out io.WriteCloser
	Err io.WriteCloser
}

// NewIO adapts plain readers and writers into an IO. Nil streams become
// /dev/null style ends: reads fail closed and writes are discarded.
func NewIO(stdin io.Reader, stdout, stderr io.Writer) IO {
	return IO{
		In:  toReadCloserOrDiscard(stdin),
		Out: toWriteCloserOrDiscard(stdout),
		Err: toWriteCloserOrDiscard(stderr),
	}
}

// NullIO creates a valid /dev/null style IO: reads won't work and writes
// will be discarded.
func NullIO() IO {
	return NewIO(nil, nil, nil)
}

// Stdio returns the hosting process's own standard streams.
func Stdio() IO {
	return IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

func toWriteCloserOrDiscard(w io.Writer) io.WriteCloser {
	if w == nil {
		return &devNull{}
	}
	if wc, ok := w.(io.WriteCloser); ok {
		return wc
	}
	return nopWriteCloser{w}
}

func toReadCloserOrDiscard(r io.Reader) io.ReadCloser {
	if r == nil {
		return &devNull{}
	}
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	return io.NopCloser(r)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// devNull implements io.Reader and io.Writer, always closing for reads and
// discarding writes.
type devNull struct{}

var _ io.ReadCloser = (*devNull)(nil)
var _ io.WriteCloser = (*devNull)(nil)

func (*devNull) Read([]byte) (int, error) {
	return 0, os.ErrClosed
}

func (*devNull) Write(b []byte) (int, error) {
	return len(b), nil
}

func (*devNull) Close() error {
	return nil
}
