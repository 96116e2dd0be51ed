package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/goshell/gosh/core/spec"
)

// ExitStatusError reports a nonzero pipeline exit status when the
// raise-on-nonzero policy is active.
type ExitStatusError struct {
	Cmd  string
	Code int
}

func (e *ExitStatusError) Error() string {
	if e.Cmd == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("%s: exit status %d", e.Cmd, e.Code)
}

// Result is the terminal value returned to the caller of a pipeline run. It
// keeps a reference to its pipeline so elapsed timing and exit status remain
// queryable after completion.
//
// The raise-on-nonzero policy is evaluated when the result is consumed, not
// when the pipeline completes: a caller that never consumes the result never
// observes the error.
type Result struct {
	p *Pipeline
	// raise reports whether nonzero exit statuses convert to errors at
	// consumption time. Evaluated lazily so the policy can be toggled
	// between completion and consumption.
	raise func() bool
}

// NewResult wraps a pipeline. raise may be nil, disabling the policy.
func NewResult(p *Pipeline, raise func() bool) *Result {
	return &Result{p: p, raise: raise}
}

// NewStaticResult returns an already-completed result carrying output the
// shell produced in-process, without launching any stage. The raise policy
// applies to it the same way it does to a launched pipeline.
func NewStaticResult(command string, status int, output string, raise func() bool) *Result {
	p := &Pipeline{
		specs:   []*spec.CommandSpec{spec.NewCommandSpec(command)},
		status:  status,
		done:    make(chan struct{}),
		mode:    spec.Captured,
		capture: newCaptureBuffer(),
	}
	p.capture.Write([]byte(output))
	p.capture.Close()
	close(p.done)
	return NewResult(p, raise)
}

// Pipeline returns the underlying pipeline.
func (r *Result) Pipeline() *Pipeline { return r.p }

// Wait blocks until the pipeline is done and returns its exit status. A
// nonzero status is also returned as an *ExitStatusError when the
// raise-on-nonzero policy is active.
func (r *Result) Wait() (int, error) {
	st := r.p.Wait()
	if st != 0 && r.raise != nil && r.raise() {
		return st, &ExitStatusError{Cmd: r.p.String(), Code: st}
	}
	return st, nil
}

// ExitStatus blocks until done and returns the pipeline's exit status,
// ignoring the raise policy.
func (r *Result) ExitStatus() int {
	return r.p.Wait()
}

// Ok blocks until done and reports whether the pipeline is truthy, i.e.
// exited zero.
func (r *Result) Ok() bool {
	return r.p.Wait() == 0
}

// Elapsed returns the pipeline's running time.
func (r *Result) Elapsed() time.Duration {
	return r.p.Elapsed()
}

// Output blocks until the pipeline is done and returns the captured standard
// output with the trailing newline stripped, per shell substitution
// convention. Pipelines not run in captured mode return the empty string.
func (r *Result) Output() (string, error) {
	var text string
	if r.p.capture != nil {
		text = strings.TrimSuffix(string(r.p.capture.bytes()), "\n")
	}
	if _, err := r.Wait(); err != nil {
		return text, err
	}
	return text, nil
}

// Lines returns a lazy iterator over the captured output, yielding lines as
// the pipeline produces them. Only valid for captured pipelines.
func (r *Result) Lines() *LineIter {
	return &LineIter{buf: r.p.capture}
}

// LineIter iterates over a captured pipeline's output lines, blocking until
// each next line is available.
//
//	it := result.Lines()
//	for it.Next() {
//	    use(it.Text())
//	}
type LineIter struct {
	buf *captureBuffer
	off int
	cur string
}

// Next advances to the next line, blocking while the pipeline is still
// producing output. It returns false once the output is exhausted.
func (it *LineIter) Next() bool {
	if it.buf == nil {
		return false
	}
	line, off, ok := it.buf.nextLine(it.off)
	it.cur, it.off = line, off
	return ok
}

// Text returns the current line, without its trailing newline.
func (it *LineIter) Text() string { return it.cur }
