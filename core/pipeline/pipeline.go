// Package pipeline assembles command specs into runnable pipelines, wires
// their stdio, launches the stages and collects their output according to
// each stage's capture mode.
package pipeline

import (
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/goshell/gosh/core/proc"
	"github.com/goshell/gosh/core/spec"
)

// Pipeline is an ordered sequence of launched stages connected stdout to
// stdin, sharing one process group.
type Pipeline struct {
	mu     sync.Mutex
	specs  []*spec.CommandSpec
	stages []*proc.Handle
	pgid   int

	started  time.Time
	finished time.Time

	status  int
	done    chan struct{}
	capture *captureBuffer // nil unless the final stage is captured
	mode    spec.CaptureMode
	strict  bool
}

// Pgid returns the pipeline's process group id, or zero while no OS process
// has been created yet.
func (p *Pipeline) Pgid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pgid
}

// Mode returns the capture mode of the pipeline's final stage, which governs
// the pipeline's public return value.
func (p *Pipeline) Mode() spec.CaptureMode { return p.mode }

// Stages returns a snapshot of the stage handles registered so far. A stage
// appears here as soon as its process or task exists, so a concurrent signal
// or status query always sees a consistent membership list.
func (p *Pipeline) Stages() []*proc.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*proc.Handle, len(p.stages))
	copy(out, p.stages)
	return out
}

func (p *Pipeline) registerStage(h *proc.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = append(p.stages, h)
	if p.pgid == 0 && h.Pid() != 0 {
		p.pgid = h.Pid()
	}
}

// Done is closed once every stage has exited.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// Wait blocks until every stage has exited and returns the pipeline's exit
// status: the final stage's status, or the worst stage status when strict
// status is configured.
func (p *Pipeline) Wait() int {
	<-p.done
	return p.status
}

// ExitStatus returns the pipeline's exit status and whether it is final.
func (p *Pipeline) ExitStatus() (int, bool) {
	select {
	case <-p.done:
		return p.status, true
	default:
		return 0, false
	}
}

// Elapsed returns how long the pipeline has been running, or its total
// runtime once finished.
func (p *Pipeline) Elapsed() time.Duration {
	select {
	case <-p.done:
		return p.finished.Sub(p.started)
	default:
		return time.Since(p.started)
	}
}

// Signal delivers sig to the pipeline's entire process group.
func (p *Pipeline) Signal(sig syscall.Signal) error {
	return proc.SignalGroup(p.Pgid(), sig)
}

func (p *Pipeline) String() string {
	parts := make([]string, 0, len(p.specs))
	for _, s := range p.specs {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " | ")
}

// monitor waits for every stage and publishes the final status. Runs on its
// own goroutine, started by the builder.
func (p *Pipeline) monitor(handles []*proc.Handle) {
	last := 0
	worst := 0
	for _, h := range handles {
		st := h.Wait()
		last = st
		if st > worst {
			worst = st
		}
	}

	p.mu.Lock()
	if p.strict {
		p.status = worst
	} else {
		p.status = last
	}
	p.finished = time.Now()
	p.mu.Unlock()
	close(p.done)
}
