// Package core glues the execution engine together: one Interp value holds
// the configuration, event bus, job table and last-result slot, and every
// entry point (REPL, one-shot CLI, API) threads through it.
package core

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/goshell/gosh/core/config"
	"github.com/goshell/gosh/core/events"
	"github.com/goshell/gosh/core/jobs"
	"github.com/goshell/gosh/core/pipeline"
	"github.com/goshell/gosh/core/proc"
	"github.com/goshell/gosh/core/shell"
	"github.com/goshell/gosh/core/spec"
)

// Interp is the process-wide execution context. Create one per shell; there
// is deliberately no ambient global.
type Interp struct {
	Config   *config.Configuration
	Events   *events.Bus
	Jobs     *jobs.Table
	Launcher *proc.Launcher
	Builder  *pipeline.Builder
	Log      *zap.Logger

	mu   sync.Mutex
	last *pipeline.Result
}

// NewInterp wires an interpreter from configuration. resolver supplies the
// in-process commands; nil means external commands only.
func NewInterp(cfg *config.Configuration, resolver proc.Resolver, log *zap.Logger) *Interp {
	if log == nil {
		log = zap.NewNop()
	}

	bus := events.NewBus(log)
	bus.Declare(events.PreSpecRun, events.Normal,
		"Fires before each stage's process exists. The spec is still mutable.")
	bus.Declare(events.PostSpecRun, events.Normal,
		"Fires once each stage has been started. The spec is frozen.")

	launcher := proc.NewLauncher(resolver, bus, log)
	builder := pipeline.NewBuilder(launcher, log)
	builder.Trace = cfg.TraceSubprocs
	builder.StrictStatus = cfg.StrictStatus

	for k, v := range cfg.Env {
		os.Setenv(k, v)
	}

	return &Interp{
		Config:   cfg,
		Events:   bus,
		Jobs:     jobs.NewTable(log),
		Launcher: launcher,
		Builder:  builder,
		Log:      log,
	}
}

// LastResult returns the result of the most recently completed top-level
// pipeline. Overwritten unconditionally, regardless of capture mode.
func (i *Interp) LastResult() *pipeline.Result {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.last
}

func (i *Interp) setLast(r *pipeline.Result) {
	i.mu.Lock()
	i.last = r
	i.mu.Unlock()
}

func (i *Interp) raisePolicy() bool {
	return i.Config.RaiseSubprocError
}

// Run executes a command line in streamed mode against the shell's own
// stdio, returning the result handle of the last pipeline that ran.
func (i *Interp) Run(line string) (*pipeline.Result, error) {
	return i.run(line, spec.Streamed, proc.Stdio())
}

// RunSilent executes a command line, discarding output ($[...] form). It
// blocks until done and honors the raise-on-nonzero policy.
func (i *Interp) RunSilent(line string) error {
	res, err := i.run(line, spec.Hidden, proc.Stdio())
	if err != nil || res == nil {
		return err
	}
	_, err = res.Wait()
	return err
}

// RunCapture executes a command line and returns its standard output with
// the trailing newline stripped ($(...) form). It blocks until done.
func (i *Interp) RunCapture(line string) (string, error) {
	res, err := i.run(line, spec.Captured, proc.Stdio())
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", nil
	}
	return res.Output()
}

// RunCaptured executes a command line in captured mode and returns the
// result handle without blocking (!(...) form).
func (i *Interp) RunCaptured(line string) (*pipeline.Result, error) {
	return i.run(line, spec.Captured, proc.Stdio())
}

func (i *Interp) run(line string, mode spec.CaptureMode, stdio proc.IO) (*pipeline.Result, error) {
	cmd, err := shell.Parse(line)
	if err != nil {
		return nil, err
	}
	return i.RunCommand(cmd, mode, stdio)
}

// RunCommand executes a parsed command list. The capture mode applies to the
// final stage of each group; `&&` and `||` gate on the previous group's exit
// status. Each top-level element fails independently: a command-not-found in
// one group does not abort its siblings.
func (i *Interp) RunCommand(cmd *spec.Command, mode spec.CaptureMode, stdio proc.IO) (*pipeline.Result, error) {
	var last *pipeline.Result
	lastStatus := 0
	prevOp := spec.Connector("")

	for idx, step := range cmd.Steps {
		if idx > 0 {
			if prevOp == spec.ConnAnd && lastStatus != 0 {
				prevOp = step.Op
				continue
			}
			if prevOp == spec.ConnOr && lastStatus == 0 {
				prevOp = step.Op
				continue
			}
		}
		prevOp = step.Op

		// Shell-state builtins honor the capture mode too: their output
		// goes through a buffer instead of the stream, and the captured
		// text is returned as an already-completed result.
		builtinIO := stdio
		var builtinOut bytes.Buffer
		if mode != spec.Streamed {
			builtinIO = proc.NewIO(stdio.In, &builtinOut, stdio.Err)
		}
		if status, handled := i.runShellBuiltin(step.Group, builtinIO); handled {
			lastStatus = status
			if mode != spec.Streamed {
				text := ""
				if mode == spec.Captured {
					text = builtinOut.String()
				}
				res := pipeline.NewStaticResult(step.Group.String(), status, text, i.raisePolicy)
				last = res
				i.setLast(res)
			}
			continue
		}

		group := step.Group
		group.Stages[len(group.Stages)-1].Mode = mode

		p, err := i.Builder.Build(group, stdio)
		if err != nil {
			lastStatus = reportBuildError(stdio, err)
			continue
		}

		job, err := i.Jobs.Add(p, group.String(), group.Background)
		if err != nil {
			p.Signal(syscall.SIGKILL)
			return last, err
		}
		res := pipeline.NewResult(p, i.raisePolicy)
		last = res

		if group.Background {
			fmt.Fprintf(stdio.Err, "[%d] %d\n", job.Number, p.Pgid())
			go func() {
				p.Wait()
				i.setLast(res)
			}()
			lastStatus = 0
			continue
		}

		state := i.Jobs.WaitForeground(job)
		if state == jobs.Suspended {
			// Stopped, not finished: conventional 128+SIGTSTP.
			lastStatus = 148
		} else {
			lastStatus, _ = p.ExitStatus()
		}
		i.setLast(res)
	}

	return last, nil
}

// reportBuildError prints a build failure the way a shell does and maps it
// to the conventional status.
func reportBuildError(stdio proc.IO, err error) int {
	switch {
	case errors.Is(err, proc.ErrNotFound):
		fmt.Fprintf(stdio.Err, "gosh: %v\n", err)
		return proc.StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		fmt.Fprintf(stdio.Err, "gosh: %v\n", err)
		return proc.StatusCannotExecute
	default:
		fmt.Fprintf(stdio.Err, "gosh: %v\n", err)
		return 1
	}
}
