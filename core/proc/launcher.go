package proc

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"syscall"

	"go.uber.org/zap"

	"github.com/goshell/gosh/core/events"
	"github.com/goshell/gosh/core/spec"
)

// ErrNotFound is the error resulting if a path search failed to find an
// executable file.
var ErrNotFound = exec.ErrNotFound

// Conventional shell exit statuses for stages that never ran properly.
const (
	// StatusCannotExecute is used when the OS refuses to run a resolved
	// command (permission, missing interpreter).
	StatusCannotExecute = 126
	// StatusNotFound is used when command resolution fails.
	StatusNotFound = 127
)

// Resolved is the result of resolving a command name: either an in-process
// command or the path of an external executable.
type Resolved struct {
	// Path of the external executable. Empty for in-process commands.
	Path string
	// Builtin is non-nil for in-process commands.
	Builtin CommandFunc
}

// Launcher starts pipeline stages and fires the pre/post spec-run hooks
// around each launch.
type Launcher struct {
	// Resolver maps names to in-process commands. May be nil.
	Resolver Resolver
	// Bus receives the spec-run hook firings. May be nil.
	Bus *events.Bus
	Log *zap.Logger
}

// NewLauncher wires a launcher. A nil logger is replaced with a no-op one.
func NewLauncher(resolver Resolver, bus *events.Bus, log *zap.Logger) *Launcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Launcher{Resolver: resolver, Bus: bus, Log: log}
}

// Resolve finds the named command: in-process commands shadow the PATH, the
// PATH is searched otherwise. Failures wrap ErrNotFound or fs.ErrPermission
// so callers can map them to the conventional 127/126 statuses.
func (l *Launcher) Resolve(name string) (Resolved, error) {
	if name == "" {
		return Resolved{}, fmt.Errorf("empty command: %w", ErrNotFound)
	}
	if l.Resolver != nil {
		if fn := l.Resolver(name); fn != nil {
			return Resolved{Builtin: fn}, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return Resolved{}, fmt.Errorf("%s: %w", name, fs.ErrPermission)
		}
		return Resolved{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return Resolved{Path: path}, nil
}

// StartOpts carries the per-stage wiring the pipeline builder computed.
type StartOpts struct {
	// Stdio is the stage's three standard streams.
	Stdio IO
	// Env is the stage's full environment in "key=value" form.
	Env []string
	// Dir is the stage's working directory ("" = inherit).
	Dir string
	// Pgid points at the pipeline's process group id. Zero means no group
	// exists yet; the first OS process started becomes the group leader
	// and its pid is stored back through the pointer.
	Pgid *int
	// Register is called with the stage handle as soon as the process or
	// task exists, before the post-run hooks fire. May be nil.
	Register func(*Handle)
	// CloseAfterExit is closed once the stage finishes. The builder hands
	// the stage's pipe ends here for in-process stages so downstream
	// readers observe EOF.
	CloseAfterExit []io.Closer
}

// Handle tracks one launched stage until it exits.
type Handle struct {
	Spec *spec.CommandSpec

	pid  int
	cmd  *exec.Cmd
	done chan struct{}

	status int
	err    error
}

// Pid returns the stage's OS process id, or zero for in-process stages.
func (h *Handle) Pid() int { return h.pid }

// Wait blocks until the stage has exited and returns its exit status.
func (h *Handle) Wait() int {
	<-h.done
	return h.status
}

// Done is closed when the stage has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the launch or wait error, if any, after the stage is done.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Start launches one stage. The pre-run hooks fire synchronously before the
// process or task exists, with the spec still mutable; the spec is then
// frozen, the stage started and registered, and the post-run hooks fire.
// Start never blocks on stage completion.
//
// A spawn refusal from the OS is not returned as an error: the stage's
// handle completes immediately with StatusCannotExecute, and downstream
// stages simply observe closed input.
func (l *Launcher) Start(cs *spec.CommandSpec, r Resolved, opts StartOpts) *Handle {
	name := cs.Name()
	l.fire(events.PreSpecRun, events.Payload{Spec: cs, Pgid: 0})
	l.fire(events.PreSpecRunFor(name), events.Payload{Spec: cs, Pgid: 0})
	cs.Freeze()

	h := &Handle{Spec: cs, done: make(chan struct{})}
	if r.Builtin != nil {
		l.startBuiltin(h, r.Builtin, opts)
	} else {
		l.startExternal(h, r.Path, opts)
	}

	if opts.Register != nil {
		opts.Register(h)
	}

	pgid := 0
	if opts.Pgid != nil {
		pgid = *opts.Pgid
	}
	l.fire(events.PostSpecRun, events.Payload{Spec: cs, Pgid: pgid})
	l.fire(events.PostSpecRunFor(name), events.Payload{Spec: cs, Pgid: pgid})
	return h
}

func (l *Launcher) fire(name string, p events.Payload) {
	if l.Bus != nil {
		l.Bus.Fire(name, p)
	}
}

// startBuiltin runs an in-process command on its own goroutine. A panic in
// the command converts into exit status 1 rather than propagating.
func (l *Launcher) startBuiltin(h *Handle, fn CommandFunc, opts StartOpts) {
	// In-process stages share the hosting process's group.
	if opts.Pgid != nil && *opts.Pgid == 0 {
		*opts.Pgid = syscall.Getpgrp()
	}

	p := NewProcess(h.Spec.Argv, opts.Stdio, opts.Env, opts.Dir, syscall.Getpid())
	go func() {
		defer close(h.done)
		defer closeAll(opts.CloseAfterExit)
		defer func() {
			if r := recover(); r != nil {
				l.Log.Warn("in-process command panicked",
					zap.String("command", h.Spec.Name()),
					zap.Any("panic", r))
				fmt.Fprintf(opts.Stdio.Err, "gosh: %s: %v\n", h.Spec.Name(), r)
				h.status = 1
			}
		}()
		h.status = fn(p)
	}()
}

// startExternal spawns an OS process in the pipeline's process group.
//
// Joining an existing group races with the group leader: if the leader has
// already exited and been reaped, setpgid into its group fails with EPERM or
// ESRCH. The stage didn't do anything wrong, so it is retried as the leader
// of a fresh group rather than misreported as a spawn refusal.
func (l *Launcher) startExternal(h *Handle, path string, opts StartOpts) {
	pgid := 0
	if opts.Pgid != nil {
		pgid = *opts.Pgid
	}

	cmd := l.externalCmd(h, path, opts, pgid)
	err := cmd.Start()
	if err != nil && pgid != 0 && (errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.ESRCH)) {
		l.Log.Debug("process group gone, retrying in a fresh group",
			zap.String("command", h.Spec.Name()),
			zap.Int("pgid", pgid),
			zap.Error(err))
		pgid = 0
		cmd = l.externalCmd(h, path, opts, pgid)
		err = cmd.Start()
	}
	if err != nil {
		fmt.Fprintf(opts.Stdio.Err, "gosh: %s: %v\n", h.Spec.Name(), err)
		h.err = err
		h.status = StatusCannotExecute
		closeAll(opts.CloseAfterExit)
		close(h.done)
		return
	}

	h.cmd = cmd
	h.pid = cmd.Process.Pid
	if opts.Pgid != nil && pgid == 0 {
		// First process (or fresh-group retry) becomes the group leader.
		*opts.Pgid = cmd.Process.Pid
	}

	go func() {
		defer close(h.done)
		defer closeAll(opts.CloseAfterExit)
		h.err = cmd.Wait()
		h.status = exitStatus(h.err)
	}()
}

// externalCmd builds the exec.Cmd for one stage. A failed Start leaves an
// exec.Cmd unusable, so the retry path builds a new one.
func (l *Launcher) externalCmd(h *Handle, path string, opts StartOpts, pgid int) *exec.Cmd {
	cmd := exec.Command(path)
	cmd.Args = h.Spec.Argv
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdin = opts.Stdio.In
	cmd.Stdout = opts.Stdio.Out
	cmd.Stderr = opts.Stdio.Err
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: pgid}
	return cmd
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}

// exitStatus maps a Wait error to a shell exit status. Signal-terminated
// stages report 128+signal.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return ee.ExitCode()
	}
	return StatusCannotExecute
}
