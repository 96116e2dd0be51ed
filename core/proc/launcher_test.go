package proc

import (
	"bytes"
	"errors"
	"os/exec"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goshell/gosh/core/events"
	"github.com/goshell/gosh/core/spec"
)

func singleResolver(name string, fn CommandFunc) Resolver {
	return func(lookup string) CommandFunc {
		if lookup == name {
			return fn
		}
		return nil
	}
}

func TestResolveBuiltinShadowsPath(t *testing.T) {
	// "ls" exists on the PATH nearly everywhere; the in-process version
	// must win anyway.
	fn := func(p Process) int { return 0 }
	l := NewLauncher(singleResolver("ls", fn), nil, nil)

	r, err := l.Resolve("ls")
	require.NoError(t, err)
	assert.NotNil(t, r.Builtin)
	assert.Empty(t, r.Path)
}

func TestResolveNotFound(t *testing.T) {
	l := NewLauncher(nil, nil, nil)

	_, err := l.Resolve("definitely-not-a-real-command-v9")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Resolve("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartBuiltin(t *testing.T) {
	fn := func(p Process) int {
		p.Stdout().Write([]byte("hello from " + p.Args()[0]))
		return 3
	}
	l := NewLauncher(nil, nil, nil)

	var out bytes.Buffer
	h := l.Start(spec.NewCommandSpec("greet"), Resolved{Builtin: fn}, StartOpts{
		Stdio: NewIO(nil, &out, nil),
	})

	assert.Equal(t, 3, h.Wait())
	assert.Equal(t, "hello from greet", out.String())
	assert.Zero(t, h.Pid(), "in-process stages have no own pid")
}

func TestStartBuiltinPanic(t *testing.T) {
	fn := func(p Process) int { panic("kaboom") }
	l := NewLauncher(nil, nil, nil)

	var errOut bytes.Buffer
	h := l.Start(spec.NewCommandSpec("broken"), Resolved{Builtin: fn}, StartOpts{
		Stdio: NewIO(nil, nil, &errOut),
	})

	assert.Equal(t, 1, h.Wait())
	assert.Contains(t, errOut.String(), "kaboom")
}

func TestStartBuiltinClaimsShellGroup(t *testing.T) {
	fn := func(p Process) int { return 0 }
	l := NewLauncher(nil, nil, nil)

	pgid := 0
	h := l.Start(spec.NewCommandSpec("noop"), Resolved{Builtin: fn}, StartOpts{
		Stdio: NullIO(),
		Pgid:  &pgid,
	})
	h.Wait()

	assert.Equal(t, syscall.Getpgrp(), pgid)
}

func TestStartExternalRetriesDeadGroup(t *testing.T) {
	path, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no true binary on the PATH")
	}

	// Produce a process group whose leader has exited and been reaped, the
	// situation a later pipeline stage hits when the leader finishes first.
	leader := exec.Command(path)
	leader.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, leader.Run())
	deadPgid := leader.Process.Pid

	l := NewLauncher(nil, nil, nil)
	pgid := deadPgid
	var errOut bytes.Buffer
	h := l.Start(spec.NewCommandSpec("true"), Resolved{Path: path}, StartOpts{
		Stdio: NewIO(nil, nil, &errOut),
		Pgid:  &pgid,
	})

	assert.Equal(t, 0, h.Wait())
	assert.NotZero(t, h.Pid())
	assert.Equal(t, h.Pid(), pgid, "the retried stage leads a fresh group")
	assert.Empty(t, errOut.String())
}

func TestStartFiresHooks(t *testing.T) {
	bus := events.NewBus(nil)

	var fired []string
	var preFrozen, postFrozen bool
	var prePgid, postPgid int
	bus.On(events.PreSpecRun, func(p events.Payload) {
		fired = append(fired, p.Name)
		preFrozen = p.Spec.IsFrozen()
		prePgid = p.Pgid
	})
	bus.On(events.PostSpecRun, func(p events.Payload) {
		fired = append(fired, p.Name)
		postFrozen = p.Spec.IsFrozen()
		postPgid = p.Pgid
	})
	bus.On(events.PreSpecRunFor("noop"), func(p events.Payload) {
		fired = append(fired, p.Name)
	})
	bus.On(events.PostSpecRunFor("noop"), func(p events.Payload) {
		fired = append(fired, p.Name)
	})

	l := NewLauncher(nil, bus, nil)
	pgid := 0
	h := l.Start(spec.NewCommandSpec("noop"), Resolved{Builtin: func(Process) int { return 0 }}, StartOpts{
		Stdio: NullIO(),
		Pgid:  &pgid,
	})
	h.Wait()

	assert.Equal(t, []string{
		"on_pre_spec_run",
		"on_pre_spec_run_noop",
		"on_post_spec_run",
		"on_post_spec_run_noop",
	}, fired)

	assert.False(t, preFrozen, "spec is still mutable during pre-run hooks")
	assert.True(t, postFrozen, "spec is frozen by the time post-run hooks fire")
	assert.Zero(t, prePgid, "no process group exists during pre-run hooks")
	assert.NotZero(t, postPgid)
}

func TestHookMutatesSpecBeforeLaunch(t *testing.T) {
	bus := events.NewBus(nil)
	bus.On(events.PreSpecRun, func(p events.Payload) {
		p.Spec.Argv = append(p.Spec.Argv, "--injected")
	})

	var seen []string
	l := NewLauncher(nil, bus, nil)
	h := l.Start(spec.NewCommandSpec("probe"), Resolved{Builtin: func(p Process) int {
		seen = p.Args()
		return 0
	}}, StartOpts{Stdio: NullIO()})
	h.Wait()

	assert.Equal(t, []string{"probe", "--injected"}, seen)
}

func TestExitStatusNilError(t *testing.T) {
	assert.Equal(t, 0, exitStatus(nil))
	assert.Equal(t, StatusCannotExecute, exitStatus(errors.New("not an exit error")))
}

func TestNewIONilStreams(t *testing.T) {
	stdio := NullIO()

	n, err := stdio.Out.Write([]byte("dropped"))
	assert.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = stdio.In.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestProcessGetenv(t *testing.T) {
	p := NewProcess([]string{"x"}, NullIO(), []string{"A=1", "B=2", "A=3"}, "/srv", 1)

	assert.Equal(t, "3", p.Getenv("A"), "last entry wins")
	assert.Equal(t, "2", p.Getenv("B"))
	assert.Equal(t, "", p.Getenv("MISSING"))
	assert.Equal(t, "/srv", p.Getwd())
}
