package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goshell/gosh/core/proc"
	"github.com/goshell/gosh/core/spec"
)

// testLauncher resolves a small set of deterministic in-process commands so
// pipeline behavior is testable without touching the PATH.
func testLauncher() *proc.Launcher {
	cmds := map[string]proc.CommandFunc{
		// emit writes each argument on its own line.
		"emit": func(p proc.Process) int {
			for _, arg := range p.Args()[1:] {
				fmt.Fprintln(p.Stdout(), arg)
			}
			return 0
		},
		// upper copies stdin to stdout, uppercased.
		"upper": func(p proc.Process) int {
			data, _ := io.ReadAll(p.Stdin())
			p.Stdout().Write(bytes.ToUpper(data))
			return 0
		},
		// fail exits with the status given as its argument.
		"fail": func(p proc.Process) int {
			code, _ := strconv.Atoi(p.Args()[1])
			return code
		},
	}
	resolver := func(name string) proc.CommandFunc { return cmds[name] }
	return proc.NewLauncher(resolver, nil, nil)
}

func group(mode spec.CaptureMode, stages ...*spec.CommandSpec) *spec.Group {
	stages[len(stages)-1].Mode = mode
	return &spec.Group{Stages: stages}
}

func TestCapturedOutput(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	p, err := b.Build(group(spec.Captured, spec.NewCommandSpec("emit", "hello", "world")), proc.NullIO())
	require.NoError(t, err)

	out, err := NewResult(p, nil).Output()
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", out, "trailing newline is stripped")
}

func TestPipeConnectsStages(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	p, err := b.Build(group(spec.Captured,
		spec.NewCommandSpec("emit", "hello"),
		spec.NewCommandSpec("upper"),
	), proc.NullIO())
	require.NoError(t, err)

	out, err := NewResult(p, nil).Output()
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
}

func TestStreamedOutput(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	var sink bytes.Buffer
	p, err := b.Build(group(spec.Streamed, spec.NewCommandSpec("emit", "direct")),
		proc.NewIO(nil, &sink, nil))
	require.NoError(t, err)

	assert.Equal(t, 0, p.Wait())
	assert.Equal(t, "direct\n", sink.String())
}

func TestHiddenOutput(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	var sink bytes.Buffer
	p, err := b.Build(group(spec.Hidden, spec.NewCommandSpec("emit", "secret")),
		proc.NewIO(nil, &sink, nil))
	require.NoError(t, err)

	assert.Equal(t, 0, p.Wait())
	assert.Empty(t, sink.String(), "hidden output never reaches the stream")

	out, err := NewResult(p, nil).Output()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExitStatusLastStageWins(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	p, err := b.Build(group(spec.Hidden,
		spec.NewCommandSpec("fail", "3"),
		spec.NewCommandSpec("emit", "ok"),
	), proc.NullIO())
	require.NoError(t, err)

	assert.Equal(t, 0, p.Wait(), "default status is the final stage's")
}

func TestStrictStatus(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)
	b.StrictStatus = true

	p, err := b.Build(group(spec.Hidden,
		spec.NewCommandSpec("fail", "3"),
		spec.NewCommandSpec("emit", "ok"),
	), proc.NullIO())
	require.NoError(t, err)

	assert.Equal(t, 3, p.Wait(), "strict status reports the worst stage")
}

func TestExitStatusBeforeDone(t *testing.T) {
	p := &Pipeline{done: make(chan struct{})}

	_, final := p.ExitStatus()
	assert.False(t, final)
}

func TestRaisePolicy(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	p, err := b.Build(group(spec.Hidden, spec.NewCommandSpec("fail", "2")), proc.NullIO())
	require.NoError(t, err)

	st, err := NewResult(p, func() bool { return true }).Wait()
	assert.Equal(t, 2, st)

	var ese *ExitStatusError
	require.ErrorAs(t, err, &ese)
	assert.Equal(t, 2, ese.Code)
	assert.Contains(t, ese.Error(), "exit status 2")
}

func TestRaisePolicyEvaluatedAtConsumption(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	p, err := b.Build(group(spec.Hidden, spec.NewCommandSpec("fail", "2")), proc.NullIO())
	require.NoError(t, err)

	raise := false
	res := NewResult(p, func() bool { return raise })
	p.Wait()

	// The policy flips after the pipeline completed; consumption still
	// observes the new value.
	raise = true
	_, err = res.Wait()
	assert.Error(t, err)

	raise = false
	_, err = res.Wait()
	assert.NoError(t, err)
}

func TestRaisePolicyZeroStatus(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	p, err := b.Build(group(spec.Hidden, spec.NewCommandSpec("emit", "x")), proc.NullIO())
	require.NoError(t, err)

	_, err = NewResult(p, func() bool { return true }).Wait()
	assert.NoError(t, err, "the policy only applies to nonzero statuses")
}

func TestLines(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	p, err := b.Build(group(spec.Captured, spec.NewCommandSpec("emit", "a", "b", "c")), proc.NullIO())
	require.NoError(t, err)

	var lines []string
	it := NewResult(p, nil).Lines()
	for it.Next() {
		lines = append(lines, it.Text())
	}
	assert.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestBuildNotFound(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	_, err := b.Build(group(spec.Streamed,
		spec.NewCommandSpec("emit", "x"),
		spec.NewCommandSpec("no-such-command-v9"),
	), proc.NullIO())

	assert.ErrorIs(t, err, proc.ErrNotFound,
		"resolution fails the whole build before any stage runs")
}

func TestBuildEmptyGroup(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	_, err := b.Build(&spec.Group{}, proc.NullIO())
	assert.Error(t, err)
}

func TestStdoutFileRedirect(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	dest := filepath.Join(t.TempDir(), "out.txt")
	cs := spec.NewCommandSpec("emit", "to-file")
	cs.Stdout = spec.Redirect{Mode: spec.RedirFile, Path: dest}

	p, err := b.Build(group(spec.Streamed, cs), proc.NullIO())
	require.NoError(t, err)
	assert.Equal(t, 0, p.Wait())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "to-file\n", string(data))
}

func TestStdinFileRedirect(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	src := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(src, []byte("lowercase\n"), 0644))

	cs := spec.NewCommandSpec("upper")
	cs.Stdin = spec.Redirect{Mode: spec.RedirFile, Path: src}

	p, err := b.Build(group(spec.Captured, cs), proc.NullIO())
	require.NoError(t, err)

	out, err := NewResult(p, nil).Output()
	require.NoError(t, err)
	assert.Equal(t, "LOWERCASE", out)
}

func TestStdinRedirectOnPipedStage(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	src := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(src, []byte("from-file\n"), 0644))

	first := spec.NewCommandSpec("emit", "from-pipe")
	second := spec.NewCommandSpec("upper")
	second.Stdin = spec.Redirect{Mode: spec.RedirFile, Path: src}

	p, err := b.Build(group(spec.Captured, first, second), proc.NullIO())
	require.NoError(t, err)

	out, err := NewResult(p, nil).Output()
	require.NoError(t, err)
	assert.Equal(t, "FROM-FILE", out, "a stage-level redirect wins over the pipe")
}

func TestStdinNullOnPipedStage(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	first := spec.NewCommandSpec("emit", "from-pipe")
	second := spec.NewCommandSpec("upper")
	second.Stdin = spec.Redirect{Mode: spec.RedirNull}

	p, err := b.Build(group(spec.Captured, first, second), proc.NullIO())
	require.NoError(t, err)

	out, err := NewResult(p, nil).Output()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRedirectBadPathFailsBuild(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	cs := spec.NewCommandSpec("upper")
	cs.Stdin = spec.Redirect{Mode: spec.RedirFile, Path: "/does/not/exist"}

	_, err := b.Build(group(spec.Streamed, cs), proc.NullIO())
	assert.Error(t, err, "redirect targets open before any stage launches")
}

func TestCapturedWithFileRedirectDoesNotBlock(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	dest := filepath.Join(t.TempDir(), "out.txt")
	cs := spec.NewCommandSpec("emit", "away")
	cs.Stdout = spec.Redirect{Mode: spec.RedirFile, Path: dest}

	p, err := b.Build(group(spec.Captured, cs), proc.NullIO())
	require.NoError(t, err)

	// Output went to the file, so the captured result is empty; it must
	// still complete rather than waiting for output that never comes.
	out, err := NewResult(p, nil).Output()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBuiltinPipelineSharesShellGroup(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	p, err := b.Build(group(spec.Hidden, spec.NewCommandSpec("emit", "x")), proc.NullIO())
	require.NoError(t, err)
	p.Wait()

	assert.Equal(t, syscall.Getpgrp(), p.Pgid())
}

func TestPipelineString(t *testing.T) {
	b := NewBuilder(testLauncher(), nil)

	p, err := b.Build(group(spec.Hidden,
		spec.NewCommandSpec("emit", "x"),
		spec.NewCommandSpec("upper"),
	), proc.NullIO())
	require.NoError(t, err)
	p.Wait()

	assert.Equal(t, "emit x | upper", p.String())
}

func TestErrorsUnwrap(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ExitStatusError{Cmd: "x", Code: 5})

	var ese *ExitStatusError
	assert.True(t, errors.As(err, &ese))
	assert.Equal(t, 5, ese.Code)
}
