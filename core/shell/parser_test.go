package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goshell/gosh/core/spec"
)

func TestParseSimple(t *testing.T) {
	cmd, err := Parse("ls -la /tmp")
	require.NoError(t, err)
	require.Len(t, cmd.Steps, 1)

	g := cmd.Steps[0].Group
	require.Len(t, g.Stages, 1)
	assert.Equal(t, []string{"ls", "-la", "/tmp"}, g.Stages[0].Argv)
	assert.False(t, g.Background)
	assert.Equal(t, spec.Connector(""), cmd.Steps[0].Op)
}

func TestParsePipeline(t *testing.T) {
	cmd, err := Parse("cat access.log | grep error | wc -l")
	require.NoError(t, err)
	require.Len(t, cmd.Steps, 1)

	g := cmd.Steps[0].Group
	require.Len(t, g.Stages, 3)
	assert.Equal(t, []string{"cat", "access.log"}, g.Stages[0].Argv)
	assert.Equal(t, []string{"grep", "error"}, g.Stages[1].Argv)
	assert.Equal(t, []string{"wc", "-l"}, g.Stages[2].Argv)
}

func TestParseConnectors(t *testing.T) {
	cmd, err := Parse("make && make install || echo failed ; echo done")
	require.NoError(t, err)
	require.Len(t, cmd.Steps, 4)

	assert.Equal(t, spec.ConnAnd, cmd.Steps[0].Op)
	assert.Equal(t, spec.ConnOr, cmd.Steps[1].Op)
	assert.Equal(t, spec.ConnSeq, cmd.Steps[2].Op)
	assert.Equal(t, spec.Connector(""), cmd.Steps[3].Op)
}

func TestParseBackground(t *testing.T) {
	cmd, err := Parse("sleep 10 &")
	require.NoError(t, err)
	require.Len(t, cmd.Steps, 1)
	assert.True(t, cmd.Steps[0].Group.Background)
}

func TestParseBackgroundThenMore(t *testing.T) {
	cmd, err := Parse("sleep 10 & echo hi")
	require.NoError(t, err)
	require.Len(t, cmd.Steps, 2)
	assert.True(t, cmd.Steps[0].Group.Background)
	assert.False(t, cmd.Steps[1].Group.Background)
}

func TestParseQuoting(t *testing.T) {
	cmd, err := Parse(`echo "hello world" 'single quoted'`)
	require.NoError(t, err)
	g := cmd.Steps[0].Group
	assert.Equal(t, []string{"echo", "hello world", "single quoted"}, g.Stages[0].Argv)
}

func TestParseRedirects(t *testing.T) {
	cmd, err := Parse("sort < in.txt > out.txt 2>> err.log")
	require.NoError(t, err)

	cs := cmd.Steps[0].Group.Stages[0]
	assert.Equal(t, []string{"sort"}, cs.Argv)
	assert.Equal(t, spec.Redirect{Mode: spec.RedirFile, Path: "in.txt"}, cs.Stdin)
	assert.Equal(t, spec.Redirect{Mode: spec.RedirFile, Path: "out.txt"}, cs.Stdout)
	assert.Equal(t, spec.Redirect{Mode: spec.RedirFile, Path: "err.log", Append: true}, cs.Stderr)
}

func TestParseAppendRedirect(t *testing.T) {
	cmd, err := Parse("echo hi >> log.txt")
	require.NoError(t, err)

	cs := cmd.Steps[0].Group.Stages[0]
	assert.True(t, cs.Stdout.Append)
	assert.Equal(t, "log.txt", cs.Stdout.Path)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"only-spaces", "   "},
		{"leading-pipe", "| grep x"},
		{"trailing-pipe-then-connector", "ls | && echo"},
		{"double-and", "ls && && echo"},
		{"redirect-without-target", "ls >"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.line)
			assert.Error(t, err)
		})
	}
}
