package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandSpecName(t *testing.T) {
	cases := []struct {
		name string
		argv []string
		want string
	}{
		{"bare", []string{"ls", "-la"}, "ls"},
		{"path", []string{"/usr/bin/env", "FOO=1"}, "env"},
		{"empty", nil, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cs := NewCommandSpec(tc.argv...)
			assert.Equal(t, tc.want, cs.Name())
		})
	}
}

func TestFreeze(t *testing.T) {
	cs := NewCommandSpec("ls")
	assert.False(t, cs.IsFrozen())

	cs.Freeze()
	assert.True(t, cs.IsFrozen())

	// Freezing twice is a no-op.
	cs.Freeze()
	assert.True(t, cs.IsFrozen())
}

func TestGroupString(t *testing.T) {
	g := &Group{
		Stages: []*CommandSpec{
			NewCommandSpec("cat", "access.log"),
			NewCommandSpec("grep", "error"),
		},
	}
	assert.Equal(t, "cat access.log | grep error", g.String())

	g.Background = true
	assert.Equal(t, "cat access.log | grep error &", g.String())
}

func TestCaptureModeString(t *testing.T) {
	assert.Equal(t, "streamed", Streamed.String())
	assert.Equal(t, "captured", Captured.String())
	assert.Equal(t, "hidden", Hidden.String())
}
