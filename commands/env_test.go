package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goshell/gosh/commands/proctest"
)

func TestEnv(t *testing.T) {
	goldenTestSuite{
		"default":  {Args: []string{"env"}},
		"override": {Args: []string{"env", "USER=alice"}},
		"ignore":   {Args: []string{"env", "-i", "A=1"}},
		"unset":    {Args: []string{"env", "-u", "USER"}},
	}.Run(t, Env)
}

func TestEnvCommandWord(t *testing.T) {
	c := proctest.Command(Env, "env", "true")
	out, err := c.Output()
	require.NoError(t, err)

	assert.Equal(t, 125, c.ExitStatus)
	assert.Empty(t, string(out))
}

func TestPwd(t *testing.T) {
	goldenTestSuite{
		"default": {Args: []string{"pwd"}},
	}.Run(t, Pwd)
}

func TestCat(t *testing.T) {
	goldenTestSuite{
		"stdin": {Args: []string{"cat"}, Input: "line one\nline two\n"},
		"dash":  {Args: []string{"cat", "-"}, Input: "from stdin\n"},
	}.Run(t, Cat)
}
