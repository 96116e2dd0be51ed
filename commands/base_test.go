package commands

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/goshell/gosh/commands/proctest"
	"github.com/goshell/gosh/core/proc"
)

func TestAllCommands(t *testing.T) {
	for _, name := range ListBuiltinCommands() {
		t.Run(name, func(t *testing.T) {
			if AllCommands[name] == nil {
				t.Fatal("nil command", name)
			}
		})
	}
}

func TestResolver(t *testing.T) {
	assert.NotNil(t, Resolver("echo"))
	assert.Nil(t, Resolver("definitely-not-a-command"))
}

type goldenTestSuite map[string]goldenTest

type goldenTest struct {
	Args  []string
	Input string
}

func (gts goldenTestSuite) Run(t *testing.T, cmd proc.CommandFunc) {
	t.Helper()

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	for tn, tc := range gts {
		t.Run(tn, func(t *testing.T) {
			c := proctest.Command(cmd, tc.Args[0], tc.Args[1:]...)
			if tc.Input != "" {
				c.Stdin = strings.NewReader(tc.Input)
			}
			out, err := c.CombinedOutput()
			if err != nil {
				t.Fatal(err)
			}

			g.Assert(t, tn, out)
		})
	}
}
