package commands

import (
	"github.com/goshell/gosh/core/proc"
)

// True implements the UNIX true command.
func True(p proc.Process) int {
	return 0
}

// False implements the UNIX false command.
func False(p proc.Process) int {
	return 1
}

var (
	_ proc.CommandFunc = True
	_ proc.CommandFunc = False
)

func init() {
	addCmd("true", True)
	addCmd("false", False)
	addCmd(":", True)
}
