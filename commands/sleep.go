package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goshell/gosh/core/proc"
)

// Sleep implements the UNIX sleep command.
func Sleep(p proc.Process) int {
	cmd := &SimpleCommand{
		Use:   "sleep SECONDS",
		Short: "Pause for an amount of time.",
	}

	opt := cmd.Flags()

	return cmd.Run(p, func() int {
		args := opt.Args()
		if len(args) != 1 {
			fmt.Fprintln(p.Stderr(), "sleep: missing operand")
			return 1
		}

		seconds, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			fmt.Fprintf(p.Stderr(), "sleep: invalid time interval %q\n", args[0])
			return 1
		}

		time.Sleep(time.Duration(seconds * float64(time.Second)))
		return 0
	})
}

var _ proc.CommandFunc = Sleep

func init() {
	addCmd("sleep", Sleep)
}
