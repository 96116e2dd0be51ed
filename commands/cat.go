package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goshell/gosh/core/proc"
)

// Cat implements the UNIX cat command.
func Cat(p proc.Process) int {
	cmd := &SimpleCommand{
		Use:   "cat [FILE]...",
		Short: "Concatenate FILE(s) to standard output.",
	}

	opt := cmd.Flags()

	return cmd.Run(p, func() int {
		args := opt.Args()
		if len(args) == 0 {
			io.Copy(p.Stdout(), p.Stdin())
			return 0
		}

		for _, arg := range args {
			if arg == "-" {
				io.Copy(p.Stdout(), p.Stdin())
				continue
			}
			if !filepath.IsAbs(arg) {
				arg = filepath.Join(p.Getwd(), arg)
			}

			fd, err := os.Open(arg)
			if err != nil {
				fmt.Fprintf(p.Stderr(), "cat: %v\n", err)
				return 1
			}

			io.Copy(p.Stdout(), fd)
			fd.Close()
		}

		return 0
	})
}

var _ proc.CommandFunc = Cat

func init() {
	addCmd("cat", Cat)
}
