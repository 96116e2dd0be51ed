// Package commands holds the utilities the shell runs in-process instead of
// spawning: each is a plain function taking a process handle and returning
// an exit status, registered by name.
package commands

import (
	"fmt"
	"io"
	"sort"

	getopt "github.com/pborman/getopt/v2"

	"github.com/goshell/gosh/core/proc"
)

// CommandFunc is the in-process command entry point.
type CommandFunc = proc.CommandFunc

// AllCommands holds every registered command by name.
var AllCommands = make(map[string]CommandFunc)

func addCmd(name string, cmd CommandFunc) {
	AllCommands[name] = cmd
}

// Resolver adapts the registry for the process launcher. Unknown names
// resolve to nil, sending the lookup to the PATH.
func Resolver(name string) proc.CommandFunc {
	return AllCommands[name]
}

// ListBuiltinCommands returns every registered command name, sorted.
func ListBuiltinCommands() []string {
	out := make([]string, 0, len(AllCommands))
	for name := range AllCommands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SimpleCommand handles the boilerplate of flag parsing and help output
// shared by most commands.
type SimpleCommand struct {
	// Use holds a one line usage string.
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag
	// isn't added.
	ShowHelp *bool
	// NeverBail skips interacting with stdout/stderr on failure and
	// always runs the callback.
	NeverBail bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was successful call the callback.
func (s *SimpleCommand) Run(p proc.Process, callback func() int) int {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	err := opts.Getopt(p.Args(), nil)
	if err != nil && !s.NeverBail {
		fmt.Fprintf(p.Stderr(), "error: %s\n\n", err)

		s.PrintHelp(p.Stdout())
		return 1
	}

	if *s.ShowHelp {
		s.PrintHelp(p.Stdout())
		return 0
	}

	return callback()
}
