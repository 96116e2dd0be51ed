package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goshell/gosh/core/proc"
)

// Env implements the POSIX env command, minus running a utility: the shell
// launches commands itself, so a command word is rejected rather than
// half-supported.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/env.html
func Env(p proc.Process) int {
	cmd := &SimpleCommand{
		Use:   "env [-i] [-u NAME]... [NAME=VALUE]...",
		Short: "Print the environment, optionally modified.",
	}
	flags := cmd.Flags()
	ignore := flags.BoolLong("ignore-environment", 'i', "start from an empty environment")
	unset := flags.ListLong("unset", 'u', "remove NAME from the environment")

	return cmd.Run(p, func() int {
		vars := make(map[string]string)
		if !*ignore {
			for _, kv := range p.Environ() {
				if name, value, ok := strings.Cut(kv, "="); ok {
					vars[name] = value
				}
			}
		}
		for _, name := range *unset {
			delete(vars, name)
		}

		// NAME=VALUE arguments override, last one wins. Anything else
		// would be a utility to invoke.
		for _, arg := range flags.Args() {
			name, value, ok := strings.Cut(arg, "=")
			if !ok {
				fmt.Fprintf(p.Stderr(), "env: %s: invoking a utility is not supported\n", arg)
				return 125
			}
			vars[name] = value
		}

		names := make([]string, 0, len(vars))
		for name := range vars {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(p.Stdout(), "%s=%s\n", name, vars[name])
		}

		return 0
	})
}

var _ proc.CommandFunc = Env

func init() {
	addCmd("env", Env)
}
