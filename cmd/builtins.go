package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/goshell/gosh/commands"
)

// builtinsCmd lists the commands the shell runs in-process.
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the commands the shell runs in-process.",
	RunE: func(cmd *cobra.Command, args []string) error {
		builtins := commands.ListBuiltinCommands()

		// The shell-state builtins never go through the launcher.
		builtins = append(builtins, "shell:cd", "shell:jobs", "shell:fg", "shell:bg", "shell:exit")
		sort.Strings(builtins)

		for _, v := range builtins {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
