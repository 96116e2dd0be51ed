package cmd

import (
	"github.com/spf13/cobra"

	"github.com/goshell/gosh/commands"
	"github.com/goshell/gosh/core"
)

// shellCmd starts the interactive read-eval loop.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		interp := core.NewInterp(cfg, commands.Resolver, logger)
		sh, err := core.NewShell(interp)
		if err != nil {
			return err
		}
		defer sh.Close()

		return sh.Run()
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
