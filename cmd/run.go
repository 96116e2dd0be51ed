package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goshell/gosh/commands"
	"github.com/goshell/gosh/core"
)

var (
	runSilent  bool
	runCapture bool
)

// runCmd executes one command line and exits with its status.
var runCmd = &cobra.Command{
	Use:   "run [flags] -- COMMAND...",
	Short: "Run a command line non-interactively.",
	Args:  cobra.MinimumNArgs(1),
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
		line := strings.Join(args, " ")

		switch {
		case runSilent:
			return interp.RunSilent(line)

		case runCapture:
			out, err := interp.RunCapture(line)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil

		default:
			res, err := interp.Run(line)
			if err != nil {
				return err
			}
			if res != nil {
				if status := res.ExitStatus(); status != 0 {
					// os.Exit skips the deferred Sync.
					logger.Sync()
					os.Exit(status)
				}
			}
			return nil
		}
	},
}

func init() {
	runCmd.Flags().BoolVar(&runSilent, "silent", false, "discard output, only report status")
	runCmd.Flags().BoolVar(&runCapture, "capture", false, "capture stdout and print it once the pipeline finishes")
	rootCmd.AddCommand(runCmd)
}
