package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goshell/gosh/core/config"
)

var cfgPath string

func loadConfig() (*config.Configuration, error) {
	return config.Load(cfgPath)
}

var logLevels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// newLogger builds the engine's structured logger from the configured level.
// Logs go to stderr so they never mix with pipeline stdout.
func newLogger(cfg *config.Configuration) (*zap.Logger, error) {
	name := cfg.LogLevel
	if name == "" {
		name = "info"
	}
	level, ok := logLevels[name]
	if !ok {
		return nil, fmt.Errorf("unsupported log level: %s", name)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	return zapCfg.Build()
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gosh",
	Short: "Subprocess execution engine with job control",
	Long: `An interactive shell built around pipelines, capture modes
and POSIX-style job control.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
}
