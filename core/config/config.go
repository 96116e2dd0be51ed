// Package config loads and validates the shell configuration.
package config

import (
	_ "embed"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

// ConfigurationName is the file name looked up inside a config directory.
const ConfigurationName = "config.yaml"

// Configuration holds the toggles the execution engine and the interactive
// front end consume.
type Configuration struct {
	// Prompt template; \u, \h, \w and \$ expand the usual way.
	Prompt string `json:"prompt" validate:"required"`

	// HistoryFile is where the interactive shell persists history.
	// Empty disables persistence.
	HistoryFile string `json:"history_file"`

	// RaiseSubprocError converts a nonzero final exit status into an error
	// at the point the result is consumed.
	RaiseSubprocError bool `json:"raise_subproc_error"`

	// TraceSubprocs logs one line per constructed pipeline, with resolved
	// argv and connectors, before execution begins.
	TraceSubprocs bool `json:"trace_subprocs"`

	// StrictStatus makes a pipeline report its worst stage status instead
	// of the final stage's.
	StrictStatus bool `json:"strict_status"`

	// NotifyJobs prints background job completions before each prompt.
	NotifyJobs bool `json:"notify_jobs"`

	// LogLevel for the engine's structured log.
	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// Env is applied to the shell's environment at startup.
	Env map[string]string `json:"env"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// Default returns the embedded default configuration.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
