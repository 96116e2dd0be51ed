// Package proc starts pipeline stages, either as operating-system processes
// or as in-process commands running on their own goroutine, and gives
// in-process commands a process-like view of their argv, environment and
// standard streams.
package proc

import (
	"io"
	"os"
	"strings"
)

// Process is the view of the world an in-process command receives. It mirrors
// the subset of the os package a small utility needs.
type Process interface {
	// Args holds the command line arguments, including the command name as
	// Args()[0].
	Args() []string

	Stdin() io.ReadCloser
	Stdout() io.WriteCloser
	Stderr() io.WriteCloser

	// Getenv retrieves the value of the named environment variable.
	Getenv(key string) string
	// Environ returns the environment as "key=value" strings.
	Environ() []string

	// Getwd returns the working directory of the process.
	Getwd() string
	// Getpid returns the id of the hosting OS process.
	Getpid() int
}

// CommandFunc is the entry point of an in-process command. Its return value
// is the command's exit status.
type CommandFunc func(p Process) int

// Resolver maps a command name to an in-process implementation, returning
// nil when the name is not a known in-process command.
type Resolver func(name string) CommandFunc

type process struct {
	argv []string
	io   IO
	env  []string
	dir  string
	pid  int
}

// NewProcess builds the Process handed to an in-process command.
func NewProcess(argv []string, stdio IO, env []string, dir string, pid int) Process {
	return &process{argv: argv, io: stdio, env: env, dir: dir, pid: pid}
}

func (p *process) Args() []string          { return p.argv }
func (p *process) Stdin() io.ReadCloser    { return p.io.In }
func (p *process) Stdout() io.WriteCloser  { return p.io.Out }
func (p *process) Stderr() io.WriteCloser  { return p.io.Err }
func (p *process) Environ() []string       { return p.env }
func (p *process) Getpid() int             { return p.pid }

func (p *process) Getenv(key string) string {
	// Last entry wins, matching os/exec duplicate handling.
	prefix := key + "="
	value := ""
	for _, kv := range p.env {
		if strings.HasPrefix(kv, prefix) {
			value = strings.TrimPrefix(kv, prefix)
		}
	}
	return value
}

func (p *process) Getwd() string {
	if p.dir != "" {
		return p.dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "/"
	}
	return wd
}
