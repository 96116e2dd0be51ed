// Package proctest runs in-process commands against canned stdio for tests.
package proctest

import (
	"bytes"
	"io"

	"github.com/goshell/gosh/core/proc"
)

// Cmd is similar to exec.Cmd for in-process commands.
type Cmd struct {
	// Process function
	Process proc.CommandFunc
	// Process arguments, the first argument should be the process name.
	Argv []string
	// If Dir is non-empty, the process reports it as its working directory.
	Dir string
	// If Env is non-empty, it gives the environment variables for the
	// new process in the form returned by Environ.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	ExitStatus int
}

// Command builds a Cmd for one command function.
func Command(process proc.CommandFunc, name string, arg ...string) *Cmd {
	return &Cmd{
		Process: process,
		Argv:    append([]string{name}, arg...),
	}
}

// CombinedOutput runs the command and returns interleaved stdout and stderr.
func (c *Cmd) CombinedOutput() ([]byte, error) {
	buf := &bytes.Buffer{}
	c.Stdout = buf
	c.Stderr = buf

	err := c.Run()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Output runs the command and returns its stdout.
func (c *Cmd) Output() ([]byte, error) {
	buf := &bytes.Buffer{}
	c.Stdout = buf

	err := c.Run()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run starts the command and waits for it to complete. The command's exit
// status lands in ExitStatus.
func (c *Cmd) Run() error {
	stdio := proc.NewIO(c.Stdin, c.Stdout, c.Stderr)
	env := c.Env
	if env == nil {
		env = []string{"HOME=/home/test", "USER=test", "SHELL=/bin/gosh"}
	}
	dir := c.Dir
	if dir == "" {
		dir = "/home/test"
	}

	p := proc.NewProcess(c.Argv, stdio, env, dir, 42)
	c.ExitStatus = c.Process(p)
	return nil
}
