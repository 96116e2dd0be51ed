// Package spec defines the data model handed from the language front end to
// the execution engine: single command invocations, their redirections and
// capture modes, and the connectors that join them into command lists.
package spec

import (
	"fmt"
	"path"
	"strings"
	"sync/atomic"
)

// CaptureMode controls what happens to a pipeline's standard output.
type CaptureMode int

const (
	// Streamed sends output directly to the controlling terminal.
	Streamed CaptureMode = iota
	// Captured buffers output for later retrieval.
	Captured
	// Hidden drains output without writing it anywhere.
	Hidden
)

func (m CaptureMode) String() string {
	switch m {
	case Streamed:
		return "streamed"
	case Captured:
		return "captured"
	case Hidden:
		return "hidden"
	default:
		return fmt.Sprintf("capture(%d)", int(m))
	}
}

// Connector joins two elements of a command list.
type Connector string

const (
	ConnPipe Connector = "|"
	ConnAnd  Connector = "&&"
	ConnOr   Connector = "||"
	ConnSeq  Connector = ";"
)

// RedirectMode describes where one of a stage's standard streams goes.
type RedirectMode int

const (
	// RedirInherit uses the stream handed to the pipeline.
	RedirInherit RedirectMode = iota
	// RedirPipe connects the stream to an adjacent stage.
	RedirPipe
	// RedirFile connects the stream to a named file.
	RedirFile
	// RedirNull discards writes and returns EOF on reads.
	RedirNull
)

// Redirect is a single stream redirection target.
type Redirect struct {
	Mode RedirectMode
	// Path names the file for RedirFile.
	Path string
	// Append opens the file O_APPEND instead of truncating.
	Append bool
}

// CommandSpec describes one program invocation. The front end builds one per
// parsed command; the pipeline builder consumes it exactly once.
//
// A spec is mutable until the launcher freezes it immediately before the
// stage's process is created. Pre-run hook observers receive the spec while it
// is still mutable; everyone afterwards must treat it as read-only.
type CommandSpec struct {
	// Argv holds the command line, including the command as Argv[0].
	Argv []string

	// Stdin, Stdout and Stderr redirection targets.
	Stdin  Redirect
	Stdout Redirect
	Stderr Redirect

	// Dir overrides the working directory of the command. If Dir is the
	// empty string the stage runs in the shell's current directory.
	Dir string

	// Env holds environment overrides in "key=value" form, applied on top
	// of the shell's environment.
	Env []string

	// Mode is the capture mode for this stage.
	Mode CaptureMode

	frozen atomic.Bool
}

// NewCommandSpec builds a spec for argv with inherited stdio.
func NewCommandSpec(argv ...string) *CommandSpec {
	return &CommandSpec{Argv: argv}
}

// Name returns the bare command name, without any directory prefix.
func (s *CommandSpec) Name() string {
	if len(s.Argv) == 0 {
		return ""
	}
	return path.Base(s.Argv[0])
}

// Freeze marks the spec immutable. Called by the launcher once pre-run hooks
// have fired; freezing twice is a no-op.
func (s *CommandSpec) Freeze() {
	s.frozen.Store(true)
}

// IsFrozen reports whether the spec has been frozen.
func (s *CommandSpec) IsFrozen() bool {
	return s.frozen.Load()
}

func (s *CommandSpec) String() string {
	return strings.Join(s.Argv, " ")
}

// Group is a contiguous run of pipe-connected stages: the unit that becomes
// one Pipeline with one process group.
type Group struct {
	Stages []*CommandSpec
	// Background marks the group as launched with a trailing "&".
	Background bool
}

func (g *Group) String() string {
	parts := make([]string, 0, len(g.Stages))
	for _, s := range g.Stages {
		parts = append(parts, s.String())
	}
	out := strings.Join(parts, " | ")
	if g.Background {
		out += " &"
	}
	return out
}

// Step is one element of a command list: a group plus the connector that
// links it to the next step. Op is empty on the final step.
type Step struct {
	Group *Group
	Op    Connector
}

// Command is a full parsed command list.
type Command struct {
	Steps []Step
}
