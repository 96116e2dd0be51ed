// Package shell is the boundary with the language front end: it turns a
// tokenized command line into the command-spec groups the engine executes.
// Everything fancier (quoting rules beyond POSIX word splitting, expansions,
// completion) lives outside the engine.
package shell

import (
	"fmt"

	shlex "github.com/anmitsu/go-shlex"

	"github.com/goshell/gosh/core/spec"
)

// Parse splits a command line into pipe-connected groups joined by
// connectors. Supported syntax: `|`, `&&`, `||`, `;`, trailing or joining
// `&`, and the redirections `<`, `>`, `>>`, `2>` and `2>>`.
func Parse(line string) (*spec.Command, error) {
	tokens, err := shlex.Split(line, true)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}
	return ParseTokens(tokens)
}

// ParseTokens assembles already-split tokens. Exposed for front ends that
// tokenize on their own.
func ParseTokens(tokens []string) (*spec.Command, error) {
	cmd := &spec.Command{}
	group := &spec.Group{}
	var argv []string
	var redirects []redirect

	finishStage := func(tok string) error {
		if len(argv) == 0 {
			return fmt.Errorf("syntax error near %q", tok)
		}
		cs := spec.NewCommandSpec(argv...)
		for _, r := range redirects {
			r.apply(cs)
		}
		group.Stages = append(group.Stages, cs)
		argv = nil
		redirects = nil
		return nil
	}
	finishGroup := func(tok string, op spec.Connector, background bool) error {
		if err := finishStage(tok); err != nil {
			return err
		}
		group.Background = background
		cmd.Steps = append(cmd.Steps, spec.Step{Group: group, Op: op})
		group = &spec.Group{}
		return nil
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok {
		case "|":
			if err := finishStage(tok); err != nil {
				return nil, err
			}
		case "&&":
			if err := finishGroup(tok, spec.ConnAnd, false); err != nil {
				return nil, err
			}
		case "||":
			if err := finishGroup(tok, spec.ConnOr, false); err != nil {
				return nil, err
			}
		case ";":
			if err := finishGroup(tok, spec.ConnSeq, false); err != nil {
				return nil, err
			}
		case "&":
			if err := finishGroup(tok, spec.ConnSeq, true); err != nil {
				return nil, err
			}
		case "<", ">", ">>", "2>", "2>>":
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("syntax error: %s requires a file path", tok)
			}
			i++
			redirects = append(redirects, redirect{op: tok, path: tokens[i]})
		default:
			argv = append(argv, tok)
		}
	}

	// Trailing group without an explicit terminator.
	if len(argv) > 0 || len(group.Stages) > 0 {
		if err := finishGroup("end of line", "", false); err != nil {
			return nil, err
		}
	}
	if len(cmd.Steps) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	// The final step carries no connector.
	cmd.Steps[len(cmd.Steps)-1].Op = ""
	return cmd, nil
}

type redirect struct {
	op   string
	path string
}

func (r redirect) apply(cs *spec.CommandSpec) {
	target := spec.Redirect{Mode: spec.RedirFile, Path: r.path}
	switch r.op {
	case "<":
		cs.Stdin = target
	case ">":
		cs.Stdout = target
	case ">>":
		target.Append = true
		cs.Stdout = target
	case "2>":
		cs.Stderr = target
	case "2>>":
		target.Append = true
		cs.Stderr = target
	}
}
