package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
)

const (
	EnvHome     = "HOME"
	EnvPWD      = "PWD"
	EnvPrompt   = "PS1"
	EnvHostname = "HOSTNAME"
	EnvUser     = "USER"

	DefaultPrompt = `\u@\h:\w\$ `
)

var (
	envRegex = regexp.MustCompile(`(\$\$|\$\w+)`)

	colorNotice = color.New(color.FgCyan)
	colorError  = color.New(color.FgRed, color.Bold)
)

// Shell is the interactive readline front end around an Interp.
type Shell struct {
	Interp   *Interp
	Readline *readline.Instance

	stopSignals func()
}

// NewShell builds an interactive shell. When stdin is a terminal the job
// table receives the controlling terminal so foreground jobs can own it.
func NewShell(interp *Interp) (*Shell, error) {
	cfg := &readline.Config{
		Stdin:  readline.NewCancelableStdin(os.Stdin),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if hist := interp.Config.HistoryFile; hist != "" {
		cfg.HistoryFile = expandHome(hist)
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}

	s := &Shell{Interp: interp, Readline: rl}
	s.initTerminal()
	return s, nil
}

// initTerminal wires job-control signal delivery. The shell ignores the
// terminal-ownership signals so it can reclaim the terminal after a
// foreground job, and relays interrupt/stop to the foreground job's group.
func (s *Shell) initTerminal() {
	if !isTerminal(os.Stdin) {
		return
	}
	signal.Ignore(syscall.SIGTTOU, syscall.SIGTTIN)
	s.Interp.Jobs.SetTerminal(int(os.Stdin.Fd()), syscall.Getpgrp())

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTSTP)
	go func() {
		for sig := range ch {
			switch sig {
			case syscall.SIGINT:
				s.Interp.Jobs.Interrupt()
			case syscall.SIGTSTP:
				s.Interp.Jobs.Suspend()
			}
		}
	}()
	s.stopSignals = func() {
		signal.Stop(ch)
		close(ch)
	}
}

// Prompt renders the configured prompt template.
func (s *Shell) Prompt() string {
	prompt := os.Getenv(EnvPrompt)
	if prompt == "" {
		prompt = s.Interp.Config.Prompt
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	prompt = strings.ReplaceAll(prompt, `\u`, os.Getenv(EnvUser))
	host, _ := os.Hostname()
	prompt = strings.ReplaceAll(prompt, `\h`, host)

	pwd, _ := os.Getwd()
	home := os.Getenv(EnvHome)
	if home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}
	prompt = strings.ReplaceAll(prompt, `\w`, pwd)

	if os.Getuid() == 0 {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	return prompt
}

// Run is the interactive loop. It returns when input closes or the user
// exits.
func (s *Shell) Run() error {
	for {
		s.notifyJobs()
		s.Readline.SetPrompt(s.Prompt())
		line, err := s.Readline.Readline()

		switch {
		case err == io.EOF:
			return nil // Input closed, quit.

		case err == readline.ErrInterrupt:
			continue

		case err != nil:
			log.Printf("readline: %v", err)
			continue
		}

		line = strings.TrimSpace(expandEnv(line))
		if line == "" {
			continue
		}
		if line == "exit" || strings.HasPrefix(line, "exit ") {
			return nil
		}

		if _, err := s.Interp.Run(line); err != nil {
			colorError.Fprintf(s.Readline, "gosh: %v\n", err)
		}
	}
}

// notifyJobs prints background-completion notices queued since the last
// prompt.
func (s *Shell) notifyJobs() {
	if !s.Interp.Config.NotifyJobs {
		s.Interp.Jobs.Notices()
		return
	}
	for _, notice := range s.Interp.Jobs.Notices() {
		colorNotice.Fprintln(s.Readline, notice)
	}
}

func (s *Shell) Close() error {
	if s.stopSignals != nil {
		s.stopSignals()
	}
	return s.Readline.Close()
}

// expandEnv substitutes $VAR references and $$ before parsing.
func expandEnv(line string) string {
	return envRegex.ReplaceAllStringFunc(line, func(tok string) string {
		if tok == "$$" {
			return fmt.Sprintf("%d", os.Getpid())
		}
		return os.Getenv(strings.TrimPrefix(tok, "$"))
	})
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
