package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goshell/gosh/core/jobs"
	"github.com/goshell/gosh/core/proc"
	"github.com/goshell/gosh/core/spec"
)

// runShellBuiltin intercepts the commands that must run inside the shell
// process because they mutate shell state: cd and the job-control trio.
// Everything else, including utilities implemented in-process, goes through
// the normal launch path.
func (i *Interp) runShellBuiltin(g *spec.Group, stdio proc.IO) (int, bool) {
	if len(g.Stages) != 1 || g.Background {
		return 0, false
	}
	args := g.Stages[0].Argv
	if len(args) == 0 {
		return 0, false
	}
	switch args[0] {
	case "cd":
		return i.builtinCd(args, stdio), true
	case "jobs":
		return i.builtinJobs(stdio), true
	case "fg":
		return i.builtinFg(args, stdio), true
	case "bg":
		return i.builtinBg(args, stdio), true
	default:
		return 0, false
	}
}

func (i *Interp) builtinCd(args []string, stdio proc.IO) int {
	switch len(args) {
	case 1:
		args = append(args, os.Getenv("HOME"))
		fallthrough
	case 2:
		if err := os.Chdir(args[1]); err != nil {
			fmt.Fprintf(stdio.Err, "%s: %v\n", args[0], err)
			return 1
		}
		if wd, err := os.Getwd(); err == nil {
			os.Setenv("PWD", wd)
		}
		return 0
	default:
		fmt.Fprintf(stdio.Err, "%s: too many arguments\n", args[0])
		return 1
	}
}

// builtinJobs enumerates all non-DONE jobs plus recently completed ones in
// job-number order. Listing acknowledges DONE jobs, freeing their numbers.
func (i *Interp) builtinJobs(stdio proc.IO) int {
	for _, j := range i.Jobs.Jobs() {
		fmt.Fprintln(stdio.Out, j.Describe())
	}
	return 0
}

func (i *Interp) builtinFg(args []string, stdio proc.IO) int {
	num, err := i.jobRef(args)
	if err != nil {
		fmt.Fprintf(stdio.Err, "fg: %v\n", err)
		return 1
	}
	job, _ := i.Jobs.Get(num)
	if err := i.Jobs.Foreground(num); err != nil {
		fmt.Fprintf(stdio.Err, "fg: %v\n", err)
		return 1
	}
	if job.State() == jobs.Suspended {
		return 148
	}
	status, _ := job.Pipeline().ExitStatus()
	return status
}

func (i *Interp) builtinBg(args []string, stdio proc.IO) int {
	num, err := i.jobRef(args)
	if err != nil {
		fmt.Fprintf(stdio.Err, "bg: %v\n", err)
		return 1
	}
	if err := i.Jobs.Background(num); err != nil {
		fmt.Fprintf(stdio.Err, "bg: %v\n", err)
		return 1
	}
	if job, ok := i.Jobs.Get(num); ok {
		fmt.Fprintf(stdio.Err, "[%d] %s &\n", job.Number, job.Command)
	}
	return 0
}

// jobRef resolves a job-control argument ("3" or "%3") or defaults to the
// current job: the highest-numbered live one.
func (i *Interp) jobRef(args []string) (int, error) {
	if len(args) > 2 {
		return 0, fmt.Errorf("too many arguments")
	}
	if len(args) == 2 {
		ref := strings.TrimPrefix(args[1], "%")
		num, err := strconv.Atoi(ref)
		if err != nil {
			return 0, fmt.Errorf("%s: no such job", args[1])
		}
		return num, nil
	}

	best := 0
	for _, j := range i.Jobs.Snapshot() {
		if j.State() != jobs.DoneState && j.Number > best {
			best = j.Number
		}
	}
	if best == 0 {
		return 0, fmt.Errorf("no current job")
	}
	return best, nil
}
