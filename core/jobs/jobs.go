// Package jobs tracks every launched pipeline as a numbered, shell-visible
// job and manages the foreground/background state machine.
package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/goshell/gosh/core/pipeline"
	"github.com/goshell/gosh/core/proc"
)

// State of a job. Exactly one job may be RUNNING-FOREGROUND at a time.
type State int

const (
	ForegroundRunning State = iota
	BackgroundRunning
	Suspended
	DoneState
)

func (s State) String() string {
	switch s {
	case ForegroundRunning:
		return "RUNNING-FOREGROUND"
	case BackgroundRunning:
		return "RUNNING-BACKGROUND"
	case Suspended:
		return "SUSPENDED"
	case DoneState:
		return "DONE"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// display is the short form used by the jobs listing.
func (s State) display() string {
	switch s {
	case Suspended:
		return "Stopped"
	case DoneState:
		return "Done"
	default:
		return "Running"
	}
}

var (
	// ErrForegroundBusy reports an attempt to foreground a job while
	// another already holds the foreground.
	ErrForegroundBusy = errors.New("a job is already running in the foreground")
	// ErrNoSuchJob reports a job-control operation naming an unknown job.
	ErrNoSuchJob = errors.New("no such job")
	// ErrJobDone reports a resume operation on a terminated job.
	ErrJobDone = errors.New("job has terminated")
)

// Job is the shell-visible tracking record for one launched pipeline.
type Job struct {
	Number  int
	Command string

	t            *Table
	p            *pipeline.Pipeline
	state        State
	acknowledged bool
}

// Pipeline returns the job's pipeline.
func (j *Job) Pipeline() *pipeline.Pipeline { return j.p }

// State returns the job's current state.
func (j *Job) State() State {
	j.t.mu.Lock()
	defer j.t.mu.Unlock()
	return j.state
}

// Describe renders the job the way the jobs builtin lists it.
func (j *Job) Describe() string {
	j.t.mu.Lock()
	defer j.t.mu.Unlock()
	return fmt.Sprintf("[%d]  %-8s  %s", j.Number, j.state.display(), j.Command)
}

// Table tracks every launched pipeline. It is the single piece of mutable
// shared state across concurrent stage-completion notifications; every
// mutation is serialized behind one mutex.
type Table struct {
	mu   sync.Mutex
	cond *sync.Cond
	log  *zap.Logger

	jobs map[int]*Job
	fg   *Job

	// Controlling terminal, or -1 when the shell is not interactive.
	ttyFd     int
	shellPgid int

	notices []string
}

// NewTable creates an empty job table with no controlling terminal. A nil
// logger is replaced with a no-op one.
func NewTable(log *zap.Logger) *Table {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Table{
		log:   log,
		jobs:  make(map[int]*Job),
		ttyFd: -1,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// SetTerminal enables terminal handoff: foreground jobs are given the
// controlling terminal and it is returned to shellPgid when they leave the
// foreground.
func (t *Table) SetTerminal(ttyFd, shellPgid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ttyFd = ttyFd
	t.shellPgid = shellPgid
}

// Add registers a launched pipeline, numbering it with the smallest unused
// positive integer. Foreground registration fails with ErrForegroundBusy if
// another job already holds the foreground; the existing job is unaffected.
func (t *Table) Add(p *pipeline.Pipeline, command string, background bool) (*Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !background && t.fg != nil {
		return nil, ErrForegroundBusy
	}

	num := 1
	for {
		if _, taken := t.jobs[num]; !taken {
			break
		}
		num++
	}

	job := &Job{
		Number:  num,
		Command: command,
		t:       t,
		p:       p,
		state:   BackgroundRunning,
	}
	if !background {
		job.state = ForegroundRunning
		t.fg = job
		t.handTerminalLocked(p.Pgid())
	}
	t.jobs[num] = job
	t.log.Debug("job registered",
		zap.Int("job", num),
		zap.Int("pgid", p.Pgid()),
		zap.String("state", job.state.String()))

	go t.watch(job)
	return job, nil
}

// watch observes pipeline completion and drives the job to DONE. Foreground
// jobs are evicted immediately; background jobs stay listable until the user
// acknowledges them.
func (t *Table) watch(job *Job) {
	<-job.p.Done()

	t.mu.Lock()
	defer t.mu.Unlock()
	if job.state == DoneState {
		return
	}
	wasForeground := t.fg == job
	job.state = DoneState
	if wasForeground {
		t.fg = nil
		t.reclaimTerminalLocked()
		delete(t.jobs, job.Number)
	} else {
		status, _ := job.p.ExitStatus()
		what := "Done"
		if status != 0 {
			what = fmt.Sprintf("Exit %d", status)
		}
		t.notices = append(t.notices, fmt.Sprintf("[%d]  %-8s  %s", job.Number, what, job.Command))
	}
	t.cond.Broadcast()
}

// Get looks up a job by number.
func (t *Table) Get(num int) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[num]
	return j, ok
}

// Current returns the job holding the foreground, if any.
func (t *Table) Current() *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fg
}

// Jobs lists every tracked job in number order. DONE jobs are acknowledged
// by the listing and evicted, freeing their numbers.
func (t *Table) Jobs() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Number < out[b].Number })

	for _, j := range out {
		if j.state == DoneState {
			j.acknowledged = true
			delete(t.jobs, j.Number)
		}
	}
	return out
}

// Snapshot returns every tracked job in number order without acknowledging
// completed ones. Used where a listing is needed as input to another
// operation rather than shown to the user.
func (t *Table) Snapshot() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Number < out[b].Number })
	return out
}

// Foreground resumes the job in the foreground and blocks the caller until
// the job leaves the RUNNING-FOREGROUND state (completion or suspension).
func (t *Table) Foreground(num int) error {
	t.mu.Lock()
	job, ok := t.jobs[num]
	switch {
	case !ok:
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoSuchJob, num)
	case job.state == DoneState:
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrJobDone, num)
	case t.fg != nil && t.fg != job:
		t.mu.Unlock()
		return ErrForegroundBusy
	}

	resume := job.state == Suspended
	job.state = ForegroundRunning
	t.fg = job
	t.handTerminalLocked(job.p.Pgid())
	if resume {
		proc.SignalGroup(job.p.Pgid(), syscall.SIGCONT)
	}

	for job.state == ForegroundRunning {
		t.cond.Wait()
	}
	t.reclaimTerminalLocked()
	t.mu.Unlock()
	return nil
}

// WaitForeground blocks until the job leaves the RUNNING-FOREGROUND state,
// either by finishing or by being suspended, and returns the state it left
// to. Used by the shell after launching a foreground pipeline.
func (t *Table) WaitForeground(j *Job) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	for j.state == ForegroundRunning {
		t.cond.Wait()
	}
	return j.state
}

// Background resumes a suspended job in the background, re-sending SIGCONT
// to its process group. Backgrounding an already-running background job is a
// no-op.
func (t *Table) Background(num int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[num]
	switch {
	case !ok:
		return fmt.Errorf("%w: %d", ErrNoSuchJob, num)
	case job.state == DoneState:
		return fmt.Errorf("%w: %d", ErrJobDone, num)
	case job.state == BackgroundRunning:
		return nil
	case job.state == ForegroundRunning:
		return fmt.Errorf("job %d is running in the foreground", num)
	}

	job.state = BackgroundRunning
	proc.SignalGroup(job.p.Pgid(), syscall.SIGCONT)
	return nil
}

// Suspend stops the foreground job (SIGTSTP to its process group) and moves
// it to SUSPENDED, releasing the foreground.
func (t *Table) Suspend() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job := t.fg
	if job == nil {
		return ErrNoSuchJob
	}
	proc.SignalGroup(job.p.Pgid(), syscall.SIGTSTP)
	job.state = Suspended
	t.fg = nil
	t.reclaimTerminalLocked()
	t.notices = append(t.notices, fmt.Sprintf("[%d]  %-8s  %s", job.Number, "Stopped", job.Command))
	t.cond.Broadcast()
	return nil
}

// Interrupt forwards an interrupt to the foreground job's process group.
// Background jobs are unaffected. Safe to call repeatedly: a second
// interrupt while one is pending finds the same or no foreground job and
// never corrupts the table.
func (t *Table) Interrupt() {
	t.mu.Lock()
	job := t.fg
	t.mu.Unlock()
	if job != nil {
		proc.SignalGroup(job.p.Pgid(), syscall.SIGINT)
	}
}

// Notices drains the pending background-completion notifications, printed by
// the shell before each prompt.
func (t *Table) Notices() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.notices
	t.notices = nil
	return out
}

// must be called with t.mu held.
func (t *Table) handTerminalLocked(pgid int) {
	if t.ttyFd < 0 || pgid <= 0 {
		return
	}
	if err := proc.SetForegroundGroup(t.ttyFd, pgid); err != nil {
		t.log.Debug("terminal handoff failed", zap.Int("pgid", pgid), zap.Error(err))
	}
}

// must be called with t.mu held.
func (t *Table) reclaimTerminalLocked() {
	if t.ttyFd < 0 || t.shellPgid <= 0 {
		return
	}
	if err := proc.SetForegroundGroup(t.ttyFd, t.shellPgid); err != nil {
		t.log.Debug("terminal reclaim failed", zap.Error(err))
	}
}
