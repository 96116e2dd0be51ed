package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/goshell/gosh/core/proc"
	"github.com/goshell/gosh/core/spec"
)

// Builder assembles groups of pipe-connected command specs into running
// pipelines.
type Builder struct {
	Launcher *proc.Launcher
	Log      *zap.Logger
	// Trace emits one log line per built group, with the resolved argv of
	// every stage, before execution begins.
	Trace bool
	// StrictStatus makes a pipeline's exit status the worst stage status
	// instead of the final stage's.
	StrictStatus bool
}

// NewBuilder wires a builder. A nil logger is replaced with a no-op one.
func NewBuilder(launcher *proc.Launcher, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{Launcher: launcher, Log: log}
}

// Build resolves, wires and launches every stage of the group, connecting
// stage i's stdout to stage i+1's stdin. The final stage's capture mode
// decides where the pipeline's output ends up: the given stdio (streamed), a
// capture buffer (captured), or nowhere (hidden).
//
// Resolution failures abort the build before any process is created; the
// caller maps them to the conventional 127/126 statuses. Launch refusals do
// not abort the build: the failed stage reports a nonzero status and
// downstream stages observe closed input.
func (b *Builder) Build(g *spec.Group, stdio proc.IO) (*Pipeline, error) {
	n := len(g.Stages)
	if n == 0 {
		return nil, fmt.Errorf("empty pipeline")
	}

	resolved := make([]proc.Resolved, n)
	for i, cs := range g.Stages {
		r, err := b.Launcher.Resolve(argv0(cs))
		if err != nil {
			return nil, err
		}
		resolved[i] = r
	}

	files, err := openRedirects(g.Stages)
	if err != nil {
		return nil, err
	}

	if b.Trace {
		b.trace(g, resolved)
	}

	mode := g.Stages[n-1].Mode
	p := &Pipeline{
		specs:   g.Stages,
		started: time.Now(),
		done:    make(chan struct{}),
		mode:    mode,
		strict:  b.StrictStatus,
	}
	if mode == spec.Captured {
		p.capture = newCaptureBuffer()
	}

	pgid := 0
	handles := make([]*proc.Handle, 0, n)
	var prevRead io.ReadCloser

	for i, cs := range g.Stages {
		builtin := resolved[i].Builtin != nil
		last := i == n-1

		// Closers owned by this stage's wiring: the parent's copies are
		// closed right after an OS spawn, or when an in-process stage
		// finishes, so downstream readers see EOF.
		var afterStart, afterExit []io.Closer
		own := func(c io.Closer) {
			if builtin {
				afterExit = append(afterExit, c)
			} else {
				afterStart = append(afterStart, c)
			}
		}

		stageIO := proc.IO{}

		// stdin: a stage-level redirect wins over the pipe from the
		// previous stage; the unused read end closes so the upstream
		// writer observes EPIPE.
		switch {
		case files[i].in != nil:
			stageIO.In = files[i].in
			own(files[i].in)
			if i > 0 {
				prevRead.Close()
			}
		case cs.Stdin.Mode == spec.RedirNull:
			stageIO.In = proc.NullIO().In
			if i > 0 {
				prevRead.Close()
			}
		case i > 0:
			stageIO.In = prevRead
			own(prevRead)
		default:
			stageIO.In = stdio.In
		}

		// stdout: file redirect beats the pipe; otherwise the pipe to the
		// next stage, or the mode-dependent sink for the final stage.
		var pipeWrite *os.File
		if !last {
			r, w, err := os.Pipe()
			if err != nil {
				closeFiles(files[i:])
				return nil, err
			}
			prevRead = r
			pipeWrite = w
		}

		switch {
		case files[i].out != nil:
			stageIO.Out = files[i].out
			own(files[i].out)
			if pipeWrite != nil {
				// Redirected away from the pipe: downstream reads EOF.
				pipeWrite.Close()
			}
			if last && p.capture != nil {
				p.capture.Close()
			}
		case cs.Stdout.Mode == spec.RedirNull:
			stageIO.Out = proc.NullIO().Out
			if pipeWrite != nil {
				pipeWrite.Close()
			}
			if last && p.capture != nil {
				p.capture.Close()
			}
		case !last:
			if cs.Mode == spec.Captured && p.capture != nil {
				// Duplicate: written to the pipe and retained for the
				// captured result.
				stageIO.Out = teeWriter{w: pipeWrite, c: p.capture}
				// The tee forces a copier inside os/exec, so the write
				// end must stay open until the stage exits.
				afterExit = append(afterExit, pipeWrite)
			} else {
				stageIO.Out = pipeWrite
				own(pipeWrite)
			}
		default:
			switch mode {
			case spec.Captured:
				r, w, err := os.Pipe()
				if err != nil {
					closeFiles(files[i:])
					return nil, err
				}
				stageIO.Out = w
				own(w)
				go p.capture.drainFrom(r)
			case spec.Hidden:
				r, w, err := os.Pipe()
				if err != nil {
					closeFiles(files[i:])
					return nil, err
				}
				stageIO.Out = w
				own(w)
				go drainDiscard(r)
			default:
				stageIO.Out = stdio.Out
			}
		}

		// stderr: never piped, only redirected or inherited.
		switch {
		case files[i].err != nil:
			stageIO.Err = files[i].err
			own(files[i].err)
		case cs.Stderr.Mode == spec.RedirNull:
			stageIO.Err = proc.NullIO().Err
		default:
			stageIO.Err = stdio.Err
		}

		h := b.Launcher.Start(cs, resolved[i], proc.StartOpts{
			Stdio:          stageIO,
			Env:            append(os.Environ(), cs.Env...),
			Dir:            cs.Dir,
			Pgid:           &pgid,
			Register:       p.registerStage,
			CloseAfterExit: afterExit,
		})
		handles = append(handles, h)

		for _, c := range afterStart {
			c.Close()
		}
	}

	p.mu.Lock()
	if p.pgid == 0 {
		p.pgid = pgid
	}
	p.mu.Unlock()

	go p.monitor(handles)
	return p, nil
}

func argv0(cs *spec.CommandSpec) string {
	if len(cs.Argv) == 0 {
		return ""
	}
	return cs.Argv[0]
}

// trace logs one line for the whole group: resolved argv tuples plus the
// connectors joining them, before anything runs.
func (b *Builder) trace(g *spec.Group, resolved []proc.Resolved) {
	argvs := make([][]string, len(g.Stages))
	for i, cs := range g.Stages {
		argv := append([]string(nil), cs.Argv...)
		if resolved[i].Path != "" && len(argv) > 0 {
			argv[0] = resolved[i].Path
		}
		argvs[i] = argv
	}
	b.Log.Info("exec",
		zap.Any("argv", argvs),
		zap.String("connector", string(spec.ConnPipe)),
		zap.Bool("background", g.Background),
	)
}

type stageFiles struct {
	in       io.ReadCloser
	out, err io.WriteCloser
}

// openRedirects opens every file redirection target up front so a bad path
// fails the build atomically, before any process exists.
func openRedirects(stages []*spec.CommandSpec) ([]stageFiles, error) {
	files := make([]stageFiles, len(stages))
	fail := func(err error) ([]stageFiles, error) {
		closeFiles(files)
		return nil, err
	}

	for i, cs := range stages {
		if cs.Stdin.Mode == spec.RedirFile {
			f, err := os.Open(cs.Stdin.Path)
			if err != nil {
				return fail(err)
			}
			files[i].in = f
		}
		if cs.Stdout.Mode == spec.RedirFile {
			f, err := openOutput(cs.Stdout)
			if err != nil {
				return fail(err)
			}
			files[i].out = f
		}
		if cs.Stderr.Mode == spec.RedirFile {
			f, err := openOutput(cs.Stderr)
			if err != nil {
				return fail(err)
			}
			files[i].err = f
		}
	}
	return files, nil
}

func openOutput(r spec.Redirect) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if r.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(r.Path, flags, 0644)
}

func closeFiles(files []stageFiles) {
	for _, f := range files {
		if f.in != nil {
			f.in.Close()
		}
		if f.out != nil {
			f.out.Close()
		}
		if f.err != nil {
			f.err.Close()
		}
	}
}

// teeWriter duplicates a piped stage's output into the capture buffer.
type teeWriter struct {
	w io.WriteCloser
	c *captureBuffer
}

func (t teeWriter) Write(p []byte) (int, error) {
	t.c.Write(p)
	return t.w.Write(p)
}

func (t teeWriter) Close() error { return t.w.Close() }

func drainDiscard(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
