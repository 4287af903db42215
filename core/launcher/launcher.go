// Package launcher starts parsed pipelines as connected OS processes.
package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/lookpath"
	"github.com/josephlewis42/pipesh/core/pipeline"
	"github.com/josephlewis42/pipesh/core/vos"
	"golang.org/x/sys/unix"
)

const (
	// ExitRedirectFailure is the status of a stage whose redirection target
	// couldn't be opened.
	ExitRedirectFailure = 1
	// ExitBuiltinInPipeline is the status of a builtin used as a stage.
	ExitBuiltinInPipeline = 1
	// ExitNotFound is the status of a stage whose command wasn't found.
	ExitNotFound = 127
	// ExitExecFailure is the status of a stage that couldn't be executed.
	ExitExecFailure = 127
)

// ErrEmptyPipeline is returned when asked to start a pipeline with no stages.
var ErrEmptyPipeline = errors.New("empty pipeline")

// startCommand forks a stage, tests replace it to fail part way through a
// pipeline.
var startCommand = (*exec.Cmd).Start

// Launcher starts pipelines with the interpreter's streams and environment.
type Launcher struct {
	// IO holds the interpreter's streams. Stages that aren't connected to a
	// pipe or file use them directly.
	IO vos.VIO
	// Env is passed to every stage.
	Env vos.VEnv
	// Resolver finds each stage's executable.
	Resolver *lookpath.Resolver
	// Events records what was run, may be nil.
	Events *logger.SessionLogger
}

// Start launches every stage of p and returns without waiting for them.
//
// Stage level problems (command not found, unreadable redirection targets,
// exec failures) are reported on stderr and only affect that stage's exit
// status. Errors returned from Start mean the pipeline as a whole couldn't be
// set up; in that case any stage that did start has already been waited for.
func (l *Launcher) Start(p *pipeline.Pipeline) (*Execution, error) {
	if p == nil || len(p.Stages) == 0 {
		return nil, ErrEmptyPipeline
	}

	e := newExecution(p)

	if err := e.allocatePipes(); err != nil {
		e.transition(StateFailed)
		close(e.done)
		return nil, err
	}
	e.transition(StatePipesAllocated)

	e.transition(StateStarting)
	var startErr error
	for i := range e.stages {
		if startErr = l.startStage(e, i); startErr != nil {
			break
		}
	}

	// Only close the parent's copies once every stage has its own.
	e.closePipes()

	if startErr != nil {
		e.transition(StateFailed)
		e.reap()
		return nil, startErr
	}

	e.transition(StateRunning)
	go e.reap()

	return e, nil
}

// Run starts p and waits for it, returning the last stage's exit status.
func (l *Launcher) Run(p *pipeline.Pipeline) (int, error) {
	e, err := l.Start(p)
	if err != nil {
		return 1, err
	}
	return e.Wait(), nil
}

func (l *Launcher) stderr() io.Writer {
	if l.IO == nil {
		return io.Discard
	}
	return l.IO.Stderr()
}

func (l *Launcher) environ() []string {
	if l.Env == nil {
		return os.Environ()
	}
	return l.Env.Environ()
}

func (l *Launcher) startStage(e *Execution, i int) error {
	sp := e.stages[i]
	name := sp.stage.Name()
	stderr := l.stderr()

	var stdin io.Reader
	var stdout io.Writer
	if l.IO != nil {
		stdin, stdout = l.IO.Stdin(), l.IO.Stdout()
	}
	if e.background && i == 0 {
		// Jobs never read the terminal.
		stdin = nil
	}
	if i > 0 {
		stdin = e.pipes[i-1].r
	}
	if i < len(e.stages)-1 {
		stdout = e.pipes[i].w
	}

	ref := l.Resolver.Resolve(name)
	switch ref.Kind {
	case lookpath.NotFound:
		fmt.Fprintf(stderr, "%s: command not found\n", name)
		sp.status = ExitNotFound
		l.Events.Record(&logger.UnknownCommand{
			Command:      sp.stage.Args,
			ErrorMessage: "command not found",
			ExitStatus:   sp.status,
		})
		return nil
	case lookpath.Builtin:
		fmt.Fprintf(stderr, "%s: shell builtin can't be used in a pipeline\n", name)
		sp.status = ExitBuiltinInPipeline
		l.Events.Record(&logger.UnknownCommand{
			Command:      sp.stage.Args,
			ErrorMessage: "builtin in pipeline",
			ExitStatus:   sp.status,
		})
		return nil
	}

	// Explicit redirections win over the pipe wiring. Input goes first, a
	// stage with a bad input never creates its output file.
	if sp.stage.Stdin != "" {
		fd, err := OpenInput(sp.stage.Stdin)
		if err != nil {
			fmt.Fprintln(stderr, err)
			sp.status = ExitRedirectFailure
			return nil
		}
		defer fd.Close()
		stdin = fd
	}
	if sp.stage.Stdout != "" {
		fd, err := OpenOutput(sp.stage.Stdout)
		if err != nil {
			fmt.Fprintln(stderr, err)
			sp.status = ExitRedirectFailure
			return nil
		}
		defer fd.Close()
		stdout = fd
	}

	cmd := &exec.Cmd{
		Path:   ref.Path,
		Args:   sp.stage.Args,
		Env:    l.environ(),
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}
	if e.background {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: e.pgid}
	}

	if err := startCommand(cmd); err != nil {
		if isResourceError(err) {
			return fmt.Errorf("%s: %w", name, err)
		}

		fmt.Fprintf(stderr, "%s: %v\n", name, unwrapPathError(err))
		sp.status = ExitExecFailure
		l.Events.Record(&logger.UnknownCommand{
			Command:      sp.stage.Args,
			ErrorMessage: err.Error(),
			ExitStatus:   sp.status,
		})
		return nil
	}

	sp.cmd = cmd
	if e.pgid == 0 {
		e.pgid = cmd.Process.Pid
	}
	l.Events.Record(&logger.RunCommand{
		Command:             sp.stage.Args,
		ResolvedCommandPath: ref.Path,
		Pid:                 cmd.Process.Pid,
		Background:          e.background,
	})

	return nil
}

// isResourceError reports errors caused by the system running out of
// processes, memory or descriptors rather than by the stage itself.
func isResourceError(err error) bool {
	for _, errno := range []unix.Errno{unix.EAGAIN, unix.ENOMEM, unix.EMFILE, unix.ENFILE} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func unwrapPathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

// OpenInput opens a stage's input redirection target. It must be an existing
// regular file.
func OpenInput(path string) (*os.File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Input: cannot open '%s': %v", path, unwrapPathError(err))
	}

	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("Input: cannot stat '%s': %v", path, unwrapPathError(err))
	}
	if !info.Mode().IsRegular() {
		fd.Close()
		return nil, fmt.Errorf("Input: '%s' is not a regular file", path)
	}

	return fd, nil
}

// OpenOutput creates or truncates a stage's output redirection target. The
// file always ends up readable and writable by the owner only, no matter the
// umask or its previous mode.
func OpenOutput(path string) (*os.File, error) {
	fd, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("Output: cannot open '%s': %v", path, unwrapPathError(err))
	}
	if err := fd.Chmod(0600); err != nil {
		fd.Close()
		return nil, fmt.Errorf("Output: cannot chmod '%s': %v", path, unwrapPathError(err))
	}
	return fd, nil
}
