package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/josephlewis42/pipesh/core/pipeline"
)

// State is the build state of a pipeline.
type State int

const (
	// StateNew indicates nothing has been allocated yet.
	StateNew State = iota
	// StatePipesAllocated indicates every inter-stage pipe exists.
	StatePipesAllocated
	// StateStarting indicates stages are being started.
	StateStarting
	// StateRunning indicates every stage was started or given up on.
	StateRunning
	// StateDone indicates every started stage was waited for.
	StateDone
	// StateFailed indicates the pipeline couldn't be set up.
	StateFailed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StatePipesAllocated:
		return "PipesAllocated"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

type pipePair struct {
	r, w *os.File
}

type stageProc struct {
	stage pipeline.Stage
	// cmd is nil if the stage was never started.
	cmd    *exec.Cmd
	status int
}

// Execution is a started pipeline.
type Execution struct {
	mu    sync.Mutex
	state State

	background bool
	line       string
	stages     []*stageProc
	pipes      []pipePair
	// pgid is the pid of the first stage that started.
	pgid int

	done chan struct{}
}

func newExecution(p *pipeline.Pipeline) *Execution {
	e := &Execution{
		state:      StateNew,
		background: p.Background,
		line:       p.Line,
		done:       make(chan struct{}),
	}
	for _, stage := range p.Stages {
		e.stages = append(e.stages, &stageProc{stage: stage})
	}
	return e
}

func (e *Execution) transition(newState State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = newState
}

// State returns the current build state.
func (e *Execution) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Execution) allocatePipes() error {
	for i := 0; i < len(e.stages)-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			e.closePipes()
			return fmt.Errorf("pipe: %w", err)
		}
		e.pipes = append(e.pipes, pipePair{r: r, w: w})
	}
	return nil
}

func (e *Execution) closePipes() {
	for _, p := range e.pipes {
		p.r.Close()
		p.w.Close()
	}
	e.pipes = nil
}

// reap waits for every started stage and then marks the execution done.
func (e *Execution) reap() {
	for _, sp := range e.stages {
		if sp.cmd == nil {
			continue
		}
		err := sp.cmd.Wait()
		sp.status = exitStatus(sp.cmd.ProcessState, err)
	}

	if e.State() != StateFailed {
		e.transition(StateDone)
	}
	close(e.done)
}

func exitStatus(state *os.ProcessState, err error) int {
	if state == nil {
		if err != nil {
			return 1
		}
		return 0
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// Done is closed once every stage has terminated.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Exited reports whether every stage has terminated, without blocking.
func (e *Execution) Exited() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Wait blocks until every stage has terminated and returns the exit status
// of the last stage. Earlier stages don't affect the result.
func (e *Execution) Wait() int {
	<-e.done
	return e.stages[len(e.stages)-1].status
}

// Statuses blocks until every stage has terminated and returns the exit
// status of each one.
func (e *Execution) Statuses() []int {
	<-e.done
	out := make([]int, len(e.stages))
	for i, sp := range e.stages {
		out[i] = sp.status
	}
	return out
}

// Pid returns the pid of the first stage that started, which is also the
// process group of background pipelines. It is 0 if no stage started.
func (e *Execution) Pid() int {
	return e.pgid
}

// Pids returns the pid of every stage, 0 for stages that didn't start.
func (e *Execution) Pids() []int {
	out := make([]int, len(e.stages))
	for i, sp := range e.stages {
		if sp.cmd != nil && sp.cmd.Process != nil {
			out[i] = sp.cmd.Process.Pid
		}
	}
	return out
}

// Line returns the command line the pipeline was parsed from.
func (e *Execution) Line() string {
	return e.line
}

// Background reports whether the pipeline runs as a job.
func (e *Execution) Background() bool {
	return e.background
}
