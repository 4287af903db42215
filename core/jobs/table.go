// Package jobs tracks background pipelines by job number.
package jobs

import (
	"errors"
	"fmt"
)

// DefaultCapacity is the number of jobs that may run at once.
const DefaultCapacity = 10

// ErrTableFull is returned by Register when every slot is taken.
var ErrTableFull = errors.New("too many background jobs")

// Process is the running pipeline behind a job.
type Process interface {
	// Pid identifies the process (group) to the user.
	Pid() int
	// Exited reports whether every process has terminated, without blocking.
	Exited() bool
	// Wait blocks until every process has terminated and returns the status.
	Wait() int
}

// Job is a snapshot of a table entry.
type Job struct {
	// Number is unique for the life of the table.
	Number int
	// Pid is the process id of the pipeline's first stage.
	Pid int
	// Line is the command line as the user typed it.
	Line string
	// Completed is set once Poll observed the job finishing.
	Completed bool
	// Status is the exit status, only valid if Completed.
	Status int
}

func (j Job) String() string {
	if j.Completed {
		return fmt.Sprintf("[%d]+ done %s", j.Number, j.Line)
	}
	return fmt.Sprintf("[%d]+ %d %s", j.Number, j.Pid, j.Line)
}

type entry struct {
	job  Job
	proc Process
}

// Table is a fixed capacity slot arena of jobs.
//
// Slots go free -> running -> done (observed by Poll) -> free. A Table is not
// safe for concurrent use, it belongs to the interactive loop.
type Table struct {
	slots []*entry
	// free holds the indexes of unused slots, the next slot to use is last.
	free []int
	// next is the number the next job gets.
	next int
}

// New creates a table with room for capacity jobs.
func New(capacity int) *Table {
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	t := &Table{
		slots: make([]*entry, capacity),
		free:  make([]int, 0, capacity),
		next:  1,
	}
	for i := capacity - 1; i >= 0; i-- {
		t.free = append(t.free, i)
	}
	return t
}

// Cap returns the number of slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Len returns the number of occupied slots.
func (t *Table) Len() int {
	return len(t.slots) - len(t.free)
}

// Register reserves a slot and then calls start to launch the job.
//
// If the table is full start is never called and ErrTableFull is returned.
// If start fails the slot and job number are left unused.
func (t *Table) Register(line string, start func() (Process, error)) (Job, error) {
	if len(t.free) == 0 {
		return Job{}, fmt.Errorf("%w (max %d)", ErrTableFull, len(t.slots))
	}

	proc, err := start()
	if err != nil {
		return Job{}, err
	}

	slot := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	e := &entry{
		job: Job{
			Number: t.next,
			Pid:    proc.Pid(),
			Line:   line,
		},
		proc: proc,
	}
	t.next++
	t.slots[slot] = e

	return e.job, nil
}

// Poll reports, in slot order, the jobs that finished since the last call
// and frees their slots. It never blocks.
func (t *Table) Poll() []Job {
	var done []Job
	for i, e := range t.slots {
		if e == nil || !e.proc.Exited() {
			continue
		}

		e.job.Completed = true
		e.job.Status = e.proc.Wait()
		done = append(done, e.job)

		t.release(i)
	}
	return done
}

func (t *Table) release(slot int) {
	t.slots[slot] = nil
	t.free = append(t.free, slot)
}

// Active lists jobs that are still running, it never blocks and doesn't
// change the table. Jobs that exited but haven't been polled are left out.
func (t *Table) Active() []Job {
	var active []Job
	for _, e := range t.slots {
		if e != nil && !e.proc.Exited() {
			active = append(active, e.job)
		}
	}
	return active
}

// Drain blocks until every job's processes have terminated.
func (t *Table) Drain() {
	for _, e := range t.slots {
		if e != nil {
			e.proc.Wait()
		}
	}
}
