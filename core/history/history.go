// Package history keeps the most recent command lines entered in a session.
package history

import (
	"fmt"
	"io"
	"sync"
)

const (
	// DefaultSize is the number of lines kept when no size is configured.
	DefaultSize = 10
	// DefaultReport is the number of lines printed on exit.
	DefaultReport = 3
)

// EmptyMessage is printed by ReportAndClear when nothing was recorded.
const EmptyMessage = "No valid commands in history."

// Ring holds the last N non-empty lines, oldest first.
type Ring struct {
	mu    sync.Mutex
	size  int
	lines []string
}

// New creates a ring holding at most size lines. Sizes below one fall back to
// DefaultSize.
func New(size int) *Ring {
	if size < 1 {
		size = DefaultSize
	}
	return &Ring{
		size:  size,
		lines: make([]string, 0, size),
	}
}

// Add records a line, dropping the oldest one when the ring is full. Empty
// lines are ignored.
func (r *Ring) Add(line string) {
	if line == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.lines) == r.size {
		copy(r.lines, r.lines[1:])
		r.lines = r.lines[:r.size-1]
	}
	r.lines = append(r.lines, line)
}

// Entries returns a copy of the recorded lines, oldest first.
func (r *Ring) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len returns the number of recorded lines.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

// Clear forgets every line.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = r.lines[:0]
}

// Print writes every line prefixed with its index.
func (r *Ring) Print(w io.Writer) {
	for i, line := range r.Entries() {
		fmt.Fprintf(w, "% 5d  %s\n", i, line)
	}
}

// ReportAndClear writes the last n lines, oldest first, and then clears the
// ring. If the ring is empty EmptyMessage is written instead.
func (r *Ring) ReportAndClear(w io.Writer, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.lines) == 0 {
		fmt.Fprintln(w, EmptyMessage)
		return
	}

	start := 0
	if n >= 0 && len(r.lines) > n {
		start = len(r.lines) - n
	}
	for _, line := range r.lines[start:] {
		fmt.Fprintln(w, line)
	}
	r.lines = r.lines[:0]
}
