package logger

import (
	"encoding/json"
	"io"
	"sort"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       StrCounter `json:"sessions"`
	InvalidEntries int        `json:"unknown_log_entries,omitempty"`

	RunCommand        RunCommandReport        `json:"run_command_report"`
	UnknownCommand    UnknownCommandReport    `json:"unknown_command_report"`
	InvalidInvocation InvalidInvocationReport `json:"invalid_invocation_report"`
	Builtin           BuiltinReport           `json:"builtin_report"`
	Jobs              JobReport               `json:"job_report"`
}

// Update adds the entry to the report.
func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	if le.SessionID != "" {
		r.Sessions.Increment(le.SessionID)
	}

	switch {
	case le.RunCommand != nil:
		r.RunCommand.update(le.RunCommand)
	case le.UnknownCommand != nil:
		r.UnknownCommand.update(le.UnknownCommand)
	case le.InvalidInvocation != nil:
		r.InvalidInvocation.update(le.InvalidInvocation)
	case le.Builtin != nil:
		r.Builtin.update(le.Builtin)
	case le.JobStarted != nil:
		r.Jobs.Started++
	case le.JobDone != nil:
		r.Jobs.update(le.JobDone)
	default:
		r.InvalidEntries++
	}
}

type RunCommandReport struct {
	// Name of the resolved command
	ResolvedCommandPaths StrCounter `json:"resolved_command_names"`
	// Name of the command
	CommandNames StrCounter `json:"command_names"`
	// Number of stages started in the background.
	Background int `json:"background"`
}

func (r *RunCommandReport) update(rc *RunCommand) {
	r.ResolvedCommandPaths.Increment(rc.ResolvedCommandPath)
	if len(rc.Command) > 0 {
		r.CommandNames.Increment(rc.Command[0])
	}
	if rc.Background {
		r.Background++
	}
}

type UnknownCommandReport struct {
	CommandNames StrCounter `json:"command_names"`
	Errors       StrCounter `json:"errors"`
}

func (r *UnknownCommandReport) update(uc *UnknownCommand) {
	if len(uc.Command) > 0 {
		r.CommandNames.Increment(uc.Command[0])
	}
	r.Errors.Increment(uc.ErrorMessage)
}

type InvalidInvocationReport struct {
	Errors StrCounter `json:"errors"`
}

func (r *InvalidInvocationReport) update(ii *InvalidInvocation) {
	r.Errors.Increment(ii.Error)
}

type BuiltinReport struct {
	CommandNames StrCounter `json:"command_names"`
	Failures     int        `json:"failures"`
}

func (r *BuiltinReport) update(b *Builtin) {
	if len(b.Command) > 0 {
		r.CommandNames.Increment(b.Command[0])
	}
	if b.ExitStatus != 0 {
		r.Failures++
	}
}

type JobReport struct {
	Started   int        `json:"started"`
	Completed int        `json:"completed"`
	Failed    int        `json:"failed"`
	Lines     StrCounter `json:"lines"`
}

func (r *JobReport) update(jd *JobDone) {
	r.Completed++
	if jd.ExitStatus != 0 {
		r.Failed++
	}
	r.Lines.Increment(jd.Line)
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for a key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// Keys returns the counted keys, most frequent first.
func (s *StrCounter) Keys() []string {
	var keys []string
	for k := range s.internal {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if s.internal[keys[i]] == s.internal[keys[j]] {
			return keys[i] < keys[j]
		}
		return s.internal[keys[i]] > s.internal[keys[j]]
	})
	return keys
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	if s.internal == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.internal)
}
