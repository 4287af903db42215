package logger

// LogEntry is a single event. Exactly one of the event fields is set.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`

	RunCommand        *RunCommand        `json:"run_command,omitempty"`
	UnknownCommand    *UnknownCommand    `json:"unknown_command,omitempty"`
	InvalidInvocation *InvalidInvocation `json:"invalid_invocation,omitempty"`
	Builtin           *Builtin           `json:"builtin,omitempty"`
	JobStarted        *JobStarted        `json:"job_started,omitempty"`
	JobDone           *JobDone           `json:"job_done,omitempty"`
}

// LogType is implemented by every event that can be recorded.
type LogType interface {
	setOn(le *LogEntry)
}

// RunCommand is logged for every stage that was started.
type RunCommand struct {
	Command             []string `json:"command"`
	ResolvedCommandPath string   `json:"resolved_command_path"`
	Pid                 int      `json:"pid"`
	Background          bool     `json:"background,omitempty"`
}

func (e *RunCommand) setOn(le *LogEntry) { le.RunCommand = e }

// UnknownCommand is logged when a stage can't be resolved or started.
type UnknownCommand struct {
	Command      []string `json:"command"`
	ErrorMessage string   `json:"error_message"`
	ExitStatus   int      `json:"exit_status"`
}

func (e *UnknownCommand) setOn(le *LogEntry) { le.UnknownCommand = e }

// InvalidInvocation is logged when a line couldn't be parsed or a builtin
// was misused.
type InvalidInvocation struct {
	Command []string `json:"command"`
	Error   string   `json:"error"`
}

func (e *InvalidInvocation) setOn(le *LogEntry) { le.InvalidInvocation = e }

// Builtin is logged when the shell runs a builtin.
type Builtin struct {
	Command    []string `json:"command"`
	ExitStatus int      `json:"exit_status"`
}

func (e *Builtin) setOn(le *LogEntry) { le.Builtin = e }

// JobStarted is logged when a background job is registered.
type JobStarted struct {
	JobNumber int    `json:"job_number"`
	Pid       int    `json:"pid"`
	Line      string `json:"line"`
}

func (e *JobStarted) setOn(le *LogEntry) { le.JobStarted = e }

// JobDone is logged when a background job's completion is reported.
type JobDone struct {
	JobNumber  int    `json:"job_number"`
	Line       string `json:"line"`
	ExitStatus int    `json:"exit_status"`
}

func (e *JobDone) setOn(le *LogEntry) { le.JobDone = e }
