package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func TestNewJsonLinesLogRecorder(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewJsonLinesLogRecorder(buf)
	l.now = func() time.Time {
		return time.Date(2006, 1, 2, 3, 4, 5, 0, time.UTC)
	}

	session := l.Sessionless()
	require.NoError(t, session.Record(&Builtin{Command: []string{"cd", "/tmp"}}))
	require.NoError(t, session.Record(&JobDone{JobNumber: 1, Line: "sleep 1"}))

	expected := `{"timestamp_micros":1136171045000000,"builtin":{"command":["cd","/tmp"],"exit_status":0}}
{"timestamp_micros":1136171045000000,"job_done":{"job_number":1,"line":"sleep 1","exit_status":0}}
`
	assert.Equal(t, expected, buf.String())
}

func TestNewSession(t *testing.T) {
	session := NewNopLogger().NewSession()

	_, err := uuid.Parse(session.SessionID())
	assert.NoError(t, err)
	assert.NotEqual(t, session.SessionID(), NewNopLogger().NewSession().SessionID())
}

func TestSessionLogger_nil(t *testing.T) {
	var session *SessionLogger
	assert.NoError(t, session.Record(&Builtin{}))
}

func TestReport(t *testing.T) {
	buf := &bytes.Buffer{}
	session := NewJsonLinesLogRecorder(buf).NewSession()

	session.Record(&RunCommand{Command: []string{"ls", "-l"}, ResolvedCommandPath: "/bin/ls", Pid: 10})
	session.Record(&RunCommand{Command: []string{"ls"}, ResolvedCommandPath: "/bin/ls", Pid: 11, Background: true})
	session.Record(&UnknownCommand{Command: []string{"lss"}, ErrorMessage: "command not found", ExitStatus: 127})
	session.Record(&InvalidInvocation{Command: []string{"cd", "a", "b"}, Error: "too many arguments"})
	session.Record(&Builtin{Command: []string{"cd", "a", "b"}, ExitStatus: 1})
	session.Record(&JobStarted{JobNumber: 1, Pid: 11, Line: "ls"})
	session.Record(&JobDone{JobNumber: 1, Line: "ls"})

	var report Report
	require.NoError(t, ReadJSONLinesLog(strings.NewReader(buf.String()), report.Update))

	assert.Equal(t, 7, report.LogEntries)
	assert.Equal(t, 7, report.Sessions.Get(session.SessionID()))
	assert.Equal(t, 2, report.RunCommand.CommandNames.Get("ls"))
	assert.Equal(t, 1, report.RunCommand.Background)
	assert.Equal(t, 1, report.UnknownCommand.CommandNames.Get("lss"))
	assert.Equal(t, 1, report.InvalidInvocation.Errors.Get("too many arguments"))
	assert.Equal(t, 1, report.Builtin.Failures)
	assert.Equal(t, 1, report.Jobs.Started)
	assert.Equal(t, 1, report.Jobs.Completed)
	assert.Equal(t, 0, report.Jobs.Failed)

	// Reports are rendered as YAML by the CLI.
	out, err := yaml.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(out), "/bin/ls: 2")
}

func TestReadJSONLinesLog_invalid(t *testing.T) {
	var report Report
	err := ReadJSONLinesLog(strings.NewReader(`{"timestamp_micros": "nope"}`), report.Update)
	assert.Error(t, err)

	report = Report{}
	require.NoError(t, ReadJSONLinesLog(strings.NewReader(`{"timestamp_micros": 1}`), report.Update))
	assert.Equal(t, 1, report.InvalidEntries)
}

func TestStrCounter_Keys(t *testing.T) {
	var ctr StrCounter
	for _, k := range []string{"b", "a", "c", "a", "c", "c"} {
		ctr.Increment(k)
	}

	assert.Equal(t, []string{"c", "a", "b"}, ctr.Keys())
}
