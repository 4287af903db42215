package history

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_Add(t *testing.T) {
	r := New(DefaultSize)
	for i := 0; i < 12; i++ {
		r.Add(fmt.Sprintf("echo %d", i))
	}
	r.Add("")

	entries := r.Entries()
	assert.Len(t, entries, DefaultSize)
	assert.Equal(t, "echo 2", entries[0])
	assert.Equal(t, "echo 11", entries[DefaultSize-1])
}

func TestNew_invalidSize(t *testing.T) {
	r := New(0)
	for i := 0; i < 20; i++ {
		r.Add("ls")
	}
	assert.Equal(t, DefaultSize, r.Len())
}

func TestRing_ReportAndClear(t *testing.T) {
	cases := map[string]struct {
		lines    []string
		expected string
	}{
		"empty": {
			expected: "No valid commands in history.\n",
		},
		"fewer than three": {
			lines:    []string{"ls", "pwd"},
			expected: "ls\npwd\n",
		},
		"more than three": {
			lines:    []string{"ls", "pwd", "cd /tmp", "jobs", "sleep 1 &"},
			expected: "cd /tmp\njobs\nsleep 1 &\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			r := New(DefaultSize)
			for _, line := range tc.lines {
				r.Add(line)
			}

			buf := &bytes.Buffer{}
			r.ReportAndClear(buf, DefaultReport)

			assert.Equal(t, tc.expected, buf.String())
			assert.Zero(t, r.Len())
		})
	}
}

func TestRing_Print(t *testing.T) {
	r := New(2)
	r.Add("first")
	r.Add("second")
	r.Add("third")

	buf := &bytes.Buffer{}
	r.Print(buf)
	assert.Equal(t, "    0  second\n    1  third\n", buf.String())

	r.Clear()
	buf.Reset()
	r.Print(buf)
	assert.Empty(t, buf.String())
}
