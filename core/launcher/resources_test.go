//go:build linux
// +build linux

package launcher

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openFds lists the descriptors open in the test process.
func openFds(t *testing.T) []int {
	t.Helper()

	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("can't list open descriptors: %v", err)
	}

	var fds []int
	for _, entry := range entries {
		if fd, err := strconv.Atoi(entry.Name()); err == nil {
			fds = append(fds, fd)
		}
	}
	sort.Ints(fds)
	return fds
}

// fillDescriptorHoles occupies every free descriptor below the highest open
// one so a descriptor limit of max+1+n leaves exactly n to allocate.
func fillDescriptorHoles(t *testing.T) int {
	t.Helper()

	fds := openFds(t)
	maxFd := fds[len(fds)-1]

	var fillers []*os.File
	t.Cleanup(func() {
		for _, f := range fillers {
			f.Close()
		}
	})
	for {
		f, err := os.Open(os.DevNull)
		require.NoError(t, err)
		if int(f.Fd()) > maxFd {
			f.Close()
			return maxFd
		}
		fillers = append(fillers, f)
	}
}

// startedPids returns the pid of every stage the launcher recorded as
// started.
func startedPids(t *testing.T, events io.Reader) []int {
	t.Helper()

	var pids []int
	require.NoError(t, logger.ReadJSONLinesLog(events, func(le *logger.LogEntry) {
		if le.RunCommand != nil {
			pids = append(pids, le.RunCommand.Pid)
		}
	}))
	return pids
}

func assertReaped(t *testing.T, pids []int) {
	t.Helper()
	for _, pid := range pids {
		assert.Equal(t, syscall.ESRCH, syscall.Kill(pid, 0), "pid %d was waited for", pid)
	}
}

func TestLauncher_Start_stageResourceError(t *testing.T) {
	calls := 0
	startCommand = func(cmd *exec.Cmd) error {
		calls++
		if calls == 3 {
			return &os.PathError{Op: "fork/exec", Path: cmd.Path, Err: syscall.EMFILE}
		}
		return cmd.Start()
	}
	t.Cleanup(func() {
		startCommand = (*exec.Cmd).Start
	})

	tl := newTestLauncher(t)
	p := mustParse(t, "sleep 0.3 | cat | cat")
	before := len(openFds(t))

	start := time.Now()
	e, err := tl.Start(p)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Nil(t, e)
	assert.True(t, errors.Is(err, syscall.EMFILE), "got: %v", err)
	assert.Contains(t, err.Error(), "cat: fork/exec")
	assert.True(t, elapsed >= 300*time.Millisecond, "Start returned after %v, before sleep exited", elapsed)

	pids := startedPids(t, tl.events)
	assert.Len(t, pids, 2)
	assertReaped(t, pids)

	assert.Equal(t, before, len(openFds(t)), "pipe descriptors are closed")
	assert.Empty(t, tl.stderr.String(), "resource errors aren't stage diagnostics")
}

func TestLauncher_Start_descriptorLimit(t *testing.T) {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		devNull.Close()
	})

	tl := newTestLauncher(t)
	tl.IO = vos.NewVIOAdapter(devNull, devNull, devNull)

	// Let the runtime open whatever it opens on first use.
	tl.run(t, "true | true")
	tl.events.Reset()

	maxFd := fillDescriptorHoles(t)
	before := len(openFds(t))

	var original syscall.Rlimit
	require.NoError(t, syscall.Getrlimit(syscall.RLIMIT_NOFILE, &original))
	t.Cleanup(func() {
		syscall.Setrlimit(syscall.RLIMIT_NOFILE, &original)
	})

	var sawPipeFailure, sawStageFailure, sawSuccess bool
	for extra := 0; extra <= 32 && !sawSuccess; extra++ {
		p := mustParse(t, "sleep 0.3 | cat | cat")
		tl.events.Reset()

		limit := original
		limit.Cur = uint64(maxFd + 1 + extra)
		require.NoError(t, syscall.Setrlimit(syscall.RLIMIT_NOFILE, &limit))

		start := time.Now()
		e, err := tl.Start(p)
		elapsed := time.Since(start)

		require.NoError(t, syscall.Setrlimit(syscall.RLIMIT_NOFILE, &original))

		if err == nil {
			assert.Equal(t, 0, e.Wait(), "extra=%d", extra)
			sawSuccess = true
			continue
		}

		assert.Nil(t, e, "extra=%d", extra)
		assert.True(t, errors.Is(err, syscall.EMFILE), "extra=%d: %v", extra, err)

		pids := startedPids(t, tl.events)
		if strings.HasPrefix(err.Error(), "pipe: ") {
			sawPipeFailure = true
			assert.Empty(t, pids, "extra=%d: nothing starts without pipes", extra)
		}
		if len(pids) > 0 {
			sawStageFailure = true
			assert.True(t, elapsed >= 300*time.Millisecond, "extra=%d: Start returned after %v", extra, elapsed)
			assertReaped(t, pids)
		}

		assert.Equal(t, before, len(openFds(t)), "extra=%d: descriptors leaked", extra)
	}

	assert.True(t, sawPipeFailure, "the tightest limit fails while allocating pipes")
	assert.True(t, sawSuccess, "a generous limit runs the pipeline")
	if !sawStageFailure {
		t.Log("no limit stopped the pipeline between stages")
	}
}
