package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/anmitsu/go-shlex"
	"github.com/fatih/color"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/history"
	"github.com/josephlewis42/pipesh/core/jobs"
	"github.com/josephlewis42/pipesh/core/launcher"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/lookpath"
	"github.com/josephlewis42/pipesh/core/pipeline"
	"github.com/josephlewis42/pipesh/core/vos"
	"golang.org/x/term"
)

const (
	// FallbackPrompt is shown when USER or PWD isn't set.
	FallbackPrompt = "shell> "
	// FallbackHostname is used when the hostname can't be determined.
	FallbackHostname = "machine"

	// ExitSyntaxError is the status of a line that couldn't be parsed.
	ExitSyntaxError = 2
)

// Shell is the state of one interpreter session.
type Shell struct {
	Env      vos.VEnv
	IO       vos.VIO
	Config   *config.Configuration
	Jobs     *jobs.Table
	History  *history.Ring
	Resolver *lookpath.Resolver
	Launcher *launcher.Launcher
	Events   *logger.SessionLogger
	// Readline is set when the input is a terminal.
	Readline *readline.Instance
	// Log receives operational messages that aren't meant for the user.
	Log *log.Logger

	// Quit is set by the exit builtin.
	Quit bool
	// LastStatus is the exit status of the last foreground command.
	LastStatus int

	hostname string
	colors   *palette
	lines    lineReader
}

type palette struct {
	user   *color.Color
	dir    *color.Color
	notice *color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		user:   color.New(color.FgGreen, color.Bold),
		dir:    color.New(color.FgBlue, color.Bold),
		notice: color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{p.user, p.dir, p.notice} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// NewShell creates a shell reading commands from sio. If sio's input is a
// terminal, line editing is enabled.
func NewShell(sio vos.VIO, env vos.VEnv, configuration *config.Configuration, events *logger.SessionLogger) (*Shell, error) {
	if configuration == nil {
		configuration = config.Default()
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = FallbackHostname
	}

	resolver := &lookpath.Resolver{
		Env:         env,
		IsBuiltin:   IsBuiltin,
		DefaultPath: configuration.DefaultPath,
	}

	s := &Shell{
		Env:      env,
		IO:       sio,
		Config:   configuration,
		Jobs:     jobs.New(configuration.MaxJobs),
		History:  history.New(configuration.HistorySize),
		Resolver: resolver,
		Launcher: &launcher.Launcher{
			IO:       sio,
			Env:      env,
			Resolver: resolver,
			Events:   events,
		},
		Events:   events,
		Log:      log.New(io.Discard, "", 0),
		hostname: hostname,
		colors:   newPalette(configuration.ColorEnabled(isTerminal(sio.Stdout()))),
	}

	if isTerminal(sio.Stdin()) {
		rl, err := newReadline(sio)
		if err != nil {
			return nil, err
		}
		s.Readline = rl
		s.lines = &readlineReader{rl: rl}
	} else {
		s.lines = &bufferedReader{r: bufio.NewReader(sio.Stdin()), w: sio.Stdout()}
	}

	return s, nil
}

func isTerminal(stream interface{}) bool {
	f, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newReadline(sio vos.VIO) (*readline.Instance, error) {
	cfg := &readline.Config{
		Stdin:  readline.NewCancelableStdin(sio.Stdin()),
		Stdout: sio.Stdout(),
		Stderr: sio.Stderr(),
		FuncGetWidth: func() int {
			if f, ok := sio.Stdout().(*os.File); ok {
				if width, _, err := term.GetSize(int(f.Fd())); err == nil {
					return width
				}
			}
			return 80
		},
		FuncIsTerminal: func() bool {
			return true
		},
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	return readline.NewEx(cfg)
}

// lineReader reads one line of input after showing a prompt.
type lineReader interface {
	ReadLine(prompt string) (string, error)
}

// errInterrupted is returned by line readers when the user pressed ^C.
var errInterrupted = errors.New("interrupted")

type readlineReader struct {
	rl *readline.Instance
}

func (r *readlineReader) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.Readline()
	if err == readline.ErrInterrupt {
		return "", errInterrupted
	}
	return line, err
}

type bufferedReader struct {
	r *bufio.Reader
	w io.Writer
}

func (b *bufferedReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(b.w, prompt)

	line, err := b.r.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Prompt renders the configured prompt.
//
// \u is replaced with $USER, \h with the hostname, \w with $PWD and \$ with
// '#' for root or '$' for everyone else. When USER or PWD is unset the prompt
// is FallbackPrompt.
func (s *Shell) Prompt() string {
	user, hasUser := s.Env.LookupEnv(vos.EnvUser)
	pwd, hasPwd := s.Env.LookupEnv(vos.EnvPWD)
	if !hasUser || !hasPwd || user == "" || pwd == "" {
		return FallbackPrompt
	}

	prompt := s.Config.Prompt
	prompt = strings.ReplaceAll(prompt, `\u`, s.colors.user.Sprint(user))
	prompt = strings.ReplaceAll(prompt, `\h`, s.colors.user.Sprint(s.hostname))
	prompt = strings.ReplaceAll(prompt, `\w`, s.colors.dir.Sprint(pwd))

	if os.Geteuid() == 0 {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	return prompt
}

// Run reads and executes lines until the input ends or exit is called. It
// returns the shell's exit status.
func (s *Shell) Run() int {
	// ^C belongs to the foreground pipeline. Ignoring the signal would be
	// inherited by every child, so catch and drop it instead.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	stop := make(chan struct{})
	defer func() {
		signal.Stop(interrupts)
		close(stop)
	}()
	go func() {
		for {
			select {
			case <-interrupts:
				s.Log.Println("interrupt")
			case <-stop:
				return
			}
		}
	}()

	for !s.Quit {
		line, err := s.lines.ReadLine(s.Prompt())

		switch {
		case err == io.EOF:
			// Input closed, wait for jobs and quit.
			s.Jobs.Drain()
			return 0

		case err == errInterrupted:
			continue

		case err != nil:
			s.Log.Printf("Error reading line: %v", err)
			s.Jobs.Drain()
			return 1

		default:
			s.RunCommand(line)
			s.ReportJobs()
		}
	}

	return 0
}

// RunCommand executes a single line and returns its exit status.
func (s *Shell) RunCommand(line string) int {
	tokens, err := shlex.Split(line, true)
	if err != nil {
		fmt.Fprintf(s.IO.Stderr(), "syntax error: %v\n", err)
		s.Events.Record(&logger.InvalidInvocation{Command: []string{line}, Error: err.Error()})
		s.LastStatus = ExitSyntaxError
		return s.LastStatus
	}

	if len(tokens) == 0 {
		return s.LastStatus
	}

	tokens = ExpandTokens(s.Env, tokens)
	if tokens[0] != "" {
		s.History.Add(line)
	}

	args, background := pipeline.TrimBackground(tokens)
	if len(args) > 0 {
		if builtin, ok := AllBuiltins[args[0]]; ok {
			s.LastStatus = builtin.Main(s, args)
			s.Events.Record(&logger.Builtin{Command: args, ExitStatus: s.LastStatus})
			return s.LastStatus
		}
	}

	p, err := pipeline.Parse(line, tokens, s.Config.MaxPipelineStages)
	switch {
	case errors.Is(err, pipeline.ErrTooManyStages):
		fmt.Fprintf(s.IO.Stderr(), "Too many pipes (max %d allowed)\n", s.Config.MaxPipelineStages-1)
		s.Events.Record(&logger.InvalidInvocation{Command: tokens, Error: err.Error()})
		s.LastStatus = ExitSyntaxError
		return s.LastStatus
	case err != nil:
		fmt.Fprintf(s.IO.Stderr(), "%v\n", err)
		s.Events.Record(&logger.InvalidInvocation{Command: tokens, Error: err.Error()})
		s.LastStatus = ExitSyntaxError
		return s.LastStatus
	case p == nil:
		return s.LastStatus
	}

	if background {
		return s.startJob(p)
	}

	status, err := s.Launcher.Run(p)
	if err != nil {
		fmt.Fprintf(s.IO.Stderr(), "%v\n", err)
	}
	s.LastStatus = status
	return s.LastStatus
}

// errNothingStarted keeps a background line whose every stage failed to
// start out of the job table.
var errNothingStarted = errors.New("no stage started")

func (s *Shell) startJob(p *pipeline.Pipeline) int {
	var failed *launcher.Execution
	job, err := s.Jobs.Register(p.Line, func() (jobs.Process, error) {
		e, err := s.Launcher.Start(p)
		if err != nil {
			return nil, err
		}
		if e.Pid() == 0 {
			failed = e
			return nil, errNothingStarted
		}
		return e, nil
	})

	switch {
	case errors.Is(err, jobs.ErrTableFull):
		fmt.Fprintf(s.IO.Stderr(), "Too many background jobs (max %d)\n", s.Jobs.Cap())
		return 1
	case err == errNothingStarted:
		// Every stage already printed its own diagnostic.
		return failed.Wait()
	case err != nil:
		fmt.Fprintf(s.IO.Stderr(), "%v\n", err)
		return 1
	}

	fmt.Fprintf(s.IO.Stdout(), "[%d] %d\n", job.Number, job.Pid)
	s.Events.Record(&logger.JobStarted{JobNumber: job.Number, Pid: job.Pid, Line: job.Line})
	return 0
}

// ReportJobs prints a notice for every background job that finished since
// the last call.
func (s *Shell) ReportJobs() {
	for _, job := range s.Jobs.Poll() {
		fmt.Fprintln(s.IO.Stdout(), s.colors.notice.Sprint(job.String()))
		s.Events.Record(&logger.JobDone{JobNumber: job.Number, Line: job.Line, ExitStatus: job.Status})
	}
}

// Close releases the terminal.
func (s *Shell) Close() error {
	if s.Readline != nil {
		return s.Readline.Close()
	}
	return nil
}
