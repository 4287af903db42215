package core

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/pborman/getopt/v2"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// IsBuiltin reports whether name is run by the shell itself.
func IsBuiltin(name string) bool {
	_, ok := AllBuiltins[name]
	return ok
}

// BuiltinNames returns the sorted names of every builtin.
func BuiltinNames() []string {
	var names []string
	for k := range AllBuiltins {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var builtinSummaries = map[string]string{
	"cd":      "Change the shell working directory, DIR defaults to $HOME.",
	"exit":    "Wait for background jobs and exit the shell.",
	"help":    "List the shell builtins.",
	"history": "Display or clear the history list.",
	"jobs":    "Display the status of background jobs.",
}

// BuiltinSummary returns a one line description of the named builtin.
func BuiltinSummary(name string) string {
	return builtinSummaries[name]
}

// parseHelp handles the -h/--help flag shared by every builtin. It returns
// the remaining arguments and whether the builtin should stop.
func parseHelp(w io.Writer, args []string, usage string, description string) ([]string, int, bool) {
	opts := getopt.New()
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintf(w, "usage: %s\n", usage)
		fmt.Fprintln(w, description)
		if err != nil {
			return nil, 1, true
		}
		return nil, 0, true
	}

	return opts.Args(), 0, false
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) int {
	w := s.IO.Stderr()

	var target string
	switch len(args) {
	case 1:
		home, err := s.Env.UserHomeDir()
		if err != nil {
			fmt.Fprintf(w, "%s: HOME not set\n", args[0])
			return 1
		}
		target = home
	case 2:
		if args[1] == "-h" || args[1] == "--help" {
			fmt.Fprintln(s.IO.Stdout(), "usage: cd [DIR]")
			fmt.Fprintln(s.IO.Stdout(), BuiltinSummary("cd"))
			return 0
		}
		target = args[1]
	default:
		fmt.Fprintf(w, "%s: too many arguments\n", args[0])
		return 1
	}

	if err := os.Chdir(target); err != nil {
		fmt.Fprintf(w, "%s: %s: %v\n", args[0], target, unwrapPathError(err))
		return 1
	}

	if wd, err := os.Getwd(); err == nil {
		s.Env.Setenv(vos.EnvPWD, wd)
	}
	return 0
}

// Exit waits for background jobs, prints the last few history lines and
// quits the shell.
func Exit(s *Shell, args []string) int {
	if _, status, stop := parseHelp(s.IO.Stdout(), args, "exit", BuiltinSummary("exit")); stop {
		return status
	}

	s.Jobs.Drain()
	s.History.ReportAndClear(s.IO.Stdout(), s.Config.HistoryReport)
	s.Quit = true
	return 0
}

// Jobs lists the running background jobs.
func Jobs(s *Shell, args []string) int {
	if _, status, stop := parseHelp(s.IO.Stdout(), args, "jobs", BuiltinSummary("jobs")); stop {
		return status
	}

	w := s.IO.Stdout()
	active := s.Jobs.Active()
	if len(active) == 0 {
		fmt.Fprintln(w, "No active background jobs.")
		return 0
	}
	for _, job := range active {
		fmt.Fprintln(w, job.String())
	}
	return 0
}

func History(s *Shell, args []string) int {
	opts := getopt.New()
	clear := opts.Bool('c', "clear the history by deleting all entries")
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")

	if err := opts.Getopt(args, nil); err != nil || *helpOpt {
		w := s.IO.Stderr()
		if err != nil {
			fmt.Fprintln(w, err)
		}
		fmt.Fprintln(w, "Display or manipulate the history list")
		fmt.Fprintln(w, "Display the history list with line numbers.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		opts.PrintOptions(w)
		return 1
	}

	if *clear {
		if s.Readline != nil {
			s.Readline.Operation.ResetHistory()
		}
		s.History.Clear()
		return 0
	}

	s.History.Print(s.IO.Stdout())
	return 0
}

func Help(s *Shell, args []string) int {
	w := s.IO.Stdout()
	fmt.Fprintln(w, "pipesh, a small pipeline shell")
	fmt.Fprintln(w, "These shell commands are defined internally.  Type `help' to see this list.")
	fmt.Fprintln(w, "Type `name --help' to find out more about the function `name'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Builtins:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Join(BuiltinNames(), "\n"))

	return 0
}

func unwrapPathError(err error) error {
	if pathErr, ok := err.(*os.PathError); ok {
		return pathErr.Err
	}
	return err
}

func init() {
	AllBuiltins["cd"] = ShellBuiltinFunc(Cd)
	AllBuiltins["exit"] = ShellBuiltinFunc(Exit)
	AllBuiltins["jobs"] = ShellBuiltinFunc(Jobs)
	AllBuiltins["history"] = ShellBuiltinFunc(History)
	AllBuiltins["help"] = ShellBuiltinFunc(Help)
}
