// Package lookpath maps command names to executables.
package lookpath

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/josephlewis42/pipesh/core/vos"
	"golang.org/x/sys/unix"
)

// DefaultPath is searched when PATH is unset or empty.
const DefaultPath = "/bin:/usr/bin"

var (
	// ErrNotFound is the error resulting if a path search failed to find an executable file.
	ErrNotFound = exec.ErrNotFound
	// ErrBuiltin is returned for names the shell runs itself.
	ErrBuiltin = errors.New("shell builtin")
)

// Kind is the result class of a lookup.
type Kind int

const (
	NotFound Kind = iota
	Resolved
	Builtin
)

func (k Kind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Builtin:
		return "builtin"
	default:
		return "not found"
	}
}

// ExecutableRef is the outcome of resolving a command name.
type ExecutableRef struct {
	// Path is only set if Kind is Resolved.
	Path string
	Kind Kind
}

// Resolver searches PATH for executables.
type Resolver struct {
	// Env supplies PATH.
	Env vos.VEnv
	// IsBuiltin reports names that must never be searched for, may be nil.
	IsBuiltin func(name string) bool
	// DefaultPath overrides the package DefaultPath if set.
	DefaultPath string
}

func (r *Resolver) searchPath() string {
	if r.Env != nil {
		if path := r.Env.Getenv(vos.EnvPath); path != "" {
			return path
		}
	}
	if r.DefaultPath != "" {
		return r.DefaultPath
	}
	return DefaultPath
}

// Resolve maps name to an executable.
//
// Names containing a slash are returned verbatim without checking that they
// exist, the OS does that when the program is started. Builtins are never
// searched for. Otherwise each directory of PATH is tried in order and the
// first regular file the current user may execute wins; an empty PATH
// element means the current directory.
func (r *Resolver) Resolve(name string) ExecutableRef {
	if name == "" {
		return ExecutableRef{Kind: NotFound}
	}

	if strings.Contains(name, "/") {
		return ExecutableRef{Path: name, Kind: Resolved}
	}

	if r.IsBuiltin != nil && r.IsBuiltin(name) {
		return ExecutableRef{Kind: Builtin}
	}

	for _, dir := range filepath.SplitList(r.searchPath()) {
		candidate := join(dir, name)
		if isExecutable(candidate) {
			return ExecutableRef{Path: candidate, Kind: Resolved}
		}
	}

	return ExecutableRef{Kind: NotFound}
}

// LookPath is Resolve with the os/exec calling convention.
func (r *Resolver) LookPath(name string) (string, error) {
	ref := r.Resolve(name)
	switch ref.Kind {
	case Resolved:
		return ref.Path, nil
	case Builtin:
		return "", ErrBuiltin
	default:
		return "", ErrNotFound
	}
}

func join(dir, name string) string {
	if dir == "" {
		// Unix shell semantics: path element "" means "."
		dir = "."
	}

	var sb strings.Builder
	sb.Grow(len(dir) + 1 + len(name))
	sb.WriteString(strings.TrimSuffix(dir, "/"))
	sb.WriteByte('/')
	sb.WriteString(name)
	return sb.String()
}

func isExecutable(path string) bool {
	if err := unix.Access(path, unix.X_OK); err != nil {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
