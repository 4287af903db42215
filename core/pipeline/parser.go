// Package pipeline turns an expanded token list into the stages of a
// pipeline.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// PipeToken separates stages.
	PipeToken = "|"
	// InputToken redirects a stage's standard input from a file.
	InputToken = "<"
	// OutputToken redirects a stage's standard output to a file.
	OutputToken = ">"
	// BackgroundToken, as the last token, runs the pipeline as a job.
	BackgroundToken = "&"

	// DefaultMaxStages is the widest pipeline accepted by default.
	DefaultMaxStages = 3
)

var (
	// ErrSyntax is wrapped by every error describing a malformed stage.
	ErrSyntax = errors.New("parse error")
	// ErrTooManyStages is returned when a line has more pipes than allowed.
	ErrTooManyStages = errors.New("too many pipes")

	ErrMissingTarget     = fmt.Errorf("%w: redirection without a file", ErrSyntax)
	ErrDuplicateRedirect = fmt.Errorf("%w: duplicate redirection", ErrSyntax)
	ErrEmptyStage        = fmt.Errorf("%w: empty command", ErrSyntax)
)

// Stage is a single command of a pipeline.
type Stage struct {
	// Args holds the argument vector, Args[0] is the command.
	Args []string
	// Stdin is the input redirection target, empty if none.
	Stdin string
	// Stdout is the output redirection target, empty if none.
	Stdout string
}

// Name returns the command name of the stage.
func (s Stage) Name() string {
	if len(s.Args) == 0 {
		return ""
	}
	return s.Args[0]
}

// Pipeline is a parsed command line.
type Pipeline struct {
	Stages []Stage
	// Line is the display form of the command line, it never includes the
	// trailing background marker.
	Line string
	// Background is set if the line ended with "&".
	Background bool
}

// Split breaks tokens into stages on PipeToken, preserving order.
//
// An empty token list returns no stages and no error. A line with more than
// maxStages-1 pipes returns ErrTooManyStages and no stages.
func Split(tokens []string, maxStages int) ([][]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	pipes := 0
	for _, tok := range tokens {
		if tok == PipeToken {
			pipes++
		}
	}
	if pipes > maxStages-1 {
		return nil, fmt.Errorf("%w (max %d allowed)", ErrTooManyStages, maxStages-1)
	}

	out := make([][]string, 0, pipes+1)
	current := []string{}
	for _, tok := range tokens {
		if tok == PipeToken {
			out = append(out, current)
			current = []string{}
			continue
		}
		current = append(current, tok)
	}

	return append(out, current), nil
}

// ParseStage pulls the redirections out of a single stage's tokens.
func ParseStage(tokens []string) (Stage, error) {
	var stage Stage
	for i := 0; i < len(tokens); i++ {
		switch tok := tokens[i]; tok {
		case InputToken, OutputToken:
			if i+1 >= len(tokens) {
				return Stage{}, fmt.Errorf("%w after %q", ErrMissingTarget, tok)
			}
			target := &stage.Stdout
			if tok == InputToken {
				target = &stage.Stdin
			}
			if *target != "" {
				return Stage{}, fmt.Errorf("%w %q", ErrDuplicateRedirect, tok)
			}
			i++
			*target = tokens[i]
		default:
			stage.Args = append(stage.Args, tok)
		}
	}

	if len(stage.Args) == 0 {
		return Stage{}, ErrEmptyStage
	}
	return stage, nil
}

// TrimBackground removes a trailing BackgroundToken.
func TrimBackground(tokens []string) ([]string, bool) {
	if n := len(tokens); n > 0 && tokens[n-1] == BackgroundToken {
		return tokens[:n-1], true
	}
	return tokens, false
}

// Parse builds a pipeline from an expanded command line. A nil pipeline with
// a nil error means there was nothing to run.
func Parse(line string, tokens []string, maxStages int) (*Pipeline, error) {
	tokens, background := TrimBackground(tokens)

	rawStages, err := Split(tokens, maxStages)
	if err != nil || len(rawStages) == 0 {
		return nil, err
	}

	p := &Pipeline{
		Line:       displayLine(line, background),
		Background: background,
	}
	for _, raw := range rawStages {
		stage, err := ParseStage(raw)
		if err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, stage)
	}

	return p, nil
}

func displayLine(line string, background bool) string {
	line = strings.TrimSpace(line)
	if background {
		line = strings.TrimSpace(strings.TrimSuffix(line, BackgroundToken))
	}
	return line
}
