package config

import (
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	// BackupSuffix is appended to a configuration replaced by Reinitialize.
	BackupSuffix = ".bak"
)

const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// ErrNoEventLog is returned when opening the event log of a configuration
// that doesn't set one.
var ErrNoEventLog = errors.New("no event log configured")

type Configuration struct {
	configFs  afero.Fs
	configDir string

	Prompt      string `json:"prompt" validate:"required"`
	DefaultPath string `json:"default_path" validate:"required"`

	MaxJobs           int `json:"max_jobs" validate:"gte=1,lte=1000"`
	MaxPipelineStages int `json:"max_pipeline_stages" validate:"gte=1,lte=16"`

	HistorySize   int `json:"history_size" validate:"gte=1"`
	HistoryReport int `json:"history_report" validate:"gte=0,ltefield=HistorySize"`

	Color    string `json:"color" validate:"oneof=auto always never"`
	EventLog string `json:"event_log"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		return afero.NewOsFs()
	}
	return c.configFs
}

// Dir returns the directory the configuration was loaded from.
func (c *Configuration) Dir() string {
	if c.configDir == "" {
		return "."
	}
	return c.configDir
}

// EventLogPath returns the event log location, or the empty string if the
// event log is disabled.
func (c *Configuration) EventLogPath() string {
	if c.EventLog == "" || filepath.IsAbs(c.EventLog) {
		return c.EventLog
	}
	return filepath.Join(c.Dir(), c.EventLog)
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	path := c.EventLogPath()
	if path == "" {
		return nil, ErrNoEventLog
	}
	return c.fs().OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	path := c.EventLogPath()
	if path == "" {
		return nil, ErrNoEventLog
	}
	return c.fs().OpenFile(path, os.O_RDONLY, 0600)
}

// ColorEnabled reports whether output should be colorized given whether the
// output is a terminal.
func (c *Configuration) ColorEnabled(isTerminal bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return isTerminal
	}
}

// Default returns the built-in configuration.
func Default() *Configuration {
	return defaultConfig()
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
