package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory.
func Load(fsys afero.Fs, path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	configContents, err := afero.ReadFile(fsys, filepath.Join(path, ConfigurationName))
	if err != nil {
		return nil, err
	}
	var out Configuration
	if err := yaml.UnmarshalStrict(configContents, &out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigurationName, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigurationName, err)
	}
	out.configFs = fsys
	out.configDir = path
	return &out, nil
}

// LoadOrDefault loads the configuration from the directory, falling back to
// the built-in configuration when the directory has none.
func LoadOrDefault(fsys afero.Fs, path string) (*Configuration, error) {
	cfg, err := Load(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		cfg.configFs = fsys
		cfg.configDir = path
		return cfg, nil
	}
	return cfg, err
}

// Initialize writes the default configuration into dir, leaving any existing
// configuration alone.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	return initialize(afero.NewOsFs(), dir, logger, false)
}

// Reinitialize replaces the configuration in dir with the default one. An
// existing file is kept next to it with a BackupSuffix.
func Reinitialize(dir string, logger *log.Logger) (*Configuration, error) {
	return initialize(afero.NewOsFs(), dir, logger, true)
}

func initialize(fsys afero.Fs, dir string, logger *log.Logger, overwrite bool) (*Configuration, error) {
	if err := fsys.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, ConfigurationName)
	exists, err := afero.Exists(fsys, configPath)
	switch {
	case err != nil:
		return nil, err
	case exists && !overwrite:
		logger.Printf("%s already exists, skipping", configPath)
		return Load(fsys, dir)
	case exists:
		backup := configPath + BackupSuffix
		logger.Printf("moving %s to %s", configPath, backup)
		if err := fsys.Rename(configPath, backup); err != nil {
			return nil, err
		}
	}

	logger.Printf("writing %s", configPath)
	if err := afero.WriteFile(fsys, configPath, defaultConfigData, 0600); err != nil {
		return nil, err
	}

	return Load(fsys, dir)
}
