// Package config loads the optional YAML settings file. Command-line flags
// are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/srodi/threadtop/pkg/types"
	"github.com/srodi/threadtop/pkg/view"
)

const (
	DefaultInterval = 10 * time.Second
	MinInterval     = time.Second
)

// Config is the serialised form of the user settings.
type Config struct {
	Interval    time.Duration `yaml:"interval"`
	Limit       int           `yaml:"limit"`
	Mode        string        `yaml:"mode"`
	Width       int           `yaml:"width"`
	Filter      string        `yaml:"filter"`
	Hints       bool          `yaml:"hints"`
	NoClear     bool          `yaml:"noClear"`
	MetricsAddr string        `yaml:"metricsAddr"`
	Warnings    view.Warnings `yaml:"warnings"`
}

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		Interval: DefaultInterval,
		Limit:    types.DefaultTopK,
		Mode:     types.ModeCPU.String(),
		Warnings: view.DefaultWarnings,
	}
}

var userConfigDir = os.UserConfigDir

// Path returns the default location, $XDG_CONFIG_HOME/threadtop/config.yaml
// on Linux.
func Path() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "threadtop", "config.yaml"), nil
}

// Load reads path over the defaults. An empty path means the default
// location, where a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = Path(); err != nil {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	return cfg.Normalize()
}

// Normalize applies the same fallbacks to file and flag values.
func (c Config) Normalize() (Config, error) {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < MinInterval {
		c.Interval = MinInterval
	}
	if c.Limit <= 0 {
		c.Limit = 1
	}
	if c.Width < 0 {
		c.Width = 0
	}
	c.Filter = strings.ToLower(strings.TrimSpace(c.Filter))
	if c.Mode == "" {
		c.Mode = types.ModeCPU.String()
	}
	m, err := types.ParseMode(c.Mode)
	if err != nil {
		return c, err
	}
	c.Mode = m.String()
	return c, nil
}

// ParsedMode returns the mode of a normalised Config.
func (c Config) ParsedMode() types.Mode {
	m, err := types.ParseMode(c.Mode)
	if err != nil {
		return types.ModeCPU
	}
	return m
}
