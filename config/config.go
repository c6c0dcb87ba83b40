// Package config handles scmvm.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/chazu/scmvm/vm"
)

// FileName is the configuration file looked up in a project directory.
const FileName = "scmvm.toml"

// Config represents a scmvm.toml configuration.
type Config struct {
	Script  Script  `toml:"script"`
	Engine  Engine  `toml:"engine"`
	Log     Log     `toml:"log"`
	Save    Save    `toml:"save"`
	Inspect Inspect `toml:"inspect"`

	// Dir is the directory containing the scmvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Script selects the container to run.
type Script struct {
	Path string `toml:"path"`
}

// Engine configures the machine.
type Engine struct {
	TickMS      int    `toml:"tick-ms"`
	Bounds      string `toml:"bounds"`
	TraceThread string `toml:"trace-thread"`
}

// Log configures the root logger.
type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Save configures the snapshot store.
type Save struct {
	DB   string `toml:"db"`
	Slot string `toml:"slot"`
}

// Inspect configures the inspection service.
type Inspect struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no scmvm.toml exists.
func Default() *Config {
	c := &Config{Dir: "."}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Script.Path == "" {
		c.Script.Path = "main.scm"
	}
	if c.Engine.TickMS <= 0 {
		c.Engine.TickMS = 16
	}
	if c.Engine.Bounds == "" {
		c.Engine.Bounds = vm.BoundsLenient.String()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Save.DB == "" {
		c.Save.DB = filepath.Join(".scmvm", "saves.db")
	}
	if c.Save.Slot == "" {
		c.Save.Slot = "default"
	}
}

// Load parses a scmvm.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	c.applyDefaults()
	if _, err := c.BoundsPolicy(); err != nil {
		return nil, fmt.Errorf("%s: engine: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a scmvm.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// ScriptPath returns the container path resolved against Dir.
func (c *Config) ScriptPath() string {
	return c.resolve(c.Script.Path)
}

// SaveDBPath returns the snapshot database path resolved against Dir.
func (c *Config) SaveDBPath() string {
	return c.resolve(c.Save.DB)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// BoundsPolicy parses the configured bounds policy.
func (c *Config) BoundsPolicy() (vm.BoundsPolicy, error) {
	return vm.ParseBoundsPolicy(c.Engine.Bounds)
}

// NewLogger builds a zap logger from the log section.
func (l Log) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", l.Level, err)
	}

	cfg := zap.NewProductionConfig()
	if l.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level
	return cfg.Build()
}
