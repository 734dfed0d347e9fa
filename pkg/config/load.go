package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes YAML on top of the defaults and expands ${VAR} references
// from the environment in path-like fields.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.interpolate(os.Getenv)
	return c, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.FilePath = path
	return c, nil
}

// Save writes c to path as YAML.
func Save(c *Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) interpolate(getenv func(string) string) {
	expand := func(s string) string { return os.Expand(s, getenv) }
	c.Input = expand(c.Input)
	c.Socket = expand(c.Socket)
	c.Device.ADB = expand(c.Device.ADB)
	c.Resolver.Path = expand(c.Resolver.Path)
	c.Resolver.Lib = expand(c.Resolver.Lib)
	for i, a := range c.Resolver.Args {
		c.Resolver.Args[i] = expand(a)
	}
}

// Normalize replaces values that are tolerated but unusable with their
// defaults, logging a warning for each.
func (c *Config) Normalize(logger *slog.Logger) {
	if c.Package == "" {
		logger.Warn("no package name provided, using default", "package", DefaultPackage)
		c.Package = DefaultPackage
	}
	if c.Verbosity < 0 || c.Verbosity > 3 {
		logger.Warn("verbosity should be in the range 0..3, using 0", "verbosity", c.Verbosity)
		c.Verbosity = 0
	}
	if c.Resolver.Target == "" {
		c.Resolver.Target = DefaultTarget
	}
	if c.Color == "" {
		c.Color = ColorAuto
	}
}

// LogLevel maps verbosity to the level of droidsym's own diagnostics.
func LogLevel(verbosity int) slog.Level {
	switch verbosity {
	case 1:
		return slog.LevelWarn
	case 2:
		return slog.LevelInfo
	case 3:
		return slog.LevelDebug
	default:
		return slog.LevelError
	}
}
