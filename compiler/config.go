package compiler

import (
	"fmt"
	"os"
	"slices"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config tunes a normalization run. The zero value runs every pass
// without verification or dumps.
type Config struct {
	// Verify checks the structural invariants of the tree after each
	// pass.
	Verify bool `yaml:"verify"`

	// DumpBefore and DumpAfter name the passes around which the tree is
	// printed to the dump writer.
	DumpBefore []string `yaml:"dump_before"`
	DumpAfter  []string `yaml:"dump_after"`

	// DumpFunc restricts dumps to the function with this name.
	DumpFunc string `yaml:"dump_func"`

	// Skip names passes that are not run. Skipping passes produces trees
	// that later stages may not accept; it exists for debugging.
	Skip []string `yaml:"skip"`

	// LogLevel is the minimum level of the logger created by the command
	// line tool.
	LogLevel string `yaml:"log_level"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c Config) validate() error {
	for _, list := range [][]string{c.DumpBefore, c.DumpAfter, c.Skip} {
		for _, name := range list {
			if !slices.Contains(PassNames(), name) {
				return fmt.Errorf("unknown pass %q", name)
			}
		}
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c Config) Level() zapcore.Level {
	l, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func (c Config) skips(pass string) bool { return slices.Contains(c.Skip, pass) }
