// Package config loads the optional atomicfu.yaml project file.
//
// Command-line flags override file values, which override defaults. The
// merge itself happens in the CLI; this package only produces the file layer.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/roach88/atomicfu/internal/library"
)

// FileName is looked up in the working directory when no path is given.
const FileName = "atomicfu.yaml"

// Config is the project configuration.
type Config struct {
	// Library is a runtime surface file overriding the embedded one.
	Library string `yaml:"library"`
	// RuntimeConstraint is a semver constraint the surface version must meet.
	RuntimeConstraint string `yaml:"runtime_constraint"`
	// Journal is the SQLite run journal path; empty disables journaling.
	Journal string `yaml:"journal"`
	// Jobs bounds concurrent passes; zero means one per unit.
	Jobs int `yaml:"jobs"`
	// Output is the directory for rendered units, or "-" for stdout.
	Output string `yaml:"output"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		RuntimeConstraint: library.DefaultConstraint,
		Output:            "-",
	}
}

// Load reads the configuration at path over the defaults. An empty path
// looks for FileName in the working directory and falls back to Default
// when it is absent; an explicit path must exist.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = FileName
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes a configuration document over the defaults. Unknown keys
// are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and the constraint syntax.
func (c Config) Validate() error {
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must be >= 0, got %d", c.Jobs)
	}
	if c.RuntimeConstraint != "" {
		if _, err := semver.NewConstraint(c.RuntimeConstraint); err != nil {
			return fmt.Errorf("runtime_constraint %q: %w", c.RuntimeConstraint, err)
		}
	}
	return nil
}

// resolvePaths makes relative file paths relative to the config file.
func (c *Config) resolvePaths(dir string) {
	rel := func(p *string) {
		if *p != "" && *p != "-" && *p != ":memory:" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	rel(&c.Library)
	rel(&c.Journal)
	rel(&c.Output)
}
