// Package config loads the tbl command configuration from tbl.yaml.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/sml"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "tbl.yaml"

// Format selects how documents are rendered.
type Format string

// Supported formats.
const (
	FormatDefault  Format = "default"
	FormatMinified Format = "minified"
	FormatAligned  Format = "aligned"
)

// Validate checks the format name.
func (f Format) Validate() error {
	switch f {
	case FormatDefault, FormatMinified, FormatAligned:
		return nil
	default:
		return fmt.Errorf("unknown format %q", string(f))
	}
}

// Config is the configuration of the tbl command.
type Config struct {
	// Format is used by cat and by convert when writing text documents.
	Format Format `yaml:"format"`

	// RightAligned selects, per column, right alignment for the aligned
	// format.
	RightAligned []bool `yaml:"right_aligned"`

	// Encoding of new text documents: utf-8, utf-16, utf-16le or utf-32.
	Encoding string `yaml:"encoding"`

	// ChunkSize is the read buffer size in bytes.
	ChunkSize int `yaml:"chunk_size"`

	// Null is printed for null values in tab separated output.
	Null string `yaml:"null"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	Validation ValidateConfig `yaml:"validate"`

	Watch WatchConfig `yaml:"watch"`
}

// ValidateConfig configures the validate command.
type ValidateConfig struct {
	// Concurrency is the number of files checked at once.
	Concurrency int `yaml:"concurrency"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	// RatePerSec limits how often a modified document is read again.
	RatePerSec float64 `yaml:"rate_per_sec"`

	// Burst is the number of reads allowed back to back.
	Burst int `yaml:"burst"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Format:     FormatDefault,
		Encoding:   reliabletxt.UTF8.String(),
		ChunkSize:  sml.DefaultChunkSize,
		Null:       "-",
		LogLevel:   "info",
		Validation: ValidateConfig{Concurrency: 4},
		Watch:      WatchConfig{RatePerSec: 4, Burst: 1},
	}
}

// TextEncoding returns the parsed Encoding field.
func (c *Config) TextEncoding() (reliabletxt.Encoding, error) {
	return reliabletxt.ParseEncoding(c.Encoding)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Format.Validate(); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	if _, err := c.TextEncoding(); err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	if c.ChunkSize <= 0 {
		return errors.New("chunk_size must be positive")
	}
	if c.Validation.Concurrency <= 0 {
		return errors.New("validate.concurrency must be positive")
	}
	if c.Watch.RatePerSec <= 0 {
		return errors.New("watch.rate_per_sec must be positive")
	}
	if c.Watch.Burst <= 0 {
		return errors.New("watch.burst must be positive")
	}
	return nil
}

// Load reads the configuration at path on top of the defaults. A missing
// file is not an error when optional is true.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided config path
	if err != nil {
		if !optional || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644) //nolint:gosec // G306: configuration is not secret
}
