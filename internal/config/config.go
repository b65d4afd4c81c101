// Package config holds the runtime configuration for rnabatch: directory
// layout, batch sizing, memory ceiling, feature-extraction flags, logging,
// and the optional metrics listener. Configuration is loaded from a YAML
// file and overridden by CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults applied by New when the config file leaves a field unset.
const (
	DefaultChunkSize   = 10
	DefaultMaxMemoryGB = 16.0
	DefaultDataDir     = "data"
	DefaultOutDir      = "data/processed"
	DefaultStateDir    = "data/processed/state"
	DefaultLogLevel    = "info"
)

// bytesPerGB converts the human-facing GB ceiling to bytes.
const bytesPerGB = 1 << 30

// Common configuration errors.
var (
	ErrChunkSizeInvalid   = errors.New("chunk size must be at least 1")
	ErrMemoryLimitInvalid = errors.New("max memory must be >= 0 (0 disables the ceiling)")
	ErrNoFeatureFamilies  = errors.New("at least one feature family must be enabled")
	ErrPseudocountInvalid = errors.New("pseudocount must be >= 0")
)

// BatchConfig controls chunking and admission control for a run.
type BatchConfig struct {
	// ChunkSize is the number of targets processed between checkpoints.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// MaxMemoryGB is the advisory memory ceiling. Items are skipped, not
	// killed, when usage is at or above it. 0 disables the gate.
	MaxMemoryGB float64 `yaml:"max_memory_gb" json:"max_memory_gb"`
}

// Validate checks the batch configuration.
func (b BatchConfig) Validate() error {
	if b.ChunkSize < 1 {
		return fmt.Errorf("%w: got %d", ErrChunkSizeInvalid, b.ChunkSize)
	}
	if b.MaxMemoryGB < 0 {
		return fmt.Errorf("%w: got %.2f", ErrMemoryLimitInvalid, b.MaxMemoryGB)
	}
	return nil
}

// MaxMemoryBytes returns the ceiling in bytes, 0 when disabled.
func (b BatchConfig) MaxMemoryBytes() uint64 {
	if b.MaxMemoryGB <= 0 {
		return 0
	}
	return uint64(b.MaxMemoryGB * bytesPerGB)
}

// ExtractConfig selects which feature families a run produces. The values
// are persisted with the checkpoint and must match on resume.
type ExtractConfig struct {
	// Thermo enables thermodynamic sequence features.
	Thermo bool `yaml:"thermo" json:"thermo"`
	// MI enables mutual-information features over the target's MSA.
	MI bool `yaml:"mi" json:"mi"`
	// Pseudocount for the MI frequency counts. Negative means "adaptive":
	// chosen from the MSA depth at computation time.
	Pseudocount float64 `yaml:"pseudocount" json:"pseudocount"`
}

// Validate checks the extraction configuration.
func (e ExtractConfig) Validate() error {
	if !e.Thermo && !e.MI {
		return ErrNoFeatureFamilies
	}
	if e.Pseudocount < 0 && !e.AdaptivePseudocount() {
		return fmt.Errorf("%w: got %.3f", ErrPseudocountInvalid, e.Pseudocount)
	}
	return nil
}

// AdaptivePseudocount reports whether the pseudocount should be derived
// from MSA depth. The sentinel value -1 requests adaptive selection.
func (e ExtractConfig) AdaptivePseudocount() bool {
	return e.Pseudocount == AdaptivePseudocount
}

// AdaptivePseudocount is the sentinel requesting depth-based pseudocount
// selection.
const AdaptivePseudocount = -1.0

// LoggingConfig controls log level and optional file output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// File, when set, receives JSON logs in addition to the console.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	// Listen is the host:port for the /metrics endpoint. Empty disables it.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`
}

// Config is the root configuration document.
type Config struct {
	// DataDir holds raw inputs (sequences CSV, MSA FASTA files).
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// OutDir receives feature artifacts.
	OutDir string `yaml:"out_dir" json:"out_dir"`
	// StateDir holds checkpoint records and run locks.
	StateDir string `yaml:"state_dir" json:"state_dir"`

	Batch   BatchConfig   `yaml:"batch" json:"batch"`
	Extract ExtractConfig `yaml:"extract" json:"extract"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		DataDir:  DefaultDataDir,
		OutDir:   DefaultOutDir,
		StateDir: DefaultStateDir,
		Batch: BatchConfig{
			ChunkSize:   DefaultChunkSize,
			MaxMemoryGB: DefaultMaxMemoryGB,
		},
		Extract: ExtractConfig{
			Thermo:      true,
			MI:          true,
			Pseudocount: AdaptivePseudocount,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load reads path into a Config layered over defaults. A missing file is
// not an error; callers get plain defaults back.
func Load(path string) (*Config, error) {
	cfg := New()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the whole configuration document.
func (c *Config) Validate() error {
	if err := c.Batch.Validate(); err != nil {
		return err
	}
	return c.Extract.Validate()
}

// FeaturesDir returns the directory feature artifacts are written to.
func (c *Config) FeaturesDir() string {
	return filepath.Join(c.OutDir, "features")
}
