package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FileName is the workspace configuration file at the repository root.
const FileName = "rpf.yaml"

const (
	DefaultMaxFileBytes   = 5 << 20
	DefaultBatchSize      = 100
	DefaultFuzzyTolerance = "0.01"
	DefaultServerAddr     = "127.0.0.1:3000"
	DefaultAuthorName     = "rpf"
	DefaultAuthorEmail    = "rpf@localhost"
)

// Config represents the top-level rpf.yaml configuration.
type Config struct {
	Ledger LedgerConfig `yaml:"ledger"`
	Import ImportConfig `yaml:"import"`
	Server ServerConfig `yaml:"server"`
	Git    GitConfig    `yaml:"git"`
}

// LedgerConfig names the ledger kept in this workspace.
type LedgerConfig struct {
	Name string `yaml:"name"`
}

// ImportConfig controls file limits and duplicate detection.
type ImportConfig struct {
	MaxFileBytes   int64  `yaml:"max_file_bytes"`
	BatchSize      int    `yaml:"batch_size"`
	FuzzyTolerance string `yaml:"fuzzy_tolerance"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads an rpf.yaml file from disk and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Normalize()
	if _, err := decimal.NewFromString(cfg.Import.FuzzyTolerance); err != nil {
		return nil, fmt.Errorf("parsing import.fuzzy_tolerance %q: %w", cfg.Import.FuzzyTolerance, err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default(ledgerName string) *Config {
	cfg := &Config{
		Ledger: LedgerConfig{Name: ledgerName},
		Git:    GitConfig{AutoCommit: true},
	}
	cfg.Normalize()
	return cfg
}

// Normalize replaces missing or non-positive values with defaults.
func (c *Config) Normalize() {
	if c.Import.MaxFileBytes <= 0 {
		c.Import.MaxFileBytes = DefaultMaxFileBytes
	}
	if c.Import.BatchSize <= 0 {
		c.Import.BatchSize = DefaultBatchSize
	}
	if c.Import.FuzzyTolerance == "" {
		c.Import.FuzzyTolerance = DefaultFuzzyTolerance
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Git.AuthorName == "" {
		c.Git.AuthorName = DefaultAuthorName
	}
	if c.Git.AuthorEmail == "" {
		c.Git.AuthorEmail = DefaultAuthorEmail
	}
}

// Tolerance returns the fuzzy duplicate tolerance. An unparseable value
// yields the default.
func (c *Config) Tolerance() decimal.Decimal {
	d, err := decimal.NewFromString(c.Import.FuzzyTolerance)
	if err != nil || d.IsNegative() {
		return decimal.RequireFromString(DefaultFuzzyTolerance)
	}
	return d
}
