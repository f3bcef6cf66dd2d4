// Package config loads indexer configuration. JSON is the primary format;
// files ending in .toml are decoded as TOML with the same shape.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for bix.
type Config struct {
	BackupSources []SourceConfig `json:"backup_sources" toml:"backup_sources"`
	Indexing      IndexingConfig `json:"indexing" toml:"indexing"`
	Database      TaggingConfig  `json:"database" toml:"database"`
	Store         StoreConfig    `json:"store" toml:"store"`
}

// SourceConfig is one configured backup root.
type SourceConfig struct {
	Name        string `json:"name" toml:"name"`
	Type        string `json:"type" toml:"type"`
	Path        string `json:"path" toml:"path"`
	Description string `json:"description" toml:"description"`
}

// IndexingConfig controls the scanner and extractor.
type IndexingConfig struct {
	ComputeChecksums       bool     `json:"compute_checksums" toml:"compute_checksums"`
	ChecksumAlgorithms     []string `json:"checksum_algorithms" toml:"checksum_algorithms"`
	SkipHiddenFiles        bool     `json:"skip_hidden_files" toml:"skip_hidden_files"`
	SkipTempFiles          bool     `json:"skip_temp_files" toml:"skip_temp_files"`
	MaxFileSizeForChecksum int64    `json:"max_file_size_for_checksum" toml:"max_file_size_for_checksum"`
	ExcludedExtensions     []string `json:"excluded_extensions" toml:"excluded_extensions"`
	// BatchSize is reserved for batched catalog writes.
	BatchSize int `json:"batch_size" toml:"batch_size"`
	// Workers bounds the extractor pool; 1 = sequential.
	Workers int `json:"workers" toml:"workers"`
}

// TaggingConfig carries the auto-tag switches. The section is named
// "database" for compatibility with the existing config files.
type TaggingConfig struct {
	AutoTag bool `json:"auto_tag" toml:"auto_tag"`
	// ContentPreviewLength is reserved; the checksum/tag path does not use it.
	ContentPreviewLength int `json:"content_preview_length" toml:"content_preview_length"`
}

// StoreConfig selects and locates the catalog store. Driver determines which
// of the remaining fields apply.
type StoreConfig struct {
	Driver string `json:"driver" toml:"driver"` // "sqlite", "postgres", or "memory"

	// DataDir holds the sqlite database file (driver=sqlite).
	DataDir string `json:"data_dir,omitempty" toml:"data_dir"`

	// PostgreSQL connection parameters (driver=postgres). The password is
	// never stored in config; it comes from a flag, env, or prompt.
	Host string `json:"host,omitempty" toml:"host"`
	Port int    `json:"port,omitempty" toml:"port"`
	Name string `json:"name,omitempty" toml:"name"`
	User string `json:"user,omitempty" toml:"user"`
}

// Default returns the configuration the original deployment ships with.
func Default() *Config {
	return &Config{
		Indexing: IndexingConfig{
			ComputeChecksums:       true,
			ChecksumAlgorithms:     []string{"md5", "sha256"},
			SkipHiddenFiles:        true,
			SkipTempFiles:          true,
			MaxFileSizeForChecksum: 1 << 30, // 1 GiB
			ExcludedExtensions:     []string{".tmp", ".log", ".cache"},
			BatchSize:              1000,
			Workers:                1,
		},
		Database: TaggingConfig{
			AutoTag:              true,
			ContentPreviewLength: 500,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Host:   "localhost",
			Port:   5432,
			Name:   "backup_catalog",
			User:   "postgres",
		},
	}
}

// Load reads the config file at path over the defaults and validates it.
// The decoder is chosen by extension: .toml files are TOML, everything else
// is JSON.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decoding config %s: %w", path, err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decoding config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the constraints the pipeline relies on. Violations are
// configuration errors and surface immediately.
func (c *Config) Validate() error {
	for i, src := range c.BackupSources {
		if src.Name == "" {
			return fmt.Errorf("backup_sources[%d]: name is required", i)
		}
		if src.Path == "" {
			return fmt.Errorf("backup_sources[%d] (%s): path is required", i, src.Name)
		}
	}

	for _, alg := range c.Indexing.ChecksumAlgorithms {
		switch strings.ToLower(alg) {
		case "md5", "sha256":
		default:
			return fmt.Errorf("unknown checksum algorithm %q (supported: md5, sha256)", alg)
		}
	}
	if c.Indexing.MaxFileSizeForChecksum <= 0 {
		return fmt.Errorf("max_file_size_for_checksum must be positive")
	}
	if c.Indexing.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unknown store driver %q (supported: sqlite, postgres, memory)", c.Store.Driver)
	}
	return nil
}

// HasAlgorithm reports whether the named checksum algorithm is requested.
func (c *IndexingConfig) HasAlgorithm(name string) bool {
	for _, alg := range c.ChecksumAlgorithms {
		if strings.EqualFold(alg, name) {
			return true
		}
	}
	return false
}

// Init writes cfg as indented JSON to path, failing if the file exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
