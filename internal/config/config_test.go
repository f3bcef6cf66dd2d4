package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if !cfg.Indexing.ComputeChecksums {
		t.Error("ComputeChecksums = false, want true")
	}
	if got, want := len(cfg.Indexing.ChecksumAlgorithms), 2; got != want {
		t.Errorf("len(ChecksumAlgorithms) = %d, want %d", got, want)
	}
	if got, want := cfg.Indexing.MaxFileSizeForChecksum, int64(1<<30); got != want {
		t.Errorf("MaxFileSizeForChecksum = %d, want %d", got, want)
	}
	if !cfg.Database.AutoTag {
		t.Error("AutoTag = false, want true")
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v, want nil", err)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "bix.json", `{
  "backup_sources": [
    {"name": "docs", "type": "directory", "path": "/backups/docs"}
  ],
  "indexing": {
    "compute_checksums": true,
    "checksum_algorithms": ["sha256"],
    "skip_hidden_files": true,
    "skip_temp_files": true,
    "max_file_size_for_checksum": 1048576,
    "workers": 4
  },
  "database": {"auto_tag": false},
  "store": {"driver": "memory"}
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.BackupSources) != 1 || cfg.BackupSources[0].Name != "docs" {
		t.Errorf("BackupSources = %+v, want one source named docs", cfg.BackupSources)
	}
	if cfg.Indexing.HasAlgorithm("md5") {
		t.Error("HasAlgorithm(md5) = true, want false")
	}
	if !cfg.Indexing.HasAlgorithm("sha256") {
		t.Error("HasAlgorithm(sha256) = false, want true")
	}
	if cfg.Indexing.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Indexing.Workers)
	}
	if cfg.Database.AutoTag {
		t.Error("AutoTag = true, want false")
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "bix.toml", `
[[backup_sources]]
name = "docs"
type = "directory"
path = "/backups/docs"

[indexing]
compute_checksums = false
workers = 2

[store]
driver = "sqlite"
data_dir = "/var/lib/bix"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Indexing.ComputeChecksums {
		t.Error("ComputeChecksums = true, want false")
	}
	if cfg.Indexing.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Indexing.Workers)
	}
	if cfg.Store.DataDir != "/var/lib/bix" {
		t.Errorf("DataDir = %q, want /var/lib/bix", cfg.Store.DataDir)
	}
	// Unset sections keep their defaults.
	if !cfg.Database.AutoTag {
		t.Error("AutoTag = false, want default true")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("Load() error = nil, want error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"source without name", func(c *Config) {
			c.BackupSources = []SourceConfig{{Path: "/x"}}
		}, true},
		{"source without path", func(c *Config) {
			c.BackupSources = []SourceConfig{{Name: "x"}}
		}, true},
		{"unknown algorithm", func(c *Config) {
			c.Indexing.ChecksumAlgorithms = []string{"crc32"}
		}, true},
		{"algorithm case insensitive", func(c *Config) {
			c.Indexing.ChecksumAlgorithms = []string{"MD5", "SHA256"}
		}, false},
		{"non-positive cutoff", func(c *Config) {
			c.Indexing.MaxFileSizeForChecksum = 0
		}, true},
		{"zero workers", func(c *Config) {
			c.Indexing.Workers = 0
		}, true},
		{"unknown driver", func(c *Config) {
			c.Store.Driver = "oracle"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "bix.json")

	if err := Init(path, Default()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after Init error = %v", err)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}

	// A second Init must not overwrite.
	if err := Init(path, Default()); err == nil {
		t.Fatal("Init() on existing file error = nil, want error")
	}
}
