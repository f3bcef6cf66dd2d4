package app

import (
	"path/filepath"
	"testing"
)

func TestGetDefaultsFromEnv(t *testing.T) {
	t.Setenv("BIX_CONFIG_PATH", "/tmp/custom/bix.json")
	t.Setenv("BIX_HOME", "/tmp/custom/bix")

	defaults, err := GetDefaults()
	if err != nil {
		t.Fatalf("GetDefaults() error = %v", err)
	}

	if got, want := defaults["config_path"], "/tmp/custom/bix.json"; got != want {
		t.Errorf("config_path = %q, want %q", got, want)
	}
	if got, want := defaults["base_dir"], "/tmp/custom/bix"; got != want {
		t.Errorf("base_dir = %q, want %q", got, want)
	}
	if got, want := defaults["data_dir"], filepath.Join("/tmp/custom/bix", "data"); got != want {
		t.Errorf("data_dir = %q, want %q", got, want)
	}
	if got, want := defaults["log_dir"], filepath.Join("/tmp/custom/bix", "log"); got != want {
		t.Errorf("log_dir = %q, want %q", got, want)
	}
}

func TestGetDefaultsFallsBackToHome(t *testing.T) {
	t.Setenv("BIX_CONFIG_PATH", "")
	t.Setenv("BIX_HOME", "")
	t.Setenv("HOME", "/home/someone")

	defaults, err := GetDefaults()
	if err != nil {
		t.Fatalf("GetDefaults() error = %v", err)
	}

	if got, want := defaults["config_path"], "/home/someone/.config/bix.json"; got != want {
		t.Errorf("config_path = %q, want %q", got, want)
	}
	if got, want := defaults["base_dir"], "/home/someone/.local/share/bix"; got != want {
		t.Errorf("base_dir = %q, want %q", got, want)
	}
}
