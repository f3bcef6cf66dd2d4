package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - BIX_CONFIG_PATH: config file location (default: ~/.config/bix.json)
//   - BIX_HOME: base directory for bix data (default: ~/.local/share/bix)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"data_dir":    filepath.Join(baseDir, "data"),
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking BIX_CONFIG_PATH env var
// first, then falling back to the default ~/.config/bix.json.
func getConfigPath() (string, error) {
	if path := os.Getenv("BIX_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "bix.json"), nil
}

// getBaseDir returns the base directory for bix data, checking BIX_HOME env
// var first, then falling back to the XDG default ~/.local/share/bix.
func getBaseDir() (string, error) {
	if path := os.Getenv("BIX_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "bix"), nil
}
