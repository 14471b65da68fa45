// Package config provides the on-disk configuration for the chanjing SDK.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// File is the user configuration stored at ~/.chanjing/config.toml.
// Every field is optional; explicit client configuration and environment
// variables take priority over it.
type File struct {
	AppID     string `toml:"app_id"`
	SecretKey string `toml:"secret_key"`
	BaseURL   string `toml:"base_url"`
	CacheDir  string `toml:"cache_dir"`
}

// DefaultDir returns the per-user SDK directory (~/.chanjing).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".chanjing")
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.toml")
}

// DefaultCacheDir returns the default cache directory.
func DefaultCacheDir() string {
	return filepath.Join(DefaultDir(), "cache")
}

// LoadFile reads and parses a TOML configuration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg File

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes cfg to path, creating the parent directory if needed.
func Save(path string, cfg *File) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dirErr := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create config directory: %w", dirErr)
	}

	writeErr := os.WriteFile(path, data, filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, writeErr)
	}

	return nil
}
