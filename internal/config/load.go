package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the search path.
const FileName = "ocean.yaml"

// EnvConfig names an environment variable holding a config path. It is
// consulted after -config and before the search path.
const EnvConfig = "FFT_OCEAN_CONFIG"

// Load builds the effective configuration (defaults, then the config file,
// then flags) and validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := resolveConfigPath(); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath returns the explicit -config path, then $FFT_OCEAN_CONFIG,
// then the first existing file of the search path.
func resolveConfigPath() string {
	if p := ConfigPath(); p != "" {
		return p
	}
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return findConfigFile()
}

// searchPath lists candidate config files in lookup order: the working
// directory, its configs/ folder, then the user config directory.
func searchPath() []string {
	return []string{
		FileName,
		filepath.Join("configs", FileName),
		filepath.Join(ConfigDir(), FileName),
	}
}

// findConfigFile returns the first existing regular file of the search path.
func findConfigFile() string {
	for _, path := range searchPath() {
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user directory holding ocean.yaml. It falls
// back to ./.fft-ocean when the OS reports no user config directory.
func ConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		abs, _ := filepath.Abs(".fft-ocean")
		return abs
	}
	return filepath.Join(base, "fft-ocean")
}

// loadFromFile merges a YAML file into cfg. Unknown keys are rejected so
// a misspelt parameter does not silently fall back to its default.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
