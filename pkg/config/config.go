// Package config provides configuration for dicomtonifti: the
// immutable conversion options and the optional YAML defaults file
// they can be seeded from.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Options is the configuration snapshot for one invocation. It is
// built once from the command line (seeded from the defaults file)
// and read-only afterwards.
type Options struct {
	// Compress gzips every output file.
	Compress bool

	// Recurse expands directories below the user-supplied ones.
	Recurse bool

	// FollowSymlinks allows recursion into symlinked directories.
	FollowSymlinks bool

	// NoSliceReordering keeps slices in acquisition order.
	NoSliceReordering bool

	// NoRowReordering and NoColumnReordering suppress in-plane axis
	// flips during the RAS conversion.
	NoRowReordering    bool
	NoColumnReordering bool

	// NoQForm and NoSForm omit the respective orientation record.
	NoQForm bool
	NoSForm bool

	// Batch converts every discovered series, deriving output paths
	// from metadata under the Output directory.
	Batch bool

	// Silent suppresses the echoing of output filenames.
	Silent bool

	// Verbose enables debug-level logging.
	Verbose bool

	// Output is the destination file, or directory in batch mode.
	Output string
}

// Config represents the defaults file loaded from YAML.
type Config struct {
	// Defaults seed the corresponding command-line flags; explicitly
	// set flags always win.
	Defaults struct {
		Compress       bool `yaml:"compress"`
		Recurse        bool `yaml:"recurse"`
		FollowSymlinks bool `yaml:"followSymlinks"`
		Batch          bool `yaml:"batch"`
		Silent         bool `yaml:"silent"`
		Verbose        bool `yaml:"verbose"`
	} `yaml:"defaults"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
