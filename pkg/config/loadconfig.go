// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const ConfigFileName = "logcatreader.json"

// LoadConfig returns the defaults overlaid with the first config source found:
// the JSON env var, the config-file env var, then logcatreader.json in the working
// directory or one of its parents. The result is validated.
func LoadConfig() (*Config, error) {
	cfg, err := loadConfigOverlay(DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigOverlay(base *Config) (*Config, error) {
	// 1. Check explicit JSON env var first
	if configJson := os.Getenv(ConfigJsonEnvName); configJson != "" {
		if err := json.Unmarshal([]byte(configJson), base); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", ConfigJsonEnvName, err)
		}
		return base, nil
	}

	// 2. Check explicit config file env var
	if configFile := os.Getenv(ConfigFileEnvName); configFile != "" {
		found, err := tryLoadConfig(configFile, base)
		if err != nil {
			return nil, err
		}
		if !found {
			// explicitly set but missing is an error
			return nil, fmt.Errorf("config file %s: %w", configFile, os.ErrNotExist)
		}
		return base, nil
	}

	// 3. Walk up directories looking for a config file (includes current dir)
	if _, err := findConfigInParents(base); err != nil {
		return nil, err
	}
	return base, nil
}

func findConfigInParents(cfg *Config) (bool, error) {
	dir, err := os.Getwd()
	if err != nil {
		return false, err
	}

	homeDir, _ := os.UserHomeDir()

	for {
		path := filepath.Join(dir, ConfigFileName)
		found, err := tryLoadConfig(path, cfg)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}

		// Stop at project root markers
		if hasProjectRoot(dir) {
			break
		}

		// Stop at home directory
		if homeDir != "" && dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir || parent == "/" {
			break
		}

		dir = parent
	}

	return false, nil
}

func hasProjectRoot(dir string) bool {
	markers := []string{".git", "go.mod"}
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// tryLoadConfig unmarshals path into cfg. A missing file is reported as not found, not an error.
func tryLoadConfig(path string, cfg *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return true, nil
}
