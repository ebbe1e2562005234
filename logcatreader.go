// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logcatreader

import (
	"github.com/darshanparajuli/logcatreader/pkg/config"
	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logfile"
	"github.com/darshanparajuli/logcatreader/pkg/logsession"
)

// Re-exported so callers can write logcatreader.Config, logcatreader.Record, etc.
type Config = config.Config
type Record = ds.Record
type FilterSpec = ds.FilterSpec
type FilterGroup = ds.FilterGroup
type Controller = logsession.Controller

// DefaultConfig returns the built-in defaults (logcat, main/system/crash buffers).
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// LoadConfig reads the config from the environment or the nearest logcatreader.json.
func LoadConfig() (*Config, error) {
	return config.LoadConfig()
}

// New validates cfg and returns an idle controller for it. A nil cfg means DefaultConfig.
func New(cfg *Config) (*Controller, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.ControllerOpts()
	if err != nil {
		return nil, err
	}
	return logsession.MakeController(opts), nil
}

// LoadFile reads a saved record file (plain or .zst).
func LoadFile(path string) ([]Record, error) {
	return logfile.Load(path)
}
