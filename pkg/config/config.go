// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"time"

	"github.com/darshanparajuli/logcatreader/pkg/base"
	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logfilter"
	"github.com/darshanparajuli/logcatreader/pkg/logsession"
	"github.com/darshanparajuli/logcatreader/pkg/utilfn"
	"github.com/go-playground/validator/v10"
	"github.com/kballard/go-shellquote"
)

const (
	ConfigJsonEnvName = ds.ConfigJsonEnvName
	ConfigFileEnvName = ds.ConfigFileEnvName
)

type Config struct {
	LogCommand     string   `json:"log_command" validate:"required"`
	Buffers        []string `json:"buffers" validate:"required,min=1,dive,oneof=main system radio events crash security kernel default all"`
	Capacity       int      `json:"capacity" validate:"gte=1,lte=10000000"`
	PollIntervalMs int64    `json:"poll_interval_ms" validate:"gte=1"`
	StopTimeoutMs  int64    `json:"stop_timeout_ms" validate:"gte=1"`
	SaveDir        string   `json:"save_dir" validate:"required"`
	CompressSaves  bool     `json:"compress_saves"`
	ListenAddr     string   `json:"listen_addr" validate:"required,hostname_port"`
	LogLevel       string   `json:"log_level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Dev            bool     `json:"dev,omitempty"`

	// uid->package sources for package-name filters, see logfilter.PackageSourceOpts
	PackagesList     string `json:"packages_list,omitempty"`
	PackagesCommand  string `json:"packages_command,omitempty"`
	PidUidCommand    string `json:"pid_uid_command,omitempty"`
	PackageRefreshMs int64  `json:"package_refresh_ms" validate:"gte=0"`
}

func getDefaultConfig(isDev bool) *Config {
	return &Config{
		LogCommand:       "logcat",
		Buffers:          utilfn.CopyArr(ds.DefaultBuffers),
		Capacity:         logsession.DefaultCapacity,
		PollIntervalMs:   logsession.DefaultPollInterval.Milliseconds(),
		StopTimeoutMs:    2000,
		PackageRefreshMs: logfilter.DefaultPackageRefresh.Milliseconds(),
		SaveDir:          base.GetSavedDir(isDev),
		ListenAddr:       "127.0.0.1:5105",
		LogLevel:         "info",
		Dev:              isDev,
	}
}

// DefaultConfig returns the default configuration for normal usage
func DefaultConfig() *Config {
	return getDefaultConfig(false)
}

var validate = validator.New()

// Validate checks field constraints and that log_command splits into at least one word.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.CommandArgs(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.PackageSourceOpts(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// CommandArgs splits log_command with shell quoting rules, e.g. `adb -s "emulator-5554" logcat`.
func (c *Config) CommandArgs() ([]string, error) {
	args, err := shellquote.Split(c.LogCommand)
	if err != nil {
		return nil, fmt.Errorf("log_command %q: %w", c.LogCommand, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("log_command is empty")
	}
	return args, nil
}

func (c *Config) PollInterval() time.Duration {
	ms := utilfn.BoundValue(c.PollIntervalMs, logsession.MinPollInterval.Milliseconds(), logsession.MaxPollInterval.Milliseconds())
	return time.Duration(ms) * time.Millisecond
}

func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMs) * time.Millisecond
}

// ControllerOpts converts the config into session controller options.
func (c *Config) ControllerOpts() (logsession.ControllerOpts, error) {
	args, err := c.CommandArgs()
	if err != nil {
		return logsession.ControllerOpts{}, err
	}
	return logsession.ControllerOpts{
		Command:      args,
		Buffers:      utilfn.DedupStrs(c.Buffers),
		Capacity:     c.Capacity,
		PollInterval: c.PollInterval(),
		StopTimeout:  c.StopTimeout(),
	}, nil
}

func splitOptional(field string, value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	args, err := shellquote.Split(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return args, nil
}

// PackageSourceOpts describes where package-name filters get their uid tables.
func (c *Config) PackageSourceOpts() (logfilter.PackageSourceOpts, error) {
	opts := logfilter.PackageSourceOpts{
		Refresh: time.Duration(c.PackageRefreshMs) * time.Millisecond,
	}
	if c.PackagesList != "" {
		opts.ListPath = utilfn.ExpandHomeDir(c.PackagesList)
	}
	var err error
	if opts.ListCommand, err = splitOptional("packages_command", c.PackagesCommand); err != nil {
		return opts, err
	}
	if opts.PidUidCommand, err = splitOptional("pid_uid_command", c.PidUidCommand); err != nil {
		return opts, err
	}
	return opts, nil
}

// MakePackageRefresher returns nil when no package source is configured.
func (c *Config) MakePackageRefresher() (*logfilter.PackageRefresher, error) {
	opts, err := c.PackageSourceOpts()
	if err != nil {
		return nil, err
	}
	if opts.IsEmpty() {
		return nil, nil
	}
	return logfilter.MakePackageRefresher(opts), nil
}
