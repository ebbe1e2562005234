// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package base

import (
	"os"
	"path/filepath"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/utilfn"
)

// Home directory paths
const LogcatReaderHome = "~/.config/logcatreader"
const DevLogcatReaderHome = "~/.config/logcatreader-dev"

const SavedDirName = "saved"
const ServerLockFileName = "logcatreader.lock"

const LogcatReaderVersion = "v0.3.0"

// GetHomeDir returns the expanded home directory, honoring LOGCATREADER_HOME.
func GetHomeDir(isDev bool) string {
	if home := os.Getenv(ds.HomeEnvName); home != "" {
		return utilfn.ExpandHomeDir(home)
	}
	if isDev {
		return utilfn.ExpandHomeDir(DevLogcatReaderHome)
	}
	return utilfn.ExpandHomeDir(LogcatReaderHome)
}

func GetSavedDir(isDev bool) string {
	return filepath.Join(GetHomeDir(isDev), SavedDirName)
}

func GetServerLockPath(isDev bool) string {
	return filepath.Join(GetHomeDir(isDev), ServerLockFileName)
}

// EnsureHomeDir creates the home directory if needed.
func EnsureHomeDir(isDev bool) error {
	return os.MkdirAll(GetHomeDir(isDev), 0755)
}
