// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package serverbase

import (
	"os"

	"github.com/darshanparajuli/logcatreader/pkg/base"
)

// LogcatReaderVersion is the current version of logcatreader
// This gets set from main-logcatreader.go during initialization
var LogcatReaderVersion = base.LogcatReaderVersion

// LogcatReaderBuildTime is the build timestamp
// This gets set from main-logcatreader.go during initialization
var LogcatReaderBuildTime = ""

const DevEnvName = "LOGCATREADER_DEV"

type FDLock interface {
	Close() error
}

// IsDev returns true if the server is running in development mode
func IsDev() bool {
	return os.Getenv(DevEnvName) == "1"
}

func GetHome() string {
	return base.GetHomeDir(IsDev())
}

func GetLockPath() string {
	return base.GetServerLockPath(IsDev())
}

func EnsureHomeDir() error {
	return base.EnsureHomeDir(IsDev())
}
