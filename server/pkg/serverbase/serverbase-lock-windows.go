// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package serverbase

import (
	"github.com/alexflint/go-filemutex"
	"github.com/darshanparajuli/logcatreader/pkg/logutil"
)

func AcquireServerLock() (FDLock, error) {
	lockFileName := GetLockPath()
	logutil.Component("serverbase").Infof("acquiring lock on %s", lockFileName)
	fm, err := filemutex.New(lockFileName)
	if err != nil {
		return nil, err
	}
	if err := fm.TryLock(); err != nil {
		fm.Close()
		return nil, err
	}
	return fm, nil
}
