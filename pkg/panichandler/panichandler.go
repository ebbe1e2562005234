// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package panichandler

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/darshanparajuli/logcatreader/pkg/logutil"
)

var numPanics atomic.Int64

// PanicHandler converts a recovered value into an error and logs the stack.
// Use as: defer func() { err = panichandler.PanicHandler("name", recover()) }()
func PanicHandler(debugStr string, recoverVal any) error {
	if recoverVal == nil {
		return nil
	}
	numPanics.Add(1)
	logutil.Component("panic").WithField("where", debugStr).Errorf("%v\n%s", recoverVal, string(debug.Stack()))
	if err, ok := recoverVal.(error); ok {
		return fmt.Errorf("panic in %s: %w", debugStr, err)
	}
	return fmt.Errorf("panic in %s: %v", debugStr, recoverVal)
}

// NumPanics returns how many panics have been recovered since process start.
func NumPanics() int64 {
	return numPanics.Load()
}
