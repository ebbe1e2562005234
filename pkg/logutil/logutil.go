// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logutil configures the process-wide logrus logger and provides logging helpers.
package logutil

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// loggedKeys tracks which keys have already been logged
	loggedKeys = make(map[string]struct{})
	// mutex protects access to the loggedKeys map
	mutex sync.Mutex
)

var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Configure sets the output and level of the shared logger.
// An unparseable level falls back to info.
func Configure(out io.Writer, level string) {
	if out != nil {
		logger.SetOutput(out)
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	return logger
}

// Component returns an entry tagged with the given component name.
func Component(name string) *logrus.Entry {
	return logger.WithField("component", name)
}

// shouldLog checks if a message with the given key should be logged
// and marks the key as logged if it hasn't been seen before.
func shouldLog(key string) bool {
	mutex.Lock()
	defer mutex.Unlock()
	if _, exists := loggedKeys[key]; exists {
		return false
	}
	loggedKeys[key] = struct{}{}
	return true
}

// ResetOnce forgets a key so the next LogfOnce with it logs again.
func ResetOnce(key string) {
	mutex.Lock()
	defer mutex.Unlock()
	delete(loggedKeys, key)
}

// LogfOnce logs a warning with the given key only once.
// If a message with the same key has already been logged, this function does nothing.
func LogfOnce(entry *logrus.Entry, key string, format string, args ...interface{}) {
	if !shouldLog(key) {
		return
	}
	if entry == nil {
		entry = logrus.NewEntry(logger)
	}
	entry.Warnf(format, args...)
}
