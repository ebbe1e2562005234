// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logcatreader

import (
	"testing"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
)

func TestNewDefault(t *testing.T) {
	ctrl, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ctrl.Close()
	if ctrl.Status() != ds.StatusIdle {
		t.Errorf("Expected status %q, got %q", ds.StatusIdle, ctrl.Status())
	}
}

func TestNewInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buffers = []string{"nosuchbuffer"}
	if _, err := New(cfg); err == nil {
		t.Error("Expected invalid buffer to be rejected")
	}
}
