// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package serverbase

import (
	"testing"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
)

func TestServerLockIsExclusive(t *testing.T) {
	t.Setenv(ds.HomeEnvName, t.TempDir())
	if err := EnsureHomeDir(); err != nil {
		t.Fatalf("EnsureHomeDir: %v", err)
	}
	lock, err := AcquireServerLock()
	if err != nil {
		t.Fatalf("Expected first lock to succeed, got %v", err)
	}
	if second, err := AcquireServerLock(); err == nil {
		second.Close()
		t.Fatal("Expected second lock to fail while the first is held")
	}
	lock.Close()
	again, err := AcquireServerLock()
	if err != nil {
		t.Fatalf("Expected lock to succeed after release, got %v", err)
	}
	again.Close()
}
