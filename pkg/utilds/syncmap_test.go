// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilds

import (
	"sync"
	"testing"
)

func TestSyncMapBasic(t *testing.T) {
	sm := MakeSyncMap[string, int]()
	sm.Set("a", 1)
	sm.Set("b", 2)
	if v, ok := sm.GetEx("a"); !ok || v != 1 {
		t.Errorf("Expected (1, true), got (%d, %v)", v, ok)
	}
	sm.Delete("a")
	if _, ok := sm.GetEx("a"); ok {
		t.Error("Expected key a to be deleted")
	}
	if sm.Len() != 1 {
		t.Errorf("Expected len 1, got %d", sm.Len())
	}
	vals := sm.Values()
	if len(vals) != 1 || vals[0] != 2 {
		t.Errorf("Expected [2], got %v", vals)
	}
}

func TestSyncMapConcurrent(t *testing.T) {
	sm := MakeSyncMap[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sm.Set(i, i*i)
			sm.Len()
		}(i)
	}
	wg.Wait()
	if sm.Len() != 50 {
		t.Errorf("Expected 50 entries, got %d", sm.Len())
	}
}
