// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilds

import "sync"

type SyncMap[K comparable, T any] struct {
	lock *sync.RWMutex
	m    map[K]T
}

func MakeSyncMap[K comparable, T any]() *SyncMap[K, T] {
	return &SyncMap[K, T]{
		lock: &sync.RWMutex{},
		m:    make(map[K]T),
	}
}

func (sm *SyncMap[K, T]) Set(key K, value T) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	sm.m[key] = value
}

func (sm *SyncMap[K, T]) GetEx(key K) (T, bool) {
	sm.lock.RLock()
	defer sm.lock.RUnlock()
	v, ok := sm.m[key]
	return v, ok
}

func (sm *SyncMap[K, T]) Delete(key K) {
	sm.lock.Lock()
	defer sm.lock.Unlock()
	delete(sm.m, key)
}

func (sm *SyncMap[K, T]) Len() int {
	sm.lock.RLock()
	defer sm.lock.RUnlock()
	return len(sm.m)
}

// Values returns a snapshot of the values; the map may change after it returns.
func (sm *SyncMap[K, T]) Values() []T {
	sm.lock.RLock()
	defer sm.lock.RUnlock()
	rtn := make([]T, 0, len(sm.m))
	for _, v := range sm.m {
		rtn = append(rtn, v)
	}
	return rtn
}
