// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilds

import (
	"errors"
	"fmt"
	"iter"
	"sync"
)

var ErrIndexOutOfBounds = errors.New("index out of bounds")

// CirBuf is a fixed-capacity circular buffer that is thread-safe.
// Elements are kept in insertion order; logical index 0 is always the oldest element.
// When the buffer is full, Write silently evicts the oldest element (data loss by design,
// callers that need every element must drain faster than they write).
type CirBuf[T any] struct {
	Lock  *sync.Mutex
	Buf   []T
	Head  int // physical index of the oldest element
	Count int
}

// MakeCirBuf creates a circular buffer holding at most capacity elements.
// The backing array is allocated once and never grows.
func MakeCirBuf[T any](capacity int) *CirBuf[T] {
	if capacity <= 0 {
		panic("capacity must be greater than 0")
	}
	return &CirBuf[T]{
		Lock: &sync.Mutex{},
		Buf:  make([]T, capacity),
	}
}

// Write adds an element to the circular buffer.
// If the buffer is full, the oldest element will be overwritten.
// Returns a pointer to the element that was kicked out, or nil if no element was kicked out.
func (cb *CirBuf[T]) Write(element T) *T {
	cb.Lock.Lock()
	defer cb.Lock.Unlock()
	return cb.write_nolock(element)
}

// WriteAll writes elements in order and returns how many older elements were evicted.
func (cb *CirBuf[T]) WriteAll(elements []T) int {
	cb.Lock.Lock()
	defer cb.Lock.Unlock()
	var evicted int
	for _, elem := range elements {
		if cb.write_nolock(elem) != nil {
			evicted++
		}
	}
	return evicted
}

func (cb *CirBuf[T]) write_nolock(element T) *T {
	capacity := len(cb.Buf)
	if cb.Count < capacity {
		cb.Buf[(cb.Head+cb.Count)%capacity] = element
		cb.Count++
		return nil
	}
	kickedOut := cb.Buf[cb.Head]
	cb.Buf[cb.Head] = element
	cb.Head = (cb.Head + 1) % capacity
	return &kickedOut
}

// Get returns the element at logical index (0 = oldest).
func (cb *CirBuf[T]) Get(index int) (T, error) {
	cb.Lock.Lock()
	defer cb.Lock.Unlock()
	if index < 0 || index >= cb.Count {
		var zero T
		return zero, fmt.Errorf("get %d (size %d): %w", index, cb.Count, ErrIndexOutOfBounds)
	}
	return cb.Buf[(cb.Head+index)%len(cb.Buf)], nil
}

// RemoveAt removes and returns the element at logical index, shifting newer elements
// one slot toward the head. This is O(n) and meant for discrete edits, not ingestion.
func (cb *CirBuf[T]) RemoveAt(index int) (T, error) {
	cb.Lock.Lock()
	defer cb.Lock.Unlock()
	var zero T
	if index < 0 || index >= cb.Count {
		return zero, fmt.Errorf("remove %d (size %d): %w", index, cb.Count, ErrIndexOutOfBounds)
	}
	capacity := len(cb.Buf)
	removed := cb.Buf[(cb.Head+index)%capacity]
	for i := index; i < cb.Count-1; i++ {
		cb.Buf[(cb.Head+i)%capacity] = cb.Buf[(cb.Head+i+1)%capacity]
	}
	// release the vacated slot so the GC can reclaim what it referenced
	cb.Buf[(cb.Head+cb.Count-1)%capacity] = zero
	cb.Count--
	return removed, nil
}

// Clear removes all elements. Capacity is unchanged.
func (cb *CirBuf[T]) Clear() {
	cb.Lock.Lock()
	defer cb.Lock.Unlock()
	clear(cb.Buf)
	cb.Head = 0
	cb.Count = 0
}

// GetAll returns a copy of all elements, oldest first.
func (cb *CirBuf[T]) GetAll() []T {
	cb.Lock.Lock()
	defer cb.Lock.Unlock()
	return cb.snapshot_nolock()
}

func (cb *CirBuf[T]) snapshot_nolock() []T {
	rtn := make([]T, cb.Count)
	capacity := len(cb.Buf)
	for i := 0; i < cb.Count; i++ {
		rtn[i] = cb.Buf[(cb.Head+i)%capacity]
	}
	return rtn
}

// All returns an iterator over the elements, oldest to newest.
// Each range over the iterator takes a fresh snapshot, so it can be restarted
// and the loop body may safely call back into the buffer.
func (cb *CirBuf[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, elem := range cb.GetAll() {
			if !yield(elem) {
				return
			}
		}
	}
}

// Size returns the current number of elements in the buffer.
func (cb *CirBuf[T]) Size() int {
	cb.Lock.Lock()
	defer cb.Lock.Unlock()
	return cb.Count
}

// Capacity returns the maximum number of elements the buffer holds.
func (cb *CirBuf[T]) Capacity() int {
	return len(cb.Buf)
}

// IsEmpty returns true if the buffer is empty.
func (cb *CirBuf[T]) IsEmpty() bool {
	return cb.Size() == 0
}

// IsFull returns true if the buffer is full.
func (cb *CirBuf[T]) IsFull() bool {
	cb.Lock.Lock()
	defer cb.Lock.Unlock()
	return cb.Count == len(cb.Buf)
}
