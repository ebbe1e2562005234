// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logsession

import (
	"sync"

	"github.com/darshanparajuli/logcatreader/pkg/utilds"
)

// Stream broadcasts batches to any number of subscribers. Every subscriber has an
// unbounded queue, so a slow reader grows its own queue and never blocks Publish.
// A new subscriber first receives the replay window as a single batch, then every
// batch published after it attached.
type Stream[T any] struct {
	lock   sync.Mutex
	subs   map[int64]*Subscription[T]
	nextId int64
	replay *utilds.CirBuf[T] // nil when the stream keeps no replay window
	closed bool
}

// MakeStream creates a stream whose replay window holds the last replayCap elements.
// replayCap == 0 disables replay.
func MakeStream[T any](replayCap int) *Stream[T] {
	s := &Stream[T]{
		subs: make(map[int64]*Subscription[T]),
	}
	if replayCap > 0 {
		s.replay = utilds.MakeCirBuf[T](replayCap)
	}
	return s
}

// Publish appends batch to the replay window and queues it for every subscriber.
func (s *Stream[T]) Publish(batch []T) {
	if len(batch) == 0 {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}
	if s.replay != nil {
		s.replay.WriteAll(batch)
	}
	for _, sub := range s.subs {
		sub.push(batch)
	}
}

func (s *Stream[T]) Subscribe() *Subscription[T] {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.nextId++
	sub := makeSubscription(s, s.nextId)
	if s.closed {
		sub.closeQueue()
		return sub
	}
	if s.replay != nil && !s.replay.IsEmpty() {
		sub.push(s.replay.GetAll())
	}
	s.subs[sub.id] = sub
	return sub
}

// ResetReplay empties the replay window. Attached subscribers are unaffected.
func (s *Stream[T]) ResetReplay() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.replay != nil {
		s.replay.Clear()
	}
}

func (s *Stream[T]) ReplaySize() int {
	if s.replay == nil {
		return 0
	}
	return s.replay.Size()
}

func (s *Stream[T]) NumSubscribers() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.subs)
}

// Close stops accepting batches. Subscribers receive what is already queued,
// then their channels are closed.
func (s *Stream[T]) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subs {
		sub.closeQueue()
		delete(s.subs, id)
	}
}

func (s *Stream[T]) remove(id int64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.subs, id)
}

type Subscription[T any] struct {
	id        int64
	stream    *Stream[T]
	lock      sync.Mutex
	queue     [][]T
	qclosed   bool
	notify    chan struct{}
	done      chan struct{}
	out       chan []T
	closeOnce sync.Once
}

func makeSubscription[T any](stream *Stream[T], id int64) *Subscription[T] {
	sub := &Subscription[T]{
		id:     id,
		stream: stream,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan []T),
	}
	go sub.run()
	return sub
}

// C returns the channel batches are delivered on. It is closed after Close
// or after the stream is closed and the queue has drained.
func (sub *Subscription[T]) C() <-chan []T {
	return sub.out
}

func (sub *Subscription[T]) Id() int64 {
	return sub.id
}

// Close detaches the subscription and discards anything still queued.
func (sub *Subscription[T]) Close() {
	sub.closeOnce.Do(func() {
		close(sub.done)
		sub.stream.remove(sub.id)
	})
}

// QueueLen returns the number of batches waiting to be read.
func (sub *Subscription[T]) QueueLen() int {
	sub.lock.Lock()
	defer sub.lock.Unlock()
	return len(sub.queue)
}

func (sub *Subscription[T]) push(batch []T) {
	sub.lock.Lock()
	if sub.qclosed {
		sub.lock.Unlock()
		return
	}
	sub.queue = append(sub.queue, batch)
	sub.lock.Unlock()
	sub.wake()
}

func (sub *Subscription[T]) closeQueue() {
	sub.lock.Lock()
	sub.qclosed = true
	sub.lock.Unlock()
	sub.wake()
}

func (sub *Subscription[T]) wake() {
	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

func (sub *Subscription[T]) run() {
	defer close(sub.out)
	for {
		sub.lock.Lock()
		if len(sub.queue) == 0 {
			qclosed := sub.qclosed
			sub.lock.Unlock()
			if qclosed {
				return
			}
			select {
			case <-sub.notify:
				continue
			case <-sub.done:
				return
			}
		}
		batch := sub.queue[0]
		sub.queue[0] = nil
		sub.queue = sub.queue[1:]
		sub.lock.Unlock()
		select {
		case sub.out <- batch:
		case <-sub.done:
			return
		}
	}
}
