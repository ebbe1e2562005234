// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilds

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/darshanparajuli/logcatreader/pkg/panichandler"
)

// PeriodicExecutor runs execFn on its own goroutine every duration until disabled.
// Runs never overlap; a tick that arrives while execFn is still running is skipped.
type PeriodicExecutor struct {
	lock             sync.Mutex
	name             string
	done             chan struct{}
	exited           chan struct{}
	ticker           *time.Ticker
	duration         time.Duration
	execFn           func()
	isFnRunning      atomic.Bool
	lastExecDuration atomic.Int64 // duration in milliseconds
	lastErr          error        // protected by lock
}

func MakePeriodicExecutor(name string, dur time.Duration, execFn func()) *PeriodicExecutor {
	if dur <= 0 {
		panic("duration must be greater than 0")
	}
	if execFn == nil {
		panic("execFn must not be nil")
	}
	return &PeriodicExecutor{
		name:     name,
		duration: dur,
		execFn:   execFn,
	}
}

func (p *PeriodicExecutor) IsEnabled() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.ticker != nil
}

// Enable starts the loop. The first run happens after one full duration.
func (p *PeriodicExecutor) Enable() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.ticker != nil {
		// already enabled
		return
	}
	doneCh := make(chan struct{})
	exitedCh := make(chan struct{})
	p.done = doneCh
	p.exited = exitedCh
	ticker := time.NewTicker(p.duration)
	p.ticker = ticker
	go func() {
		defer close(exitedCh)
		for {
			select {
			case <-doneCh:
				return
			case <-ticker.C:
				p.runFunc()
			}
		}
	}()
}

// Disable stops the loop and waits (at most timeout) for an in-flight run to finish.
// Returns false if the loop goroutine did not exit in time.
func (p *PeriodicExecutor) Disable(timeout time.Duration) bool {
	p.lock.Lock()
	if p.ticker == nil {
		// not enabled
		p.lock.Unlock()
		return true
	}
	p.ticker.Stop()
	close(p.done)
	exitedCh := p.exited
	p.ticker = nil
	p.done = nil
	p.exited = nil
	p.lock.Unlock()

	select {
	case <-exitedCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// SetDuration changes the interval; takes effect from the next tick.
func (p *PeriodicExecutor) SetDuration(dur time.Duration) {
	if dur <= 0 {
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	p.duration = dur
	if p.ticker != nil {
		p.ticker.Reset(dur)
	}
}

func (p *PeriodicExecutor) GetDuration() time.Duration {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.duration
}

// RunNow runs execFn synchronously on the caller's goroutine (skipped if a run is in flight).
func (p *PeriodicExecutor) RunNow() {
	p.runFunc()
}

func (p *PeriodicExecutor) runFunc() {
	ok := p.isFnRunning.CompareAndSwap(false, true)
	if !ok {
		return
	}
	defer p.isFnRunning.Store(false)

	start := time.Now()
	defer func() {
		duration := time.Since(start).Milliseconds()
		p.lastExecDuration.Store(duration)
		p.setLastErr(panichandler.PanicHandler(p.name, recover()))
	}()

	p.execFn()
}

// setLastErr sets the last error with proper locking
func (p *PeriodicExecutor) setLastErr(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.lastErr = err
}

// GetLastErr returns the last error with proper locking
func (p *PeriodicExecutor) GetLastErr() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.lastErr
}

// GetLastExecDuration returns the duration of the last execution in milliseconds
func (p *PeriodicExecutor) GetLastExecDuration() int64 {
	return p.lastExecDuration.Load()
}
