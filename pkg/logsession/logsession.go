// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logsession runs one capture at a time: it owns the log process, drains
// parsed records on a poll interval, retains a bounded history, records on demand
// and broadcasts the filtered stream to subscribers.
package logsession

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logcatparser"
	"github.com/darshanparajuli/logcatreader/pkg/logfile"
	"github.com/darshanparajuli/logcatreader/pkg/logfilter"
	"github.com/darshanparajuli/logcatreader/pkg/logsource"
	"github.com/darshanparajuli/logcatreader/pkg/logutil"
	"github.com/darshanparajuli/logcatreader/pkg/utilds"
	"github.com/darshanparajuli/logcatreader/pkg/utilfn"
	"github.com/google/uuid"
)

var (
	ErrFailedToStart     = errors.New("failed to start capture")
	ErrNotActive         = errors.New("capture not active")
	ErrNoPackageResolver = errors.New("package filters need a package source (packages_list or packages_command)")
)

const (
	DefaultCapacity     = 250000
	DefaultPollInterval = 250 * time.Millisecond
	MinPollInterval     = 10 * time.Millisecond
	MaxPollInterval     = 10 * time.Second
)

var log = logutil.Component("logsession")

type ControllerOpts struct {
	// Command is the log binary plus fixed leading arguments. Defaults to ["logcat"].
	Command      []string
	Buffers      []string
	Capacity     int
	PollInterval time.Duration
	StopTimeout  time.Duration
	// IdGen numbers parsed records. Nil uses the process-wide generator.
	IdGen    *logcatparser.IdGen
	Resolver logfilter.PackageResolver
}

type Controller struct {
	lock        sync.Mutex // guards everything below
	publishMu   sync.Mutex // serializes drain+publish so batches reach subscribers in order
	opts        ControllerOpts
	parser      *logcatparser.Parser
	status      string
	sessionId   string
	epoch       uint64
	lastErr     error
	source      *logsource.Source
	poller      *utilds.PeriodicExecutor
	pending     []ds.Record
	ring        *utilds.CirBuf[ds.Record]
	include     *logfilter.Group
	exclude     *logfilter.Group
	recording   bool
	recordBuf   []ds.Record
	paused      bool
	heldBatches [][]ds.Record
	pollDur     time.Duration
	exitDone    chan struct{} // set while handleExit is tearing down

	records *Stream[ds.Record]
	events  *Stream[ds.SessionEvent]
}

func MakeController(opts ControllerOpts) *Controller {
	if len(opts.Command) == 0 {
		opts.Command = []string{"logcat"}
	}
	if len(opts.Buffers) == 0 {
		opts.Buffers = utilfn.CopyArr(ds.DefaultBuffers)
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	opts.PollInterval = utilfn.BoundValue(opts.PollInterval, MinPollInterval, MaxPollInterval)
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = logsource.DefaultStopTimeout
	}
	parser := logcatparser.MakeParser(opts.IdGen)
	parser.OnMalformed = func(line string, err error) {
		recordsMalformed.Inc()
	}
	c := &Controller{
		opts:    opts,
		parser:  parser,
		status:  ds.StatusIdle,
		ring:    utilds.MakeCirBuf[ds.Record](opts.Capacity),
		pollDur: opts.PollInterval,
		records: MakeStream[ds.Record](opts.Capacity),
		events:  MakeStream[ds.SessionEvent](1),
	}
	c.events.Publish([]ds.SessionEvent{c.makeEvent_nolock()})
	return c
}

// epochSink tags the pending queue writes of one capture so a reader goroutine
// that outlives its capture cannot leak records into the next one.
type epochSink struct {
	c     *Controller
	epoch uint64
}

func (s epochSink) AppendRecord(rec ds.Record) {
	s.c.lock.Lock()
	defer s.c.lock.Unlock()
	if s.c.epoch != s.epoch {
		return
	}
	s.c.pending = append(s.c.pending, rec)
}

func (c *Controller) makeEvent_nolock() ds.SessionEvent {
	event := ds.SessionEvent{
		Status:    c.status,
		SessionId: c.sessionId,
		Ts:        time.Now().UnixMilli(),
	}
	if c.lastErr != nil {
		event.Err = c.lastErr.Error()
	}
	return event
}

// setStatus must be called without c.lock held.
func (c *Controller) setStatus(status string, err error) {
	c.lock.Lock()
	event := c.setStatus_nolock(status, err)
	c.lock.Unlock()
	c.publishStatus(event)
}

func (c *Controller) setStatus_nolock(status string, err error) ds.SessionEvent {
	c.status = status
	c.lastErr = err
	return c.makeEvent_nolock()
}

func (c *Controller) publishStatus(event ds.SessionEvent) {
	sessionTransitions.WithLabelValues(event.Status).Inc()
	log.WithField("session", event.SessionId).Debugf("status -> %s", event.Status)
	c.events.Publish([]ds.SessionEvent{event})
}

func canStart(status string) bool {
	return status == ds.StatusIdle || status == ds.StatusExited
}

func (c *Controller) resetBuffers_nolock() {
	c.pending = nil
	c.ring.Clear()
	c.recording = false
	c.recordBuf = nil
	c.paused = false
	c.heldBatches = nil
}

// Start spawns the log process and begins polling. A spawn failure publishes a
// failed event, settles back on idle (LastErr keeps the cause) and returns an
// error wrapping ErrFailedToStart.
func (c *Controller) Start() error {
	c.lock.Lock()
	if !canStart(c.status) {
		status := c.status
		c.lock.Unlock()
		return fmt.Errorf("start while %s: %w", status, logsource.ErrAlreadyRunning)
	}
	c.epoch++
	epoch := c.epoch
	c.sessionId = uuid.New().String()
	c.lastErr = nil
	c.resetBuffers_nolock()
	source := logsource.MakeSource(logsource.SourceConfig{
		Command:     c.opts.Command,
		Buffers:     c.opts.Buffers,
		StopTimeout: c.opts.StopTimeout,
		Parser:      c.parser,
	})
	pollDur := c.pollDur
	c.lock.Unlock()

	c.records.ResetReplay()
	logutil.ResetOnce("parser:malformed")
	c.setStatus(ds.StatusStarting, nil)

	// the process may exit before Start finishes; handleExit waits so it sees the active status
	startDone := make(chan struct{})
	defer close(startDone)
	err := source.Start(epochSink{c: c, epoch: epoch}, func(exitErr error) {
		<-startDone
		c.handleExit(epoch, exitErr)
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrFailedToStart, err)
		log.Errorf("%v", err)
		c.setStatus(ds.StatusFailed, err)
		c.setStatus(ds.StatusIdle, err)
		return err
	}

	poller := utilds.MakePeriodicExecutor("logsession:poll", pollDur, c.poll)
	c.lock.Lock()
	c.source = source
	c.poller = poller
	c.lock.Unlock()
	poller.Enable()
	c.setStatus(ds.StatusActive, nil)
	return nil
}

// Stop tears down the log process and the poll loop and clears all retained state.
// Filters and the poll interval are kept. If the process is exiting on its own,
// Stop waits for that teardown to finish and then clears.
func (c *Controller) Stop() error {
	c.lock.Lock()
	switch c.status {
	case ds.StatusActive:
	case ds.StatusStopping:
		exitDone := c.exitDone
		c.lock.Unlock()
		if exitDone == nil {
			return fmt.Errorf("stop while %s: %w", ds.StatusStopping, ErrNotActive)
		}
		<-exitDone
		return c.Stop()
	case ds.StatusExited:
		// process is already gone, only the buffers need clearing
		c.epoch++
		c.resetBuffers_nolock()
		c.lock.Unlock()
		c.records.ResetReplay()
		c.setStatus(ds.StatusIdle, nil)
		return nil
	default:
		status := c.status
		c.lock.Unlock()
		return fmt.Errorf("stop while %s: %w", status, ErrNotActive)
	}
	c.epoch++
	source := c.source
	poller := c.poller
	c.source = nil
	c.poller = nil
	c.lock.Unlock()

	c.setStatus(ds.StatusStopping, nil)
	if poller != nil && !poller.Disable(c.opts.StopTimeout) {
		log.Warnf("poll loop did not exit within %v", c.opts.StopTimeout)
	}
	var stopErr error
	if source != nil {
		stopErr = source.Stop()
	}

	c.publishMu.Lock()
	c.lock.Lock()
	c.resetBuffers_nolock()
	c.lock.Unlock()
	c.records.ResetReplay()
	c.publishMu.Unlock()

	c.setStatus(ds.StatusIdle, nil)
	return stopErr
}

// Restart is Stop followed by Start. Subscribers stay attached and filters are kept.
func (c *Controller) Restart() error {
	if err := c.Stop(); err != nil && !errors.Is(err, ErrNotActive) {
		log.Warnf("stop during restart: %v", err)
	}
	return c.Start()
}

// handleExit runs on the source's waiter goroutine when the process ends without Stop.
// Records already read are drained one last time, then history and recording are kept.
func (c *Controller) handleExit(epoch uint64, exitErr error) {
	c.lock.Lock()
	if c.epoch != epoch || c.status != ds.StatusActive {
		c.lock.Unlock()
		return
	}
	// a concurrent Stop waits on exitDone and clears afterwards
	exitDone := make(chan struct{})
	c.exitDone = exitDone
	defer close(exitDone)
	event := c.setStatus_nolock(ds.StatusStopping, nil)
	source := c.source
	poller := c.poller
	c.source = nil
	c.poller = nil
	c.lock.Unlock()
	c.publishStatus(event)

	if poller != nil {
		poller.Disable(c.opts.StopTimeout)
	}
	c.poll()
	if source != nil {
		source.Stop()
	}
	c.lock.Lock()
	c.exitDone = nil
	event = c.setStatus_nolock(ds.StatusExited, exitErr)
	c.lock.Unlock()
	c.publishStatus(event)
}

// poll drains the pending queue, retains the raw batch, records and publishes
// the visible subset. Publishing happens outside c.lock.
func (c *Controller) poll() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	start := time.Now()

	c.lock.Lock()
	batch := c.pending
	c.pending = nil
	if len(batch) == 0 && (c.paused || len(c.heldBatches) == 0) {
		c.lock.Unlock()
		return
	}
	visible := logfilter.FilterVisible(batch, c.include, c.exclude)
	evicted := c.ring.WriteAll(batch)
	if c.recording && len(visible) > 0 {
		c.recordBuf = append(c.recordBuf, visible...)
	}
	var toPublish [][]ds.Record
	if c.paused {
		if len(visible) > 0 {
			c.heldBatches = append(c.heldBatches, visible)
		}
	} else {
		toPublish = append(c.heldBatches, visible)
		c.heldBatches = nil
	}
	c.lock.Unlock()

	for _, b := range toPublish {
		if len(b) == 0 {
			continue
		}
		c.records.Publish(b)
		batchesPublished.Inc()
	}
	observePoll(len(batch), len(visible), evicted, time.Since(start).Seconds())
}

// SetFilters compiles group and installs it as the include (or exclude) filter.
// It takes effect from the next poll. An invalid group leaves the current filter in place.
func (c *Controller) SetFilters(group ds.FilterGroup, isExclude bool) error {
	if c.opts.Resolver == nil {
		for _, spec := range group {
			if spec.PackageName != "" {
				return ErrNoPackageResolver
			}
		}
	}
	compiled, err := logfilter.CompileGroup(group, c.opts.Resolver)
	if err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if isExclude {
		c.exclude = compiled
	} else {
		c.include = compiled
	}
	return nil
}

// Filters returns the installed include and exclude groups.
func (c *Controller) Filters() (include ds.FilterGroup, exclude ds.FilterGroup) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.include.Specs(), c.exclude.Specs()
}

func (c *Controller) StartRecording() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.recording = true
}

// StopRecording turns recording off and hands back everything recorded so far.
// The recording buffer is emptied, so a second call returns an empty slice.
func (c *Controller) StopRecording() []ds.Record {
	c.lock.Lock()
	defer c.lock.Unlock()
	rtn := c.recordBuf
	c.recordBuf = nil
	c.recording = false
	if rtn == nil {
		rtn = []ds.Record{}
	}
	return rtn
}

// StopRecordingTo stops recording and saves the result under dir with a generated name.
func (c *Controller) StopRecordingTo(dir string, compress bool) (string, int, error) {
	recs := c.StopRecording()
	path := filepath.Join(utilfn.ExpandHomeDir(dir), logfile.SaveName(time.Now(), compress))
	if err := logfile.Save(path, recs); err != nil {
		return "", 0, err
	}
	log.Infof("saved %d recorded records to %s", len(recs), path)
	return path, len(recs), nil
}

func (c *Controller) IsRecording() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.recording
}

// SetPollInterval changes the drain interval, clamped to [MinPollInterval, MaxPollInterval].
func (c *Controller) SetPollInterval(ms int64) {
	dur := utilfn.BoundValue(time.Duration(ms)*time.Millisecond, MinPollInterval, MaxPollInterval)
	c.lock.Lock()
	c.pollDur = dur
	poller := c.poller
	c.lock.Unlock()
	if poller != nil {
		poller.SetDuration(dur)
	}
}

func (c *Controller) PollInterval() time.Duration {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.pollDur
}

// Pause holds visible batches back from subscribers. Ingestion, retention and
// recording continue.
func (c *Controller) Pause() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.paused = true
}

// Resume releases the held batches on the next poll.
func (c *Controller) Resume() {
	c.lock.Lock()
	c.paused = false
	c.lock.Unlock()
	c.poll()
}

func (c *Controller) IsPaused() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.paused
}

// Snapshot returns the retained records, oldest first, regardless of filters.
func (c *Controller) Snapshot() []ds.Record {
	return c.ring.GetAll()
}

// VisibleSnapshot returns the retained records that pass the current filters.
func (c *Controller) VisibleSnapshot() []ds.Record {
	c.lock.Lock()
	include, exclude := c.include, c.exclude
	c.lock.Unlock()
	return logfilter.FilterVisible(c.ring.GetAll(), include, exclude)
}

func (c *Controller) RemoveAt(index int) (ds.Record, error) {
	return c.ring.RemoveAt(index)
}

// Clear drops retained history and the replay window without stopping capture.
func (c *Controller) Clear() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.ring.Clear()
	c.records.ResetReplay()
}

func (c *Controller) Status() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.status
}

func (c *Controller) LastErr() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.lastErr
}

func (c *Controller) Info() ds.SessionInfo {
	c.lock.Lock()
	info := ds.SessionInfo{
		SessionId:      c.sessionId,
		Status:         c.status,
		Buffers:        utilfn.CopyArr(c.opts.Buffers),
		Capacity:       c.opts.Capacity,
		PollIntervalMs: c.pollDur.Milliseconds(),
		Recording:      c.recording,
		RecordedCount:  len(c.recordBuf),
		Paused:         c.paused,
	}
	source := c.source
	c.lock.Unlock()
	info.Retained = c.ring.Size()
	info.Malformed = c.parser.MalformedCount()
	if source != nil {
		stats, err := source.Stats()
		if err == nil {
			info.Proc = stats
		}
	}
	return info
}

// Subscribe attaches to the visible record stream. The first batch is the replay
// of everything published since the capture started (bounded by capacity).
func (c *Controller) Subscribe() *Subscription[ds.Record] {
	return c.records.Subscribe()
}

// SubscribeStatus attaches to status events; the latest event is delivered first.
func (c *Controller) SubscribeStatus() *Subscription[ds.SessionEvent] {
	return c.events.Subscribe()
}

// Close stops any active capture and closes both streams.
func (c *Controller) Close() error {
	var err error
	if c.Status() == ds.StatusActive {
		err = c.Stop()
	}
	c.records.Close()
	c.events.Close()
	return err
}
