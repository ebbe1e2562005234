// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logsource

import (
	"errors"
	"reflect"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logcatparser"
)

type collectSink struct {
	lock sync.Mutex
	recs []ds.Record
}

func (c *collectSink) AppendRecord(rec ds.Record) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.recs = append(c.recs, rec)
}

func (c *collectSink) count() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.recs)
}

func waitFor(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func shSource(script string) *Source {
	return MakeSource(SourceConfig{
		Command:     []string{"/bin/sh", "-c", script},
		Buffers:     []string{"main"},
		StopTimeout: time.Second,
		Parser:      logcatparser.MakeParser(&logcatparser.IdGen{}),
	})
}

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestBuildArgs(t *testing.T) {
	got := BuildArgs([]string{"adb", "logcat"}, []string{"main", "crash"})
	want := []string{"adb", "logcat", "-v", "long", "-b", "main", "-b", "crash"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	got = BuildArgs([]string{"logcat"}, nil)
	want = []string{"logcat", "-v", "long"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestSourceReadsAndStops(t *testing.T) {
	skipOnWindows(t)
	script := `printf '[ 01-12 21:10:46.123 1:2 D/A ]\nhello\n\n[ 01-12 21:10:46.124 1:2 I/B ]\nworld\n\n'; echo noise >&2; exec sleep 30`
	src := shSource(script)
	sink := &collectSink{}
	exited := make(chan error, 1)
	if err := src.Start(sink, func(err error) { exited <- err }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !src.IsRunning() || src.Pid() == 0 {
		t.Fatal("Expected running source with a pid")
	}
	if err := src.Start(sink, nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}

	waitFor(t, 5*time.Second, func() bool { return sink.count() == 2 })

	start := time.Now()
	if err := src.Stop(); err != nil {
		t.Errorf("Stop returned error: %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("Stop took too long: %v", time.Since(start))
	}
	if src.IsRunning() || src.Pid() != 0 {
		t.Error("Expected inert source after Stop")
	}
	select {
	case err := <-exited:
		t.Errorf("onExit should not fire on Stop, got %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

func TestSourceSpawnFailed(t *testing.T) {
	src := MakeSource(SourceConfig{Command: []string{"/nonexistent/logbinary-xyz"}})
	err := src.Start(&collectSink{}, nil)
	if !errors.Is(err, ErrSpawnFailed) {
		t.Fatalf("Expected ErrSpawnFailed, got %v", err)
	}
	if src.IsRunning() {
		t.Error("Source should stay inert after spawn failure")
	}
	if _, err := src.Stats(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning from Stats, got %v", err)
	}
}

func TestSourceUnexpectedExit(t *testing.T) {
	skipOnWindows(t)
	src := shSource(`printf '[ 01-12 21:10:46.123 1:2 D/A ]\nbye\n\n'; exit 3`)
	sink := &collectSink{}
	exited := make(chan error, 1)
	if err := src.Start(sink, func(err error) { exited <- err }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case err := <-exited:
		if err == nil {
			t.Error("Expected exit error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onExit not called")
	}
	if sink.count() != 1 {
		t.Errorf("Expected 1 record before exit, got %d", sink.count())
	}
	if err := src.Stop(); err != nil {
		t.Errorf("Stop after exit returned error: %v", err)
	}
}

func TestSourceStats(t *testing.T) {
	skipOnWindows(t)
	src := shSource(`exec sleep 30`)
	if err := src.Start(&collectSink{}, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Stop()
	stats, err := src.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Pid != src.Pid() {
		t.Errorf("Expected pid %d, got %d", src.Pid(), stats.Pid)
	}
}
