// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package logsource

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

func readPidFile(path string) int {
	barr, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(barr)))
	return pid
}

// A descendant in its own session escapes the process-group kill and keeps the
// pipes open; Stop must still return after closing them.
func TestSourceStopWithEscapedDescendant(t *testing.T) {
	if _, err := exec.LookPath("setsid"); err != nil {
		t.Skip("requires setsid")
	}
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	script := fmt.Sprintf(`setsid sh -c 'echo $$ > %s; exec sleep 20' & exec sleep 30`, pidFile)
	src := shSource(script)
	if err := src.Start(&collectSink{}, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return readPidFile(pidFile) > 0 })
	t.Cleanup(func() {
		if pid := readPidFile(pidFile); pid > 0 {
			syscall.Kill(pid, syscall.SIGKILL)
		}
	})

	start := time.Now()
	if err := src.Stop(); err != nil {
		t.Errorf("Stop returned error: %v", err)
	}
	elapsed := time.Since(start)
	if limit := 2*src.cfg.StopTimeout + 500*time.Millisecond; elapsed > limit {
		t.Errorf("Expected Stop within %v, took %v", limit, elapsed)
	}
	if src.IsRunning() || src.Pid() != 0 {
		t.Error("Expected inert source after Stop")
	}
	if _, err := src.Stats(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning from Stats, got %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

func TestSourceDrainsLargeStderr(t *testing.T) {
	// 128KiB on stderr is well past the pipe buffer; the writer blocks unless it is drained
	script := `dd if=/dev/zero bs=1024 count=128 2>/dev/null | tr '\0' x >&2
printf '[ 01-12 21:10:46.001 1:2 D/A ]\none\n\n[ 01-12 21:10:46.002 1:2 I/B ]\ntwo\n\n[ 01-12 21:10:46.003 1:2 W/C ]\nthree\n\n'
exec sleep 30`
	src := shSource(script)
	sink := &collectSink{}
	if err := src.Start(sink, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Stop()
	waitFor(t, 5*time.Second, func() bool { return sink.count() == 3 })

	sink.lock.Lock()
	defer sink.lock.Unlock()
	for i, tag := range []string{"A", "B", "C"} {
		if sink.recs[i].Tag != tag {
			t.Errorf("Expected record %d to have tag %s, got %s", i, tag, sink.recs[i].Tag)
		}
	}
}
