// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logsource

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logcatparser"
	"github.com/darshanparajuli/logcatreader/pkg/logutil"
	"github.com/darshanparajuli/logcatreader/pkg/panichandler"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	ErrAlreadyRunning = errors.New("log source already running")
	ErrSpawnFailed    = errors.New("failed to spawn log process")
	ErrNotRunning     = errors.New("log source not running")
)

const DefaultStopTimeout = 2 * time.Second

var log = logutil.Component("logsource")

// RecordSink receives parsed records on the reader goroutine.
type RecordSink interface {
	AppendRecord(rec ds.Record)
}

type SourceConfig struct {
	// Command is the log binary plus any fixed leading arguments, e.g. ["adb", "logcat"].
	Command     []string
	Buffers     []string
	StopTimeout time.Duration
	Parser      *logcatparser.Parser
}

// Source owns one spawned log process: a stdout reader feeding the parser,
// and a stderr drainer that keeps the pipe from filling up.
type Source struct {
	lock     sync.Mutex
	cfg      SourceConfig
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	waitDone chan struct{}
	stopping *atomic.Bool
	startTs  int64
}

func MakeSource(cfg SourceConfig) *Source {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.Parser == nil {
		cfg.Parser = logcatparser.MakeParser(nil)
	}
	return &Source{cfg: cfg}
}

// BuildArgs returns the full argv: command, "-v long", then one "-b <buffer>" pair per buffer.
func BuildArgs(command []string, buffers []string) []string {
	args := make([]string, 0, len(command)+2+2*len(buffers))
	args = append(args, command...)
	args = append(args, "-v", "long")
	for _, buf := range buffers {
		args = append(args, "-b", buf)
	}
	return args
}

func (s *Source) Args() []string {
	return BuildArgs(s.cfg.Command, s.cfg.Buffers)
}

// Start spawns the process and its reader goroutines. onExit is called once, from a
// background goroutine, if the process ends without Stop having been called.
func (s *Source) Start(sink RecordSink, onExit func(err error)) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cmd != nil {
		return ErrAlreadyRunning
	}
	if len(s.cfg.Command) == 0 {
		return fmt.Errorf("%w: empty command", ErrSpawnFailed)
	}
	args := s.Args()
	execCmd := exec.Command(args[0], args[1:]...)
	setProcAttrs(execCmd)

	stdoutPipe, err := execCmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %w", ErrSpawnFailed, err)
	}
	stderrPipe, err := execCmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: stderr pipe: %w", ErrSpawnFailed, err)
	}
	if err := execCmd.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}

	s.cmd = execCmd
	s.stdout = stdoutPipe
	s.stderr = stderrPipe
	s.startTs = time.Now().UnixMilli()
	stopping := &atomic.Bool{}
	s.stopping = stopping
	waitDone := make(chan struct{})
	s.waitDone = waitDone
	log.WithField("pid", execCmd.Process.Pid).Infof("started %v", args)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer func() {
			panichandler.PanicHandler("logsource:stdout", recover())
		}()
		readErrFn := func(err error) {
			if !stopping.Load() {
				log.Warnf("error reading stdout: %v", err)
			}
		}
		for rec := range s.cfg.Parser.ParseReader(stdoutPipe, readErrFn) {
			sink.AppendRecord(rec)
		}
	}()
	go func() {
		defer wg.Done()
		_, err := io.Copy(io.Discard, stderrPipe)
		if err != nil && !stopping.Load() {
			log.Debugf("error draining stderr: %v", err)
		}
	}()
	go func() {
		// Wait must not be called before all reads from the pipes have completed
		wg.Wait()
		waitErr := execCmd.Wait()
		close(waitDone)
		if stopping.Load() {
			return
		}
		if waitErr == nil {
			waitErr = errors.New("log process exited")
		}
		log.Warnf("log process exited unexpectedly: %v", waitErr)
		if onExit != nil {
			onExit(waitErr)
		}
	}()
	return nil
}

// Stop kills the process, waits (bounded by StopTimeout) for the reader goroutines,
// and drops every handle. Stopping an inert source is a no-op.
func (s *Source) Stop() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cmd == nil {
		return nil
	}
	s.stopping.Store(true)
	if err := killProcess(s.cmd); err != nil {
		log.Debugf("kill: %v", err)
	}
	var rtnErr error
	select {
	case <-s.waitDone:
	case <-time.After(s.cfg.StopTimeout):
		// a descendant may still hold the pipe open; close our ends to unblock the readers
		log.Warnf("log process did not exit within %v, closing pipes", s.cfg.StopTimeout)
		s.stdout.Close()
		s.stderr.Close()
		select {
		case <-s.waitDone:
		case <-time.After(s.cfg.StopTimeout):
			rtnErr = fmt.Errorf("log process %d did not exit", s.cmd.Process.Pid)
		}
	}
	s.cmd = nil
	s.stdout = nil
	s.stderr = nil
	s.waitDone = nil
	s.stopping = nil
	s.startTs = 0
	return rtnErr
}

func (s *Source) IsRunning() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.cmd != nil
}

// Pid returns the process id, or 0 when not running.
func (s *Source) Pid() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Stats samples CPU and memory usage of the running log process.
func (s *Source) Stats() (*ds.ProcStats, error) {
	s.lock.Lock()
	if s.cmd == nil || s.cmd.Process == nil {
		s.lock.Unlock()
		return nil, ErrNotRunning
	}
	pid := s.cmd.Process.Pid
	startTs := s.startTs
	s.lock.Unlock()

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("inspect pid %d: %w", pid, err)
	}
	stats := &ds.ProcStats{Pid: pid, StartTs: startTs}
	// might return 0 on first call
	stats.CPUPercent, _ = proc.CPUPercent()
	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		stats.RSSBytes = memInfo.RSS
	}
	return stats, nil
}
