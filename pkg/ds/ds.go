// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package ds

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Environment variables
const (
	HomeEnvName       = "LOGCATREADER_HOME"
	ConfigJsonEnvName = "LOGCATREADER_CONFIG_JSON"
	ConfigFileEnvName = "LOGCATREADER_CONFIG_FILE"
)

// Log buffer names understood by the log binary
const (
	BufferMain     = "main"
	BufferSystem   = "system"
	BufferRadio    = "radio"
	BufferEvents   = "events"
	BufferCrash    = "crash"
	BufferSecurity = "security"
	BufferKernel   = "kernel"
)

// KnownBuffers is the fixed buffer vocabulary searched for in the "-h" output.
var KnownBuffers = []string{BufferMain, BufferSystem, BufferRadio, BufferEvents, BufferCrash, BufferSecurity, BufferKernel}

// DefaultBuffers are used when no buffers are configured.
var DefaultBuffers = []string{BufferMain, BufferSystem, BufferCrash}

type Priority int

const (
	PriorityVerbose Priority = iota
	PriorityDebug
	PriorityInfo
	PriorityWarning
	PriorityError
	PriorityFatal
	PriorityAssert
)

var priorityLetters = []byte{'V', 'D', 'I', 'W', 'E', 'F', 'A'}
var priorityNames = []string{"verbose", "debug", "info", "warning", "error", "fatal", "assert"}

// AllPriorities lists every priority from lowest to highest.
var AllPriorities = []Priority{PriorityVerbose, PriorityDebug, PriorityInfo, PriorityWarning, PriorityError, PriorityFatal, PriorityAssert}

// ParsePriority accepts the single-letter wire form ("D") or the lowercase name ("debug").
func ParsePriority(s string) (Priority, error) {
	if len(s) == 1 {
		for i, ch := range priorityLetters {
			if s[0] == ch {
				return Priority(i), nil
			}
		}
	}
	lower := strings.ToLower(s)
	for i, name := range priorityNames {
		if lower == name {
			return Priority(i), nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) IsValid() bool {
	return p >= PriorityVerbose && p <= PriorityAssert
}

// Letter returns the single-letter wire form.
func (p Priority) Letter() string {
	if !p.IsValid() {
		return "?"
	}
	return string(priorityLetters[p])
}

func (p Priority) String() string {
	if !p.IsValid() {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Letter())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Record is one parsed log entry. Records are never mutated after the parser emits them.
type Record struct {
	Id       uint64   `json:"id"`
	Date     string   `json:"date"`
	Time     string   `json:"time"`
	Pid      string   `json:"pid"`
	Tid      string   `json:"tid"`
	Priority Priority `json:"priority"`
	Tag      string   `json:"tag"`
	Message  string   `json:"message"`
}

// SameContent compares every field except Id (ids are reassigned on reparse).
func (r Record) SameContent(other Record) bool {
	r.Id = 0
	other.Id = 0
	return r == other
}

// Match modes for the tag and message criteria of a FilterSpec
const (
	MatchModeExact     = "exact"
	MatchModeExactCase = "exactcase"
	MatchModeRegexp    = "regexp"
	MatchModeFzf       = "fzf"
)

// FilterSpec is a set of optional criteria combined with AND. Nil/empty criteria always match.
type FilterSpec struct {
	Tag         string     `json:"tag,omitempty"`
	Message     string     `json:"message,omitempty"`
	PackageName string     `json:"packagename,omitempty"`
	Pid         *int       `json:"pid,omitempty"`
	Tid         *int       `json:"tid,omitempty"`
	Priorities  []Priority `json:"priorities,omitempty"`
	MatchMode   string     `json:"matchmode,omitempty"`
}

// FilterGroup is a list of FilterSpecs combined with OR. An empty group matches everything.
type FilterGroup []FilterSpec

// Session statuses
const (
	StatusIdle     = "idle"
	StatusStarting = "starting"
	StatusActive   = "active"
	StatusStopping = "stopping"
	StatusExited   = "exited"
	StatusFailed   = "failed"
)

type SessionEvent struct {
	Status    string `json:"status"`
	SessionId string `json:"sessionid,omitempty"`
	Err       string `json:"err,omitempty"`
	Ts        int64  `json:"ts"`
}

// ProcStats describes the spawned log process.
type ProcStats struct {
	Pid        int     `json:"pid"`
	CPUPercent float64 `json:"cpupercent"`
	RSSBytes   uint64  `json:"rssbytes"`
	StartTs    int64   `json:"startts"`
}

type SessionInfo struct {
	SessionId      string     `json:"sessionid,omitempty"`
	Status         string     `json:"status"`
	Buffers        []string   `json:"buffers"`
	Capacity       int        `json:"capacity"`
	PollIntervalMs int64      `json:"pollintervalms"`
	Retained       int        `json:"retained"`
	Recording      bool       `json:"recording"`
	RecordedCount  int        `json:"recordedcount"`
	Paused         bool       `json:"paused"`
	Malformed      int64      `json:"malformed"`
	Proc           *ProcStats `json:"proc,omitempty"`
}
