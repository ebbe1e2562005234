// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logcatparser

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logutil"
	"github.com/darshanparajuli/logcatreader/pkg/utilfn"
)

var ErrMalformedRecord = errors.New("malformed record")

// IdGen hands out record ids. Ids are strictly increasing for the lifetime of the generator.
type IdGen struct {
	last atomic.Uint64
}

func (g *IdGen) Next() uint64 {
	return g.last.Add(1)
}

// Last returns the most recently issued id (0 if none).
func (g *IdGen) Last() uint64 {
	return g.last.Load()
}

// DefaultIdGen is shared by every parser built with MakeParser(nil), so ids stay
// comparable across sessions within one process.
var DefaultIdGen = &IdGen{}

// Parser turns the "-v long" text format into records.
// A Parser carries no per-stream state and may be used by several streams at once.
type Parser struct {
	ids            *IdGen
	malformedCount atomic.Int64
	OnMalformed    func(line string, err error)
}

func MakeParser(ids *IdGen) *Parser {
	if ids == nil {
		ids = DefaultIdGen
	}
	return &Parser{ids: ids}
}

func (p *Parser) MalformedCount() int64 {
	return p.malformedCount.Load()
}

func (p *Parser) reportMalformed(line string, err error) {
	p.malformedCount.Add(1)
	logutil.LogfOnce(logutil.Component("parser"), "parser:malformed", "skipping malformed record header %q: %v", line, err)
	if p.OnMalformed != nil {
		p.OnMalformed(line, err)
	}
}

// ParseMetadata parses a header line of the form
// "[ <date> <time> <pid>:<tid> <priority>/<tag> ]" into a record without id or message.
func ParseMetadata(line string) (ds.Record, error) {
	var rec ds.Record
	line = strings.TrimRight(line, " \t")
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") || len(line) < 2 {
		return rec, fmt.Errorf("%w: missing brackets", ErrMalformedRecord)
	}
	s := strings.TrimSpace(line[1 : len(line)-1])

	var ok bool
	if rec.Date, s, ok = cutToken(s, " "); !ok {
		return rec, fmt.Errorf("%w: no date", ErrMalformedRecord)
	}
	if rec.Time, s, ok = cutToken(s, " "); !ok {
		return rec, fmt.Errorf("%w: no time", ErrMalformedRecord)
	}
	if rec.Pid, s, ok = cutToken(s, ":"); !ok {
		return rec, fmt.Errorf("%w: no pid", ErrMalformedRecord)
	}
	if rec.Tid, s, ok = cutToken(s, " "); !ok {
		return rec, fmt.Errorf("%w: no tid", ErrMalformedRecord)
	}
	var priStr string
	if priStr, s, ok = cutToken(s, "/"); !ok {
		return rec, fmt.Errorf("%w: no priority", ErrMalformedRecord)
	}
	pri, err := ds.ParsePriority(priStr)
	if err != nil || len(priStr) != 1 {
		return rec, fmt.Errorf("%w: bad priority %q", ErrMalformedRecord, priStr)
	}
	rec.Priority = pri
	rec.Tag = strings.TrimSpace(s)
	return rec, nil
}

// cutToken skips leading spaces, then returns the text before sep and the text after it.
func cutToken(s string, sep string) (string, string, bool) {
	s = strings.TrimLeft(s, " ")
	before, after, found := strings.Cut(s, sep)
	if !found || before == "" {
		return "", s, false
	}
	return before, after, true
}

// FormatMetadata renders the header line for rec.
func FormatMetadata(rec ds.Record) string {
	return fmt.Sprintf("[ %s %s %s:%s %s/%s ]", rec.Date, rec.Time, rec.Pid, rec.Tid, rec.Priority.Letter(), rec.Tag)
}

// Format renders rec in the persisted/wire form: header, message line(s), blank separator.
func Format(rec ds.Record) string {
	return FormatMetadata(rec) + "\n" + rec.Message + "\n\n"
}

// ParseLines yields a record for each "header, message, blank line" group in lines.
// Lines before a header that are not headers are skipped, as are headers that fail
// to parse. Message lines after the first are joined with "\n" until a blank line.
func (p *Parser) ParseLines(lines iter.Seq[string]) iter.Seq[ds.Record] {
	return func(yield func(ds.Record) bool) {
		var cur ds.Record
		const (
			stateHeader = iota
			stateFirstMsg
			stateMoreMsg
		)
		state := stateHeader
		var msg strings.Builder

		emit := func() bool {
			cur.Message = msg.String()
			cur.Id = p.ids.Next()
			msg.Reset()
			state = stateHeader
			return yield(cur)
		}
		startHeader := func(line string) {
			rec, err := ParseMetadata(line)
			if err != nil {
				p.reportMalformed(line, err)
				return
			}
			cur = rec
			state = stateFirstMsg
		}

		for line := range lines {
			switch state {
			case stateHeader:
				if !strings.HasPrefix(line, "[") {
					continue
				}
				startHeader(line)
			case stateFirstMsg:
				msg.WriteString(line)
				state = stateMoreMsg
			case stateMoreMsg:
				if line == "" {
					if !emit() {
						return
					}
					continue
				}
				if strings.HasPrefix(line, "[") {
					if _, err := ParseMetadata(line); err == nil {
						// separator was lost; close the current record and start the next
						if !emit() {
							return
						}
						startHeader(line)
						continue
					}
				}
				msg.WriteByte('\n')
				msg.WriteString(line)
			}
		}
		if state == stateMoreMsg {
			emit()
		}
	}
}

// ParseReader reads r until EOF and yields the records found. A read error ends the
// sequence; it is reported through errFn when errFn is non-nil.
func (p *Parser) ParseReader(r io.Reader, errFn func(error)) iter.Seq[ds.Record] {
	lines := func(yield func(string) bool) {
		for line, err := range utilfn.ReadLines(r) {
			if err != nil {
				if errFn != nil {
					errFn(err)
				}
				return
			}
			if !yield(line) {
				return
			}
		}
	}
	return p.ParseLines(lines)
}

// ParseString is a convenience wrapper for tests and small inputs.
func (p *Parser) ParseString(text string) []ds.Record {
	var rtn []ds.Record
	for rec := range p.ParseReader(strings.NewReader(text), nil) {
		rtn = append(rtn, rec)
	}
	return rtn
}
