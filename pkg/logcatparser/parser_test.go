// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logcatparser

import (
	"errors"
	"strings"
	"testing"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
)

func TestParseEndToEnd(t *testing.T) {
	p := MakeParser(&IdGen{})
	recs := p.ParseString("[01-12 21:10:46.123 1600:123123 D/Tag]\nThis is a log\n\n")
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}
	want := ds.Record{
		Id:       1,
		Date:     "01-12",
		Time:     "21:10:46.123",
		Pid:      "1600",
		Tid:      "123123",
		Priority: ds.PriorityDebug,
		Tag:      "Tag",
		Message:  "This is a log",
	}
	if recs[0] != want {
		t.Errorf("Expected %+v, got %+v", want, recs[0])
	}
}

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    ds.Record
		wantErr bool
	}{
		{
			name: "real logcat padding",
			line: "[ 01-12 21:10:46.123  1600: 1623 W/ActivityManager   ]",
			want: ds.Record{Date: "01-12", Time: "21:10:46.123", Pid: "1600", Tid: "1623", Priority: ds.PriorityWarning, Tag: "ActivityManager"},
		},
		{
			name: "spaces before priority",
			line: "[01-12 21:10:46.123 1:2    E/x]",
			want: ds.Record{Date: "01-12", Time: "21:10:46.123", Pid: "1", Tid: "2", Priority: ds.PriorityError, Tag: "x"},
		},
		{
			name: "tag with slash",
			line: "[ 01-12 21:10:46.123 1:2 A/a/b ]",
			want: ds.Record{Date: "01-12", Time: "21:10:46.123", Pid: "1", Tid: "2", Priority: ds.PriorityAssert, Tag: "a/b"},
		},
		{name: "no brackets", line: "01-12 21:10:46.123 1:2 D/Tag", wantErr: true},
		{name: "missing tid", line: "[ 01-12 21:10:46.123 1600 D/Tag ]", wantErr: true},
		{name: "bad priority", line: "[ 01-12 21:10:46.123 1:2 Q/Tag ]", wantErr: true},
		{name: "word priority", line: "[ 01-12 21:10:46.123 1:2 debug/Tag ]", wantErr: true},
		{name: "beginning of", line: "--------- beginning of main", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMetadata(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedRecord) {
					t.Errorf("Expected ErrMalformedRecord, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseSkipsNoiseAndMalformed(t *testing.T) {
	input := strings.Join([]string{
		"--------- beginning of main",
		"[ 01-12 21:10:46.123 1:2 D/First ]",
		"one",
		"",
		"[ broken header ]",
		"orphan message",
		"",
		"[ 01-12 21:10:47.000 3:4 I/Second ]",
		"two",
		"",
	}, "\n") + "\n"

	p := MakeParser(&IdGen{})
	var malformed []string
	p.OnMalformed = func(line string, err error) {
		malformed = append(malformed, line)
	}
	recs := p.ParseString(input)
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d: %+v", len(recs), recs)
	}
	if recs[0].Tag != "First" || recs[1].Tag != "Second" {
		t.Errorf("Unexpected tags %q, %q", recs[0].Tag, recs[1].Tag)
	}
	if p.MalformedCount() != 1 || len(malformed) != 1 {
		t.Errorf("Expected 1 malformed header, got count %d / %v", p.MalformedCount(), malformed)
	}
}

func TestParseMultiLineMessage(t *testing.T) {
	p := MakeParser(&IdGen{})
	recs := p.ParseString("[ 01-12 21:10:46.123 1:2 E/Crash ]\nline one\nline two\n\n")
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}
	if recs[0].Message != "line one\nline two" {
		t.Errorf("Expected joined message, got %q", recs[0].Message)
	}
}

func TestParseMissingSeparator(t *testing.T) {
	p := MakeParser(&IdGen{})
	recs := p.ParseString("[ 01-12 21:10:46.123 1:2 D/A ]\nmsg a\n[ 01-12 21:10:46.124 1:2 D/B ]\nmsg b")
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].Message != "msg a" || recs[1].Message != "msg b" {
		t.Errorf("Unexpected messages %q, %q", recs[0].Message, recs[1].Message)
	}
}

func TestIdsMonotonicAcrossParsers(t *testing.T) {
	ids := &IdGen{}
	p1 := MakeParser(ids)
	p2 := MakeParser(ids)
	text := "[ 01-12 21:10:46.123 1:2 D/A ]\nm\n\n[ 01-12 21:10:46.123 1:2 D/B ]\nm\n\n"
	a := p1.ParseString(text)
	b := p2.ParseString(text)
	var last uint64
	for _, rec := range append(a, b...) {
		if rec.Id <= last {
			t.Errorf("Expected strictly increasing ids, got %d after %d", rec.Id, last)
		}
		last = rec.Id
	}
	if ids.Last() != 4 {
		t.Errorf("Expected last id 4, got %d", ids.Last())
	}
}

func TestRoundTrip(t *testing.T) {
	records := []ds.Record{
		{Date: "01-12", Time: "21:10:46.123", Pid: "1600", Tid: "123123", Priority: ds.PriorityDebug, Tag: "Tag", Message: "This is a log"},
		{Date: "12-31", Time: "23:59:59.999", Pid: "1", Tid: "1", Priority: ds.PriorityVerbose, Tag: "a/b c", Message: "multi\nline message"},
		{Date: "02-01", Time: "00:00:00.000", Pid: "42", Tid: "43", Priority: ds.PriorityAssert, Tag: "", Message: ""},
		{Date: "02-01", Time: "00:00:00.000", Pid: "42", Tid: "43", Priority: ds.PriorityFatal, Tag: "X", Message: "[not a header"},
	}
	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString(Format(rec))
	}
	p := MakeParser(&IdGen{})
	parsed := p.ParseString(sb.String())
	if len(parsed) != len(records) {
		t.Fatalf("Expected %d records, got %d", len(records), len(parsed))
	}
	for i := range records {
		if !parsed[i].SameContent(records[i]) {
			t.Errorf("Round trip mismatch at %d: expected %+v, got %+v", i, records[i], parsed[i])
		}
	}
}

func TestParseLinesEarlyStop(t *testing.T) {
	p := MakeParser(&IdGen{})
	text := strings.Repeat("[ 01-12 21:10:46.123 1:2 D/A ]\nm\n\n", 5)
	count := 0
	for range p.ParseReader(strings.NewReader(text), nil) {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("Expected to stop after 2, got %d", count)
	}
}
