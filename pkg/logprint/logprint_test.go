// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logprint

import (
	"bytes"
	"strings"
	"testing"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
)

var rec = ds.Record{
	Date:     "01-12",
	Time:     "21:10:46.123",
	Pid:      "1600",
	Tid:      "123123",
	Priority: ds.PriorityWarning,
	Tag:      "Tag",
	Message:  "line one\nline two",
}

func TestRenderBrief(t *testing.T) {
	p := MakePrinter(&bytes.Buffer{}, FormatBrief, false)
	got := p.Render(rec)
	want := "W/Tag( 1600): line one\nW/Tag( 1600): line two\n"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestRenderLong(t *testing.T) {
	p := MakePrinter(&bytes.Buffer{}, FormatLong, false)
	got := p.Render(rec)
	want := "[ 01-12 21:10:46.123 1600:123123 W/Tag ]\nline one\nline two\n\n"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestUnknownFormatFallsBack(t *testing.T) {
	p := MakePrinter(&bytes.Buffer{}, "json", false)
	if !strings.HasPrefix(p.Render(rec), "W/Tag") {
		t.Errorf("Expected brief output, got %q", p.Render(rec))
	}
}

func TestPrintColorKeepsText(t *testing.T) {
	var buf bytes.Buffer
	p := MakePrinter(&buf, FormatBrief, true)
	if err := p.Print([]ds.Record{rec, rec}); err != nil {
		t.Fatalf("Print: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "line one") != 2 {
		t.Errorf("Expected both records in output, got %q", out)
	}
	if !strings.Contains(out, "Tag") {
		t.Errorf("Expected tag in output, got %q", out)
	}
}
