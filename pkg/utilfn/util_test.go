// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilfn

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

func TestLineBufProcessBuf(t *testing.T) {
	tests := []struct {
		name      string
		chunks    []string
		wantLines []string
		wantRest  string
	}{
		{
			name:      "single chunk",
			chunks:    []string{"a\nb\n"},
			wantLines: []string{"a", "b"},
		},
		{
			name:      "split across chunks",
			chunks:    []string{"hel", "lo\nwor", "ld\n"},
			wantLines: []string{"hello", "world"},
		},
		{
			name:      "crlf and blank lines",
			chunks:    []string{"x\r\n\r\ny\n"},
			wantLines: []string{"x", "", "y"},
		},
		{
			name:      "partial retained",
			chunks:    []string{"done\npart"},
			wantLines: []string{"done"},
			wantRest:  "part",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lb := MakeLineBuf()
			var got []string
			for _, chunk := range tt.chunks {
				got = append(got, lb.ProcessBuf([]byte(chunk))...)
			}
			if !reflect.DeepEqual(got, tt.wantLines) {
				t.Errorf("Expected lines %q, got %q", tt.wantLines, got)
			}
			if rest := lb.GetPartialAndReset(); rest != tt.wantRest {
				t.Errorf("Expected partial %q, got %q", tt.wantRest, rest)
			}
		})
	}
}

func TestLineBufLongLine(t *testing.T) {
	lb := MakeLineBuf()
	long := strings.Repeat("x", MaxLineLength+10)
	lines := lb.ProcessBuf([]byte(long + "\nnext\n"))
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if len(lines[0]) != MaxLineLength {
		t.Errorf("Expected truncated line of %d bytes, got %d", MaxLineLength, len(lines[0]))
	}
	if lines[1] != "next" {
		t.Errorf("Expected 'next', got %q", lines[1])
	}
}

func TestReadLines(t *testing.T) {
	r := iotest.OneByteReader(strings.NewReader("one\ntwo\nthree"))
	var got []string
	for line, err := range ReadLines(r) {
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		got = append(got, line)
	}
	want := []string{"one", "two", "three"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestReadLinesError(t *testing.T) {
	boom := errors.New("boom")
	r := iotest.ErrReader(boom)
	var gotErr error
	for _, err := range ReadLines(r) {
		gotErr = err
	}
	if !errors.Is(gotErr, boom) {
		t.Errorf("Expected boom error, got %v", gotErr)
	}
}

func TestBoundValue(t *testing.T) {
	if BoundValue(5, 10, 20) != 10 {
		t.Error("Expected lower clamp")
	}
	if BoundValue(25, 10, 20) != 20 {
		t.Error("Expected upper clamp")
	}
	if BoundValue(15, 10, 20) != 15 {
		t.Error("Expected passthrough")
	}
}

func TestDedupStrs(t *testing.T) {
	got := DedupStrs([]string{"main", " system", "", "main", "crash"})
	want := []string{"main", "system", "crash"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
