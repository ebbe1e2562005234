// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logfilter"
)

func TestBuildFilters(t *testing.T) {
	include, exclude, err := buildFilters(captureFilters{
		IncludeTags: []string{"Net", "Ui"},
		ExcludeTags: []string{"Chatty"},
		Priorities:  []string{"W", "error"},
	})
	if err != nil {
		t.Fatalf("buildFilters: %v", err)
	}
	if len(include) != 2 || len(exclude) != 1 {
		t.Fatalf("Expected 2 include and 1 exclude specs, got %d and %d", len(include), len(exclude))
	}
	inc, _ := logfilter.CompileGroup(include, nil)
	exc, _ := logfilter.CompileGroup(exclude, nil)

	tests := []struct {
		rec  ds.Record
		want bool
	}{
		{ds.Record{Tag: "NetStack", Priority: ds.PriorityWarning}, true},
		{ds.Record{Tag: "NetStack", Priority: ds.PriorityDebug}, false},
		{ds.Record{Tag: "UiThread", Priority: ds.PriorityError}, true},
		{ds.Record{Tag: "NetChatty", Priority: ds.PriorityError}, false},
		{ds.Record{Tag: "Other", Priority: ds.PriorityError}, false},
	}
	for _, tc := range tests {
		if got := logfilter.Visible(tc.rec, inc, exc); got != tc.want {
			t.Errorf("%+v: expected %v, got %v", tc.rec, tc.want, got)
		}
	}
}

func TestBuildFiltersPriorityOnly(t *testing.T) {
	include, exclude, err := buildFilters(captureFilters{Priorities: []string{"E"}})
	if err != nil {
		t.Fatalf("buildFilters: %v", err)
	}
	if len(include) != 1 || len(exclude) != 0 {
		t.Fatalf("Expected a single priority spec, got %v / %v", include, exclude)
	}
	if _, _, err := buildFilters(captureFilters{Priorities: []string{"Q"}}); err == nil {
		t.Error("Expected unknown priority to fail")
	}
}

func TestBuildFiltersEmpty(t *testing.T) {
	include, exclude, err := buildFilters(captureFilters{})
	if err != nil {
		t.Fatalf("buildFilters: %v", err)
	}
	if include != nil || exclude != nil {
		t.Errorf("Expected empty groups, got %v / %v", include, exclude)
	}
}

func TestBuildFiltersPackages(t *testing.T) {
	include, _, err := buildFilters(captureFilters{
		IncludeTags: []string{"Net"},
		Packages:    []string{"com.example.app"},
		Priorities:  []string{"E"},
	})
	if err != nil {
		t.Fatalf("buildFilters: %v", err)
	}
	if len(include) != 2 {
		t.Fatalf("Expected 2 include specs, got %d", len(include))
	}
	pkgSpec := include[1]
	if pkgSpec.PackageName != "com.example.app" || len(pkgSpec.Priorities) != 1 || pkgSpec.Tag != "" {
		t.Errorf("Unexpected package spec %+v", pkgSpec)
	}
}
