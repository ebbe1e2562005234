// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logfilter compiles FilterSpecs and FilterGroups into record predicates.
package logfilter

import (
	"fmt"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logutil"
)

const (
	MatchTypeExact     = ds.MatchModeExact
	MatchTypeExactCase = ds.MatchModeExactCase
	MatchTypeRegexp    = ds.MatchModeRegexp
	MatchTypeFzf       = ds.MatchModeFzf
	MatchTypeNumeric   = "numeric"
	MatchTypePriority  = "priority"
	MatchTypePackage   = "package"
	MatchTypeAnd       = "and"
	MatchTypeOr        = "or"
	MatchTypeAll       = "all"
)

var log = logutil.Component("logfilter")

// Record fields a text matcher can target
const (
	FieldTag     = "tag"
	FieldMessage = "message"
	FieldPid     = "pid"
	FieldTid     = "tid"
)

// Matcher is a compiled predicate over a single record.
type Matcher interface {
	Match(rec ds.Record) bool
	GetType() string
}

func getField(rec ds.Record, field string) string {
	switch field {
	case FieldTag:
		return rec.Tag
	case FieldMessage:
		return rec.Message
	case FieldPid:
		return rec.Pid
	case FieldTid:
		return rec.Tid
	}
	return ""
}

func makeTextMatcher(field string, term string, mode string) (Matcher, error) {
	switch mode {
	case "", MatchTypeExact:
		return MakeExactMatcher(field, term, false), nil
	case MatchTypeExactCase:
		return MakeExactMatcher(field, term, true), nil
	case MatchTypeRegexp:
		return MakeRegexpMatcher(field, term)
	case MatchTypeFzf:
		return MakeFzfMatcher(field, term), nil
	}
	return nil, fmt.Errorf("unknown match mode %q", mode)
}

// Compile turns a FilterSpec into a matcher that ANDs every present criterion.
// A spec with no criteria compiles to a matcher that accepts every record.
// resolver may be nil, in which case any package-name criterion never matches.
func Compile(spec ds.FilterSpec, resolver PackageResolver) (Matcher, error) {
	var matchers []Matcher
	if spec.Tag != "" {
		m, err := makeTextMatcher(FieldTag, spec.Tag, spec.MatchMode)
		if err != nil {
			return nil, fmt.Errorf("tag filter: %w", err)
		}
		matchers = append(matchers, m)
	}
	if spec.Message != "" {
		m, err := makeTextMatcher(FieldMessage, spec.Message, spec.MatchMode)
		if err != nil {
			return nil, fmt.Errorf("message filter: %w", err)
		}
		matchers = append(matchers, m)
	}
	if spec.PackageName != "" {
		matchers = append(matchers, MakePackageMatcher(spec.PackageName, resolver))
	}
	if spec.Pid != nil {
		matchers = append(matchers, MakeNumericMatcher(FieldPid, *spec.Pid))
	}
	if spec.Tid != nil {
		matchers = append(matchers, MakeNumericMatcher(FieldTid, *spec.Tid))
	}
	if len(spec.Priorities) > 0 {
		matchers = append(matchers, MakePriorityMatcher(spec.Priorities))
	}
	if len(matchers) == 0 {
		return &AllMatcher{}, nil
	}
	if len(matchers) == 1 {
		return matchers[0], nil
	}
	return MakeAndMatcher(matchers), nil
}

// Group is a compiled FilterGroup. A nil or empty Group matches every record.
type Group struct {
	specs ds.FilterGroup
	or    Matcher
}

func CompileGroup(group ds.FilterGroup, resolver PackageResolver) (*Group, error) {
	rtn := &Group{specs: group}
	if len(group) == 0 {
		return rtn, nil
	}
	matchers := make([]Matcher, 0, len(group))
	for idx, spec := range group {
		m, err := Compile(spec, resolver)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", idx, err)
		}
		matchers = append(matchers, m)
	}
	rtn.or = MakeOrMatcher(matchers)
	return rtn, nil
}

func (g *Group) IsEmpty() bool {
	return g == nil || g.or == nil
}

// Specs returns the FilterGroup this Group was compiled from.
func (g *Group) Specs() ds.FilterGroup {
	if g == nil {
		return nil
	}
	return g.specs
}

func (g *Group) Matches(rec ds.Record) bool {
	if g.IsEmpty() {
		return true
	}
	return g.or.Match(rec)
}

// Visible reports whether rec passes include and is not caught by exclude.
// An empty exclude group excludes nothing.
func Visible(rec ds.Record, include *Group, exclude *Group) bool {
	if !include.Matches(rec) {
		return false
	}
	if exclude.IsEmpty() {
		return true
	}
	return !exclude.Matches(rec)
}

// FilterVisible returns the subset of batch that passes Visible, preserving order.
func FilterVisible(batch []ds.Record, include *Group, exclude *Group) []ds.Record {
	if include.IsEmpty() && exclude.IsEmpty() {
		return batch
	}
	rtn := make([]ds.Record, 0, len(batch))
	for _, rec := range batch {
		if Visible(rec, include, exclude) {
			rtn = append(rtn, rec)
		}
	}
	return rtn
}

// Matches evaluates a single spec against rec. Specs that fail to compile never match.
func Matches(rec ds.Record, spec ds.FilterSpec, resolver PackageResolver) bool {
	m, err := Compile(spec, resolver)
	if err != nil {
		logutil.LogfOnce(log, "logfilter:compile", "cannot compile filter: %v", err)
		return false
	}
	return m.Match(rec)
}

// MatchesGroup is true if group is empty or any member spec matches rec.
func MatchesGroup(rec ds.Record, group ds.FilterGroup, resolver PackageResolver) bool {
	if len(group) == 0 {
		return true
	}
	for _, spec := range group {
		if Matches(rec, spec, resolver) {
			return true
		}
	}
	return false
}
