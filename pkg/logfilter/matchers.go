// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logfilter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// AllMatcher matches every record
type AllMatcher struct{}

func (m *AllMatcher) Match(rec ds.Record) bool { return true }

func (m *AllMatcher) GetType() string { return MatchTypeAll }

// ExactMatcher is a substring match on one field
type ExactMatcher struct {
	field         string
	searchTerm    string
	caseSensitive bool
}

func MakeExactMatcher(field string, searchTerm string, caseSensitive bool) *ExactMatcher {
	if !caseSensitive {
		searchTerm = strings.ToLower(searchTerm)
	}
	return &ExactMatcher{
		field:         field,
		searchTerm:    searchTerm,
		caseSensitive: caseSensitive,
	}
}

func (m *ExactMatcher) Match(rec ds.Record) bool {
	fieldText := getField(rec, m.field)
	if !m.caseSensitive {
		fieldText = strings.ToLower(fieldText)
	}
	return strings.Contains(fieldText, m.searchTerm)
}

func (m *ExactMatcher) GetType() string {
	if m.caseSensitive {
		return MatchTypeExactCase
	}
	return MatchTypeExact
}

type RegexpMatcher struct {
	field string
	regex *regexp.Regexp
}

func MakeRegexpMatcher(field string, searchTerm string) (*RegexpMatcher, error) {
	regex, err := regexp.Compile(searchTerm)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression: %w", err)
	}
	return &RegexpMatcher{field: field, regex: regex}, nil
}

func (m *RegexpMatcher) Match(rec ds.Record) bool {
	return m.regex.MatchString(getField(rec, m.field))
}

func (m *RegexpMatcher) GetType() string {
	return MatchTypeRegexp
}

// FzfMatcher does case-insensitive fuzzy matching with the fzf algorithm.
type FzfMatcher struct {
	field   string
	pattern []rune
	lock    sync.Mutex // guards slab
	slab    *util.Slab
}

func MakeFzfMatcher(field string, searchTerm string) *FzfMatcher {
	return &FzfMatcher{
		field:   field,
		pattern: []rune(strings.ToLower(searchTerm)),
		slab:    util.MakeSlab(64, 4096),
	}
}

func (m *FzfMatcher) Match(rec ds.Record) bool {
	text := strings.ToLower(getField(rec, m.field))
	chars := util.ToChars([]byte(text))
	m.lock.Lock()
	defer m.lock.Unlock()
	result, _ := algo.FuzzyMatchV2(false, true, true, &chars, m.pattern, true, m.slab)
	return result.Score > 0
}

func (m *FzfMatcher) GetType() string {
	return MatchTypeFzf
}

// NumericMatcher matches when a numeric field equals value.
// Fields that do not parse as integers never match.
type NumericMatcher struct {
	field string
	value int
}

func MakeNumericMatcher(field string, value int) *NumericMatcher {
	return &NumericMatcher{field: field, value: value}
}

func (m *NumericMatcher) Match(rec ds.Record) bool {
	fieldNum, err := strconv.Atoi(strings.TrimSpace(getField(rec, m.field)))
	if err != nil {
		return false
	}
	return fieldNum == m.value
}

func (m *NumericMatcher) GetType() string {
	return MatchTypeNumeric
}

type PriorityMatcher struct {
	allowed [int(ds.PriorityAssert) + 1]bool
}

func MakePriorityMatcher(priorities []ds.Priority) *PriorityMatcher {
	m := &PriorityMatcher{}
	for _, p := range priorities {
		if p.IsValid() {
			m.allowed[p] = true
		}
	}
	return m
}

func (m *PriorityMatcher) Match(rec ds.Record) bool {
	return rec.Priority.IsValid() && m.allowed[rec.Priority]
}

func (m *PriorityMatcher) GetType() string {
	return MatchTypePriority
}

// PackageMatcher is a case-insensitive substring match on the package name
// owning the record's pid. Records whose pid cannot be resolved do not match.
type PackageMatcher struct {
	searchTerm string
	resolver   PackageResolver
}

func MakePackageMatcher(searchTerm string, resolver PackageResolver) *PackageMatcher {
	return &PackageMatcher{
		searchTerm: strings.ToLower(searchTerm),
		resolver:   resolver,
	}
}

func (m *PackageMatcher) Match(rec ds.Record) bool {
	if m.resolver == nil {
		return false
	}
	pkgName, ok := m.resolver.PackageNameForPid(rec.Pid)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(pkgName), m.searchTerm)
}

func (m *PackageMatcher) GetType() string {
	return MatchTypePackage
}

type AndMatcher struct {
	matchers []Matcher
}

func MakeAndMatcher(matchers []Matcher) *AndMatcher {
	return &AndMatcher{matchers: matchers}
}

func (m *AndMatcher) Match(rec ds.Record) bool {
	for _, matcher := range m.matchers {
		if !matcher.Match(rec) {
			return false
		}
	}
	return true
}

func (m *AndMatcher) GetType() string {
	return MatchTypeAnd
}

// OrMatcher matches if any contained matcher matches; with no matchers nothing matches.
type OrMatcher struct {
	matchers []Matcher
}

func MakeOrMatcher(matchers []Matcher) *OrMatcher {
	return &OrMatcher{matchers: matchers}
}

func (m *OrMatcher) Match(rec ds.Record) bool {
	for _, matcher := range m.matchers {
		if matcher.Match(rec) {
			return true
		}
	}
	return false
}

func (m *OrMatcher) GetType() string {
	return MatchTypeOr
}
