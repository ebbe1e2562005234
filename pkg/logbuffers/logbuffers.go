// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logbuffers discovers which log buffers the log binary knows about.
package logbuffers

import (
	"context"
	"fmt"
	"os/exec"
	"path"
	"slices"
	"strings"
	"unicode"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logutil"
	"github.com/emirpasic/gods/containers"
	"github.com/emirpasic/gods/sets/linkedhashset"
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
)

var log = logutil.Component("logbuffers")

type BufferInfo struct {
	Configured []string `json:"configured"`
	Supported  []string `json:"supported"`
}

// knownBufferComparator orders buffers by their position in ds.KnownBuffers.
func knownBufferComparator(a, b interface{}) int {
	return utils.IntComparator(slices.Index(ds.KnownBuffers, a.(string)), slices.Index(ds.KnownBuffers, b.(string)))
}

func setToStrings(set containers.Container) []string {
	rtn := make([]string, 0, set.Size())
	for _, v := range set.Values() {
		rtn = append(rtn, v.(string))
	}
	return rtn
}

// ParseConfigured parses "-g" output: the buffer name is the token before the first ':'
// on each line, or its basename when the token is a path. Names keep the order the
// device lists them in.
func ParseConfigured(output string) []string {
	set := linkedhashset.New()
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		name, _, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if strings.HasPrefix(name, "/") {
			name = path.Base(name)
		}
		if name == "" || strings.ContainsAny(name, " \t") {
			continue
		}
		set.Add(name)
	}
	return setToStrings(set)
}

func words(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// ParseSupported parses "-h" output: known buffer names mentioned in the lines that follow
// the "-b" help entry, up to the next line that starts with '-'.
func ParseSupported(output string) []string {
	set := treeset.NewWith(knownBufferComparator)
	inBufferHelp := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inBufferHelp {
			if strings.HasPrefix(trimmed, "-b") {
				inBufferHelp = true
			}
			continue
		}
		if strings.HasPrefix(trimmed, "-") {
			break
		}
		for _, word := range words(trimmed) {
			if slices.Contains(ds.KnownBuffers, word) {
				set.Add(word)
			}
		}
	}
	return setToStrings(set)
}

// Discover runs "<command> -g" and "<command> -h". The help text is often printed to
// stderr with a non-zero exit code, so output is collected from both streams and the
// exit status of "-h" is ignored.
func Discover(ctx context.Context, command []string) (*BufferInfo, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("empty log command")
	}
	info := &BufferInfo{}

	gArgs := append(slices.Clone(command[1:]), "-g")
	gOut, err := exec.CommandContext(ctx, command[0], gArgs...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("running %s -g: %w", command[0], err)
	}
	info.Configured = ParseConfigured(string(gOut))

	hArgs := append(slices.Clone(command[1:]), "-h")
	hOut, err := exec.CommandContext(ctx, command[0], hArgs...).CombinedOutput()
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		log.Debugf("%s -h exited with %v", command[0], err)
	}
	info.Supported = ParseSupported(string(hOut))
	if len(info.Supported) == 0 {
		info.Supported = slices.Clone(ds.DefaultBuffers)
	}
	return info, nil
}
