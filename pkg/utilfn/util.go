// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilfn

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/exp/constraints"
)

func GetHomeDir() string {
	homeVar, err := os.UserHomeDir()
	if err != nil {
		return "/"
	}
	return homeVar
}

func ExpandHomeDir(pathStr string) string {
	if pathStr != "~" && !strings.HasPrefix(pathStr, "~/") && (!strings.HasPrefix(pathStr, `~\`) || runtime.GOOS != "windows") {
		return filepath.Clean(pathStr)
	}
	homeDir := GetHomeDir()
	if pathStr == "~" {
		return homeDir
	}
	expandedPath := filepath.Clean(filepath.Join(homeDir, pathStr[2:]))
	return expandedPath
}

// BoundValue clamps val to [minVal, maxVal].
func BoundValue[T constraints.Ordered](val T, minVal T, maxVal T) T {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func CopyArr[T any](arr []T) []T {
	if arr == nil {
		return nil
	}
	newArr := make([]T, len(arr))
	copy(newArr, arr)
	return newArr
}

// DedupStrs removes empty and repeated strings, keeping first occurrences in order.
func DedupStrs(arr []string) []string {
	seen := make(map[string]bool, len(arr))
	var rtn []string
	for _, s := range arr {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		rtn = append(rtn, s)
	}
	return rtn
}
