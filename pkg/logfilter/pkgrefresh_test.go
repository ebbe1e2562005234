// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logfilter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestParsePackageListPmFormat(t *testing.T) {
	input := "package:com.android.shell uid:2000\n" +
		"package:com.example.app uid:10123,1010123\n" +
		"package:com.example.shared uid:10123\n" +
		"package:noid\n"
	got, err := ParsePackageList(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParsePackageList: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 uids, got %d (%v)", len(got), got)
	}
	if got[2000] != "com.android.shell" {
		t.Errorf("Expected com.android.shell, got %q", got[2000])
	}
	if got[10123] != "com.example.app" {
		t.Errorf("Expected first package for a shared uid, got %q", got[10123])
	}
}

func TestParsePidUids(t *testing.T) {
	input := "  PID   UID\n" +
		"    1     0\n" +
		" 1600 10123\n" +
		"  bad 10000\n" +
		"  1700  root\n"
	got, err := ParsePidUids(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParsePidUids: %v", err)
	}
	if len(got) != 2 || got[1600] != 10123 || got[1] != 0 {
		t.Errorf("Expected {1:0 1600:10123}, got %v", got)
	}
}

func TestPackageRefresherCommands(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	listFile := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(listFile, []byte("package:com.example.app uid:10123\n"), 0644); err != nil {
		t.Fatal(err)
	}
	r := MakePackageRefresher(PackageSourceOpts{
		ListCommand:   []string{"/bin/sh", "-c", "cat " + listFile},
		PidUidCommand: []string{"/bin/sh", "-c", "printf 'PID UID\\n1600 10123\\n1700 10999\\n'"},
		Refresh:       time.Hour,
	})
	if err := r.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	pm := r.Resolver()
	if name, ok := pm.PackageNameForPid("1600"); !ok || name != "com.example.app" {
		t.Errorf("Expected (com.example.app, true), got (%q, %v)", name, ok)
	}
	if _, ok := pm.PackageNameForPid("1700"); ok {
		t.Error("Expected uid without a package to fail")
	}

	// a failing source keeps the previous table
	os.Remove(listFile)
	if err := r.Refresh(); err == nil {
		t.Error("Expected refresh error after the list source went away")
	}
	if name, _ := pm.PackageNameForPid("1600"); name != "com.example.app" {
		t.Errorf("Expected previous table to survive a failed refresh, got %q", name)
	}
}

func TestPackageRefresherListPathLocalPids(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uids are posix only")
	}
	listFile := filepath.Join(t.TempDir(), "packages.list")
	content := fmt.Sprintf("com.example.self %d 0 /data/user/0/com.example.self default none\n", os.Getuid())
	if err := os.WriteFile(listFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	r := MakePackageRefresher(PackageSourceOpts{ListPath: listFile})
	r.Start()
	defer r.Stop()
	name, ok := r.Resolver().PackageNameForPid(strconv.Itoa(os.Getpid()))
	if !ok || name != "com.example.self" {
		t.Errorf("Expected own pid to resolve to com.example.self, got (%q, %v)", name, ok)
	}
}

func TestPackageSourceOptsIsEmpty(t *testing.T) {
	if !(PackageSourceOpts{}).IsEmpty() {
		t.Error("Expected zero opts to be empty")
	}
	if !(PackageSourceOpts{PidUidCommand: []string{"ps"}}).IsEmpty() {
		t.Error("Expected opts without a package list to be empty")
	}
	if (PackageSourceOpts{ListCommand: []string{"pm"}}).IsEmpty() {
		t.Error("Expected opts with a list command not to be empty")
	}
}
