// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logfilter

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

// PackageResolver maps a record's pid to the package name that owns it.
type PackageResolver interface {
	PackageNameForPid(pid string) (string, bool)
}

// UidLookupFn returns the real uid of a running process.
type UidLookupFn func(pid int32) (uint32, error)

// ProcUid reads the real uid of pid from the process table.
func ProcUid(pid int32) (uint32, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return 0, err
	}
	uids, err := proc.Uids()
	if err != nil {
		return 0, err
	}
	if len(uids) == 0 {
		return 0, fmt.Errorf("no uids for pid %d", pid)
	}
	return uids[0], nil
}

// PackageMap is a uid to package-name table that is replaced wholesale by its owner
// on a refresh cycle. Lookups see either the old or the new table, never a mix.
type PackageMap struct {
	lock      sync.RWMutex
	byUid     map[uint32]string
	uidLookup UidLookupFn
}

// MakePackageMap creates an empty map. A nil uidLookup uses ProcUid.
func MakePackageMap(uidLookup UidLookupFn) *PackageMap {
	if uidLookup == nil {
		uidLookup = ProcUid
	}
	return &PackageMap{
		byUid:     make(map[uint32]string),
		uidLookup: uidLookup,
	}
}

func (m *PackageMap) Update(byUid map[uint32]string) {
	newMap := make(map[uint32]string, len(byUid))
	for uid, name := range byUid {
		newMap[uid] = name
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.byUid = newMap
}

func (m *PackageMap) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.byUid)
}

func (m *PackageMap) PackageNameForUid(uid uint32) (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	name, ok := m.byUid[uid]
	return name, ok
}

func (m *PackageMap) PackageNameForPid(pid string) (string, bool) {
	pidNum, err := strconv.ParseInt(strings.TrimSpace(pid), 10, 32)
	if err != nil || pidNum <= 0 {
		return "", false
	}
	uid, err := m.uidLookup(int32(pidNum))
	if err != nil {
		return "", false
	}
	return m.PackageNameForUid(uid)
}

// ParsePackageList reads either the "packages.list" format ("<package> <uid> ...",
// extra columns ignored) or "pm list packages -U" output ("package:<name> uid:<uid>").
// For shared uids the first listed package wins.
func ParsePackageList(r io.Reader) (map[uint32]string, error) {
	rtn := make(map[uint32]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name, uid, ok := parsePackageLine(scanner.Text())
		if !ok {
			continue
		}
		if _, found := rtn[uid]; !found {
			rtn[uid] = name
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading package list: %w", err)
	}
	return rtn, nil
}

func parsePackageLine(line string) (string, uint32, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", 0, false
	}
	name, uidStr := fields[0], fields[1]
	if pmName, isPm := strings.CutPrefix(name, "package:"); isPm {
		name = pmName
		uidStr = ""
		for _, f := range fields[1:] {
			if v, ok := strings.CutPrefix(f, "uid:"); ok {
				// "uid:1000,10050" for packages installed for several users
				uidStr, _, _ = strings.Cut(v, ",")
				break
			}
		}
	}
	uid, err := strconv.ParseUint(uidStr, 10, 32)
	if err != nil || name == "" {
		return "", 0, false
	}
	return name, uint32(uid), true
}

// PidUidTable is a pid to uid snapshot of the device's process table, used when the
// log process runs on another machine (e.g. "adb logcat") and the local process
// table does not know the device pids.
type PidUidTable struct {
	lock  sync.RWMutex
	byPid map[int32]uint32
}

func MakePidUidTable() *PidUidTable {
	return &PidUidTable{byPid: make(map[int32]uint32)}
}

func (t *PidUidTable) Update(byPid map[int32]uint32) {
	newMap := make(map[int32]uint32, len(byPid))
	for pid, uid := range byPid {
		newMap[pid] = uid
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.byPid = newMap
}

// Lookup has the UidLookupFn signature.
func (t *PidUidTable) Lookup(pid int32) (uint32, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	uid, ok := t.byPid[pid]
	if !ok {
		return 0, fmt.Errorf("pid %d not in process table", pid)
	}
	return uid, nil
}

// ParsePidUids reads "ps -A -o PID,UID" output. The header and any line whose
// first two columns are not numeric are skipped.
func ParsePidUids(r io.Reader) (map[int32]uint32, error) {
	rtn := make(map[int32]uint32)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			continue
		}
		uid, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			continue
		}
		rtn[int32(pid)] = uint32(uid)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading process table: %w", err)
	}
	return rtn, nil
}
