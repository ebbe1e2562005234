// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logfilter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/darshanparajuli/logcatreader/pkg/logutil"
	"github.com/darshanparajuli/logcatreader/pkg/utilds"
)

const DefaultPackageRefresh = 30 * time.Second
const packageCommandTimeout = 10 * time.Second

// PackageSourceOpts says where the uid->package table and (optionally) the pid->uid
// table come from. Without a PidUidCommand pids are resolved against the local
// process table, which is only correct when the log process runs on the same host
// as the logged processes.
type PackageSourceOpts struct {
	// ListPath is a packages.list style file.
	ListPath string
	// ListCommand prints packages.list or "pm list packages -U" output. Used when ListPath is empty.
	ListCommand []string
	// PidUidCommand prints "ps -A -o PID,UID" output.
	PidUidCommand []string
	Refresh       time.Duration
}

func (o PackageSourceOpts) IsEmpty() bool {
	return o.ListPath == "" && len(o.ListCommand) == 0
}

// PackageRefresher keeps a PackageMap current by re-reading its sources on an interval.
type PackageRefresher struct {
	opts     PackageSourceOpts
	pkgs     *PackageMap
	pids     *PidUidTable
	executor *utilds.PeriodicExecutor
}

func MakePackageRefresher(opts PackageSourceOpts) *PackageRefresher {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultPackageRefresh
	}
	r := &PackageRefresher{opts: opts}
	if len(opts.PidUidCommand) > 0 {
		r.pids = MakePidUidTable()
		r.pkgs = MakePackageMap(r.pids.Lookup)
	} else {
		r.pkgs = MakePackageMap(nil)
	}
	r.executor = utilds.MakePeriodicExecutor("logfilter:packages", opts.Refresh, func() {
		if err := r.Refresh(); err != nil {
			logutil.LogfOnce(log, "logfilter:refresh", "package refresh failed: %v", err)
		}
	})
	return r
}

// Resolver is the map handed to the session controller. It stays the same object
// across refreshes.
func (r *PackageRefresher) Resolver() *PackageMap {
	return r.pkgs
}

// Refresh reloads both tables once. A failing source leaves its previous table in place.
func (r *PackageRefresher) Refresh() error {
	var errs []error
	listOutput, err := r.readPackageList()
	if err == nil {
		var byUid map[uint32]string
		byUid, err = ParsePackageList(bytes.NewReader(listOutput))
		if err == nil {
			r.pkgs.Update(byUid)
		}
	}
	if err != nil {
		errs = append(errs, err)
	}
	if r.pids != nil {
		psOutput, err := runPackageCommand(r.opts.PidUidCommand)
		if err == nil {
			var byPid map[int32]uint32
			byPid, err = ParsePidUids(bytes.NewReader(psOutput))
			if err == nil {
				r.pids.Update(byPid)
			}
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *PackageRefresher) readPackageList() ([]byte, error) {
	if r.opts.ListPath != "" {
		barr, err := os.ReadFile(r.opts.ListPath)
		if err != nil {
			return nil, fmt.Errorf("reading package list: %w", err)
		}
		return barr, nil
	}
	return runPackageCommand(r.opts.ListCommand)
}

func runPackageCommand(command []string) ([]byte, error) {
	if len(command) == 0 {
		return nil, errors.New("no package list source configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), packageCommandTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, command[0], command[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("running %v: %w", command, err)
	}
	return out, nil
}

// Start loads the tables once, then keeps refreshing them until Stop.
func (r *PackageRefresher) Start() {
	if err := r.Refresh(); err != nil {
		log.Warnf("initial package refresh: %v", err)
	} else {
		log.Debugf("loaded %d packages", r.pkgs.Len())
	}
	r.executor.Enable()
}

func (r *PackageRefresher) Stop() {
	r.executor.Disable(packageCommandTimeout)
}
