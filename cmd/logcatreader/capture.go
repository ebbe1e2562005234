// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logfile"
	"github.com/darshanparajuli/logcatreader/pkg/logprint"
	"github.com/darshanparajuli/logcatreader/pkg/logsession"
	"github.com/darshanparajuli/logcatreader/pkg/logutil"
	"github.com/spf13/cobra"
)

var log = logutil.Component("capture")

type captureFilters struct {
	IncludeTags []string
	Packages    []string
	ExcludeTags []string
	Priorities  []string
	MatchMode   string
}

// buildFilters turns the capture flags into include/exclude groups. Priorities
// narrow every include spec; with no include tags they form a spec of their own.
func buildFilters(f captureFilters) (include ds.FilterGroup, exclude ds.FilterGroup, err error) {
	var prios []ds.Priority
	for _, p := range f.Priorities {
		prio, err := ds.ParsePriority(p)
		if err != nil {
			return nil, nil, err
		}
		prios = append(prios, prio)
	}
	for _, tag := range f.IncludeTags {
		include = append(include, ds.FilterSpec{Tag: tag, Priorities: prios, MatchMode: f.MatchMode})
	}
	for _, pkg := range f.Packages {
		include = append(include, ds.FilterSpec{PackageName: pkg, Priorities: prios})
	}
	if len(include) == 0 && len(prios) > 0 {
		include = ds.FilterGroup{{Priorities: prios}}
	}
	for _, tag := range f.ExcludeTags {
		exclude = append(exclude, ds.FilterSpec{Tag: tag, MatchMode: f.MatchMode})
	}
	return include, exclude, nil
}

const flushIdleTimeout = 100 * time.Millisecond

func flushRecords(ch <-chan []ds.Record, printer *logprint.Printer) error {
	for {
		select {
		case batch, ok := <-ch:
			if !ok {
				return nil
			}
			if err := printer.Print(batch); err != nil {
				return err
			}
		case <-time.After(flushIdleTimeout):
			return nil
		}
	}
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	var f captureFilters
	f.IncludeTags, _ = flags.GetStringSlice("include-tag")
	f.Packages, _ = flags.GetStringSlice("package")
	f.ExcludeTags, _ = flags.GetStringSlice("exclude-tag")
	f.Priorities, _ = flags.GetStringSlice("priority")
	f.MatchMode, _ = flags.GetString("match")
	recordPath, _ := flags.GetString("record")
	format, _ := flags.GetString("format")
	noColor, _ := flags.GetBool("no-color")

	include, exclude, err := buildFilters(f)
	if err != nil {
		return err
	}
	opts, err := cfg.ControllerOpts()
	if err != nil {
		return err
	}
	refresher, err := cfg.MakePackageRefresher()
	if err != nil {
		return err
	}
	if refresher != nil {
		refresher.Start()
		defer refresher.Stop()
		opts.Resolver = refresher.Resolver()
	}
	ctrl := logsession.MakeController(opts)
	defer ctrl.Close()
	if err := ctrl.SetFilters(include, false); err != nil {
		return err
	}
	if err := ctrl.SetFilters(exclude, true); err != nil {
		return err
	}

	printer := logprint.MakePrinter(os.Stdout, format, !noColor)
	records := ctrl.Subscribe()
	defer records.Close()
	events := ctrl.SubscribeStatus()
	defer events.Close()

	if err := ctrl.Start(); err != nil {
		return err
	}
	if recordPath != "" {
		ctrl.StartRecording()
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	var exitErr error
loop:
	for {
		select {
		case batch := <-records.C():
			if err := printer.Print(batch); err != nil {
				exitErr = err
				break loop
			}
		case batch := <-events.C():
			ev := batch[len(batch)-1]
			if ev.Status == ds.StatusExited {
				if ev.Err != "" {
					exitErr = fmt.Errorf("log command exited: %s", ev.Err)
				}
				// the final drain is published before the exit event but on a separate stream
				if err := flushRecords(records.C(), printer); err != nil {
					exitErr = err
				}
				break loop
			}
		case sig := <-signalChan:
			log.Debugf("received signal %v", sig)
			break loop
		}
	}

	if recordPath != "" {
		recs := ctrl.StopRecording()
		if err := logfile.Save(recordPath, recs); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "saved %d records to %s\n", len(recs), recordPath)
	}
	return exitErr
}
