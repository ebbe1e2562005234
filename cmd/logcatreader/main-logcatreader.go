// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/darshanparajuli/logcatreader/pkg/config"
	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logbuffers"
	"github.com/darshanparajuli/logcatreader/pkg/logfile"
	"github.com/darshanparajuli/logcatreader/pkg/logprint"
	"github.com/darshanparajuli/logcatreader/pkg/logutil"
	"github.com/darshanparajuli/logcatreader/server/pkg/boot"
	"github.com/darshanparajuli/logcatreader/server/pkg/serverbase"
	"github.com/spf13/cobra"
)

// LogcatReaderVersion is the current version
var LogcatReaderVersion = serverbase.LogcatReaderVersion

// LogcatReaderBuildTime is the build timestamp
var LogcatReaderBuildTime = ""

// loadConfig loads the config file and applies the persistent flags shared by all commands.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("command") {
		cfg.LogCommand, _ = flags.GetString("command")
	}
	if flags.Changed("buffer") {
		cfg.Buffers, _ = flags.GetStringSlice("buffer")
	}
	if flags.Changed("poll-interval") {
		cfg.PollIntervalMs, _ = flags.GetInt64("poll-interval")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logutil.Configure(os.Stderr, cfg.LogLevel)
	return cfg, nil
}

func runBuffers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmdArgs, err := cfg.CommandArgs()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	info, err := logbuffers.Discover(ctx, cmdArgs)
	if err != nil {
		return err
	}
	fmt.Printf("configured: %s\n", strings.Join(info.Configured, " "))
	fmt.Printf("supported:  %s\n", strings.Join(info.Supported, " "))
	return nil
}

func runCat(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	noColor, _ := cmd.Flags().GetBool("no-color")
	printer := logprint.MakePrinter(os.Stdout, format, !noColor)
	for _, path := range args {
		var printErr error
		err := logfile.Each(path, func(rec ds.Record) bool {
			printErr = printer.Print([]ds.Record{rec})
			return printErr == nil
		})
		if err != nil {
			return err
		}
		if printErr != nil {
			return printErr
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr, _ = cmd.Flags().GetString("listen")
	}
	autoStart, _ := cmd.Flags().GetBool("autostart")
	return boot.RunServer(boot.ServerOpts{Config: cfg, AutoStart: autoStart})
}

func main() {
	serverbase.LogcatReaderVersion = LogcatReaderVersion
	serverbase.LogcatReaderBuildTime = LogcatReaderBuildTime

	rootCmd := &cobra.Command{
		Use:           "logcatreader",
		Short:         "logcatreader captures, filters and records device logs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Stream parsed log records to stdout",
		Long: `Run the log command, parse its output and print the records that pass the filters.
Stops on Ctrl-C. With --record the visible records are saved to FILE on exit.`,
		Args: cobra.NoArgs,
		RunE: runCapture,
	}
	captureCmd.Flags().StringSlice("include-tag", nil, "only show records whose tag contains this text (repeatable)")
	captureCmd.Flags().StringSlice("package", nil, "only show records from this package (repeatable, needs packages_list or packages_command)")
	captureCmd.Flags().StringSlice("exclude-tag", nil, "hide records whose tag contains this text (repeatable)")
	captureCmd.Flags().StringSlice("priority", nil, "only show these priorities, e.g. W,E,F (repeatable)")
	captureCmd.Flags().String("match", ds.MatchModeExact, "tag match mode: exact, exactcase, regexp or fzf")
	captureCmd.Flags().String("record", "", "record visible records and save them to this file on exit")
	captureCmd.Flags().String("format", logprint.FormatBrief, "output format: brief or long")
	captureCmd.Flags().Bool("no-color", false, "disable colors")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/websocket capture server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", "", "listen address (default from config, 127.0.0.1:5105)")
	serveCmd.Flags().Bool("autostart", false, "start capturing immediately")

	buffersCmd := &cobra.Command{
		Use:   "buffers",
		Short: "List the configured and supported log buffers",
		Args:  cobra.NoArgs,
		RunE:  runBuffers,
	}

	catCmd := &cobra.Command{
		Use:   "cat FILE...",
		Short: "Print saved log files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCat,
	}
	catCmd.Flags().String("format", logprint.FormatBrief, "output format: brief or long")
	catCmd.Flags().Bool("no-color", false, "disable colors")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of logcatreader",
		Run: func(cmd *cobra.Command, args []string) {
			if LogcatReaderBuildTime != "" {
				fmt.Printf("%s+%s\n", LogcatReaderVersion, LogcatReaderBuildTime)
			} else {
				fmt.Printf("%s+dev\n", LogcatReaderVersion)
			}
		},
	}

	rootCmd.PersistentFlags().String("command", "", "log command to run (default from config, \"logcat\")")
	rootCmd.PersistentFlags().StringSlice("buffer", nil, "log buffer to read (repeatable, default main,system,crash)")
	rootCmd.PersistentFlags().Int64("poll-interval", 0, "poll interval in milliseconds")
	rootCmd.PersistentFlags().String("log-level", "", "diagnostic log level (debug, info, warn, error)")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(buffersCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
