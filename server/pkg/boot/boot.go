// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package boot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/darshanparajuli/logcatreader/pkg/config"
	"github.com/darshanparajuli/logcatreader/pkg/logsession"
	"github.com/darshanparajuli/logcatreader/pkg/logutil"
	"github.com/darshanparajuli/logcatreader/server/pkg/serverbase"
	"github.com/darshanparajuli/logcatreader/server/pkg/web"
)

var log = logutil.Component("boot")

type ServerOpts struct {
	Config *config.Config
	// AutoStart begins capturing as soon as the server is listening
	AutoStart bool
}

// RunServer runs the capture server until SIGINT/SIGTERM.
func RunServer(opts ServerOpts) error {
	cfg := opts.Config
	// Create a context that we can cancel
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Set up signal handling
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-signalChan:
			log.Infof("received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signalChan)
	}()

	err := serverbase.EnsureHomeDir()
	if err != nil {
		return fmt.Errorf("cannot create home directory (%s): %w", serverbase.GetHome(), err)
	}

	lock, err := serverbase.AcquireServerLock()
	if err != nil {
		return fmt.Errorf("error acquiring server lock (another instance is likely running): %w", err)
	}
	defer lock.Close() // the defer statement will keep the lock alive

	ctrlOpts, err := cfg.ControllerOpts()
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
		ctrlOpts.Resolver = refresher.Resolver()
	}
	logsession.InitMetrics()
	ctrl := logsession.MakeController(ctrlOpts)
	defer ctrl.Close()

	listener, err := web.MakeTCPListener("http", cfg.ListenAddr)
	if err != nil {
		return err
	}
	srv := web.MakeServer(ctrl, cfg)
	serveErrCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		serveErrCh <- srv.RunWebServer(ctx, listener, serverbase.IsDev())
	}()

	if opts.AutoStart {
		if err := ctrl.Start(); err != nil {
			log.Errorf("auto start: %v", err)
		}
	}

	log.Infof("server started on http://%s", listener.Addr())
	var rtnErr error
	select {
	case <-ctx.Done():
	case rtnErr = <-serveErrCh:
		cancel()
	}
	log.Infof("shutting down server...")
	wg.Wait()
	log.Infof("shutdown complete")
	return rtnErr
}
