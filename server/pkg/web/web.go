// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/darshanparajuli/logcatreader/pkg/config"
	"github.com/darshanparajuli/logcatreader/pkg/ds"
	"github.com/darshanparajuli/logcatreader/pkg/logbuffers"
	"github.com/darshanparajuli/logcatreader/pkg/logsession"
	"github.com/darshanparajuli/logcatreader/pkg/logsource"
	"github.com/darshanparajuli/logcatreader/pkg/logutil"
	"github.com/darshanparajuli/logcatreader/pkg/panichandler"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Header constants
const (
	CacheControlHeaderKey     = "Cache-Control"
	CacheControlHeaderNoCache = "no-cache"

	ContentTypeHeaderKey = "Content-Type"
	ContentTypeJson      = "application/json"
)

const HttpReadTimeout = 5 * time.Second
const HttpMaxHeaderBytes = 60000
const HttpTimeoutDuration = 21 * time.Second
const HttpMaxBodyBytes = 1 << 20

var log = logutil.Component("web")

type WebFnType = func(http.ResponseWriter, *http.Request)

type WebFnOpts struct {
	AllowCaching bool
}

// Server exposes one session controller over HTTP and websocket.
type Server struct {
	Controller *logsession.Controller
	Config     *config.Config
	// DiscoverFn defaults to logbuffers.Discover
	DiscoverFn func(ctx context.Context, command []string) (*logbuffers.BufferInfo, error)
}

func MakeServer(ctrl *logsession.Controller, cfg *config.Config) *Server {
	return &Server{
		Controller: ctrl,
		Config:     cfg,
		DiscoverFn: logbuffers.Discover,
	}
}

func WriteJsonError(w http.ResponseWriter, status int, errVal error) {
	w.Header().Set(ContentTypeHeaderKey, ContentTypeJson)
	w.WriteHeader(status)
	errMap := make(map[string]interface{})
	errMap["error"] = errVal.Error()
	barr, _ := json.Marshal(errMap)
	w.Write(barr)
}

func WriteJsonSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set(ContentTypeHeaderKey, ContentTypeJson)
	rtnMap := make(map[string]interface{})
	rtnMap["success"] = true
	if data != nil {
		rtnMap["data"] = data
	}
	barr, err := json.Marshal(rtnMap)
	if err != nil {
		WriteJsonError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(barr)
}

// errorStatus maps controller errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, logsource.ErrAlreadyRunning), errors.Is(err, logsession.ErrNotActive):
		return http.StatusConflict
	case errors.Is(err, logsession.ErrFailedToStart):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func WebFnWrap(opts WebFnOpts, fn WebFnType) WebFnType {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := panichandler.PanicHandler("web:"+r.URL.Path, recover()); err != nil {
				WriteJsonError(w, http.StatusInternalServerError, fmt.Errorf("internal server error"))
			}
		}()
		if !opts.AllowCaching {
			w.Header().Set(CacheControlHeaderKey, CacheControlHeaderNoCache)
		}
		fn(w, r)
	}
}

func readJsonBody(r *http.Request, dest any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, HttpMaxBodyBytes))
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// Simple health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJsonSuccess(w, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UnixMilli(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	WriteJsonSuccess(w, s.Controller.Info())
}

// controlHandler runs a controller action that can fail and replies with the new status.
func (s *Server) controlHandler(action func() error) WebFnType {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := action(); err != nil {
			WriteJsonError(w, errorStatus(err), err)
			return
		}
		WriteJsonSuccess(w, s.Controller.Info())
	}
}

func (s *Server) handleSetFilters(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if kind != "include" && kind != "exclude" {
		WriteJsonError(w, http.StatusNotFound, fmt.Errorf("unknown filter kind %q", kind))
		return
	}
	var group ds.FilterGroup
	if err := readJsonBody(r, &group); err != nil {
		WriteJsonError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Controller.SetFilters(group, kind == "exclude"); err != nil {
		WriteJsonError(w, http.StatusBadRequest, err)
		return
	}
	include, exclude := s.Controller.Filters()
	WriteJsonSuccess(w, map[string]any{"include": include, "exclude": exclude})
}

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	include, exclude := s.Controller.Filters()
	WriteJsonSuccess(w, map[string]any{"include": include, "exclude": exclude})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	s.Controller.StartRecording()
	WriteJsonSuccess(w, s.Controller.Info())
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	save, _ := strconv.ParseBool(r.URL.Query().Get("save"))
	if !save {
		WriteJsonSuccess(w, map[string]any{"records": s.Controller.StopRecording()})
		return
	}
	path, count, err := s.Controller.StopRecordingTo(s.Config.SaveDir, s.Config.CompressSaves)
	if err != nil {
		WriteJsonError(w, http.StatusInternalServerError, err)
		return
	}
	WriteJsonSuccess(w, map[string]any{"path": path, "count": count})
}

type pollIntervalRequest struct {
	Ms int64 `json:"ms"`
}

func (s *Server) handleSetPollInterval(w http.ResponseWriter, r *http.Request) {
	var req pollIntervalRequest
	if err := readJsonBody(r, &req); err != nil {
		WriteJsonError(w, http.StatusBadRequest, err)
		return
	}
	if req.Ms <= 0 {
		WriteJsonError(w, http.StatusBadRequest, fmt.Errorf("ms must be positive"))
		return
	}
	s.Controller.SetPollInterval(req.Ms)
	WriteJsonSuccess(w, map[string]any{"ms": s.Controller.PollInterval().Milliseconds()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	visible, _ := strconv.ParseBool(r.URL.Query().Get("visible"))
	var recs []ds.Record
	if visible {
		recs = s.Controller.VisibleSnapshot()
	} else {
		recs = s.Controller.Snapshot()
	}
	WriteJsonSuccess(w, map[string]any{"records": recs})
}

func (s *Server) handleBuffers(w http.ResponseWriter, r *http.Request) {
	args, err := s.Config.CommandArgs()
	if err != nil {
		WriteJsonError(w, http.StatusInternalServerError, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	info, err := s.DiscoverFn(ctx, args)
	if err != nil {
		WriteJsonError(w, http.StatusBadGateway, err)
		return
	}
	WriteJsonSuccess(w, info)
}

func (s *Server) apiRouter() *mux.Router {
	gr := mux.NewRouter()
	wrap := func(fn WebFnType) WebFnType {
		return WebFnWrap(WebFnOpts{}, fn)
	}
	gr.HandleFunc("/health", wrap(handleHealth)).Methods(http.MethodGet)
	gr.HandleFunc("/api/status", wrap(s.handleStatus)).Methods(http.MethodGet)
	gr.HandleFunc("/api/start", wrap(s.controlHandler(s.Controller.Start))).Methods(http.MethodPost)
	gr.HandleFunc("/api/stop", wrap(s.controlHandler(s.Controller.Stop))).Methods(http.MethodPost)
	gr.HandleFunc("/api/restart", wrap(s.controlHandler(s.Controller.Restart))).Methods(http.MethodPost)
	gr.HandleFunc("/api/pause", wrap(s.controlHandler(func() error {
		s.Controller.Pause()
		return nil
	}))).Methods(http.MethodPost)
	gr.HandleFunc("/api/resume", wrap(s.controlHandler(func() error {
		s.Controller.Resume()
		return nil
	}))).Methods(http.MethodPost)
	gr.HandleFunc("/api/clear", wrap(s.controlHandler(func() error {
		s.Controller.Clear()
		return nil
	}))).Methods(http.MethodPost)
	gr.HandleFunc("/api/filters", wrap(s.handleGetFilters)).Methods(http.MethodGet)
	gr.HandleFunc("/api/filters/{kind}", wrap(s.handleSetFilters)).Methods(http.MethodPut)
	gr.HandleFunc("/api/recording/start", wrap(s.handleStartRecording)).Methods(http.MethodPost)
	gr.HandleFunc("/api/recording/stop", wrap(s.handleStopRecording)).Methods(http.MethodPost)
	gr.HandleFunc("/api/pollinterval", wrap(s.handleSetPollInterval)).Methods(http.MethodPut)
	gr.HandleFunc("/api/snapshot", wrap(s.handleSnapshot)).Methods(http.MethodGet)
	gr.HandleFunc("/api/buffers", wrap(s.handleBuffers)).Methods(http.MethodGet)
	return gr
}

// MakeHandler builds the full HTTP handler. The websocket route bypasses the
// timeout handler because it hijacks the connection.
func (s *Server) MakeHandler(isDev bool) http.Handler {
	var api http.Handler = http.TimeoutHandler(s.apiRouter(), HttpTimeoutDuration, "Timeout")
	api = handlers.LoggingHandler(log.WriterLevel(logrus.DebugLevel), api)

	gr := mux.NewRouter()
	gr.HandleFunc("/ws", s.HandleWs)
	gr.Handle("/metrics", promhttp.Handler())
	gr.PathPrefix("/").Handler(api)

	var handler http.Handler = gr
	// In development mode, enable CORS
	if isDev {
		handler = handlers.CORS(handlers.AllowedOrigins([]string{"*"}), handlers.AllowedMethods([]string{"GET", "POST", "PUT"}))(handler)
	}
	return handler
}

func MakeTCPListener(serviceName string, addr string) (net.Listener, error) {
	if addr == "" {
		addr = "127.0.0.1:0" // Use any available port
	}
	rtn, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error creating listener at %v: %v", addr, err)
	}
	log.Infof("server [%s] listening on %s", serviceName, rtn.Addr())
	return rtn, nil
}

// RunWebServer serves until ctx is canceled, then shuts down gracefully.
func (s *Server) RunWebServer(ctx context.Context, listener net.Listener, isDev bool) error {
	server := &http.Server{
		ReadTimeout:    HttpReadTimeout,
		MaxHeaderBytes: HttpMaxHeaderBytes,
		Handler:        s.MakeHandler(isDev),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Shutdown does not wait for hijacked connections
		CloseAllConns()
		server.Shutdown(shutdownCtx)
	}()
	err := server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
