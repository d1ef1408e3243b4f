// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the pipeline stages over HTTP. Stage requests
// are queued as background jobs whose progress can be followed with
// server-sent events.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/poiesic/tutorder"
	"github.com/poiesic/tutorder/jobs"
)

// MaxUploadBytes bounds multipart request bodies.
const MaxUploadBytes = 32 << 20

// Server routes HTTP requests to a workspace and a job runner.
type Server struct {
	ws        *tutorder.Workspace
	runner    *jobs.Runner
	uploadDir string
	logger    *slog.Logger
	mux       *http.ServeMux
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithUploadDir sets where uploaded commute tables are kept.
func WithUploadDir(dir string) Option {
	return func(s *Server) { s.uploadDir = dir }
}

// New creates a server.
func New(ws *tutorder.Workspace, runner *jobs.Runner, opts ...Option) (*Server, error) {
	if ws == nil || runner == nil {
		return nil, errors.New("workspace and job runner required")
	}
	s := &Server{
		ws:        ws,
		runner:    runner,
		uploadDir: ws.Config().Server.UploadDir,
		logger:    slog.Default(),
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, err
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /orders", s.handleSubmitOrders)
	s.mux.HandleFunc("POST /enrich", s.handleEnrich)
	s.mux.HandleFunc("POST /dedup", s.handleDedup)
	s.mux.HandleFunc("POST /commute", s.handleCommute)
	s.mux.HandleFunc("GET /batches", s.handleBatches)
	s.mux.HandleFunc("GET /artifacts", s.handleListArtifacts)
	s.mux.HandleFunc("GET /artifacts/{name}", s.handleArtifact)
	s.mux.HandleFunc("GET /jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /jobs/{id}", s.handleJob)
	s.mux.HandleFunc("GET /jobs/{id}/events", s.handleJobEvents)
	s.mux.Handle("GET /metrics", s.ws.Metrics().Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
