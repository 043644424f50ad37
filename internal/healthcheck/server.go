// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package healthcheck serves liveness, readiness and the outcome of the
// most recent sweep for long-running deployments.
package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

type Response struct {
	Healthy bool   `json:"healthy"`
	Status  string `json:"status"`
}

// SweepReport is what /sweep returns about the last completed sweep.
type SweepReport struct {
	ID             string        `json:"id"`
	Started        time.Time     `json:"started"`
	Duration       time.Duration `json:"duration_ns"`
	Missions       int           `json:"missions"`
	MissionsFailed int           `json:"missions_failed"`
	BatchesReady   int           `json:"batches_ready"`
	Published      int           `json:"published"`
	Duplicates     int           `json:"duplicates"`
	Error          string        `json:"error,omitempty"`
}

type Config struct {
	Port int
	// MaxFatalSweeps is how many sweeps in a row may fail outright before
	// the process reports itself unhealthy.
	MaxFatalSweeps int
}

type Server struct {
	port     int
	maxFatal int

	status atomic.Int32
	ready  atomic.Bool

	mu        sync.Mutex
	last      *SweepReport
	fatalRuns int

	server *http.Server
}

func NewServer(config Config) *Server {
	if config.Port == 0 {
		config.Port = 8090
	}
	if config.MaxFatalSweeps <= 0 {
		config.MaxFatalSweeps = 3
	}
	return &Server{port: config.Port, maxFatal: config.MaxFatalSweeps}
}

func (s *Server) SetStatus(status Status) {
	s.status.Store(int32(status))
	slog.Debug("Health check status updated", slog.String("status", status.String()))
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	slog.Debug("Ready status updated", slog.Bool("ready", ready))
}

func (s *Server) IsReady() bool {
	return s.ready.Load()
}

// RecordSweep stores the report of a finished sweep. A fatal sweep is one
// that could not run at all; mission-level failures are not fatal. The
// server turns unhealthy after MaxFatalSweeps fatal sweeps in a row and
// healthy again after the next sweep that runs.
func (s *Server) RecordSweep(r SweepReport, fatal bool) {
	s.mu.Lock()
	s.last = &r
	if fatal {
		s.fatalRuns++
	} else {
		s.fatalRuns = 0
	}
	runs := s.fatalRuns
	s.mu.Unlock()

	switch {
	case runs == 0:
		s.SetStatus(StatusHealthy)
	case runs >= s.maxFatal:
		s.SetStatus(StatusUnhealthy)
	}
}

// LastSweep returns the most recent report, if any.
func (s *Server) LastSweep() (SweepReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return SweepReport{}, false
	}
	return *s.last, true
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthzHandler)
	r.Get("/readyz", s.readyzHandler)
	r.Get("/livez", s.livezHandler)
	r.Get("/sweep", s.sweepHandler)
	return r
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("health check listen: %w", err)
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("Starting health check server", slog.Int("port", s.port))

	errc := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errc:
		return err
	}
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	slog.Info("Stopping health check server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	status := s.GetStatus()
	writeStatus(w, status == StatusHealthy, status)
}

func (s *Server) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, s.IsReady(), s.GetStatus())
}

func (s *Server) livezHandler(w http.ResponseWriter, _ *http.Request) {
	status := s.GetStatus()
	writeStatus(w, status != StatusUnhealthy, status)
}

func (s *Server) sweepHandler(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.LastSweep()
	if !ok {
		http.Error(w, `{"error":"no sweep has completed"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeStatus(w http.ResponseWriter, ok bool, status Status) {
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, Response{Healthy: ok, Status: status.String()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}
