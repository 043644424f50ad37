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

// Package registrytest provides an in-memory registry served over HTTP for
// tests of the packages that talk to the registry.
package registrytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/cardinalhq/satready/internal/registry"
)

// Server is a fake registry. All state is guarded by mu; tests read it
// through the accessor methods.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	missions []registry.MissionConfig
	records  []registry.ProcessedRecord
	events   []registry.Event
	nextID   int
	failures map[string]int
	token    string
	calls    map[string]int
}

// New starts a fake registry. The caller must Close it.
func New() *Server {
	s := &Server{
		nextID:   1,
		failures: map[string]int{},
		calls:    map[string]int{},
	}
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/configuration/", s.listConfigs)
		r.Get("/configuration/{mission}/", s.getConfig)
		r.Get("/data/", s.listData)
		r.Post("/data/", s.createData)
		r.Patch("/data/{id}/", s.updateData)
		r.Get("/events/", s.listEvents)
		r.Post("/events/", s.createEvent)
	})
	s.Server = httptest.NewServer(r)
	return s
}

// BaseURL is the value to use as registry.Config.URL.
func (s *Server) BaseURL() string { return s.URL + "/api" }

// RequireToken makes every request without "Token <token>" fail with 401.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// FailRoute makes the named route answer with status until cleared with 0.
// Route names are "list-configuration", "get-configuration", "list-data",
// "create-data", "update-data", "list-events" and "create-event".
func (s *Server) FailRoute(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = status
}

func (s *Server) AddMission(m registry.MissionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions = append(s.missions, m)
}

// AddRecord stores rec, assigning an id when it has none.
func (s *Server) AddRecord(rec registry.ProcessedRecord) registry.ProcessedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = s.allocID()
	}
	s.records = append(s.records, rec)
	return rec
}

// AddEvent stores ev, assigning ids when it has none.
func (s *Server) AddEvent(ev registry.Event) registry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == "" {
		ev.ID = s.allocID()
		ev.MessageID = ev.ID
	}
	s.events = append(s.events, ev)
	return ev
}

func (s *Server) Records() []registry.ProcessedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

func (s *Server) Events() []registry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// Calls returns how many times the named route was hit.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) allocID() registry.ID {
	id := registry.ID(strconv.Itoa(s.nextID))
	s.nextID++
	return id
}

// gate counts the call and applies auth and injected failures. It returns
// false when the response has already been written.
func (s *Server) gate(w http.ResponseWriter, r *http.Request, route string) bool {
	s.calls[route]++
	if s.token != "" && r.Header.Get("Authorization") != "Token "+s.token {
		http.Error(w, `{"detail":"Invalid token."}`, http.StatusUnauthorized)
		return false
	}
	if code, ok := s.failures[route]; ok {
		http.Error(w, `{"detail":"injected failure"}`, code)
		return false
	}
	return true
}

func (s *Server) listConfigs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate(w, r, "list-configuration") {
		return
	}
	writeJSON(w, http.StatusOK, s.missions)
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate(w, r, "get-configuration") {
		return
	}
	name := chi.URLParam(r, "mission")
	for _, m := range s.missions {
		if m.SatelliteMission == name {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
}

func (s *Server) listData(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate(w, r, "list-data") {
		return
	}
	q := r.URL.Query()
	out := []registry.ProcessedRecord{}
	for _, rec := range s.records {
		if v := q.Get("satellite_mission"); v != "" && rec.SatelliteMission != v {
			continue
		}
		if v := q.Get("status"); v != "" && rec.Status != v {
			continue
		}
		if v := q.Get("date_tag"); v != "" && rec.DateTag != v {
			continue
		}
		out = append(out, rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createData(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate(w, r, "create-data") {
		return
	}
	var rec registry.ProcessedRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec.ID = s.allocID()
	s.records = append(s.records, rec)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) updateData(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate(w, r, "update-data") {
		return
	}
	id := registry.ID(chi.URLParam(r, "id"))
	var rec registry.ProcessedRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for i := range s.records {
		if s.records[i].ID == id {
			rec.ID = id
			s.records[i] = rec
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate(w, r, "list-events") {
		return
	}
	out := s.events
	if out == nil {
		out = []registry.Event{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate(w, r, "create-event") {
		return
	}
	var ev registry.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ev.ID = s.allocID()
	ev.MessageID = ev.ID
	s.events = append(s.events, ev)
	writeJSON(w, http.StatusCreated, map[string]any{"message_id": ev.MessageID})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
