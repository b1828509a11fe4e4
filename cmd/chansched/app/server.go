// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/playout-works/chansched/internal/scheduler"
	"github.com/playout-works/chansched/internal/store"
)

type Server struct {
	Router    *chi.Mux
	APIRouter *chi.Mux
	Cfg       *ServerConfig
	Store     *store.Store
	// buildMu serializes schedule builds; the builder is not safe for
	// concurrent use and two builds would race on the rotation state.
	buildMu sync.Mutex
}

func (s *Server) healthzHandlerFunc(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, true, http.StatusOK)
}

func (s *Server) configHandlerFunc(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.Cfg, http.StatusOK)
}

func (s *Server) optionsHandlerFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

// jsonResponse marshals message and give response with code
//
// Don't add any more content after this since Content-Length is set
func (s *Server) jsonResponse(w http.ResponseWriter, message any, code int) {
	raw, err := json.Marshal(message)
	if err != nil {
		http.Error(w, fmt.Sprintf("{message: \"%s\"}", err), http.StatusInternalServerError)
		slog.Error(err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.WriteHeader(code)
	_, err = w.Write(raw)
	if err != nil {
		slog.Error("could not write HTTP response", "err", err)
	}
}

// schedulerConfig derives the per-build scheduling options from the
// server configuration.
func (s *Server) schedulerConfig() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	cfg.Channel = s.Cfg.Channel
	cfg.HolidayGreetingsEnabled = s.Cfg.HolidayGreetings
	if s.Cfg.MaxErrors > 0 {
		cfg.MaxErrors = s.Cfg.MaxErrors
	}
	return cfg
}

// newBuilder returns a builder for one run. maxErrors > 0 overrides the
// configured consecutive-error bound for this run only.
func (s *Server) newBuilder(maxErrors int) *scheduler.Builder {
	cfg := s.schedulerConfig()
	if maxErrors > 0 {
		cfg.MaxErrors = maxErrors
	}
	return scheduler.New(s.Store, cfg, slog.Default())
}
