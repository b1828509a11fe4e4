// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/playout-works/chansched/internal"
	"github.com/playout-works/chansched/internal/store"
	"github.com/playout-works/chansched/pkg/logging"
)

// SetupServer sets up router, middleware, and server, given koanf configuration.
func SetupServer(ctx context.Context, cfg *ServerConfig) (*Server, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.SlogMiddleWare(slog.Default()))
	r.Use(middleware.Recoverer)
	r.Use(addVersionAndCORSHeaders)
	r.Use(prometheusMiddleware)

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	if cfg.TimeoutS > 0 {
		r.Use(middleware.Timeout(time.Duration(cfg.TimeoutS) * time.Second))
	}

	// Add prometheus counters
	r.Mount("/metrics", promhttp.Handler())

	a := chi.NewRouter()
	if cfg.MaxRequests > 0 {
		ltrMw := NewIPRequestLimiter("Chansched-Requests", cfg.MaxRequests,
			time.Duration(cfg.ReqLimitIntS)*time.Second)
		a.Use(ltrMw)
	}
	r.Mount("/api", a)

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	server := Server{
		Router:    r,
		APIRouter: a,
		Cfg:       cfg,
		Store:     db,
	}

	if err := server.Routes(ctx); err != nil {
		return nil, fmt.Errorf("routes: %w", err)
	}

	slog.Info("chansched starting", "version", internal.GetVersion(),
		"port", cfg.Port, "db", cfg.DBPath, "channel", cfg.Channel)

	return &server, nil
}
