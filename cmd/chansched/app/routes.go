// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/playout-works/chansched/pkg/logging"
)

// Routes defines dispatches for all routes.
func (s *Server) Routes(ctx context.Context) error {
	for _, route := range logging.LogRoutes {
		s.Router.MethodFunc(route.Method, route.Path, route.Handler)
	}
	s.Router.Mount("/debug", middleware.Profiler())
	s.Router.MethodFunc("GET", "/healthz", s.healthzHandlerFunc)
	s.Router.MethodFunc("GET", "/config", s.configHandlerFunc)
	s.Router.MethodFunc("OPTIONS", "/*", s.optionsHandlerFunc)
	// APIRouter is mounted at /api
	s.APIRouter.MethodFunc("GET", "/schedules/{id}/playlist.xml", s.playlistHandlerFunc)
	s.APIRouter.MethodFunc("OPTIONS", "/*", s.optionsHandlerFunc)
	s.APIRouter.Group(createRouteAPI(s))
	return nil
}
