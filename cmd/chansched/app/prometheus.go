// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const service = "chansched"

var (
	apiRequests = newCounter("api_requests_total",
		"Number of API requests by path and status code.",
		[]string{"path", "code"})
	scheduleBuilds = newCounter("schedule_builds_total",
		"Number of schedule builds by window kind and outcome.",
		[]string{"kind", "outcome"})
	buildDuration = newHistogram("schedule_build_duration_seconds",
		"Wall-clock time spent building one schedule.",
		[]string{"kind"},
		[]float64{0.05, 0.25, 1, 5, 15, 60, 300})
)

func newCounter(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: service,
			Name:      name,
			Help:      help,
		}, labels)
}

func newHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: service,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		}, labels)
}

func init() {
	prometheus.MustRegister(apiRequests)
	prometheus.MustRegister(scheduleBuilds)
	prometheus.MustRegister(buildDuration)
}

// prometheusMiddleware counts requests per route pattern and status code.
func prometheusMiddleware(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rctx := chi.RouteContext(r.Context())
		path := r.URL.Path
		if rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		apiRequests.WithLabelValues(path, strconv.Itoa(ww.Status())).Inc()
	}
	return http.HandlerFunc(fn)
}

// observeBuild records outcome and duration for one schedule build.
func observeBuild(kind, outcome string, start time.Time) {
	scheduleBuilds.WithLabelValues(kind, outcome).Inc()
	buildDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
