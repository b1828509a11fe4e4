// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"net/http"

	"github.com/playout-works/chansched/internal"
)

// addVersionAndCORSHeaders adds the server version and CORS headers
// to all responses.
func addVersionAndCORSHeaders(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Chansched-Version", internal.GetVersion())
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Expose-Headers", "*")
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
