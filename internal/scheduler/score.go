// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package scheduler

import (
	"math/rand"
	"strings"

	"github.com/playout-works/chansched/internal/store"
)

// placedItem is the in-run record of one placement, kept for fatigue and
// theme-separation decisions.
type placedItem struct {
	AssetID   int64
	Category  string
	Theme     string
	StartS    float64
	DurationS float64
	Featured  bool
}

// effectiveTheme returns the theme used for separation rules. Holiday
// greetings always carry the reserved HolidayGreeting theme.
func effectiveTheme(c store.Candidate) string {
	if IsHolidayGreeting(c.FileName, c.Asset.ContentTitle) {
		return GreetingTheme
	}
	return c.Asset.Theme
}

// themeConflict scans the placed items backward. Short-form items (id,
// spots, short_form) sharing a theme must be separated by at least one
// long-form item: the first long_form encountered clears the candidate,
// the first equal-theme short-form item conflicts.
func themeConflict(placed []placedItem, candTheme, candCategory string) bool {
	if candTheme == "" || candCategory == store.CategoryLongForm {
		return false
	}
	for k := len(placed) - 1; k >= 0; k-- {
		if placed[k].Category == store.CategoryLongForm {
			return false
		}
		if strings.EqualFold(placed[k].Theme, candTheme) {
			return true
		}
	}
	return false
}

// scoreInput carries the per-slot context for scoring one candidate.
type scoreInput struct {
	Featured bool
	// Token is the rotation token that produced the candidate.
	Token string
	// TypeMinDelayHours is the per-content-type default delay when Token
	// is a content type, 0 otherwise.
	TypeMinDelayHours float64
	// NowS and RemainingS are seconds from schedule start and seconds
	// left in the window.
	NowS       float64
	RemainingS float64
	// Plays are this run's placement times for the asset, ascending.
	Plays         []float64
	ThemeConflict bool
}

// scoreCandidate computes the local candidate score: a jittered base of
// 100 adjusted by the featured bonus, fatigue and per-category penalties,
// and the theme-conflict penalty (waived inside the final two hours so
// the tail can close).
func scoreCandidate(rnd *rand.Rand, c store.Candidate, in scoreInput) float64 {
	score := 100 + (rnd.Float64()*10 - 5)
	if in.Featured {
		score += 150
	}

	if n := len(in.Plays); n > 0 {
		gapH := (in.NowS - in.Plays[n-1]) / 3600
		switch {
		case gapH < 1:
			score -= 100
		case gapH < 2:
			score -= 50
		case gapH < 4:
			score -= 25
		case gapH < 6:
			score -= 10
		}
		if n > 2 {
			score -= 50 * float64(n-2)
		}
	}

	if c.Asset.DurationCategory == store.CategoryID {
		switch n := len(in.Plays); {
		case n == 0:
			score += 50
		default:
			if gapH := (in.NowS - in.Plays[n-1]) / 3600; gapH < 2 {
				score -= 300
			}
			if n > 1 {
				score -= 50 * float64(n-1)
			}
		}
	}

	if in.TypeMinDelayHours > 0 && len(in.Plays) > 0 {
		gapH := (in.NowS - in.Plays[len(in.Plays)-1]) / 3600
		if gapH < in.TypeMinDelayHours {
			score -= 200 * (in.TypeMinDelayHours - gapH) / in.TypeMinDelayHours
		}
	}

	if in.ThemeConflict && in.RemainingS >= 2*3600 {
		score -= 400
	}
	return score
}
