// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playout-works/chansched/internal/store"
)

// delayLadder is the progressive relaxation sequence for replay delays.
var delayLadder = [...]float64{1.0, 0.75, 0.5, 0.25, 0.0}

// resetPoolFloorS is the minimum total valid duration (seconds) a category
// pool must hold before a category reset is allowed. Below this there is
// genuinely not enough content to cycle, and exhaustion is surfaced as
// insufficient content instead of endless resets of a tiny pool.
const resetPoolFloorS = 1800.0

// DelayStats counts delay relaxations and category resets for one run.
// They are advisories, not errors.
type DelayStats struct {
	FullDelays int `json:"full_delays"`
	Reduced75  int `json:"reduced_75"`
	Reduced50  int `json:"reduced_50"`
	Reduced25  int `json:"reduced_25"`
	NoDelays   int `json:"no_delays"`
	Resets     int `json:"resets"`
}

func (d *DelayStats) record(factor float64) {
	switch factor {
	case 1.0:
		d.FullDelays++
	case 0.75:
		d.Reduced75++
	case 0.5:
		d.Reduced50++
	case 0.25:
		d.Reduced25++
	default:
		d.NoDelays++
	}
}

// excludeSet tracks the asset ids excluded from selection in this run.
type excludeSet struct {
	ids map[int64]bool
}

func newExcludeSet() *excludeSet {
	return &excludeSet{ids: make(map[int64]bool)}
}

func (e *excludeSet) add(id int64)      { e.ids[id] = true }
func (e *excludeSet) has(id int64) bool { return e.ids[id] }

func (e *excludeSet) remove(ids []int64) {
	for _, id := range ids {
		delete(e.ids, id)
	}
}

func (e *excludeSet) slice() []int64 {
	out := make([]int64, 0, len(e.ids))
	for id := range e.ids {
		out = append(out, id)
	}
	return out
}

// candidateProvider resolves ranked candidate pools for rotation tokens,
// walking the delay-relaxation ladder and firing category resets when a
// pool is exhausted.
type candidateProvider struct {
	lib    Library
	cfg    *Config
	logger *slog.Logger
	stats  *DelayStats
	// advisories collects non-fatal notes surfaced in the result payload.
	advisories *[]string
	// poolTooSmall is set when a reset was refused because the valid pool
	// cannot cover the floor; the builder maps a stalled run to
	// insufficient_content in that case.
	poolTooSmall bool
}

// get returns the first non-empty candidate set along the relaxation
// ladder, or after a category reset. An empty return means the token is
// exhausted and the builder should try another category.
func (p *candidateProvider) get(ctx context.Context, token string, excl *excludeSet, scheduleDate time.Time) ([]store.Candidate, error) {
	q := store.ContentQuery{
		Token:                token,
		ScheduleDate:         scheduleDate,
		BaseDelayHours:       p.cfg.baseDelayHours(token),
		PerAiringHours:       p.cfg.additionalDelayHours(token),
		FeaturedSpacingHours: p.cfg.Featured.MinimumSpacingHours,
	}
	for _, factor := range delayLadder {
		q.DelayFactor = factor
		q.ExcludeIDs = excl.slice()
		cands, err := p.lib.GetAvailableContent(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("get available content %q: %w", token, err)
		}
		if len(cands) > 0 {
			p.stats.record(factor)
			return cands, nil
		}
	}
	return p.tryReset(ctx, token, excl, scheduleDate, q)
}

// tryReset performs the category-reset check: when the excluded subset is
// the whole valid pool (or at least a quarter of it while nothing returns),
// clear the delays of the excluded assets, drop them from the exclusion
// set, and retry once ignoring delays.
func (p *candidateProvider) tryReset(ctx context.Context, token string, excl *excludeSet, scheduleDate time.Time, q store.ContentQuery) ([]store.Candidate, error) {
	pool, err := p.lib.ValidTokenPool(ctx, token, scheduleDate)
	if err != nil {
		return nil, fmt.Errorf("valid pool %q: %w", token, err)
	}
	if len(pool) == 0 {
		return nil, nil
	}
	var excludedIDs []int64
	var poolDurS float64
	for _, pa := range pool {
		poolDurS += pa.DurationSeconds
		if excl.has(pa.ID) {
			excludedIDs = append(excludedIDs, pa.ID)
		}
	}
	frac := float64(len(excludedIDs)) / float64(len(pool))
	if len(excludedIDs) != len(pool) && frac < 0.25 {
		return nil, nil
	}
	if poolDurS < resetPoolFloorS {
		p.poolTooSmall = true
		p.logger.Warn("category pool too small for reset",
			"token", token, "poolAssets", len(pool), "poolDurS", poolDurS)
		return nil, nil
	}
	p.logger.Warn("category reset", "token", token,
		"excluded", len(excludedIDs), "pool", len(pool))
	if err := p.lib.ResetCategoryDelays(ctx, excludedIDs); err != nil {
		return nil, fmt.Errorf("reset category delays %q: %w", token, err)
	}
	excl.remove(excludedIDs)
	p.stats.Resets++
	*p.advisories = append(*p.advisories,
		fmt.Sprintf("category %s delays were reset (%d assets)", token, len(excludedIDs)))

	q.IgnoreDelays = true
	q.ExcludeIDs = excl.slice()
	cands, err := p.lib.GetAvailableContent(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get available content after reset %q: %w", token, err)
	}
	if len(cands) > 0 {
		p.stats.record(0)
	}
	return cands, nil
}
