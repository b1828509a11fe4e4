// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/playout-works/chansched/internal/store"
)

// GreetingTheme is the reserved theme literal for holiday greetings.
const GreetingTheme = "HolidayGreeting"

// greetingPoolSize is the maximum number of greetings assigned per day.
const greetingPoolSize = 4

var greetingRe = regexp.MustCompile(`(?i)holiday\s*greeting`)

// IsHolidayGreeting reports whether an asset belongs to the holiday
// greeting class, detected from its file name or title.
func IsHolidayGreeting(fileName, contentTitle string) bool {
	return greetingRe.MatchString(fileName) || greetingRe.MatchString(contentTitle)
}

// greetingRotator is the fair-rotation engine for holiday greetings.
// Pools are pre-assigned per scheduled day; at selection time greetings
// are emitted round-robin from the active day's pool.
type greetingRotator struct {
	lib     Library
	logger  *slog.Logger
	enabled bool
	// pools and cursors are keyed by day (YYYY-MM-DD).
	pools   map[string][]int64
	cursors map[string]int
}

func newGreetingRotator(lib Library, logger *slog.Logger, enabled bool) *greetingRotator {
	return &greetingRotator{
		lib:     lib,
		logger:  logger,
		enabled: enabled,
		pools:   make(map[string][]int64),
		cursors: make(map[string]int),
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// preassign materializes the per-day greeting pools for a schedule window
// of numDays days starting at startDay. Greetings are drawn evenly from
// the rotation table, least-used first, so each appears on a similar
// number of days.
func (g *greetingRotator) preassign(ctx context.Context, startDay time.Time, numDays int) error {
	if !g.enabled {
		return nil
	}
	rotations, err := g.lib.ListGreetingRotations(ctx)
	if err != nil {
		return fmt.Errorf("list greeting rotations: %w", err)
	}
	var greetings []store.GreetingRotation
	for _, r := range rotations {
		if IsHolidayGreeting(r.FileName, r.ContentTitle) {
			greetings = append(greetings, r)
		}
	}
	if len(greetings) == 0 {
		return nil
	}
	// Least-used first; ties by asset id for determinism.
	sort.SliceStable(greetings, func(i, j int) bool {
		if greetings[i].ScheduledCount != greetings[j].ScheduledCount {
			return greetings[i].ScheduledCount < greetings[j].ScheduledCount
		}
		return greetings[i].AssetID < greetings[j].AssetID
	})

	start := startDay.UTC().Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, numDays)
	if err := g.lib.ClearGreetingDays(ctx, start, end); err != nil {
		return fmt.Errorf("clear greeting days: %w", err)
	}

	next := 0
	for d := 0; d < numDays; d++ {
		day := start.AddDate(0, 0, d)
		size := greetingPoolSize
		if size > len(greetings) {
			size = len(greetings)
		}
		pool := make([]int64, 0, size)
		for k := 0; k < size; k++ {
			id := greetings[next%len(greetings)].AssetID
			next++
			pool = append(pool, id)
			if err := g.lib.AssignGreetingDay(ctx, id, day, d); err != nil {
				return fmt.Errorf("assign greeting day: %w", err)
			}
		}
		g.pools[dayKey(day)] = pool
		g.logger.Debug("greeting pool assigned", "day", dayKey(day), "pool", pool)
	}
	return nil
}

// next returns the next greeting candidate for the given schedule date, or
// nil when none applies. A greeting is refused without advancing the
// cursor when the previous item's theme is already HolidayGreeting.
func (g *greetingRotator) next(ctx context.Context, date time.Time, lastTheme string) (*store.Candidate, error) {
	if !g.enabled {
		return nil, nil
	}
	key := dayKey(date)
	pool, ok := g.pools[key]
	if !ok {
		ids, err := g.lib.GreetingPoolForDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("greeting pool for date: %w", err)
		}
		pool = ids
		g.pools[key] = pool
	}
	if len(pool) == 0 {
		return nil, nil
	}
	if strings.EqualFold(lastTheme, GreetingTheme) {
		return nil, nil
	}
	// Round-robin over the pool, skipping expired or unavailable entries.
	for tries := 0; tries < len(pool); tries++ {
		id := pool[g.cursors[key]%len(pool)]
		g.cursors[key]++
		cands, err := g.lib.CandidatesByIDs(ctx, []int64{id}, date)
		if err != nil {
			return nil, fmt.Errorf("resolve greeting %d: %w", id, err)
		}
		if len(cands) == 0 {
			continue
		}
		c := cands[0]
		return &c, nil
	}
	return nil, nil
}

// placed records a greeting placement in the rotation counters.
func (g *greetingRotator) placed(ctx context.Context, assetID int64, when time.Time) error {
	return g.lib.IncrementGreeting(ctx, assetID, when)
}
