// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/playout-works/chansched/internal/store"
)

// MeetingTier classifies MTG content by age relative to the schedule date.
type MeetingTier string

const (
	TierFuture   MeetingTier = "future"
	TierFresh    MeetingTier = "fresh"
	TierRelevant MeetingTier = "relevant"
	TierArchive  MeetingTier = "archive"
	TierExpired  MeetingTier = "expired"
)

// MeetingRelevanceTier computes the tier from schedule_date - meeting_date.
func MeetingRelevanceTier(meetingDate, scheduleDate time.Time, cfg MeetingConfig) MeetingTier {
	ageDays := scheduleDate.Sub(meetingDate).Hours() / 24
	switch {
	case ageDays < 0:
		return TierFuture
	case ageDays <= float64(cfg.FreshDays):
		return TierFresh
	case ageDays <= float64(cfg.RelevantDays):
		return TierRelevant
	case ageDays <= float64(cfg.ArchiveDays):
		return TierArchive
	default:
		return TierExpired
	}
}

// featuredSelector decides per slot whether to bypass rotation for a
// featured item, and picks featured items round-robin.
type featuredSelector struct {
	lib    Library
	cfg    *Config
	rnd    *rand.Rand
	cursor int
}

// wants reports whether featured placement should be preferred at the
// given position. nowS and lastFeaturedS are seconds from schedule start
// (lastFeaturedS < 0 when nothing featured has been placed yet).
func (f *featuredSelector) wants(nowS, lastFeaturedS float64, hourOfDay int) bool {
	if lastFeaturedS >= 0 && nowS-lastFeaturedS < f.cfg.Featured.MinimumSpacingHours*3600 {
		return false
	}
	daytime := hourOfDay >= f.cfg.Featured.DaytimeStartHour && hourOfDay < f.cfg.Featured.DaytimeEndHour
	p := f.cfg.Featured.DaytimeProbability
	draw := f.rnd.Float64()
	if daytime {
		return draw < p
	}
	return draw < 1-p
}

// pick returns the next featured candidate round-robin, or nil when the
// featured pool is empty.
func (f *featuredSelector) pick(ctx context.Context, excl *excludeSet, scheduleDate time.Time) (*store.Candidate, error) {
	cands, err := f.lib.GetFeaturedContent(ctx, store.FeaturedQuery{
		ExcludeIDs:   excl.slice(),
		ScheduleDate: scheduleDate,
		Rules:        f.cfg.featuredRules(),
	})
	if err != nil {
		return nil, fmt.Errorf("get featured content: %w", err)
	}
	if len(cands) == 0 {
		return nil, nil
	}
	c := cands[f.cursor%len(cands)]
	f.cursor++
	return &c, nil
}
