// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/playout-works/chansched/internal/store"
)

func newProvider(s *store.Store) (*candidateProvider, *DelayStats, *[]string) {
	cfg := DefaultConfig()
	stats := &DelayStats{}
	advisories := &[]string{}
	return &candidateProvider{
		lib:        s,
		cfg:        &cfg,
		logger:     discardLogger(),
		stats:      stats,
		advisories: advisories,
	}, stats, advisories
}

func TestDelayLadderRelaxation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	a := addAsset(t, s, store.NewAsset{
		ContentType: "psa", ContentTitle: "Recycling", DurationSeconds: 60,
		FileName: "recycling.mp4", FilePath: "/media/recycling.mp4",
	})
	// One airing 7 h before the schedule date: the full spots delay is
	// 12 + 0.5 = 12.5 h, so the pool opens at factor 0.5 (6.25 h).
	require.NoError(t, s.UpdateAssetLastScheduled(ctx, a.ID, date.Add(-7*time.Hour)))

	p, stats, _ := newProvider(s)
	cands, err := p.get(ctx, store.CategorySpots, newExcludeSet(), date)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, 0.5, cands[0].DelayFactorUsed)
	require.Equal(t, DelayStats{Reduced50: 1}, *stats)
}

func TestDelayLadderFactorZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	a := addAsset(t, s, store.NewAsset{
		ContentType: "psa", ContentTitle: "Safety", DurationSeconds: 45,
		FileName: "safety.mp4", FilePath: "/media/safety.mp4",
	})
	require.NoError(t, s.UpdateAssetLastScheduled(ctx, a.ID, date.Add(-30*time.Minute)))

	p, stats, _ := newProvider(s)
	cands, err := p.get(ctx, store.CategorySpots, newExcludeSet(), date)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, DelayStats{NoDelays: 1}, *stats)
}

func TestFeaturedSpacingOverridesDelay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	a := addAsset(t, s, store.NewAsset{
		ContentType: "pmo", ContentTitle: "Promo", DurationSeconds: 90,
		FileName: "promo.mp4", FilePath: "/media/promo.mp4", Featured: true,
	})
	// 5 h since the last airing fails the 12 h spots delay but passes the
	// 4 h featured spacing, at full factor.
	require.NoError(t, s.UpdateAssetLastScheduled(ctx, a.ID, date.Add(-5*time.Hour)))

	p, stats, _ := newProvider(s)
	cands, err := p.get(ctx, store.CategorySpots, newExcludeSet(), date)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, DelayStats{FullDelays: 1}, *stats)
}

func TestCategoryReset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	excl := newExcludeSet()
	var ids []int64
	for i := 0; i < 3; i++ {
		a := addAsset(t, s, store.NewAsset{
			ContentType: "pkg", ContentTitle: "Feature", DurationSeconds: 700,
			FileName: "feature.mp4", FilePath: "/media/feature.mp4",
		})
		require.NoError(t, s.UpdateAssetLastScheduled(ctx, a.ID, date.Add(-time.Hour)))
		excl.add(a.ID)
		ids = append(ids, a.ID)
	}

	p, stats, advisories := newProvider(s)
	cands, err := p.get(ctx, store.CategoryShortForm, excl, date)
	require.NoError(t, err)
	require.Len(t, cands, 3, "reset reopens the whole pool")
	require.Equal(t, 1, stats.Resets)
	require.Equal(t, 1, stats.NoDelays)
	require.Len(t, *advisories, 1)
	require.False(t, p.poolTooSmall)

	// The reset cleared last_scheduled_date and the exclusion set.
	for _, id := range ids {
		m, err := s.GetMetadata(ctx, id)
		require.NoError(t, err)
		require.Nil(t, m.LastScheduledDate)
		require.False(t, excl.has(id))
	}
}

func TestResetRefusedForTinyPool(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	excl := newExcludeSet()
	for i := 0; i < 3; i++ {
		a := addAsset(t, s, store.NewAsset{
			ContentType: "psa", ContentTitle: "Spot", DurationSeconds: 60,
			FileName: "spot.mp4", FilePath: "/media/spot.mp4",
		})
		excl.add(a.ID)
	}

	p, stats, _ := newProvider(s)
	cands, err := p.get(ctx, store.CategorySpots, excl, date)
	require.NoError(t, err)
	require.Empty(t, cands)
	require.True(t, p.poolTooSmall)
	require.Zero(t, stats.Resets)
}

func TestEmptyPoolYieldsNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p, stats, _ := newProvider(s)
	cands, err := p.get(ctx, store.CategoryLongForm, newExcludeSet(), time.Now().UTC())
	require.NoError(t, err)
	require.Empty(t, cands)
	require.Equal(t, DelayStats{}, *stats)
}
