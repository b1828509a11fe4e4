// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/playout-works/chansched/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "sched.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addAsset(t *testing.T, s *store.Store, na store.NewAsset) store.Asset {
	t.Helper()
	a, err := s.CreateAsset(context.Background(), na)
	require.NoError(t, err)
	return a
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedLibrary fills the store with enough content across all four duration
// categories to build multi-day schedules, plus greetings and two manually
// featured programs.
func seedLibrary(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	encoded := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	engagement := 40.0

	for i := 0; i < 40; i++ {
		addAsset(t, s, store.NewAsset{
			ContentType: "sid", ContentTitle: fmt.Sprintf("Station ID %d", i),
			DurationSeconds: 10,
			FileName:        fmt.Sprintf("sid_%02d.mp4", i),
			FilePath:        fmt.Sprintf("/media/ids/sid_%02d.mp4", i),
			EncodedDate:     &encoded,
		})
	}
	for i := 0; i < 40; i++ {
		addAsset(t, s, store.NewAsset{
			ContentType: "psa", ContentTitle: fmt.Sprintf("PSA %d", i),
			DurationSeconds: 60,
			Theme:           fmt.Sprintf("Civic %d", i%8),
			FileName:        fmt.Sprintf("psa_%02d.mp4", i),
			FilePath:        fmt.Sprintf("/media/spots/psa_%02d.mp4", i),
			EncodedDate:     &encoded,
		})
	}
	for i := 0; i < 40; i++ {
		addAsset(t, s, store.NewAsset{
			ContentType: "pkg", ContentTitle: fmt.Sprintf("Package %d", i),
			DurationSeconds: 600,
			Theme:           fmt.Sprintf("Topic %d", i%10),
			EngagementScore: &engagement,
			FileName:        fmt.Sprintf("pkg_%02d.mp4", i),
			FilePath:        fmt.Sprintf("/media/shorts/pkg_%02d.mp4", i),
			EncodedDate:     &encoded,
		})
	}
	for i := 0; i < 32; i++ {
		addAsset(t, s, store.NewAsset{
			ContentType: "pgm", ContentTitle: fmt.Sprintf("Program %d", i),
			DurationSeconds: 3600,
			Theme:           fmt.Sprintf("Series %d", i),
			EngagementScore: &engagement,
			FileName:        fmt.Sprintf("pgm_%02d.mp4", i),
			FilePath:        fmt.Sprintf("/media/programs/pgm_%02d.mp4", i),
			EncodedDate:     &encoded,
			Featured:        i < 2,
		})
	}
	for i := 1; i <= 3; i++ {
		a := addAsset(t, s, store.NewAsset{
			ContentType: "grt", ContentTitle: fmt.Sprintf("Holiday Greeting %d", i),
			DurationSeconds: 30,
			FileName:        fmt.Sprintf("Holiday Greeting %d.mp4", i),
			FilePath:        fmt.Sprintf("/media/greetings/hg_%d.mp4", i),
			EncodedDate:     &encoded,
		})
		require.NoError(t, s.EnsureGreetingRotation(ctx, a.ID))
	}
}

func TestBuildDailyFillsDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedLibrary(t, s)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	b := NewSeeded(s, DefaultConfig(), discardLogger(), 1)
	res := b.BuildDaily(ctx, date, "")

	require.True(t, res.Success, "build failed: %s %s", res.ErrorKind, res.Message)
	require.Equal(t, 1, res.DaysCompleted)
	require.GreaterOrEqual(t, res.TotalDurationSeconds, store.SecondsPerDay-tailGapS)
	require.LessOrEqual(t, res.TotalDurationSeconds, store.SecondsPerDay+1)
	require.Greater(t, res.TotalItems, 20)

	items, err := s.ItemsForSchedule(ctx, res.ScheduleID)
	require.NoError(t, err)
	require.Len(t, items, res.TotalItems)

	prevEnd := 0.0
	for i, it := range items {
		require.Equal(t, i+1, it.SequenceNumber, "sequence numbers are dense")
		startS, err := store.ParseStartTime(it.ScheduledStartTime)
		require.NoError(t, err)
		if i > 0 {
			require.InDelta(t, prevEnd, startS, 0.01,
				"item %d start must chain with a frame gap", i+1)
			require.NotEqual(t, items[i-1].AssetID, it.AssetID,
				"adjacent items must differ")
		}
		prevEnd = startS + it.ScheduledDurationSeconds + store.FrameGapSeconds
		require.Nil(t, it.Metadata, "single-day schedules carry no day offset")
	}

	sch, err := s.GetSchedule(ctx, res.ScheduleID)
	require.NoError(t, err)
	require.InDelta(t, res.TotalDurationSeconds, sch.TotalDurationSeconds, 0.01)

	// Every greeting in the day pool rotated through the schedule.
	rotations, err := s.ListGreetingRotations(ctx)
	require.NoError(t, err)
	require.Len(t, rotations, 3)
	for _, r := range rotations {
		require.GreaterOrEqual(t, r.ScheduledCount, 1, "greeting %d never placed", r.AssetID)
	}
}

func TestBuildDailyAlreadyExists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := s.CreateSchedule(ctx, "Existing", date, "")
	require.NoError(t, err)

	b := NewSeeded(s, DefaultConfig(), discardLogger(), 1)
	res := b.BuildDaily(ctx, date, "")
	require.False(t, res.Success)
	require.Equal(t, ErrKindAlreadyExists, res.ErrorKind)

	schedules, err := s.ListSchedules(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, schedules, 1, "the existing schedule is untouched")
}

func TestBuildDailyInsufficientContent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	var ids []int64
	for i := 0; i < 5; i++ {
		a := addAsset(t, s, store.NewAsset{
			ContentType: "psa", ContentTitle: fmt.Sprintf("Spot %d", i),
			DurationSeconds: 60,
			FileName:        fmt.Sprintf("spot_%d.mp4", i),
			FilePath:        fmt.Sprintf("/media/spot_%d.mp4", i),
		})
		ids = append(ids, a.ID)
	}

	b := NewSeeded(s, DefaultConfig(), discardLogger(), 1)
	res := b.BuildDaily(ctx, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "")
	require.False(t, res.Success)
	require.Equal(t, ErrKindInsufficientContent, res.ErrorKind)
	require.Zero(t, res.ScheduleID)

	// Rollback removed the partial schedule and restored airing counters.
	schedules, err := s.ListSchedules(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Empty(t, schedules)
	for _, id := range ids {
		m, err := s.GetMetadata(ctx, id)
		require.NoError(t, err)
		require.Zero(t, m.TotalAirings, "asset %d", id)
	}
}

func TestBuildDailyInvalidDate(t *testing.T) {
	b := NewSeeded(newTestStore(t), DefaultConfig(), discardLogger(), 1)
	res := b.BuildDaily(context.Background(), time.Time{}, "")
	require.Equal(t, ErrKindInvalidInput, res.ErrorKind)
}

func TestBuildWeeklyCorrectsStartDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedLibrary(t, s)
	// Wednesday; the build must snap back to Sunday March 8.
	wednesday := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	b := NewSeeded(s, DefaultConfig(), discardLogger(), 2)
	res := b.BuildWeekly(ctx, wednesday, "")

	require.True(t, res.Success, "build failed: %s %s", res.ErrorKind, res.Message)
	require.Equal(t, 7, res.DaysCompleted)
	require.GreaterOrEqual(t, res.TotalDurationSeconds, 0.95*7*store.SecondsPerDay)
	require.NotEmpty(t, res.Advisories)

	sch, err := s.GetSchedule(ctx, res.ScheduleID)
	require.NoError(t, err)
	require.Equal(t, time.Sunday, sch.AirDate.Weekday())
	require.Equal(t, 8, sch.AirDate.Day())

	// A full week forces the smaller pools to cycle at least once.
	require.GreaterOrEqual(t, res.DelayStats.Resets, 1)

	items, err := s.ItemsForSchedule(ctx, res.ScheduleID)
	require.NoError(t, err)
	maxOffset := 0
	for _, it := range items {
		require.NotNil(t, it.Metadata, "multi-day items carry a day offset")
		require.NotNil(t, it.Metadata.DayOffset)
		if *it.Metadata.DayOffset > maxOffset {
			maxOffset = *it.Metadata.DayOffset
		}
	}
	require.Equal(t, 6, maxOffset)
}

func TestBuildMonthlyValidation(t *testing.T) {
	b := NewSeeded(newTestStore(t), DefaultConfig(), discardLogger(), 1)
	res := b.BuildMonthly(context.Background(), 1995, time.March)
	require.Equal(t, ErrKindInvalidInput, res.ErrorKind)
	res = b.BuildMonthly(context.Background(), 2026, time.Month(13))
	require.Equal(t, ErrKindInvalidInput, res.ErrorKind)
}

func TestBuildMonthlyEmptyLibrary(t *testing.T) {
	b := NewSeeded(newTestStore(t), DefaultConfig(), discardLogger(), 1)
	res := b.BuildMonthly(context.Background(), 2026, time.February)
	require.False(t, res.Success)
	require.Equal(t, ErrKindAllBlocked, res.ErrorKind)
	require.Zero(t, res.DaysCompleted)
}

// failingSelectionLibrary errors on every candidate read while leaving the
// rest of the store intact.
type failingSelectionLibrary struct {
	*store.Store
	calls int
}

func (f *failingSelectionLibrary) GetAvailableContent(context.Context, store.ContentQuery) ([]store.Candidate, error) {
	f.calls++
	return nil, errors.New("simulated read failure")
}

func TestBuildDailyAbsorbsSelectionErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	lib := &failingSelectionLibrary{Store: s}

	cfg := DefaultConfig()
	cfg.MaxErrors = 8
	b := NewSeeded(lib, cfg, discardLogger(), 1)
	res := b.BuildDaily(ctx, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "")

	require.False(t, res.Success)
	require.Equal(t, ErrKindInsufficientContent, res.ErrorKind)
	require.Contains(t, res.Message, "consecutive selection errors")
	require.Equal(t, cfg.MaxErrors, lib.calls,
		"every selection error is absorbed until the bound is hit")

	schedules, err := s.ListSchedules(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Empty(t, schedules, "the partial schedule is rolled back")
}

func TestBuildDailyThemeSeparation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// Two short-form assets share a theme; everything else is long-form
	// with distinct themes.
	health := map[int64]bool{}
	for i := 0; i < 2; i++ {
		a := addAsset(t, s, store.NewAsset{
			ContentType: "pkg", ContentTitle: fmt.Sprintf("Health Update %d", i),
			DurationSeconds: 600,
			Theme:           "Health",
			FileName:        fmt.Sprintf("health_%d.mp4", i),
			FilePath:        fmt.Sprintf("/media/shorts/health_%d.mp4", i),
		})
		health[a.ID] = true
	}
	for i := 0; i < 44; i++ {
		addAsset(t, s, store.NewAsset{
			ContentType: "pgm", ContentTitle: fmt.Sprintf("Program %d", i),
			DurationSeconds: 1800,
			Theme:           fmt.Sprintf("Series %d", i),
			FileName:        fmt.Sprintf("pgm_%02d.mp4", i),
			FilePath:        fmt.Sprintf("/media/programs/pgm_%02d.mp4", i),
		})
	}

	b := NewSeeded(s, DefaultConfig(), discardLogger(), 3)
	res := b.BuildDaily(ctx, date, "")
	require.True(t, res.Success, "build failed: %s %s", res.ErrorKind, res.Message)

	items, err := s.ItemsForSchedule(ctx, res.ScheduleID)
	require.NoError(t, err)

	// Equal-theme short-form items need a long-form separator, except in
	// the final two hours where the conflict penalty is waived. The only
	// long-form assets here run 1800 s.
	lastHealth := -1
	for idx, it := range items {
		if !health[it.AssetID] {
			continue
		}
		if lastHealth >= 0 {
			startS, err := store.ParseStartTime(it.ScheduledStartTime)
			require.NoError(t, err)
			if store.SecondsPerDay-startS >= 2*3600 {
				separated := false
				for k := lastHealth + 1; k < idx; k++ {
					if items[k].ScheduledDurationSeconds >= 1800 {
						separated = true
						break
					}
				}
				require.True(t, separated,
					"items %d and %d share a theme without a long-form between them",
					lastHealth+1, idx+1)
			}
		}
		lastHealth = idx
	}
	require.GreaterOrEqual(t, lastHealth, 0, "the themed assets must air")
}

func TestBuildDailyFeaturedSpacing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	promoA := addAsset(t, s, store.NewAsset{
		ContentType: "pmo", ContentTitle: "Promo A", DurationSeconds: 90,
		FileName: "promo_a.mp4", FilePath: "/media/promos/promo_a.mp4",
	})
	promoB := addAsset(t, s, store.NewAsset{
		ContentType: "pmo", ContentTitle: "Promo B", DurationSeconds: 90,
		FileName: "promo_b.mp4", FilePath: "/media/promos/promo_b.mp4",
	})
	for i := 0; i < 60; i++ {
		addAsset(t, s, store.NewAsset{
			ContentType: "psa", ContentTitle: fmt.Sprintf("PSA %d", i),
			DurationSeconds: 60,
			Theme:           fmt.Sprintf("Civic %d", i%6),
			FileName:        fmt.Sprintf("psa_%02d.mp4", i),
			FilePath:        fmt.Sprintf("/media/spots/psa_%02d.mp4", i),
		})
	}
	for i := 0; i < 40; i++ {
		addAsset(t, s, store.NewAsset{
			ContentType: "pgm", ContentTitle: fmt.Sprintf("Program %d", i),
			DurationSeconds: 1800,
			Theme:           fmt.Sprintf("Series %d", i),
			FileName:        fmt.Sprintf("pgm_%02d.mp4", i),
			FilePath:        fmt.Sprintf("/media/programs/pgm_%02d.mp4", i),
		})
	}

	cfg := DefaultConfig()
	cfg.Featured.MinimumSpacingHours = 2
	b := NewSeeded(s, cfg, discardLogger(), 5)
	res := b.BuildDaily(ctx, date, "")
	require.True(t, res.Success, "build failed: %s %s", res.ErrorKind, res.Message)

	items, err := s.ItemsForSchedule(ctx, res.ScheduleID)
	require.NoError(t, err)
	var starts []float64
	for _, it := range items {
		if it.AssetID != promoA.ID && it.AssetID != promoB.ID {
			continue
		}
		startS, err := store.ParseStartTime(it.ScheduledStartTime)
		require.NoError(t, err)
		starts = append(starts, startS)
	}
	require.GreaterOrEqual(t, len(starts), 2, "both promos must air")
	for i := 1; i < len(starts); i++ {
		require.GreaterOrEqual(t, starts[i]-starts[i-1], 2*3600.0-0.001,
			"featured items %d and %d air closer than the minimum spacing", i, i+1)
	}
}

func TestBuildDailyCancellation(t *testing.T) {
	s := newTestStore(t)
	seedLibrary(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewSeeded(s, DefaultConfig(), discardLogger(), 1)
	res := b.BuildDaily(ctx, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "")
	require.False(t, res.Success)
	require.Equal(t, ErrKindCancelled, res.ErrorKind)
}
