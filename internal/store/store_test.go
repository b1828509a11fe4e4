// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoredTimeOrderingIsLexicographic(t *testing.T) {
	base := time.Date(2026, 12, 24, 12, 0, 0, 0, time.UTC)
	// Mixed whole-second and fractional values must order as strings the
	// way the times order, since the SQL range filters compare strings.
	times := []time.Time{
		base.Add(-time.Second),
		base.Add(-500 * time.Millisecond),
		base,
		base.Add(333 * time.Nanosecond),
		base.Add(time.Second - time.Nanosecond),
		base.Add(time.Second),
	}
	for i := 1; i < len(times); i++ {
		prev, cur := fmtTime(times[i-1]), fmtTime(times[i])
		require.Less(t, prev, cur)

		parsed := parseTimePtr(sql.NullString{String: cur, Valid: true})
		require.NotNil(t, parsed)
		require.True(t, parsed.Equal(times[i]), "round trip of %s", cur)
	}
}

func TestCategorizeDuration(t *testing.T) {
	cases := []struct {
		durS float64
		want string
	}{
		{5, CategoryID},
		{15.9, CategoryID},
		{16, CategorySpots},
		{119, CategorySpots},
		{120, CategoryShortForm},
		{1199, CategoryShortForm},
		{1200, CategoryLongForm},
		{7200, CategoryLongForm},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CategorizeDuration(tc.durS), "duration %v", tc.durS)
	}
}

func TestTimeslotForHour(t *testing.T) {
	require.Equal(t, "overnight", TimeslotForHour(3))
	require.Equal(t, "early_morning", TimeslotForHour(7))
	require.Equal(t, "morning", TimeslotForHour(11))
	require.Equal(t, "afternoon", TimeslotForHour(14))
	require.Equal(t, "prime_time", TimeslotForHour(19))
	require.Equal(t, "evening", TimeslotForHour(22))
}

func TestCreateAndGetAsset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.CreateAsset(ctx, NewAsset{
		ContentType:     "pkg",
		ContentTitle:    "Harbor Cleanup",
		DurationSeconds: 540,
		Theme:           "Environment",
		FileName:        "harbor.mp4",
		FilePath:        "/media/harbor.mp4",
		FileSize:        1 << 20,
	})
	require.NoError(t, err)
	require.NotZero(t, a.ID)
	require.NotEmpty(t, a.UUID)
	require.Equal(t, CategoryShortForm, a.DurationCategory, "category derived from duration")

	got, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.Equal(t, "Harbor Cleanup", got.ContentTitle)
	require.Equal(t, "Environment", got.Theme)
	require.Equal(t, "medium", got.ShelfLifeScore)

	m, err := s.GetMetadata(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, m.AvailableForScheduling)
	require.Zero(t, m.TotalAirings)
	require.Nil(t, m.LastScheduledDate)

	_, err = s.GetAsset(ctx, a.ID+100)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAssetLastScheduled(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Water Notice", DurationSeconds: 60,
		FileName: "water.mp4", FilePath: "/media/water.mp4",
	})
	require.NoError(t, err)

	air := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	require.NoError(t, s.UpdateAssetLastScheduled(ctx, a.ID, air))
	require.NoError(t, s.UpdateAssetLastScheduled(ctx, a.ID, air.Add(time.Hour)))

	m, err := s.GetMetadata(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 2, m.TotalAirings)
	require.NotNil(t, m.LastScheduledDate)
	require.True(t, m.LastScheduledDate.Equal(air.Add(time.Hour)))

	slot := m.TimeslotStats["afternoon"]
	require.Equal(t, 2, slot.ReplayCount, "both airings land in the afternoon slot")
	require.NotNil(t, slot.LastScheduled)
}

func TestSetAssetAvailability(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Spot", DurationSeconds: 45,
		FileName: "spot.mp4", FilePath: "/media/spot.mp4",
	})
	require.NoError(t, err)

	require.NoError(t, s.SetAssetAvailability(ctx, a.ID, false))
	m, err := s.GetMetadata(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, m.AvailableForScheduling)

	require.ErrorIs(t, s.SetAssetAvailability(ctx, a.ID+100, true), ErrNotFound)
}

func TestScheduleLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	sch, err := s.CreateSchedule(ctx, "Week of March 8", date, "ch1")
	require.NoError(t, err)
	require.NotZero(t, sch.ID)

	exists, err := s.ScheduleExistsForDate(ctx, date)
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = s.ScheduleExistsForDate(ctx, date.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, s.SetScheduleDuration(ctx, sch.ID, 604800))
	got, err := s.GetSchedule(ctx, sch.ID)
	require.NoError(t, err)
	require.Equal(t, "Week of March 8", got.Name)
	require.Equal(t, "ch1", got.Channel)
	require.InDelta(t, 604800, got.TotalDurationSeconds, 0.001)
	require.True(t, got.AirDate.Equal(date))

	listed, err := s.ListSchedules(ctx, date.AddDate(0, 0, -1), date.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed, err = s.ListSchedules(ctx, date.AddDate(0, 0, 1), time.Time{})
	require.NoError(t, err)
	require.Empty(t, listed)

	require.NoError(t, s.DeleteSchedule(ctx, sch.ID))
	_, err = s.GetSchedule(ctx, sch.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.DeleteSchedule(ctx, sch.ID), ErrNotFound)
}

func TestDeleteScheduleRestoresAirings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	a, err := s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Spot", DurationSeconds: 60,
		FileName: "spot.mp4", FilePath: "/media/spot.mp4",
	})
	require.NoError(t, err)
	sch, err := s.CreateSchedule(ctx, "Daily", date, "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		item := ScheduledItem{
			ScheduleID:               sch.ID,
			AssetID:                  a.ID,
			SequenceNumber:           i + 1,
			ScheduledStartTime:       FormatStartTime(float64(i) * 100),
			ScheduledDurationSeconds: 60,
			AvailableForScheduling:   true,
		}
		require.NoError(t, s.AppendItem(ctx, &item))
		require.NoError(t, s.UpdateAssetLastScheduled(ctx, a.ID, date))
	}

	require.NoError(t, s.DeleteSchedule(ctx, sch.ID))
	m, err := s.GetMetadata(ctx, a.ID)
	require.NoError(t, err)
	require.Zero(t, m.TotalAirings)

	items, err := s.ItemsForSchedule(ctx, sch.ID)
	require.NoError(t, err)
	require.Empty(t, items, "items removed by cascade")
}
