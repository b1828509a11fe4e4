// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetAvailableContentFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	expired := date.AddDate(0, 0, -1)
	future := date.AddDate(0, 0, 3)

	ok, err := s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Good Spot", DurationSeconds: 60,
		FileName: "good.mp4", FilePath: "/media/good.mp4",
	})
	require.NoError(t, err)

	hidden, err := s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Hidden Spot", DurationSeconds: 60,
		FileName: "hidden.mp4", FilePath: "/media/hidden.mp4",
	})
	require.NoError(t, err)
	require.NoError(t, s.SetAssetAvailability(ctx, hidden.ID, false))

	_, err = s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Expired Spot", DurationSeconds: 60,
		FileName: "expired.mp4", FilePath: "/media/expired.mp4",
		ContentExpiryDate: &expired,
	})
	require.NoError(t, err)

	_, err = s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Not Yet Live", DurationSeconds: 60,
		FileName: "future.mp4", FilePath: "/media/future.mp4",
		GoLiveDate: &future,
	})
	require.NoError(t, err)

	_, err = s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Filler", DurationSeconds: 60,
		FileName: "FILL_black.mp4", FilePath: "/media/FILL_black.mp4",
	})
	require.NoError(t, err)

	_, err = s.CreateAsset(ctx, NewAsset{
		ContentType: "pgm", ContentTitle: "Long Program", DurationSeconds: 3600,
		FileName: "long.mp4", FilePath: "/media/long.mp4",
	})
	require.NoError(t, err)

	cands, err := s.GetAvailableContent(ctx, ContentQuery{
		Token: CategorySpots, ScheduleDate: date, DelayFactor: 1.0,
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, ok.ID, cands[0].Asset.ID)

	// Exclusion removes the survivor too.
	cands, err = s.GetAvailableContent(ctx, ContentQuery{
		Token: CategorySpots, ScheduleDate: date, DelayFactor: 1.0,
		ExcludeIDs: []int64{ok.ID},
	})
	require.NoError(t, err)
	require.Empty(t, cands)
}

func TestGetAvailableContentByContentType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	psa, err := s.CreateAsset(ctx, NewAsset{
		ContentType: "PSA", ContentTitle: "Mixed Case Type", DurationSeconds: 60,
		FileName: "mixed.mp4", FilePath: "/media/mixed.mp4",
	})
	require.NoError(t, err)
	_, err = s.CreateAsset(ctx, NewAsset{
		ContentType: "pkg", ContentTitle: "Package", DurationSeconds: 60,
		FileName: "package.mp4", FilePath: "/media/package.mp4",
	})
	require.NoError(t, err)

	cands, err := s.GetAvailableContent(ctx, ContentQuery{
		Token: "psa", ScheduleDate: date, DelayFactor: 1.0,
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, psa.ID, cands[0].Asset.ID)
}

func TestGetAvailableContentOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	freshEncode := date.AddDate(0, 0, -2)
	staleEncode := date.AddDate(0, -6, 0)

	fresh, err := s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Fresh", DurationSeconds: 60,
		FileName: "fresh.mp4", FilePath: "/media/fresh.mp4",
		EncodedDate: &freshEncode,
	})
	require.NoError(t, err)

	stale, err := s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Stale", DurationSeconds: 60,
		FileName: "stale.mp4", FilePath: "/media/stale.mp4",
		EncodedDate: &staleEncode,
	})
	require.NoError(t, err)
	// Heavily aired long ago so it passes the delay but ranks last.
	for i := 0; i < 6; i++ {
		require.NoError(t, s.UpdateAssetLastScheduled(ctx, stale.ID, date.AddDate(0, 0, -30)))
	}

	cands, err := s.GetAvailableContent(ctx, ContentQuery{
		Token: CategorySpots, ScheduleDate: date, DelayFactor: 1.0,
		BaseDelayHours: 12, PerAiringHours: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, cands, 2)
	require.Equal(t, fresh.ID, cands[0].Asset.ID)
	require.Greater(t, cands[0].Priority, cands[1].Priority)
	require.Equal(t, stale.ID, cands[1].Asset.ID)
}

func TestDelaySatisfied(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	q := ContentQuery{
		ScheduleDate: date, DelayFactor: 1.0,
		BaseDelayHours: 12, PerAiringHours: 0.5, FeaturedSpacingHours: 4,
	}
	last := func(hoursAgo float64) *time.Time {
		t := date.Add(-time.Duration(hoursAgo * float64(time.Hour)))
		return &t
	}

	cases := []struct {
		name string
		c    Candidate
		q    ContentQuery
		want bool
	}{
		{"never scheduled", Candidate{}, q, true},
		{"future last date", Candidate{Meta: SchedulingMetadata{LastScheduledDate: last(-2)}}, q, true},
		{"delay met", Candidate{Meta: SchedulingMetadata{LastScheduledDate: last(13), TotalAirings: 1}}, q, true},
		{"delay not met", Candidate{Meta: SchedulingMetadata{LastScheduledDate: last(12), TotalAirings: 1}}, q, false},
		{"airings extend delay", Candidate{Meta: SchedulingMetadata{LastScheduledDate: last(13), TotalAirings: 4}}, q, false},
		{"featured uses spacing", Candidate{Meta: SchedulingMetadata{LastScheduledDate: last(5), Featured: true}}, q, true},
		{
			"relaxed factor",
			Candidate{Meta: SchedulingMetadata{LastScheduledDate: last(7), TotalAirings: 1}},
			func() ContentQuery { r := q; r.DelayFactor = 0.5; return r }(),
			true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, delaySatisfied(tc.c, tc.q))
		})
	}
}

func TestValidTokenPool(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	expired := date.AddDate(0, 0, -1)

	a, err := s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Recent", DurationSeconds: 60,
		FileName: "recent.mp4", FilePath: "/media/recent.mp4",
	})
	require.NoError(t, err)
	// Delay-blocked assets still count toward the valid pool.
	require.NoError(t, s.UpdateAssetLastScheduled(ctx, a.ID, date.Add(-time.Hour)))

	_, err = s.CreateAsset(ctx, NewAsset{
		ContentType: "psa", ContentTitle: "Expired", DurationSeconds: 60,
		FileName: "old.mp4", FilePath: "/media/old.mp4",
		ContentExpiryDate: &expired,
	})
	require.NoError(t, err)

	pool, err := s.ValidTokenPool(ctx, CategorySpots, date)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	require.Equal(t, a.ID, pool[0].ID)
	require.InDelta(t, 60, pool[0].DurationSeconds, 0.001)
}

func TestCandidatesByIDsPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	var ids []int64
	for _, title := range []string{"One", "Two", "Three"} {
		a, err := s.CreateAsset(ctx, NewAsset{
			ContentType: "grt", ContentTitle: title, DurationSeconds: 30,
			FileName: title + ".mp4", FilePath: "/media/" + title + ".mp4",
		})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	want := []int64{ids[2], ids[0]}
	cands, err := s.CandidatesByIDs(ctx, want, date)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	require.Equal(t, want[0], cands[0].Asset.ID)
	require.Equal(t, want[1], cands[1].Asset.ID)
}
