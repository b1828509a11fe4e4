// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package scheduler

import (
	"context"
	"time"

	"github.com/playout-works/chansched/internal/store"
)

// Library is the asset-store surface the scheduler core consumes.
// *store.Store satisfies it; tests may substitute a narrower fake.
type Library interface {
	GetAvailableContent(ctx context.Context, q store.ContentQuery) ([]store.Candidate, error)
	GetFeaturedContent(ctx context.Context, q store.FeaturedQuery) ([]store.Candidate, error)
	CandidatesByIDs(ctx context.Context, ids []int64, scheduleDate time.Time) ([]store.Candidate, error)
	ValidTokenPool(ctx context.Context, token string, scheduleDate time.Time) ([]store.PoolAsset, error)
	ResetCategoryDelays(ctx context.Context, assetIDs []int64) error
	UpdateAssetLastScheduled(ctx context.Context, assetID int64, airTime time.Time) error

	CreateSchedule(ctx context.Context, name string, airDate time.Time, channel string) (store.Schedule, error)
	ScheduleExistsForDate(ctx context.Context, airDate time.Time) (bool, error)
	AppendItem(ctx context.Context, item *store.ScheduledItem) error
	SetScheduleDuration(ctx context.Context, id int64, totalDurationS float64) error
	DeleteSchedule(ctx context.Context, id int64) error

	ListGreetingRotations(ctx context.Context) ([]store.GreetingRotation, error)
	ClearGreetingDays(ctx context.Context, start, end time.Time) error
	AssignGreetingDay(ctx context.Context, assetID int64, day time.Time, dayNumber int) error
	GreetingPoolForDate(ctx context.Context, date time.Time) ([]int64, error)
	IncrementGreeting(ctx context.Context, assetID int64, when time.Time) error
}

var _ Library = (*store.Store)(nil)
