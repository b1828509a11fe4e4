// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"database/sql"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// fillPattern marks reserved filler files that must never be scheduled.
const fillPattern = "FILL"

// maxCandidates caps the candidate set returned per request.
const maxCandidates = 200

// ContentQuery describes one candidate request from the scheduler core.
type ContentQuery struct {
	// Token is a duration category (id, spots, short_form, long_form)
	// or a lower-cased content type.
	Token        string
	ExcludeIDs   []int64
	ScheduleDate time.Time
	// DelayFactor scales the replay delay; < 1.0 relaxes it.
	DelayFactor float64
	// IgnoreDelays drops the delay constraint entirely (after a reset).
	IgnoreDelays bool
	// BaseDelayHours and PerAiringHours define the replay delay for
	// this token; FeaturedSpacingHours overrides for featured assets.
	BaseDelayHours       float64
	PerAiringHours       float64
	FeaturedSpacingHours float64
}

// tokenFilter returns the SQL column filter for a rotation token.
func tokenFilter(token string) (string, any) {
	if IsDurationCategory(token) {
		return "a.duration_category = ?", token
	}
	return "LOWER(a.content_type) = ?", strings.ToLower(token)
}

const candidateCols = assetCols + `,
	i.id, i.file_path, i.file_name, i.encoded_date,
	m.available_for_scheduling, m.content_expiry_date, m.go_live_date,
	m.last_scheduled_date, m.total_airings, m.featured, m.priority_score`

const candidateJoin = `
	FROM assets a
	JOIN instances i ON i.asset_id = a.id AND i.is_primary = 1
	JOIN scheduling_metadata m ON m.asset_id = a.id`

func scanCandidate(rows *sql.Rows) (Candidate, error) {
	var c Candidate
	var engagement sql.NullFloat64
	var meetingDate, createdDate, encodedDate sql.NullString
	var analysisCompleted, aiEnabled, available, featured int
	var expiry, goLive, last sql.NullString
	err := rows.Scan(&c.Asset.ID, &c.Asset.UUID, &c.Asset.ContentType, &c.Asset.ContentTitle,
		&c.Asset.DurationSeconds, &c.Asset.DurationCategory, &engagement, &c.Asset.ShelfLifeScore,
		&c.Asset.Theme, &analysisCompleted, &aiEnabled, &meetingDate, &createdDate,
		&c.InstanceID, &c.FilePath, &c.FileName, &encodedDate,
		&available, &expiry, &goLive, &last, &c.Meta.TotalAirings, &featured, &c.Meta.PriorityScore)
	if err != nil {
		return c, err
	}
	if engagement.Valid {
		v := engagement.Float64
		c.Asset.EngagementScore = &v
	}
	c.Asset.AnalysisCompleted = analysisCompleted != 0
	c.Asset.AIAnalysisEnabled = aiEnabled != 0
	c.Asset.MeetingDate = parseTimePtr(meetingDate)
	if t := parseTimePtr(createdDate); t != nil {
		c.Asset.CreatedDate = *t
	}
	c.EncodedDate = parseTimePtr(encodedDate)
	c.Meta.AssetID = c.Asset.ID
	c.Meta.AvailableForScheduling = available != 0
	c.Meta.Featured = featured != 0
	c.Meta.ContentExpiryDate = parseTimePtr(expiry)
	c.Meta.GoLiveDate = parseTimePtr(goLive)
	c.Meta.LastScheduledDate = parseTimePtr(last)
	return c, nil
}

// GetAvailableContent returns up to 200 candidates for the requested token,
// ordered by composite priority: freshness 0.35,
// engagement 0.25, inverse airings 0.20, time since last scheduled 0.20.
// Expiry, go-live, availability, the FILL pattern, exclusions, and the
// (possibly relaxed) replay delay are all applied.
func (s *Store) GetAvailableContent(ctx context.Context, q ContentQuery) ([]Candidate, error) {
	filter, arg := tokenFilter(q.Token)
	date := fmtTime(q.ScheduleDate)
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+candidateCols+candidateJoin+`
	WHERE `+filter+`
		AND m.available_for_scheduling = 1
		AND i.file_path NOT LIKE '%`+fillPattern+`%'
		AND (m.content_expiry_date IS NULL OR m.content_expiry_date > ?)
		AND (m.go_live_date IS NULL OR m.go_live_date <= ?)`,
		arg, date, date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	excluded := make(map[int64]bool, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = true
	}

	var cands []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		if excluded[c.Asset.ID] {
			continue
		}
		if !q.IgnoreDelays && !delaySatisfied(c, q) {
			continue
		}
		c.Priority = compositePriority(c, q.ScheduleDate)
		c.DelayFactorUsed = q.DelayFactor
		if q.IgnoreDelays {
			c.DelayFactorUsed = 0
		}
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortCandidates(cands)
	if len(cands) > maxCandidates {
		cands = cands[:maxCandidates]
	}
	return cands, nil
}

// delaySatisfied checks the replay-delay constraint for one candidate.
func delaySatisfied(c Candidate, q ContentQuery) bool {
	last := c.Meta.LastScheduledDate
	if last == nil || last.After(q.ScheduleDate) {
		return true
	}
	var required float64
	if c.Meta.Featured {
		required = q.FeaturedSpacingHours
	} else {
		required = q.BaseDelayHours + float64(c.Meta.TotalAirings)*q.PerAiringHours
	}
	if q.DelayFactor < 1.0 {
		required *= q.DelayFactor
	}
	return q.ScheduleDate.Sub(*last).Hours() >= required
}

// compositePriority computes the weighted server-side ranking score.
func compositePriority(c Candidate, scheduleDate time.Time) float64 {
	fresh := 0.0
	if c.EncodedDate != nil {
		switch days := scheduleDate.Sub(*c.EncodedDate).Hours() / 24; {
		case days < 1:
			fresh = 100
		case days < 3:
			fresh = 90
		case days < 7:
			fresh = 80
		case days < 14:
			fresh = 60
		case days < 30:
			fresh = 40
		case days < 90:
			fresh = 20
		default:
			fresh = 10
		}
	}
	engagement := 0.0
	if c.Asset.EngagementScore != nil {
		engagement = *c.Asset.EngagementScore
	}
	var airings float64
	switch n := c.Meta.TotalAirings; {
	case n == 0:
		airings = 100
	case n <= 2:
		airings = 80
	case n <= 5:
		airings = 60
	case n <= 10:
		airings = 40
	case n <= 20:
		airings = 20
	default:
		airings = 10
	}
	var recency float64
	if c.Meta.LastScheduledDate == nil {
		recency = 100
	} else {
		switch h := scheduleDate.Sub(*c.Meta.LastScheduledDate).Hours(); {
		case h >= 24:
			recency = 100
		case h >= 12:
			recency = 80
		case h >= 6:
			recency = 60
		case h >= 3:
			recency = 40
		case h >= 1:
			recency = 20
		default:
			recency = 0
		}
	}
	return 0.35*fresh + 0.25*engagement + 0.20*airings + 0.20*recency
}

// sortCandidates orders by priority descending with the documented
// tie-breaks: last_scheduled ascending (nulls first), total_airings
// ascending, encoded_date descending (nulls last), then a small jitter.
func sortCandidates(cands []Candidate) {
	jitter := make(map[int64]float64, len(cands))
	for _, c := range cands {
		jitter[c.Asset.ID] = rand.Float64()
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		al, bl := a.Meta.LastScheduledDate, b.Meta.LastScheduledDate
		if (al == nil) != (bl == nil) {
			return al == nil
		}
		if al != nil && !al.Equal(*bl) {
			return al.Before(*bl)
		}
		if a.Meta.TotalAirings != b.Meta.TotalAirings {
			return a.Meta.TotalAirings < b.Meta.TotalAirings
		}
		ae, be := a.EncodedDate, b.EncodedDate
		if (ae == nil) != (be == nil) {
			return be == nil
		}
		if ae != nil && !ae.Equal(*be) {
			return ae.After(*be)
		}
		return jitter[a.Asset.ID] < jitter[b.Asset.ID]
	})
}

// FeaturedRules carries the config-driven featured classification for
// GetFeaturedContent.
type FeaturedRules struct {
	// AlwaysFeaturedTypes lists content types featured unconditionally.
	AlwaysFeaturedTypes []string
	// EngagementThresholds maps content type to the minimum engagement
	// score for engagement-based featuring.
	EngagementThresholds map[string]float64
	// MeetingFreshDays and MeetingRelevantDays bound the MTG tiers that
	// auto-feature meeting content.
	MeetingFreshDays    int
	MeetingRelevantDays int
}

// FeaturedQuery describes a featured-content request.
type FeaturedQuery struct {
	ExcludeIDs   []int64
	ScheduleDate time.Time
	Rules        FeaturedRules
}

// GetFeaturedContent returns available featured candidates, ordered by
// least-recently scheduled first (nulls first), then engagement descending.
func (s *Store) GetFeaturedContent(ctx context.Context, q FeaturedQuery) ([]Candidate, error) {
	date := fmtTime(q.ScheduleDate)
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+candidateCols+candidateJoin+`
	WHERE m.available_for_scheduling = 1
		AND i.file_path NOT LIKE '%`+fillPattern+`%'
		AND (m.content_expiry_date IS NULL OR m.content_expiry_date > ?)
		AND (m.go_live_date IS NULL OR m.go_live_date <= ?)`,
		date, date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	excluded := make(map[int64]bool, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = true
	}

	var cands []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		if excluded[c.Asset.ID] {
			continue
		}
		if !q.Rules.IsFeatured(c, q.ScheduleDate) {
			continue
		}
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		al, bl := a.Meta.LastScheduledDate, b.Meta.LastScheduledDate
		if (al == nil) != (bl == nil) {
			return al == nil
		}
		if al != nil && !al.Equal(*bl) {
			return al.Before(*bl)
		}
		ae, be := a.Asset.EngagementScore, b.Asset.EngagementScore
		av, bv := 0.0, 0.0
		if ae != nil {
			av = *ae
		}
		if be != nil {
			bv = *be
		}
		return av > bv
	})
	if len(cands) > maxCandidates {
		cands = cands[:maxCandidates]
	}
	return cands, nil
}

// IsFeatured applies the featured classification to one candidate:
// manual flag, always-featured type, engagement threshold, or a
// fresh/relevant meeting.
func (r FeaturedRules) IsFeatured(c Candidate, scheduleDate time.Time) bool {
	if c.Meta.Featured {
		return true
	}
	ct := strings.ToLower(c.Asset.ContentType)
	for _, t := range r.AlwaysFeaturedTypes {
		if strings.EqualFold(t, ct) {
			return true
		}
	}
	if threshold, ok := r.EngagementThresholds[ct]; ok {
		if c.Asset.EngagementScore != nil && *c.Asset.EngagementScore >= threshold {
			return true
		}
	}
	if ct == "mtg" && c.Asset.MeetingDate != nil {
		ageDays := scheduleDate.Sub(*c.Asset.MeetingDate).Hours() / 24
		if ageDays >= 0 && ageDays <= float64(r.MeetingRelevantDays) {
			return true
		}
	}
	return false
}

// CandidatesByIDs returns candidate rows for the given asset ids, applying
// the availability, expiry, and go-live filters but no delay constraint.
// Used by the holiday-greeting rotator to resolve pre-assigned pools.
func (s *Store) CandidatesByIDs(ctx context.Context, ids []int64, scheduleDate time.Time) ([]Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	date := fmtTime(scheduleDate)
	query, args := inClause(`
	SELECT `+candidateCols+candidateJoin+`
	WHERE a.id IN (%s)
		AND m.available_for_scheduling = 1
		AND (m.content_expiry_date IS NULL OR m.content_expiry_date > ?)
		AND (m.go_live_date IS NULL OR m.go_live_date <= ?)`, ids)
	args = append(args, date, date)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	byID := make(map[int64]Candidate, len(ids))
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		byID[c.Asset.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	cands := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			cands = append(cands, c)
		}
	}
	return cands, nil
}

// PoolAsset is one member of a token's valid pool.
type PoolAsset struct {
	ID              int64
	DurationSeconds float64
}

// ValidTokenPool returns all assets in the token's category/type that are
// available and inside their expiry / go-live window, regardless of replay
// delays. Used for the category-reset check.
func (s *Store) ValidTokenPool(ctx context.Context, token string, scheduleDate time.Time) ([]PoolAsset, error) {
	filter, arg := tokenFilter(token)
	date := fmtTime(scheduleDate)
	rows, err := s.db.QueryContext(ctx, `
	SELECT a.id, a.duration_seconds`+candidateJoin+`
	WHERE `+filter+`
		AND m.available_for_scheduling = 1
		AND i.file_path NOT LIKE '%`+fillPattern+`%'
		AND (m.content_expiry_date IS NULL OR m.content_expiry_date > ?)
		AND (m.go_live_date IS NULL OR m.go_live_date <= ?)`,
		arg, date, date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var pool []PoolAsset
	for rows.Next() {
		var pa PoolAsset
		if err := rows.Scan(&pa.ID, &pa.DurationSeconds); err != nil {
			return nil, err
		}
		pool = append(pool, pa)
	}
	return pool, rows.Err()
}
