// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package store

import "time"

// Duration categories as derived from asset duration during analysis.
const (
	CategoryID        = "id"         // < 16s
	CategorySpots     = "spots"      // < 120s
	CategoryShortForm = "short_form" // < 1200s
	CategoryLongForm  = "long_form"  // >= 1200s
)

// DurationCategories lists the four categories in canonical order.
var DurationCategories = []string{CategoryID, CategorySpots, CategoryShortForm, CategoryLongForm}

// IsDurationCategory reports whether token names a duration category
// rather than a content type.
func IsDurationCategory(token string) bool {
	switch token {
	case CategoryID, CategorySpots, CategoryShortForm, CategoryLongForm:
		return true
	}
	return false
}

// CategorizeDuration maps a duration in seconds to its category.
func CategorizeDuration(durS float64) string {
	switch {
	case durS < 16:
		return CategoryID
	case durS < 120:
		return CategorySpots
	case durS < 1200:
		return CategoryShortForm
	default:
		return CategoryLongForm
	}
}

// Asset is one library entry. Instances carry the physical files.
type Asset struct {
	ID                int64      `json:"id"`
	UUID              string     `json:"uuid"`
	ContentType       string     `json:"content_type"`
	ContentTitle      string     `json:"content_title"`
	DurationSeconds   float64    `json:"duration_seconds"`
	DurationCategory  string     `json:"duration_category"`
	EngagementScore   *float64   `json:"engagement_score,omitempty"`
	ShelfLifeScore    string     `json:"shelf_life_score"`
	Theme             string     `json:"theme"`
	AnalysisCompleted bool       `json:"analysis_completed"`
	AIAnalysisEnabled bool       `json:"ai_analysis_enabled"`
	MeetingDate       *time.Time `json:"meeting_date,omitempty"`
	CreatedDate       time.Time  `json:"created_date"`
}

// Instance is a physical file of an asset on a storage location.
// Exactly one instance per asset is primary.
type Instance struct {
	ID              int64      `json:"id"`
	AssetID         int64      `json:"asset_id"`
	FileName        string     `json:"file_name"`
	FilePath        string     `json:"file_path"`
	FileSize        int64      `json:"file_size"`
	EncodedDate     *time.Time `json:"encoded_date,omitempty"`
	StorageLocation string     `json:"storage_location"`
	Primary         bool       `json:"primary"`
}

// TimeslotStat tracks per-timeslot scheduling history for an asset.
type TimeslotStat struct {
	LastScheduled *time.Time `json:"last_scheduled,omitempty"`
	ReplayCount   int        `json:"replay_count"`
}

// Timeslot names for the per-timeslot history arrays.
var Timeslots = []string{"overnight", "early_morning", "morning", "afternoon", "prime_time", "evening"}

// TimeslotForHour maps an hour of day (0-23) to a timeslot name.
func TimeslotForHour(hour int) string {
	switch {
	case hour < 6:
		return "overnight"
	case hour < 9:
		return "early_morning"
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	case hour < 20:
		return "prime_time"
	default:
		return "evening"
	}
}

// SchedulingMetadata is the 1:1 companion of an asset that the
// scheduler core reads and updates.
type SchedulingMetadata struct {
	AssetID                int64                   `json:"asset_id"`
	AvailableForScheduling bool                    `json:"available_for_scheduling"`
	ContentExpiryDate      *time.Time              `json:"content_expiry_date,omitempty"`
	GoLiveDate             *time.Time              `json:"go_live_date,omitempty"`
	LastScheduledDate      *time.Time              `json:"last_scheduled_date,omitempty"`
	TotalAirings           int                     `json:"total_airings"`
	Featured               bool                    `json:"featured"`
	PriorityScore          float64                 `json:"priority_score"`
	OptimalTimeslots       []string                `json:"optimal_timeslots"`
	TimeslotStats          map[string]TimeslotStat `json:"timeslot_stats,omitempty"`
}

// Schedule is one generated playout window (daily, weekly, or monthly).
type Schedule struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	AirDate              time.Time `json:"air_date"`
	Channel              string    `json:"channel"`
	CreatedDate          time.Time `json:"created_date"`
	TotalDurationSeconds float64   `json:"total_duration_seconds"`
}

// ItemMetadata is the optional JSON blob on a scheduled item.
// DayOffset carries the day for multi-day schedules; LiveInputTitle
// names the source for live input placeholder items.
type ItemMetadata struct {
	DayOffset      *int   `json:"day_offset,omitempty"`
	LiveInputTitle string `json:"live_input_title,omitempty"`
}

// ScheduledItem is one slot in a schedule. SequenceNumber is dense
// 1..N within its schedule and start times follow the frame-gap chain.
type ScheduledItem struct {
	ID                       int64         `json:"id"`
	ScheduleID               int64         `json:"schedule_id"`
	AssetID                  int64         `json:"asset_id"`
	InstanceID               *int64        `json:"instance_id,omitempty"`
	SequenceNumber           int           `json:"sequence_number"`
	ScheduledStartTime       string        `json:"scheduled_start_time"`
	ScheduledDurationSeconds float64       `json:"scheduled_duration_seconds"`
	Metadata                 *ItemMetadata `json:"metadata,omitempty"`
	AvailableForScheduling   bool          `json:"available_for_scheduling"`
}

// GreetingRotation is the fair-rotation counter for one holiday-greeting asset.
type GreetingRotation struct {
	AssetID        int64      `json:"asset_id"`
	ScheduledCount int        `json:"scheduled_count"`
	LastScheduled  *time.Time `json:"last_scheduled,omitempty"`
	FileName       string     `json:"file_name"`
	ContentTitle   string     `json:"content_title"`
}

// Candidate is a ranked row returned by GetAvailableContent:
// an asset joined with its primary instance and scheduling metadata.
type Candidate struct {
	Asset           Asset
	InstanceID      int64
	FilePath        string
	FileName        string
	EncodedDate     *time.Time
	Meta            SchedulingMetadata
	Priority        float64
	DelayFactorUsed float64
}
