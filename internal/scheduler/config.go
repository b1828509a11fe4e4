// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package scheduler implements the playout scheduler core: rotation,
// candidate selection with progressive delay relaxation, holiday-greeting
// fair rotation, featured-content placement, and the schedule builder.
package scheduler

import "github.com/playout-works/chansched/internal/store"

// FeaturedConfig controls featured-content placement.
type FeaturedConfig struct {
	MinimumSpacingHours float64 `json:"minimum_spacing_hours"`
	DaytimeStartHour    int     `json:"daytime_start_hour"`
	DaytimeEndHour      int     `json:"daytime_end_hour"`
	DaytimeProbability  float64 `json:"daytime_probability"`
}

// MeetingConfig bounds the meeting-relevance tiers in days.
type MeetingConfig struct {
	FreshDays    int `json:"fresh_days"`
	RelevantDays int `json:"relevant_days"`
	ArchiveDays  int `json:"archive_days"`
}

// ContentPriority is the per-content-type featuring policy.
type ContentPriority struct {
	AlwaysFeatured   bool    `json:"always_featured"`
	EngagementBased  bool    `json:"engagement_based"`
	FeatureThreshold float64 `json:"feature_threshold"`
	AutoFeatureDays  int     `json:"auto_feature_days"`
}

// Config is the immutable per-build snapshot of all scheduling options.
type Config struct {
	RotationOrder []string `json:"rotation_order"`
	// ReplayDelays maps duration categories and content types to the
	// base replay delay in hours.
	ReplayDelays map[string]float64 `json:"replay_delays"`
	// AdditionalDelays adds hours per prior airing.
	AdditionalDelays map[string]float64 `json:"additional_delay_per_airing"`
	Featured         FeaturedConfig     `json:"featured_content"`
	Meeting          MeetingConfig      `json:"meeting_relevance"`
	// ContentPriorities keys are lower-cased content types.
	ContentPriorities map[string]ContentPriority `json:"content_priorities"`
	// ContentExpiration maps content types to days-to-expiry added at
	// registration; 0 means the expiry comes from remote metadata.
	ContentExpiration       map[string]int `json:"content_expiration"`
	HolidayGreetingsEnabled bool           `json:"holiday_greetings_enabled"`
	// MaxErrors bounds consecutive selection errors before a run aborts.
	MaxErrors int `json:"max_errors"`
	// Channel is stamped on created schedules.
	Channel string `json:"channel"`
}

// DefaultConfig returns the scheduling defaults.
func DefaultConfig() Config {
	return Config{
		RotationOrder: []string{store.CategoryID, store.CategoryShortForm, store.CategoryLongForm, store.CategorySpots},
		ReplayDelays: map[string]float64{
			store.CategoryID:        6,
			store.CategorySpots:     12,
			store.CategoryShortForm: 24,
			store.CategoryLongForm:  48,
			"an":                    2,
			"bmp":                   3,
			"mtg":                   8,
			"psa":                   2,
			"pkg":                   3,
		},
		AdditionalDelays: map[string]float64{
			store.CategoryID:        0.5,
			store.CategorySpots:     0.5,
			store.CategoryShortForm: 1,
			store.CategoryLongForm:  2,
		},
		Featured: FeaturedConfig{
			MinimumSpacingHours: 4,
			DaytimeStartHour:    6,
			DaytimeEndHour:      18,
			DaytimeProbability:  0.75,
		},
		Meeting: MeetingConfig{
			FreshDays:    3,
			RelevantDays: 7,
			ArchiveDays:  14,
		},
		ContentPriorities: map[string]ContentPriority{
			"pmo": {AlwaysFeatured: true},
			"pkg": {EngagementBased: true, FeatureThreshold: 70},
			"mtg": {AutoFeatureDays: 7},
		},
		ContentExpiration:       map[string]int{"an": 30, "psa": 90, "mtg": 0},
		HolidayGreetingsEnabled: true,
		MaxErrors:               100,
	}
}

// baseDelayHours returns the replay delay for a rotation token.
func (c Config) baseDelayHours(token string) float64 {
	if d, ok := c.ReplayDelays[token]; ok {
		return d
	}
	return 0
}

// additionalDelayHours returns the per-airing delay increment for a token.
func (c Config) additionalDelayHours(token string) float64 {
	if d, ok := c.AdditionalDelays[token]; ok {
		return d
	}
	return 0.5
}

// featuredRules converts the config into the store's featured filter.
func (c Config) featuredRules() store.FeaturedRules {
	rules := store.FeaturedRules{
		EngagementThresholds: map[string]float64{},
		MeetingFreshDays:     c.Meeting.FreshDays,
		MeetingRelevantDays:  c.Meeting.RelevantDays,
	}
	for ct, p := range c.ContentPriorities {
		if p.AlwaysFeatured {
			rules.AlwaysFeaturedTypes = append(rules.AlwaysFeaturedTypes, ct)
		}
		if p.EngagementBased {
			rules.EngagementThresholds[ct] = p.FeatureThreshold
		}
	}
	return rules
}
