// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// NewAsset is the input for registering an asset with its primary instance.
type NewAsset struct {
	ContentType       string
	ContentTitle      string
	DurationSeconds   float64
	DurationCategory  string // derived from DurationSeconds if empty
	EngagementScore   *float64
	ShelfLifeScore    string
	Theme             string
	MeetingDate       *time.Time
	FileName          string
	FilePath          string
	FileSize          int64
	EncodedDate       *time.Time
	StorageLocation   string
	ContentExpiryDate *time.Time
	GoLiveDate        *time.Time
	Featured          bool
}

// CreateAsset inserts an asset, its primary instance, and an empty
// scheduling metadata row in one transaction. The asset UUID is assigned here.
func (s *Store) CreateAsset(ctx context.Context, na NewAsset) (Asset, error) {
	if na.DurationCategory == "" {
		na.DurationCategory = CategorizeDuration(na.DurationSeconds)
	}
	if na.ShelfLifeScore == "" {
		na.ShelfLifeScore = "medium"
	}
	a := Asset{
		UUID:             uuid.NewString(),
		ContentType:      na.ContentType,
		ContentTitle:     na.ContentTitle,
		DurationSeconds:  na.DurationSeconds,
		DurationCategory: na.DurationCategory,
		EngagementScore:  na.EngagementScore,
		ShelfLifeScore:   na.ShelfLifeScore,
		Theme:            na.Theme,
		MeetingDate:      na.MeetingDate,
		CreatedDate:      time.Now().UTC(),
	}
	err := s.execTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		INSERT INTO assets (uuid, content_type, content_title, duration_seconds, duration_category,
			engagement_score, shelf_life_score, theme, analysis_completed, ai_analysis_enabled,
			meeting_date, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, 1, ?, ?)`,
			a.UUID, a.ContentType, a.ContentTitle, a.DurationSeconds, a.DurationCategory,
			engagementArg(a.EngagementScore), a.ShelfLifeScore, a.Theme,
			fmtTimePtr(a.MeetingDate), fmtTime(a.CreatedDate))
		if err != nil {
			return fmt.Errorf("insert asset: %w", err)
		}
		a.ID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO instances (asset_id, file_name, file_path, file_size, encoded_date, storage_location, is_primary)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
			a.ID, na.FileName, na.FilePath, na.FileSize, fmtTimePtr(na.EncodedDate), na.StorageLocation)
		if err != nil {
			return fmt.Errorf("insert instance: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO scheduling_metadata (asset_id, available_for_scheduling, content_expiry_date, go_live_date, featured)
		VALUES (?, 1, ?, ?, ?)`,
			a.ID, fmtTimePtr(na.ContentExpiryDate), fmtTimePtr(na.GoLiveDate), boolArg(na.Featured))
		if err != nil {
			return fmt.Errorf("insert scheduling metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return Asset{}, err
	}
	return a, nil
}

func engagementArg(e *float64) any {
	if e == nil {
		return nil
	}
	return *e
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}

const assetCols = `a.id, a.uuid, a.content_type, a.content_title, a.duration_seconds,
	a.duration_category, a.engagement_score, a.shelf_life_score, a.theme,
	a.analysis_completed, a.ai_analysis_enabled, a.meeting_date, a.created_date`

func scanAsset(row interface{ Scan(...any) error }) (Asset, error) {
	var a Asset
	var engagement sql.NullFloat64
	var meetingDate, createdDate sql.NullString
	var analysisCompleted, aiEnabled int
	err := row.Scan(&a.ID, &a.UUID, &a.ContentType, &a.ContentTitle, &a.DurationSeconds,
		&a.DurationCategory, &engagement, &a.ShelfLifeScore, &a.Theme,
		&analysisCompleted, &aiEnabled, &meetingDate, &createdDate)
	if err != nil {
		return a, err
	}
	if engagement.Valid {
		v := engagement.Float64
		a.EngagementScore = &v
	}
	a.AnalysisCompleted = analysisCompleted != 0
	a.AIAnalysisEnabled = aiEnabled != 0
	a.MeetingDate = parseTimePtr(meetingDate)
	if t := parseTimePtr(createdDate); t != nil {
		a.CreatedDate = *t
	}
	return a, nil
}

// GetAsset retrieves one asset by id.
func (s *Store) GetAsset(ctx context.Context, id int64) (Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetCols+` FROM assets a WHERE a.id = ?`, id)
	a, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// ListAssets returns all assets ordered by id.
func (s *Store) ListAssets(ctx context.Context) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+assetCols+` FROM assets a ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var assets []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// GetMetadata retrieves the scheduling metadata for an asset.
func (s *Store) GetMetadata(ctx context.Context, assetID int64) (SchedulingMetadata, error) {
	var m SchedulingMetadata
	var available, featured int
	var expiry, goLive, last sql.NullString
	var optimal, slots string
	err := s.db.QueryRowContext(ctx, `
	SELECT asset_id, available_for_scheduling, content_expiry_date, go_live_date,
		last_scheduled_date, total_airings, featured, priority_score, optimal_timeslots, timeslot_stats
	FROM scheduling_metadata WHERE asset_id = ?`, assetID).Scan(
		&m.AssetID, &available, &expiry, &goLive, &last, &m.TotalAirings,
		&featured, &m.PriorityScore, &optimal, &slots)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.AvailableForScheduling = available != 0
	m.Featured = featured != 0
	m.ContentExpiryDate = parseTimePtr(expiry)
	m.GoLiveDate = parseTimePtr(goLive)
	m.LastScheduledDate = parseTimePtr(last)
	_ = json.Unmarshal([]byte(optimal), &m.OptimalTimeslots)
	_ = json.Unmarshal([]byte(slots), &m.TimeslotStats)
	return m, nil
}

// SetAssetAvailability flips available_for_scheduling for an asset.
func (s *Store) SetAssetAvailability(ctx context.Context, assetID int64, available bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduling_metadata SET available_for_scheduling = ? WHERE asset_id = ?`,
		boolArg(available), assetID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAssetLastScheduled records a placement: last_scheduled_date is set
// to airTime, total_airings is incremented, and the timeslot history for
// airTime's slot is updated.
func (s *Store) UpdateAssetLastScheduled(ctx context.Context, assetID int64, airTime time.Time) error {
	return s.execTx(ctx, func(tx *sql.Tx) error {
		var slotsJSON string
		err := tx.QueryRowContext(ctx,
			`SELECT timeslot_stats FROM scheduling_metadata WHERE asset_id = ?`, assetID).Scan(&slotsJSON)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO scheduling_metadata (asset_id) VALUES (?)`, assetID)
			if err != nil {
				return err
			}
			slotsJSON = "{}"
		case err != nil:
			return err
		}
		stats := map[string]TimeslotStat{}
		_ = json.Unmarshal([]byte(slotsJSON), &stats)
		slot := TimeslotForHour(airTime.Hour())
		st := stats[slot]
		at := airTime
		st.LastScheduled = &at
		st.ReplayCount++
		stats[slot] = st
		raw, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
		UPDATE scheduling_metadata
		SET last_scheduled_date = ?, total_airings = total_airings + 1, timeslot_stats = ?
		WHERE asset_id = ?`, fmtTime(airTime), string(raw), assetID)
		return err
	})
}

// ResetCategoryDelays clears last_scheduled_date for the listed assets so
// they become immediately eligible again. This is the category-exhaustion
// safety valve; callers log and surface an advisory when it fires.
func (s *Store) ResetCategoryDelays(ctx context.Context, assetIDs []int64) error {
	if len(assetIDs) == 0 {
		return nil
	}
	query, args := inClause(
		`UPDATE scheduling_metadata SET last_scheduled_date = NULL WHERE asset_id IN (%s)`, assetIDs)
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// inClause expands ids into a placeholder list for the %s in format.
func inClause(format string, ids []int64) (string, []any) {
	placeholders := ""
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, id)
	}
	return fmt.Sprintf(format, placeholders), args
}
