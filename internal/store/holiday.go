// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"database/sql"
	"time"
)

// EnsureGreetingRotation creates a rotation row for the asset if missing.
func (s *Store) EnsureGreetingRotation(ctx context.Context, assetID int64) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO holiday_greeting_rotation (asset_id) VALUES (?)
	ON CONFLICT(asset_id) DO NOTHING`, assetID)
	return err
}

// ListGreetingRotations returns the full rotation table joined with the
// asset title and primary file name, ordered by scheduled_count ascending
// so the least-used greetings come first.
func (s *Store) ListGreetingRotations(ctx context.Context) ([]GreetingRotation, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT r.asset_id, r.scheduled_count, r.last_scheduled, i.file_name, a.content_title
	FROM holiday_greeting_rotation r
	JOIN assets a ON a.id = r.asset_id
	JOIN instances i ON i.asset_id = a.id AND i.is_primary = 1
	ORDER BY r.scheduled_count, r.asset_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var rotations []GreetingRotation
	for rows.Next() {
		var r GreetingRotation
		var last sql.NullString
		if err := rows.Scan(&r.AssetID, &r.ScheduledCount, &last, &r.FileName, &r.ContentTitle); err != nil {
			return nil, err
		}
		r.LastScheduled = parseTimePtr(last)
		rotations = append(rotations, r)
	}
	return rotations, rows.Err()
}

// AssignGreetingDay records one asset in the greeting pool for a day.
func (s *Store) AssignGreetingDay(ctx context.Context, assetID int64, day time.Time, dayNumber int) error {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO holiday_greetings_days (asset_id, start_date, end_date, day_number)
	VALUES (?, ?, ?, ?)`,
		assetID, fmtTime(dayStart), fmtTime(dayEnd), dayNumber)
	return err
}

// ClearGreetingDays removes pool assignments that overlap [start, end].
func (s *Store) ClearGreetingDays(ctx context.Context, start, end time.Time) error {
	_, err := s.db.ExecContext(ctx, `
	DELETE FROM holiday_greetings_days WHERE start_date <= ? AND end_date >= ?`,
		fmtTime(end.UTC()), fmtTime(start.UTC()))
	return err
}

// GreetingPoolForDate returns the asset ids assigned to the pool active on
// the given date, in assignment order.
func (s *Store) GreetingPoolForDate(ctx context.Context, date time.Time) ([]int64, error) {
	d := fmtTime(date.UTC())
	rows, err := s.db.QueryContext(ctx, `
	SELECT asset_id FROM holiday_greetings_days
	WHERE start_date <= ? AND end_date >= ?
	ORDER BY id`, d, d)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IncrementGreeting bumps scheduled_count and updates last_scheduled after
// a greeting placement.
func (s *Store) IncrementGreeting(ctx context.Context, assetID int64, when time.Time) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE holiday_greeting_rotation
	SET scheduled_count = scheduled_count + 1, last_scheduled = ?
	WHERE asset_id = ?`, fmtTime(when), assetID)
	return err
}
