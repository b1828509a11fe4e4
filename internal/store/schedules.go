// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"database/sql"
	"time"
)

// CreateSchedule inserts an empty schedule row.
func (s *Store) CreateSchedule(ctx context.Context, name string, airDate time.Time, channel string) (Schedule, error) {
	sch := Schedule{
		Name:        name,
		AirDate:     airDate.UTC(),
		Channel:     channel,
		CreatedDate: time.Now().UTC(),
	}
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO schedules (name, air_date, channel, created_date, total_duration_seconds)
	VALUES (?, ?, ?, ?, 0)`,
		sch.Name, fmtTime(sch.AirDate), sch.Channel, fmtTime(sch.CreatedDate))
	if err != nil {
		return Schedule{}, err
	}
	sch.ID, err = res.LastInsertId()
	return sch, err
}

func scanSchedule(row interface{ Scan(...any) error }) (Schedule, error) {
	var sch Schedule
	var airDate, createdDate string
	err := row.Scan(&sch.ID, &sch.Name, &airDate, &sch.Channel, &createdDate, &sch.TotalDurationSeconds)
	if err != nil {
		return sch, err
	}
	if t, err := time.Parse(time.RFC3339Nano, airDate); err == nil {
		sch.AirDate = t
	}
	if t, err := time.Parse(time.RFC3339Nano, createdDate); err == nil {
		sch.CreatedDate = t
	}
	return sch, nil
}

const scheduleCols = `id, name, air_date, channel, created_date, total_duration_seconds`

// GetSchedule retrieves one schedule by id.
func (s *Store) GetSchedule(ctx context.Context, id int64) (Schedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleCols+` FROM schedules WHERE id = ?`, id)
	sch, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return sch, ErrNotFound
	}
	return sch, err
}

// ListSchedules returns schedules whose air_date falls inside [start, end].
// Zero bounds are open.
func (s *Store) ListSchedules(ctx context.Context, start, end time.Time) ([]Schedule, error) {
	query := `SELECT ` + scheduleCols + ` FROM schedules`
	var conds []string
	var args []any
	if !start.IsZero() {
		conds = append(conds, "air_date >= ?")
		args = append(args, fmtTime(start))
	}
	if !end.IsZero() {
		conds = append(conds, "air_date <= ?")
		args = append(args, fmtTime(end))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY air_date"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var schedules []Schedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sch)
	}
	return schedules, rows.Err()
}

// ScheduleExistsForDate reports whether a schedule with the given air date
// already exists.
func (s *Store) ScheduleExistsForDate(ctx context.Context, airDate time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schedules WHERE air_date = ?`, fmtTime(airDate.UTC())).Scan(&n)
	return n > 0, err
}

// SetScheduleDuration persists the final total duration of a build.
func (s *Store) SetScheduleDuration(ctx context.Context, id int64, totalDurationS float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET total_duration_seconds = ? WHERE id = ?`, totalDurationS, id)
	return err
}

// DeleteSchedule removes a schedule. For every referenced asset,
// total_airings is decremented by the number of items referencing it
// (floored at zero); items are removed by the FK cascade.
func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	return s.execTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schedules WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		rows, err := tx.QueryContext(ctx, `
		SELECT asset_id, COUNT(*) FROM scheduled_items WHERE schedule_id = ? GROUP BY asset_id`, id)
		if err != nil {
			return err
		}
		counts := map[int64]int{}
		for rows.Next() {
			var assetID int64
			var n int
			if err := rows.Scan(&assetID, &n); err != nil {
				_ = rows.Close()
				return err
			}
			counts[assetID] = n
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for assetID, n := range counts {
			_, err := tx.ExecContext(ctx, `
			UPDATE scheduling_metadata
			SET total_airings = MAX(total_airings - ?, 0)
			WHERE asset_id = ?`, n, assetID)
			if err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
		return err
	})
}
