// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
)

// FrameGapSeconds is the gap between adjacent items so that start times
// stay frame-accurate on a 29.976 fps channel.
const FrameGapSeconds = 1.0 / 29.976

// SecondsPerDay is the length of one schedule day.
const SecondsPerDay = 86400.0

// FormatStartTime renders seconds-of-day as HH:MM:SS.microseconds.
func FormatStartTime(secondsOfDay float64) string {
	secondsOfDay = math.Mod(secondsOfDay, SecondsPerDay)
	if secondsOfDay < 0 {
		secondsOfDay += SecondsPerDay
	}
	whole := int(secondsOfDay)
	micros := int(math.Round((secondsOfDay - float64(whole)) * 1e6))
	if micros == 1e6 {
		whole++
		micros = 0
	}
	h := whole / 3600
	m := (whole % 3600) / 60
	sec := whole % 60
	return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, sec, micros)
}

// ParseStartTime converts HH:MM:SS.microseconds back to seconds-of-day.
func ParseStartTime(s string) (float64, error) {
	var h, m, sec, micros int
	if _, err := fmt.Sscanf(s, "%d:%d:%d.%d", &h, &m, &sec, &micros); err != nil {
		return 0, fmt.Errorf("parse start time %q: %w", s, err)
	}
	return float64(h*3600+m*60+sec) + float64(micros)/1e6, nil
}

func metadataArg(md *ItemMetadata) any {
	if md == nil {
		return nil
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return nil
	}
	return string(raw)
}

func parseMetadata(ns sql.NullString) *ItemMetadata {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var md ItemMetadata
	if err := json.Unmarshal([]byte(ns.String), &md); err != nil {
		return nil
	}
	return &md
}

// AppendItem inserts one scheduled item and fills in its id.
func (s *Store) AppendItem(ctx context.Context, item *ScheduledItem) error {
	var instanceID any
	if item.InstanceID != nil {
		instanceID = *item.InstanceID
	}
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO scheduled_items (schedule_id, asset_id, instance_id, sequence_number,
		scheduled_start_time, scheduled_duration_seconds, metadata, available_for_scheduling)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ScheduleID, item.AssetID, instanceID, item.SequenceNumber,
		item.ScheduledStartTime, item.ScheduledDurationSeconds,
		metadataArg(item.Metadata), boolArg(item.AvailableForScheduling))
	if err != nil {
		return err
	}
	item.ID, err = res.LastInsertId()
	return err
}

const itemCols = `id, schedule_id, asset_id, instance_id, sequence_number,
	scheduled_start_time, scheduled_duration_seconds, metadata, available_for_scheduling`

func scanItem(rows *sql.Rows) (ScheduledItem, error) {
	var it ScheduledItem
	var instanceID sql.NullInt64
	var metadata sql.NullString
	var available int
	err := rows.Scan(&it.ID, &it.ScheduleID, &it.AssetID, &instanceID, &it.SequenceNumber,
		&it.ScheduledStartTime, &it.ScheduledDurationSeconds, &metadata, &available)
	if err != nil {
		return it, err
	}
	if instanceID.Valid {
		v := instanceID.Int64
		it.InstanceID = &v
	}
	it.Metadata = parseMetadata(metadata)
	it.AvailableForScheduling = available != 0
	return it, nil
}

// ItemsForSchedule returns all items of a schedule ordered by sequence number.
func (s *Store) ItemsForSchedule(ctx context.Context, scheduleID int64) ([]ScheduledItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemCols+` FROM scheduled_items WHERE schedule_id = ? ORDER BY sequence_number`,
		scheduleID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []ScheduledItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func itemsForScheduleTx(ctx context.Context, tx *sql.Tx, scheduleID int64) ([]ScheduledItem, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+itemCols+` FROM scheduled_items WHERE schedule_id = ? ORDER BY sequence_number`,
		scheduleID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []ScheduledItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// renumberAndRetime writes dense 1..N sequence numbers and recomputes all
// start times by chaining durations and frame gaps from 00:00:00.000000.
// Day offsets in item metadata are rewritten for multi-day schedules.
func renumberAndRetime(ctx context.Context, tx *sql.Tx, items []ScheduledItem) error {
	cum := 0.0
	for i := range items {
		it := &items[i]
		it.SequenceNumber = i + 1
		dayOffset := int(cum / SecondsPerDay)
		it.ScheduledStartTime = FormatStartTime(cum)
		if it.Metadata != nil && it.Metadata.DayOffset != nil {
			d := dayOffset
			it.Metadata.DayOffset = &d
		} else if dayOffset > 0 {
			d := dayOffset
			if it.Metadata == nil {
				it.Metadata = &ItemMetadata{}
			}
			it.Metadata.DayOffset = &d
		}
		_, err := tx.ExecContext(ctx, `
		UPDATE scheduled_items
		SET sequence_number = ?, scheduled_start_time = ?, metadata = ?
		WHERE id = ?`,
			it.SequenceNumber, it.ScheduledStartTime, metadataArg(it.Metadata), it.ID)
		if err != nil {
			return err
		}
		cum += it.ScheduledDurationSeconds + FrameGapSeconds
	}
	return nil
}

// ReorderItem moves the item at 1-based position from to position to,
// renumbering densely and retiming in a single transaction.
func (s *Store) ReorderItem(ctx context.Context, scheduleID int64, from, to int) error {
	return s.execTx(ctx, func(tx *sql.Tx) error {
		items, err := itemsForScheduleTx(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		n := len(items)
		if from < 1 || from > n || to < 1 || to > n {
			return fmt.Errorf("reorder positions out of range: from=%d to=%d n=%d", from, to, n)
		}
		moved := items[from-1]
		items = append(items[:from-1], items[from:]...)
		rest := make([]ScheduledItem, 0, n)
		rest = append(rest, items[:to-1]...)
		rest = append(rest, moved)
		rest = append(rest, items[to-1:]...)
		return renumberAndRetime(ctx, tx, rest)
	})
}

// DeleteItem removes one item, decrements the asset's total_airings
// (floored at zero), renumbers and retimes the remainder, and recomputes
// the schedule's total duration.
func (s *Store) DeleteItem(ctx context.Context, scheduleID, itemID int64) error {
	return s.execTx(ctx, func(tx *sql.Tx) error {
		var assetID int64
		err := tx.QueryRowContext(ctx,
			`SELECT asset_id FROM scheduled_items WHERE id = ? AND schedule_id = ?`,
			itemID, scheduleID).Scan(&assetID)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM scheduled_items WHERE id = ?`, itemID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
		UPDATE scheduling_metadata SET total_airings = MAX(total_airings - 1, 0)
		WHERE asset_id = ?`, assetID)
		if err != nil {
			return err
		}
		items, err := itemsForScheduleTx(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		if err := renumberAndRetime(ctx, tx, items); err != nil {
			return err
		}
		total := 0.0
		for _, it := range items {
			total += it.ScheduledDurationSeconds + FrameGapSeconds
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE schedules SET total_duration_seconds = ? WHERE id = ?`, total, scheduleID)
		return err
	})
}

// ToggleItemAvailability flips the per-item flag. It has no effect on the
// already-built schedule but feeds future runs' exclusion computation.
func (s *Store) ToggleItemAvailability(ctx context.Context, scheduleID, itemID int64, available bool) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE scheduled_items SET available_for_scheduling = ?
	WHERE id = ? AND schedule_id = ?`, boolArg(available), itemID, scheduleID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PlaylistRow is one scheduled item joined with its asset title and
// primary file path, for playlist export.
type PlaylistRow struct {
	Item         ScheduledItem
	ContentTitle string
	FilePath     string
}

// PlaylistRows returns the items of a schedule with titles and file paths,
// ordered by sequence number. Disabled assets are included; the exporter
// marks them skipped rather than dropping them.
func (s *Store) PlaylistRows(ctx context.Context, scheduleID int64) ([]PlaylistRow, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT si.id, si.schedule_id, si.asset_id, si.instance_id, si.sequence_number,
		si.scheduled_start_time, si.scheduled_duration_seconds, si.metadata,
		si.available_for_scheduling, a.content_title, COALESCE(i.file_path, '')
	FROM scheduled_items si
	JOIN assets a ON a.id = si.asset_id
	LEFT JOIN instances i ON i.id = si.instance_id
	WHERE si.schedule_id = ?
	ORDER BY si.sequence_number`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []PlaylistRow
	for rows.Next() {
		var pr PlaylistRow
		var instanceID sql.NullInt64
		var metadata sql.NullString
		var available int
		it := &pr.Item
		err := rows.Scan(&it.ID, &it.ScheduleID, &it.AssetID, &instanceID, &it.SequenceNumber,
			&it.ScheduledStartTime, &it.ScheduledDurationSeconds, &metadata, &available,
			&pr.ContentTitle, &pr.FilePath)
		if err != nil {
			return nil, err
		}
		if instanceID.Valid {
			v := instanceID.Int64
			it.InstanceID = &v
		}
		it.Metadata = parseMetadata(metadata)
		it.AvailableForScheduling = available != 0
		out = append(out, pr)
	}
	return out, rows.Err()
}

// RecalculateScheduleTimes rewrites all start times of a schedule from the
// frame-gap chain starting at 00:00:00.000000.
func (s *Store) RecalculateScheduleTimes(ctx context.Context, scheduleID int64) error {
	return s.execTx(ctx, func(tx *sql.Tx) error {
		items, err := itemsForScheduleTx(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		return renumberAndRetime(ctx, tx, items)
	})
}
