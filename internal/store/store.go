// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package store provides SQLite persistence for the asset library and
// for generated playout schedules.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// Store wraps the SQLite database holding assets, scheduling metadata,
// schedules, scheduled items, and holiday-greeting rotation state.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and runs migrations.
// WAL mode and busy_timeout are set so that concurrent schedule builds
// do not fail with "database locked".
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		content_type TEXT NOT NULL,
		content_title TEXT NOT NULL,
		duration_seconds REAL NOT NULL DEFAULT 0 CHECK(duration_seconds >= 0),
		duration_category TEXT NOT NULL CHECK(duration_category IN ('id', 'spots', 'short_form', 'long_form')),
		engagement_score REAL,
		shelf_life_score TEXT NOT NULL DEFAULT 'medium',
		theme TEXT NOT NULL DEFAULT '',
		analysis_completed INTEGER NOT NULL DEFAULT 0,
		ai_analysis_enabled INTEGER NOT NULL DEFAULT 1,
		meeting_date TEXT,
		created_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS instances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		file_name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		encoded_date TEXT,
		storage_location TEXT NOT NULL DEFAULT '',
		is_primary INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_instances_asset ON instances(asset_id);

	CREATE TABLE IF NOT EXISTS tag_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tag_type_id INTEGER NOT NULL REFERENCES tag_types(id),
		name TEXT NOT NULL,
		UNIQUE(tag_type_id, name)
	);

	CREATE TABLE IF NOT EXISTS asset_tags (
		asset_id INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id),
		PRIMARY KEY (asset_id, tag_id)
	);

	CREATE TABLE IF NOT EXISTS scheduling_metadata (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL UNIQUE REFERENCES assets(id) ON DELETE CASCADE,
		available_for_scheduling INTEGER NOT NULL DEFAULT 1,
		content_expiry_date TEXT,
		go_live_date TEXT,
		last_scheduled_date TEXT,
		total_airings INTEGER NOT NULL DEFAULT 0 CHECK(total_airings >= 0),
		featured INTEGER NOT NULL DEFAULT 0,
		priority_score REAL NOT NULL DEFAULT 0,
		optimal_timeslots TEXT NOT NULL DEFAULT '[]',
		timeslot_stats TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS schedules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		air_date TEXT NOT NULL,
		channel TEXT NOT NULL DEFAULT '',
		created_date TEXT NOT NULL,
		total_duration_seconds REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_schedules_air_date ON schedules(air_date);

	CREATE TABLE IF NOT EXISTS scheduled_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		schedule_id INTEGER NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
		asset_id INTEGER NOT NULL REFERENCES assets(id),
		instance_id INTEGER REFERENCES instances(id),
		sequence_number INTEGER NOT NULL,
		scheduled_start_time TEXT NOT NULL,
		scheduled_duration_seconds REAL NOT NULL,
		metadata TEXT,
		available_for_scheduling INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_scheduled_items_schedule ON scheduled_items(schedule_id, sequence_number);

	CREATE TABLE IF NOT EXISTS holiday_greeting_rotation (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL UNIQUE REFERENCES assets(id) ON DELETE CASCADE,
		scheduled_count INTEGER NOT NULL DEFAULT 0,
		last_scheduled TEXT
	);

	CREATE TABLE IF NOT EXISTS holiday_greetings_days (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		day_number INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_hg_days_dates ON holiday_greetings_days(start_date, end_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// timeFmt is the storage format for all datetimes. The fractional part is
// padded to fixed width so stored strings order lexicographically in SQL
// comparisons; reads accept any RFC 3339 value.
const timeFmt = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeFmt)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// execTx runs fn inside a transaction, rolling back on error.
func (s *Store) execTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
