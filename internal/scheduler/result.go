// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package scheduler

// Error kinds surfaced in failed build results. The builder never raises
// through the loop; every failure becomes a structured result.
const (
	ErrKindAlreadyExists       = "already_exists"
	ErrKindInfiniteLoop        = "infinite_loop"
	ErrKindAllBlocked          = "infinite_loop_all_blocked"
	ErrKindInsufficientContent = "insufficient_content"
	ErrKindInvalidInput        = "invalid_input"
	ErrKindTransientDB         = "transient_db_error"
	ErrKindCancelled           = "cancelled"
)

// Result is the outcome of one schedule build. On failure the schedule
// row has been rolled back and ScheduleID is zero.
type Result struct {
	Success              bool       `json:"success"`
	ScheduleID           int64      `json:"schedule_id,omitempty"`
	Name                 string     `json:"name,omitempty"`
	ErrorKind            string     `json:"error,omitempty"`
	Message              string     `json:"message,omitempty"`
	TotalItems           int        `json:"total_items"`
	TotalDurationSeconds float64    `json:"total_duration_seconds"`
	StoppedAtHours       float64    `json:"stopped_at_hours,omitempty"`
	DaysCompleted        int        `json:"days_completed"`
	DelayStats           DelayStats `json:"delay_reduction_stats"`
	Advisories           []string   `json:"advisories,omitempty"`
}

func failure(kind, message string, stoppedAtHours float64, daysCompleted int) Result {
	return Result{
		Success:        false,
		ErrorKind:      kind,
		Message:        message,
		StoppedAtHours: stoppedAtHours,
		DaysCompleted:  daysCompleted,
	}
}
