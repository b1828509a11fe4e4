// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playout-works/chansched/internal/store"
	"github.com/playout-works/chansched/pkg/playlist"
)

// playlistHandlerFunc exports a built schedule as an XML playout list.
func (s *Server) playlistHandlerFunc(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid schedule id", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	sch, err := s.Store.GetSchedule(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "schedule not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rows, err := s.Store.PlaylistRows(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	p := playlist.Playlist{
		Name:    sch.Name,
		AirDate: sch.AirDate,
		Channel: sch.Channel,
		Events:  make([]playlist.Event, 0, len(rows)),
	}
	for _, row := range rows {
		ev := playlist.Event{
			SequenceNumber:  row.Item.SequenceNumber,
			StartTime:       row.Item.ScheduledStartTime,
			DurationSeconds: row.Item.ScheduledDurationSeconds,
			Title:           row.ContentTitle,
			FilePath:        row.FilePath,
			Skipped:         !row.Item.AvailableForScheduling,
		}
		if startS, err := store.ParseStartTime(row.Item.ScheduledStartTime); err == nil {
			ev.StartOfDayS = startS
		}
		if md := row.Item.Metadata; md != nil {
			if md.DayOffset != nil {
				ev.DayOffset = *md.DayOffset
			}
			ev.LiveInputTitle = md.LiveInputTitle
		}
		p.Events = append(p.Events, ev)
	}

	raw, err := playlist.MarshalXML(p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	_, _ = w.Write(raw)
}
