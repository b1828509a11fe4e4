// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package playlist renders a built schedule as an XML playout list for
// downstream automation. Live input events carry base64 SCTE-35 splice
// cues so the playout chain can switch away from file playback.
package playlist

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/playout-works/chansched/pkg/scte35"
)

// Event is one entry of the exported playlist.
type Event struct {
	SequenceNumber  int
	StartTime       string
	StartOfDayS     float64
	DurationSeconds float64
	DayOffset       int
	Title           string
	FilePath        string
	// LiveInputTitle marks the event as a live input slot; FilePath is
	// empty in that case.
	LiveInputTitle string
	Skipped        bool
}

// Playlist describes one schedule to export.
type Playlist struct {
	Name    string
	AirDate time.Time
	Channel string
	Events  []Event
}

// MarshalXML renders the playlist as an indented XML document.
func MarshalXML(p Playlist) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("playlist")
	root.CreateAttr("name", p.Name)
	root.CreateAttr("airDate", p.AirDate.UTC().Format("2006-01-02"))
	if p.Channel != "" {
		root.CreateAttr("channel", p.Channel)
	}
	root.CreateAttr("eventCount", fmt.Sprintf("%d", len(p.Events)))

	for _, ev := range p.Events {
		el := root.CreateElement("event")
		el.CreateAttr("seq", fmt.Sprintf("%d", ev.SequenceNumber))
		el.CreateAttr("start", ev.StartTime)
		el.CreateAttr("duration", fmt.Sprintf("%.6f", ev.DurationSeconds))
		if ev.DayOffset > 0 {
			el.CreateAttr("day", fmt.Sprintf("%d", ev.DayOffset))
		}
		if ev.Skipped {
			el.CreateAttr("skipped", "true")
		}
		el.CreateElement("title").SetText(ev.Title)
		switch {
		case ev.LiveInputTitle != "":
			live := el.CreateElement("live")
			live.CreateAttr("input", ev.LiveInputTitle)
			cue := el.CreateElement("scte35")
			cue.CreateAttr("schemeIdUri", scte35.SchemeIDURI)
			payload := scte35.LiveInputCue(uint32(ev.SequenceNumber), ev.StartOfDayS, ev.DurationSeconds)
			cue.SetText(base64.StdEncoding.EncodeToString(payload))
		default:
			el.CreateElement("media").SetText(ev.FilePath)
		}
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}
