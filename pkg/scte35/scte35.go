// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package scte35 generates SCTE-35 splice_insert cues for live input
// slots in a playout schedule.
package scte35

import (
	"github.com/Comcast/gots/v2"
	"github.com/Comcast/gots/v2/scte35"
)

const (
	SchemeIDURI = "urn:scte:scte35:2013:bin"

	// ptsClock is the 90 kHz MPEG timestamp clock.
	ptsClock = 90000
	// ptsWrap is the 33-bit PTS wrap modulus.
	ptsWrap = uint64(1) << 33
)

type SpliceInsertParams struct {
	PtsTime                    uint64
	Duration                   uint64
	SpliceEventID              uint32
	Tier                       uint16
	UniqueProgramID            uint16
	AvailNum                   uint8
	AvailsExpected             uint8
	SpliceEventCancelIndicator bool
	OutOfNetworkIndicator      bool
	SpliceImmediateFlag        bool
	AutoReturn                 bool
}

// CreateSpliceInsertPayload creates a SCTE-35 splice_info_section including CRC.
func CreateSpliceInsertPayload(p SpliceInsertParams) []byte {
	s := scte35.CreateSCTE35()
	s.SetTier(p.Tier)
	cmd := scte35.CreateSpliceInsertCommand()
	cmd.SetUniqueProgramId(p.UniqueProgramID)
	cmd.SetEventID(p.SpliceEventID)
	cmd.SetAvailNum(p.AvailNum)
	cmd.SetAvailsExpected(p.AvailsExpected)
	cmd.SetIsEventCanceled(p.SpliceEventCancelIndicator)
	if p.Duration != 0 {
		cmd.SetHasDuration(true)
		cmd.SetDuration(gots.PTS(p.Duration))
		cmd.SetIsAutoReturn(p.AutoReturn)
	}
	cmd.SetHasPTS(true)
	cmd.SetPTS(gots.PTS(p.PtsTime))
	cmd.SetIsOut(p.OutOfNetworkIndicator)
	cmd.SetSpliceImmediate(p.SpliceImmediateFlag)
	s.SetCommandInfo(cmd)
	return s.UpdateData()
}

// LiveInputCue builds the splice_insert payload marking the switch to a
// live input at startSecondsOfDay for durationSeconds. The splice is an
// out-of-network event with auto-return, so downstream equipment rejoins
// the file playout channel when the live slot ends.
func LiveInputCue(eventID uint32, startSecondsOfDay, durationSeconds float64) []byte {
	return CreateSpliceInsertPayload(SpliceInsertParams{
		PtsTime:               uint64(startSecondsOfDay*ptsClock) % ptsWrap,
		Duration:              uint64(durationSeconds * ptsClock),
		SpliceEventID:         eventID,
		Tier:                  4095,
		OutOfNetworkIndicator: true,
		AutoReturn:            true,
	})
}

// ReturnCue builds the splice_insert payload ending a live slot early,
// switching back to the scheduled file playout.
func ReturnCue(eventID uint32, atSecondsOfDay float64) []byte {
	return CreateSpliceInsertPayload(SpliceInsertParams{
		PtsTime:             uint64(atSecondsOfDay*ptsClock) % ptsWrap,
		SpliceEventID:       eventID,
		Tier:                4095,
		SpliceImmediateFlag: true,
	})
}
