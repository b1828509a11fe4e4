// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package mediaprobe extracts scheduling metadata from MP4 media files:
// the playout duration and the encode timestamp.
package mediaprobe

import (
	"errors"
	"io"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

// mp4Epoch is the origin of MP4 creation/modification timestamps.
var mp4Epoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

// Info is the probed metadata of one media file.
type Info struct {
	DurationSeconds float64
	// EncodedDate is the moov creation time, nil when the file carries none.
	EncodedDate *time.Time
}

// ProbeFile probes the MP4 file at path.
func ProbeFile(path string) (Info, error) {
	f, err := mp4.ReadMP4File(path)
	if err != nil {
		return Info{}, err
	}
	return fromFile(f)
}

// Probe probes MP4 data from a reader.
func Probe(r io.Reader) (Info, error) {
	f, err := mp4.DecodeFile(r)
	if err != nil {
		return Info{}, err
	}
	return fromFile(f)
}

func fromFile(f *mp4.File) (Info, error) {
	if f.Moov == nil || f.Moov.Mvhd == nil {
		return Info{}, errors.New("no moov/mvhd box found")
	}
	mvhd := f.Moov.Mvhd
	if mvhd.Timescale == 0 {
		return Info{}, errors.New("mvhd timescale is zero")
	}
	info := Info{
		DurationSeconds: float64(mvhd.Duration) / float64(mvhd.Timescale),
	}
	if mvhd.CreationTime != 0 {
		t := mp4Epoch.Add(time.Duration(mvhd.CreationTime) * time.Second)
		info.EncodedDate = &t
	}
	return info, nil
}
