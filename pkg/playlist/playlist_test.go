package playlist_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/beevik/etree"
	gotsscte35 "github.com/Comcast/gots/v2/scte35"
	"github.com/stretchr/testify/require"

	"github.com/playout-works/chansched/pkg/playlist"
)

func TestMarshalXML(t *testing.T) {
	p := playlist.Playlist{
		Name:    "Daily 2026-03-10",
		AirDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Channel: "ch1",
		Events: []playlist.Event{
			{
				SequenceNumber:  1,
				StartTime:       "00:00:00.000000",
				DurationSeconds: 10,
				Title:           "Station ID 3",
				FilePath:        "/media/ids/sid_03.mp4",
			},
			{
				SequenceNumber:  2,
				StartTime:       "00:00:10.033360",
				StartOfDayS:     10.03336,
				DurationSeconds: 5400,
				Title:           "City Council",
				LiveInputTitle:  "Council Chamber Feed",
			},
			{
				SequenceNumber:  3,
				StartTime:       "01:30:10.066720",
				DurationSeconds: 600,
				DayOffset:       1,
				Title:           "Harbor Cleanup",
				FilePath:        "/media/harbor.mp4",
				Skipped:         true,
			},
		},
	}
	raw, err := playlist.MarshalXML(p)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))

	root := doc.SelectElement("playlist")
	require.NotNil(t, root)
	require.Equal(t, "Daily 2026-03-10", root.SelectAttrValue("name", ""))
	require.Equal(t, "2026-03-10", root.SelectAttrValue("airDate", ""))
	require.Equal(t, "ch1", root.SelectAttrValue("channel", ""))
	require.Equal(t, "3", root.SelectAttrValue("eventCount", ""))

	events := root.SelectElements("event")
	require.Len(t, events, 3)

	first := events[0]
	require.Equal(t, "1", first.SelectAttrValue("seq", ""))
	require.Equal(t, "00:00:00.000000", first.SelectAttrValue("start", ""))
	require.Equal(t, "/media/ids/sid_03.mp4", first.SelectElement("media").Text())
	require.Nil(t, first.SelectElement("scte35"))

	live := events[1]
	require.Equal(t, "Council Chamber Feed", live.SelectElement("live").SelectAttrValue("input", ""))
	cue := live.SelectElement("scte35")
	require.NotNil(t, cue)
	payload, err := base64.StdEncoding.DecodeString(cue.Text())
	require.NoError(t, err)
	parsed, err := gotsscte35.NewSCTE35(payload)
	require.NoError(t, err, "embedded cue must be a valid splice_info_section")
	require.Equal(t, gotsscte35.SpliceInsert, parsed.Command())

	last := events[2]
	require.Equal(t, "1", last.SelectAttrValue("day", ""))
	require.Equal(t, "true", last.SelectAttrValue("skipped", ""))
}
