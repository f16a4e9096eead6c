package display

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SkylerRankin/netcheck/internal/optional"
	"github.com/SkylerRankin/netcheck/internal/types"
)

var ts = time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local)

func fixedNow() time.Time { return ts.Add(3 * time.Hour) }

func TestRecordBlock(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false, fixedNow)

	p.Record(types.Record{
		Sample: types.Sample{
			Timestamp:         ts,
			TargetHost:        "8.8.8.8",
			AvgLatencyMS:      optional.New(12.3456),
			MinLatencyMS:      optional.New(10.0),
			MaxLatencyMS:      optional.New(15.5),
			PacketLossPct:     0,
			DownloadSpeedMbps: optional.New(93.75),
			DownloadTimeSec:   optional.New(0.010667),
		},
		Status: types.StatusOK,
	})

	out := buf.String()
	assert.Contains(t, out, "=== Network check 2026-10-19 08:00:00 ===")
	assert.Contains(t, out, "avg 12.34 ms (min 10, max 15.5)")
	assert.Contains(t, out, "0%")
	assert.Contains(t, out, "93.75 Mbps in 0.01 s")
	assert.Contains(t, out, "OK")
	assert.NotContains(t, out, "failed")
	assert.NotContains(t, out, "\x1b[", "no escape codes without color")
}

func TestRecordBlockFailure(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true, fixedNow)

	p.Record(types.Record{
		Sample: types.Sample{
			Timestamp:         ts,
			TargetHost:        "10.255.255.1",
			PacketLossPct:     100,
			DownloadSpeedMbps: optional.New(0.0),
		},
		Status: types.StatusPacketLoss,
	})

	out := buf.String()
	assert.Contains(t, out, "avg unknown ms (min unknown, max unknown)")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "0 Mbps in unknown s")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("failed")))
	assert.Contains(t, out, "\x1b[")
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false, fixedNow)

	p.Report(types.Report{
		Total:        1200,
		IssueCount:   3,
		IssuePct:     0.25,
		StatusCounts: map[types.Status]int{types.StatusOK: 1197, types.StatusSlowSpeed: 3},
		Latency:      types.FieldStats{Count: 1190, Avg: 100, Min: 50, Max: 150},
		First:        ts.Add(-100 * time.Hour),
		Last:         ts.Add(time.Hour),
		Skipped:      2,
	})

	out := buf.String()
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "3 (0.2%)")
	assert.Contains(t, out, "SLOW_SPEED:")
	assert.NotContains(t, out, "PACKET_LOSS")
	assert.Contains(t, out, "avg 100 ms (min 50, max 150) over 1,190 samples")
	assert.Contains(t, out, "Download:        no data")
	assert.Contains(t, out, "(last 2 hours ago)")
	assert.Contains(t, out, "Skipped rows:")
}

func TestReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false, fixedNow).Report(types.Report{})
	assert.Equal(t, "No data\n", buf.String())
}

func TestIssues(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false, fixedNow)
	since := ts.Add(-24 * time.Hour)

	p.Issues(nil, since)
	assert.Equal(t, "No issues since 2026-10-18 08:00:00\n", buf.String())

	buf.Reset()
	p.Issues([]types.Issue{
		{Timestamp: ts, Status: types.StatusPacketLoss},
		{Timestamp: ts.Add(time.Minute), Status: types.StatusHighLatency},
	}, since)
	assert.Equal(t, "2 issues since 2026-10-18 08:00:00:\n"+
		"  2026-10-19 08:00:00  PACKET_LOSS\n"+
		"  2026-10-19 08:01:00  HIGH_LATENCY\n", buf.String())
}

func TestQuietProgress(t *testing.T) {
	p := NewProgress(false)
	p.Start("probing")
	p.Done()
	p.Fail()
	assert.IsType(t, quietProgress{}, p)
}
