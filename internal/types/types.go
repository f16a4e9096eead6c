package types

import (
	"time"

	"github.com/SkylerRankin/netcheck/internal/optional"
)

type Status string

const (
	StatusOK          Status = "OK"
	StatusHighLatency Status = "HIGH_LATENCY"
	StatusSlowSpeed   Status = "SLOW_SPEED"
	StatusPacketLoss  Status = "PACKET_LOSS"
)

// Statuses lists every status in classification order.
var Statuses = []Status{StatusOK, StatusHighLatency, StatusSlowSpeed, StatusPacketLoss}

func ParseStatus(s string) (Status, bool) {
	for _, status := range Statuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

// Sample is the normalized measurement of one monitoring cycle.
type Sample struct {
	Timestamp         time.Time             `json:"timestamp"`
	TargetHost        string                `json:"ping_host"`
	AvgLatencyMS      optional.Opt[float64] `json:"avg_latency_ms"`
	MinLatencyMS      optional.Opt[float64] `json:"min_latency_ms"`
	MaxLatencyMS      optional.Opt[float64] `json:"max_latency_ms"`
	PacketLossPct     float64               `json:"packet_loss_pct"`
	DownloadSpeedMbps optional.Opt[float64] `json:"download_speed_mbps"`
	DownloadTimeSec   optional.Opt[float64] `json:"download_time_sec"`
}

// LatencyFailed reports whether the latency probe produced no replies at all.
func (s Sample) LatencyFailed() bool {
	return s.PacketLossPct >= 100
}

// BandwidthFailed reports whether the bandwidth probe hit a failure path. A
// successful transfer always yields a positive speed, so a recorded zero can
// only come from a failed or degenerate transfer.
func (s Sample) BandwidthFailed() bool {
	speed, ok := s.DownloadSpeedMbps.Get()
	return ok && speed == 0
}

type Record struct {
	Sample
	Status Status `json:"status"`
}

// Issue is one non-OK record in the recent-issues view.
type Issue struct {
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

// FieldStats summarizes one numeric column over the records where it is present.
type FieldStats struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

type Report struct {
	Total        int            `json:"total"`
	IssueCount   int            `json:"issue_count"`
	IssuePct     float64        `json:"issue_pct"`
	StatusCounts map[Status]int `json:"status_counts"`
	Latency      FieldStats     `json:"latency_ms"`
	Speed        FieldStats     `json:"speed_mbps"`
	First        time.Time      `json:"first,omitzero"`
	Last         time.Time      `json:"last,omitzero"`
	Skipped      int            `json:"skipped"`
}

// Empty reports whether the report was computed over no records.
func (r Report) Empty() bool {
	return r.Total == 0
}

// LatencyOutput is what a latency probe collaborator hands back: the raw text
// it captured and whether the probe itself failed.
type LatencyOutput struct {
	Host string
	Text string
	Err  error
}

// BandwidthOutput is the raw result of one bandwidth transfer.
type BandwidthOutput struct {
	Bytes   int64
	Elapsed time.Duration
	Err     error
}
