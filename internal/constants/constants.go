package constants

import (
	"time"
)

const (
	// Layout of every persisted timestamp. Fixed width and zero padded so that
	// lexicographic order matches chronological order.
	TimestampLayout = "2006-01-02 15:04:05"

	BytesPerMiB = 1048576.0

	DefaultPingHost               = "8.8.8.8"
	DefaultPingCount              = 4
	DefaultDownloadURL            = "http://speedtest.tele2.net/1MB.zip"
	DefaultLatencyThresholdMS     = 100.0
	DefaultSpeedThresholdMbps     = 1.0
	DefaultPacketLossThresholdPct = 5.0
	DefaultTimeout                = 30 * time.Second

	DefaultLogPath     = "network_monitor.csv"
	DefaultSQLitePath  = "netcheck.db"
	DefaultInterval    = 5 * time.Minute
	DefaultListenAddr  = ":8080"
	DefaultIssueWindow = 24 * time.Hour

	DefaultScanRange       = "192.168.1.0/24"
	DefaultScanLogPath     = "network_scan.log"
	DefaultScanConcurrency = 64
)

// LogHeader is the schema row written once at the top of the CSV record log.
var LogHeader = []string{
	"timestamp",
	"ping_host",
	"avg_latency_ms",
	"min_latency_ms",
	"max_latency_ms",
	"packet_loss_pct",
	"download_speed_mbps",
	"download_time_sec",
	"status",
}
