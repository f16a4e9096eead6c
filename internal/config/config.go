// Package config builds the explicit configuration struct handed to every
// component at startup. Nothing here is fatal: a missing source falls back to
// defaults and an invalid value keeps the default for that one field.
package config

import (
	"time"

	"github.com/SkylerRankin/netcheck/internal/constants"
)

const (
	EnvConfigPath     = "NETCHECK_CONFIG"
	EnvPrefix         = "NETCHECK_"
	DefaultConfigPath = "netcheck.conf"
)

const (
	LatencyBackendExec = "exec"
	LatencyBackendICMP = "icmp"

	BandwidthBackendHTTP      = "http"
	BandwidthBackendSpeedtest = "speedtest"
	BandwidthBackendCurl      = "curl"

	StoreBackendCSV    = "csv"
	StoreBackendSQLite = "sqlite"
)

type Config struct {
	Thresholds Thresholds
	Probe      ProbeConfig
	Store      StoreConfig
	Schedule   ScheduleConfig
	Server     ServerConfig
	Alert      AlertConfig
	Scan       ScanConfig
	LogLevel   string
}

// Thresholds are the classifier limits. A sample breaches a limit when latency
// or loss is strictly above it, or speed strictly below it.
type Thresholds struct {
	LatencyMS     float64
	SpeedMbps     float64
	PacketLossPct float64
}

type ProbeConfig struct {
	PingHost         string
	PingCount        int
	DownloadURL      string
	Timeout          time.Duration
	LatencyBackend   string
	BandwidthBackend string
}

type StoreConfig struct {
	Backend string
	Path    string
	// Write 0 for unknown numeric fields, as older logs did. Reading then
	// treats 0 latency and speed as unknown.
	LegacyZeroPlaceholder bool
}

type ScheduleConfig struct {
	Interval time.Duration
	Cron     string
}

type ServerConfig struct {
	ListenAddr string
}

type AlertConfig struct {
	WebhookURL string
	Window     time.Duration
}

type ScanConfig struct {
	Enabled     bool
	Range       string
	LogPath     string
	Concurrency int
}

func Default() Config {
	return Config{
		Thresholds: Thresholds{
			LatencyMS:     constants.DefaultLatencyThresholdMS,
			SpeedMbps:     constants.DefaultSpeedThresholdMbps,
			PacketLossPct: constants.DefaultPacketLossThresholdPct,
		},
		Probe: ProbeConfig{
			PingHost:         constants.DefaultPingHost,
			PingCount:        constants.DefaultPingCount,
			DownloadURL:      constants.DefaultDownloadURL,
			Timeout:          constants.DefaultTimeout,
			LatencyBackend:   LatencyBackendExec,
			BandwidthBackend: BandwidthBackendHTTP,
		},
		Store: StoreConfig{
			Backend: StoreBackendCSV,
			Path:    constants.DefaultLogPath,
		},
		Schedule: ScheduleConfig{
			Interval: constants.DefaultInterval,
		},
		Server: ServerConfig{
			ListenAddr: constants.DefaultListenAddr,
		},
		Alert: AlertConfig{
			Window: constants.DefaultIssueWindow,
		},
		Scan: ScanConfig{
			Range:       constants.DefaultScanRange,
			LogPath:     constants.DefaultScanLogPath,
			Concurrency: constants.DefaultScanConcurrency,
		},
		LogLevel: "info",
	}
}
