package config

import (
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type field struct {
	key   string
	apply func(c *Config, v string) error
}

var fields = []field{
	{"ping_host", func(c *Config, v string) error {
		if v == "" {
			return errors.New("must not be empty")
		}
		c.Probe.PingHost = v
		return nil
	}},
	{"ping_count", func(c *Config, v string) error {
		n, err := parsePositiveInt(v)
		if err != nil {
			return err
		}
		c.Probe.PingCount = n
		return nil
	}},
	{"download_url", func(c *Config, v string) error {
		u, err := url.Parse(v)
		if err != nil {
			return err
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Errorf("unsupported scheme %q", u.Scheme)
		}
		c.Probe.DownloadURL = v
		return nil
	}},
	{"latency_threshold_ms", func(c *Config, v string) error {
		return setNonNegative(&c.Thresholds.LatencyMS, v)
	}},
	{"speed_threshold_mbps", func(c *Config, v string) error {
		return setNonNegative(&c.Thresholds.SpeedMbps, v)
	}},
	{"packet_loss_threshold_pct", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		if f < 0 || f > 100 {
			return errors.New("must be within [0,100]")
		}
		c.Thresholds.PacketLossPct = f
		return nil
	}},
	{"timeout_sec", func(c *Config, v string) error {
		return setDuration(&c.Probe.Timeout, v)
	}},
	{"latency_probe", func(c *Config, v string) error {
		return setEnum(&c.Probe.LatencyBackend, v, LatencyBackendExec, LatencyBackendICMP)
	}},
	{"bandwidth_probe", func(c *Config, v string) error {
		return setEnum(&c.Probe.BandwidthBackend, v, BandwidthBackendHTTP, BandwidthBackendSpeedtest, BandwidthBackendCurl)
	}},
	{"store_backend", func(c *Config, v string) error {
		return setEnum(&c.Store.Backend, v, StoreBackendCSV, StoreBackendSQLite)
	}},
	{"log_file", func(c *Config, v string) error {
		if v == "" {
			return errors.New("must not be empty")
		}
		c.Store.Path = v
		return nil
	}},
	{"legacy_zero_placeholder", func(c *Config, v string) error {
		return setBool(&c.Store.LegacyZeroPlaceholder, v)
	}},
	{"interval", func(c *Config, v string) error {
		return setDuration(&c.Schedule.Interval, v)
	}},
	{"cron", func(c *Config, v string) error {
		if len(strings.Fields(v)) != 5 {
			return errors.New("expected a five field cron expression")
		}
		c.Schedule.Cron = v
		return nil
	}},
	{"listen_addr", func(c *Config, v string) error {
		if _, _, err := net.SplitHostPort(v); err != nil {
			return err
		}
		c.Server.ListenAddr = v
		return nil
	}},
	{"webhook_url", func(c *Config, v string) error {
		if _, err := url.ParseRequestURI(v); err != nil {
			return err
		}
		c.Alert.WebhookURL = v
		return nil
	}},
	{"issue_window_hours", func(c *Config, v string) error {
		n, err := parsePositiveInt(v)
		if err != nil {
			return err
		}
		c.Alert.Window = time.Duration(n) * time.Hour
		return nil
	}},
	{"network_scan_enabled", func(c *Config, v string) error {
		return setBool(&c.Scan.Enabled, v)
	}},
	{"network_scan_range", func(c *Config, v string) error {
		if _, _, err := net.ParseCIDR(v); err != nil {
			return err
		}
		c.Scan.Range = v
		return nil
	}},
	{"network_scan_log", func(c *Config, v string) error {
		if v == "" {
			return errors.New("must not be empty")
		}
		c.Scan.LogPath = v
		return nil
	}},
	{"network_scan_concurrency", func(c *Config, v string) error {
		n, err := parsePositiveInt(v)
		if err != nil {
			return err
		}
		c.Scan.Concurrency = n
		return nil
	}},
	{"log_level", func(c *Config, v string) error {
		return setEnum(&c.LogLevel, strings.ToLower(v), "debug", "info", "warn", "error")
	}},
}

// Keys returns every recognized setting name.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.key)
	}
	return keys
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}

func setNonNegative(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	if f < 0 {
		return errors.New("must not be negative")
	}
	*dst = f
	return nil
}

// setDuration accepts a bare number of seconds, as older config files use, or
// a Go duration string.
func setDuration(dst *time.Duration, v string) error {
	var d time.Duration
	if n, err := strconv.Atoi(v); err == nil {
		d = time.Duration(n) * time.Second
	} else {
		d, err = time.ParseDuration(v)
		if err != nil {
			return err
		}
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	*dst = d
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setEnum(dst *string, v string, allowed ...string) error {
	if !slices.Contains(allowed, v) {
		return errors.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
	*dst = v
	return nil
}
