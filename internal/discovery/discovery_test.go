package discovery

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkylerRankin/netcheck/internal/config"
)

func TestHosts(t *testing.T) {
	tests := []struct {
		cidr  string
		count int
		first string
		last  string
	}{
		{"192.168.1.0/24", 254, "192.168.1.1", "192.168.1.254"},
		{"192.168.1.77/24", 254, "192.168.1.1", "192.168.1.254"},
		{"10.0.0.0/30", 2, "10.0.0.1", "10.0.0.2"},
		{"10.0.0.0/31", 2, "10.0.0.0", "10.0.0.1"},
		{"10.0.0.9/32", 1, "10.0.0.9", "10.0.0.9"},
		{"fd00::/126", 4, "fd00::", "fd00::3"},
	}
	for _, tt := range tests {
		t.Run(tt.cidr, func(t *testing.T) {
			hosts, err := Hosts(tt.cidr)
			require.NoError(t, err)
			require.Len(t, hosts, tt.count)
			assert.Equal(t, tt.first, hosts[0].String())
			assert.Equal(t, tt.last, hosts[len(hosts)-1].String())
		})
	}
}

func TestHostsRejectsBadRanges(t *testing.T) {
	_, err := Hosts("192.168.1.0")
	assert.Error(t, err)

	_, err = Hosts("10.0.0.0/8")
	assert.Error(t, err)
}

func TestSweep(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "network_scan.log")
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local))

	var inFlight, peak atomic.Int32
	ping := func(ctx context.Context, host string) (bool, time.Duration, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		switch host {
		case "10.1.0.1":
			return true, 2 * time.Millisecond, nil
		case "10.1.0.7":
			return false, 0, errors.New("permission denied")
		}
		return false, 0, nil
	}

	cfg := config.ScanConfig{Range: "10.1.0.0/28", LogPath: logPath, Concurrency: 4}
	s := NewSweeper(slog.New(slog.DiscardHandler), clock, cfg, ping)

	results, err := s.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 14)
	up := Up(results)
	require.Len(t, up, 1)
	assert.Equal(t, "10.1.0.1", up[0].Addr.String())
	assert.LessOrEqual(t, peak.Load(), int32(4))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 14)
	assert.Equal(t, "2026-10-19 09:00:00 10.1.0.1 up 2ms", lines[0])
	assert.Equal(t, "2026-10-19 09:00:00 10.1.0.7 down 0s", lines[6])

	_, err = s.Sweep(context.Background())
	require.NoError(t, err)
	data, err = os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, 28, strings.Count(string(data), "\n"), "sweeps append")
}

func TestSweepUnwritableLog(t *testing.T) {
	cfg := config.ScanConfig{Range: "10.1.0.0/30", LogPath: filepath.Join(t.TempDir(), "missing", "scan.log"), Concurrency: 2}
	s := NewSweeper(slog.New(slog.DiscardHandler), clockwork.NewFakeClock(), cfg,
		func(ctx context.Context, host string) (bool, time.Duration, error) { return true, time.Millisecond, nil })

	results, err := s.Sweep(context.Background())
	assert.Error(t, err)
	assert.Len(t, results, 2)
}
