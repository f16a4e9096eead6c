// Package discovery sweeps a local subnet for hosts that answer ping. The
// results go to a free text side log; nothing else reads them.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/SkylerRankin/netcheck/internal/config"
	"github.com/SkylerRankin/netcheck/internal/constants"
	"github.com/SkylerRankin/netcheck/internal/network"
)

// Sweeps larger than a /16 are refused.
const maxHosts = 1 << 16

type HostResult struct {
	Addr netip.Addr
	Up   bool
	RTT  time.Duration
}

// PingFunc reports whether host answered and the average round trip.
type PingFunc func(ctx context.Context, host string) (bool, time.Duration, error)

// ICMPPing sends a single echo request per host through pro-bing.
func ICMPPing(timeout time.Duration) PingFunc {
	return func(ctx context.Context, host string) (bool, time.Duration, error) {
		stats, err := network.Ping(ctx, host, 1, timeout, false)
		if err != nil {
			return false, 0, err
		}
		return stats.PacketsRecv > 0, stats.AvgRtt, nil
	}
}

type Sweeper struct {
	log         *slog.Logger
	clock       clockwork.Clock
	ping        PingFunc
	concurrency int
	logPath     string
	cidr        string
}

func NewSweeper(log *slog.Logger, clock clockwork.Clock, cfg config.ScanConfig, ping PingFunc) *Sweeper {
	return &Sweeper{
		log:         log,
		clock:       clock,
		ping:        ping,
		concurrency: cfg.Concurrency,
		logPath:     cfg.LogPath,
		cidr:        cfg.Range,
	}
}

// Hosts lists the usable addresses of prefix, leaving out the network and
// broadcast addresses of IPv4 ranges wider than /31.
func Hosts(cidr string) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid range %q", cidr)
	}
	prefix = prefix.Masked()

	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits > 16 {
		return nil, errors.Errorf("range %s has more than %d addresses", prefix, maxHosts)
	}

	var hosts []netip.Addr
	for addr := prefix.Addr(); prefix.Contains(addr); addr = addr.Next() {
		hosts = append(hosts, addr)
	}
	if prefix.Addr().Is4() && hostBits >= 2 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts, nil
}

// Sweep pings every host of the configured range in parallel and appends the
// outcome to the side log. A host that cannot be pinged counts as down; only
// a bad range or an unwritable log fails the sweep.
func (s *Sweeper) Sweep(ctx context.Context) ([]HostResult, error) {
	hosts, err := Hosts(s.cidr)
	if err != nil {
		return nil, err
	}

	started := s.clock.Now()
	results := make([]HostResult, len(hosts))

	var mu sync.Mutex
	up := 0

	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, addr := range hosts {
		g.Go(func() error {
			alive, rtt, err := s.ping(gctx, addr.String())
			if err != nil {
				s.log.Debug("ping failed", "addr", addr, "err", err)
			}
			results[i] = HostResult{Addr: addr, Up: alive && err == nil, RTT: rtt}
			if results[i].Up {
				mu.Lock()
				up++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "sweep cancelled")
	}

	s.log.Info("network sweep complete", "range", s.cidr, "hosts", len(hosts), "up", up, "took", s.clock.Since(started))
	if err := s.writeLog(started, results); err != nil {
		return results, err
	}
	return results, nil
}

func (s *Sweeper) writeLog(ts time.Time, results []HostResult) error {
	var b strings.Builder
	stamp := ts.Format(constants.TimestampLayout)
	for _, r := range results {
		state := "down"
		if r.Up {
			state = "up"
		}
		fmt.Fprintf(&b, "%s %s %s %s\n", stamp, r.Addr, state, r.RTT)
	}

	f, err := os.OpenFile(filepath.Clean(s.logPath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open scan log %q", s.logPath)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return errors.Wrapf(err, "write scan log %q", s.logPath)
	}
	return nil
}

// Up filters results to the hosts that answered.
func Up(results []HostResult) []HostResult {
	return slices.DeleteFunc(slices.Clone(results), func(r HostResult) bool { return !r.Up })
}
