package network

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	probing "github.com/prometheus-community/pro-bing"

	"github.com/SkylerRankin/netcheck/internal/config"
	"github.com/SkylerRankin/netcheck/internal/types"
)

// LatencyProbe measures round trip time to one host. It never returns a Go
// error: failures travel inside the output so a cycle can still record them.
type LatencyProbe interface {
	Probe(ctx context.Context) types.LatencyOutput
}

// commandRunner runs an external program and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func NewLatencyProbe(cfg config.ProbeConfig) LatencyProbe {
	if cfg.LatencyBackend == config.LatencyBackendICMP {
		return &icmpPinger{
			host:       cfg.PingHost,
			count:      cfg.PingCount,
			timeout:    cfg.Timeout,
			privileged: runtime.GOOS == "windows",
		}
	}
	return &execPinger{
		host:    cfg.PingHost,
		count:   cfg.PingCount,
		timeout: cfg.Timeout,
		run:     runCommand,
	}
}

var _ LatencyProbe = &execPinger{}

// execPinger shells out to the system ping binary and keeps its text output
// verbatim for the parser.
type execPinger struct {
	host    string
	count   int
	timeout time.Duration
	run     commandRunner
}

func (p *execPinger) args() []string {
	count := strconv.Itoa(p.count)
	if runtime.GOOS == "windows" {
		return []string{"-n", count, p.host}
	}
	return []string{"-c", count, p.host}
}

func (p *execPinger) Probe(ctx context.Context) types.LatencyOutput {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.run(ctx, "ping", p.args()...)
	if ctx.Err() != nil {
		err = errors.Wrapf(ctx.Err(), "ping %s timed out after %s", p.host, p.timeout)
	} else if err != nil {
		err = errors.Wrapf(err, "ping %s", p.host)
	}

	return types.LatencyOutput{
		Host: p.host,
		Text: string(out),
		Err:  err,
	}
}

var _ LatencyProbe = &icmpPinger{}

// icmpPinger sends echo requests itself through pro-bing and renders the
// statistics in the same summary form the ping binary prints.
type icmpPinger struct {
	host       string
	count      int
	timeout    time.Duration
	privileged bool
}

func (p *icmpPinger) Probe(ctx context.Context) types.LatencyOutput {
	out := types.LatencyOutput{Host: p.host}

	stats, err := Ping(ctx, p.host, p.count, p.timeout, p.privileged)
	if err != nil {
		out.Err = err
		return out
	}

	out.Text = RenderStatistics(stats)
	if stats.PacketsRecv == 0 {
		out.Err = errors.Errorf("no replies from %s", p.host)
	}
	return out
}

// Ping runs one pro-bing session bounded by timeout and returns its
// statistics.
func Ping(ctx context.Context, host string, count int, timeout time.Duration, privileged bool) (*probing.Statistics, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pinger")
	}

	pinger.SetPrivileged(privileged)
	pinger.Count = count
	pinger.Timeout = timeout

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := pinger.RunWithContext(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, errors.Wrap(err, "failed to run pinger")
	}
	return pinger.Statistics(), nil
}

// RenderStatistics writes pro-bing statistics as ping(8) would summarize them.
func RenderStatistics(stats *probing.Statistics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s ping statistics ---\n", stats.Addr)
	fmt.Fprintf(&b, "%d packets transmitted, %d received, %s%% packet loss\n",
		stats.PacketsSent, stats.PacketsRecv, strconv.FormatFloat(stats.PacketLoss, 'f', -1, 64))
	if stats.PacketsRecv > 0 {
		fmt.Fprintf(&b, "rtt min/avg/max/mdev = %.3f/%.3f/%.3f/%.3f ms\n",
			milliseconds(stats.MinRtt), milliseconds(stats.AvgRtt), milliseconds(stats.MaxRtt), milliseconds(stats.StdDevRtt))
	}
	return b.String()
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
