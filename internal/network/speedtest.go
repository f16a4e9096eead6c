package network

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/showwin/speedtest-go/speedtest"

	"github.com/SkylerRankin/netcheck/internal/types"
)

var _ BandwidthProbe = &speedtestProbe{}

// speedtestProbe runs a speedtest.net download against the nearest server.
// The library reports a rate, so the byte count is derived from it and the
// measured duration of the test.
type speedtestProbe struct {
	timeout time.Duration
	clock   clockwork.Clock
}

func (p *speedtestProbe) Probe(ctx context.Context) types.BandwidthOutput {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client := speedtest.New()
	serverList, err := client.FetchServerListContext(ctx)
	if err != nil {
		return types.BandwidthOutput{Err: errors.Wrap(err, "failed to fetch servers")}
	}

	targets, err := serverList.FindServer([]int{})
	if err != nil {
		return types.BandwidthOutput{Err: errors.Wrap(err, "failed to find server")}
	}
	if len(targets) == 0 {
		return types.BandwidthOutput{Err: errors.New("no speed test servers reachable")}
	}

	server := targets[0]
	start := p.clock.Now()
	if err := server.DownloadTestContext(ctx); err != nil {
		return types.BandwidthOutput{Elapsed: p.clock.Since(start), Err: errors.Wrap(err, "failed to run download test")}
	}
	elapsed := p.clock.Since(start)

	return types.BandwidthOutput{
		Bytes:   int64(float64(server.DLSpeed) * elapsed.Seconds()),
		Elapsed: elapsed,
	}
}
