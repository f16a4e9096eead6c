package network

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/SkylerRankin/netcheck/internal/config"
	"github.com/SkylerRankin/netcheck/internal/parser"
	"github.com/SkylerRankin/netcheck/internal/types"
)

// BandwidthProbe times one download. Like LatencyProbe, failures are part of
// the output rather than a returned error.
type BandwidthProbe interface {
	Probe(ctx context.Context) types.BandwidthOutput
}

func NewBandwidthProbe(cfg config.ProbeConfig, clock clockwork.Clock) BandwidthProbe {
	switch cfg.BandwidthBackend {
	case config.BandwidthBackendSpeedtest:
		return &speedtestProbe{timeout: cfg.Timeout, clock: clock}
	case config.BandwidthBackendCurl:
		return &curlDownloader{url: cfg.DownloadURL, timeout: cfg.Timeout, run: runCommand}
	default:
		return &httpDownloader{
			url:     cfg.DownloadURL,
			timeout: cfg.Timeout,
			client:  &http.Client{},
			clock:   clock,
		}
	}
}

var _ BandwidthProbe = &httpDownloader{}

type httpDownloader struct {
	url     string
	timeout time.Duration
	client  *http.Client
	clock   clockwork.Clock
}

func (d *httpDownloader) Probe(ctx context.Context) types.BandwidthOutput {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return types.BandwidthOutput{Err: errors.Wrap(err, "failed to build download request")}
	}

	start := d.clock.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return types.BandwidthOutput{Elapsed: d.clock.Since(start), Err: errors.Wrapf(err, "download %s", d.url)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.BandwidthOutput{
			Elapsed: d.clock.Since(start),
			Err:     errors.Errorf("download %s: unexpected status %s", d.url, resp.Status),
		}
	}

	n, err := io.Copy(io.Discard, resp.Body)
	out := types.BandwidthOutput{Bytes: n, Elapsed: d.clock.Since(start)}
	if err != nil {
		out.Err = errors.Wrapf(err, "read body of %s", d.url)
	}
	return out
}

var _ BandwidthProbe = &curlDownloader{}

// curlDownloader delegates the transfer to curl and reads back its byte count
// and total time.
type curlDownloader struct {
	url     string
	timeout time.Duration
	run     commandRunner
}

func (d *curlDownloader) Probe(ctx context.Context) types.BandwidthOutput {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.run(ctx, "curl",
		"--silent", "--fail",
		"--output", "/dev/null",
		"--max-time", strconv.Itoa(int(d.timeout.Seconds())),
		"--write-out", "%{size_download} %{time_total}",
		d.url,
	)
	if err != nil {
		err = errors.Wrapf(err, "curl %s", d.url)
	}
	return parser.ParseTransferText(string(out), err)
}
