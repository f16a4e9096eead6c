package jobs

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/SkylerRankin/netcheck/internal/classifier"
	"github.com/SkylerRankin/netcheck/internal/config"
	"github.com/SkylerRankin/netcheck/internal/database"
	"github.com/SkylerRankin/netcheck/internal/network"
	"github.com/SkylerRankin/netcheck/internal/parser"
	"github.com/SkylerRankin/netcheck/internal/types"
)

// Cycle performs one probe, classify and record pass.
type Cycle interface {
	// Run always yields a record. Probe failures are recorded as such; only a
	// failure to persist the record is returned as an error.
	Run(ctx context.Context) (types.Record, error)
}

// Listener is told about every finished cycle, including ones whose record
// could not be stored.
type Listener interface {
	CycleCompleted(record types.Record, err error)
}

type ListenerFunc func(record types.Record, err error)

func (f ListenerFunc) CycleCompleted(record types.Record, err error) {
	f(record, err)
}

var _ Cycle = &networkJob{}

type networkJob struct {
	log        *slog.Logger
	clock      clockwork.Clock
	host       string
	thresholds config.Thresholds
	latency    network.LatencyProbe
	bandwidth  network.BandwidthProbe
	store      database.Store
	listeners  []Listener
}

type CycleOptions struct {
	Log        *slog.Logger
	Clock      clockwork.Clock
	Host       string
	Thresholds config.Thresholds
	Latency    network.LatencyProbe
	Bandwidth  network.BandwidthProbe
	Store      database.Store
	Listeners  []Listener
}

func NewCycle(opts CycleOptions) Cycle {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &networkJob{
		log:        opts.Log,
		clock:      opts.Clock,
		host:       opts.Host,
		thresholds: opts.Thresholds,
		latency:    opts.Latency,
		bandwidth:  opts.Bandwidth,
		store:      opts.Store,
		listeners:  opts.Listeners,
	}
}

func (j *networkJob) Run(ctx context.Context) (types.Record, error) {
	log := j.log.With("cycle", uuid.NewString())
	started := j.clock.Now()

	// Probes run one after the other so the download does not skew latency.
	latencyOut := j.latency.Probe(ctx)
	if latencyOut.Err != nil {
		log.Warn("latency probe failed", "host", j.host, "err", latencyOut.Err)
	}

	bandwidthOut := j.bandwidth.Probe(ctx)
	if bandwidthOut.Err != nil {
		log.Warn("bandwidth probe failed", "err", bandwidthOut.Err)
	}

	latency := parser.ParseLatency(latencyOut)
	if latency.Estimated {
		log.Debug("no summary line in ping output, using mean of replies")
	}
	sample := parser.BuildSample(started, j.host, latency, parser.ParseBandwidth(bandwidthOut))
	record := classifier.Record(sample, j.thresholds)

	stored, err := j.store.Append(ctx, record)
	if err != nil {
		err = errors.Wrap(err, "failed to record cycle")
		log.Error("cycle not recorded", "status", record.Status, "err", err)
		j.notify(record, err)
		return record, err
	}

	record = stored
	log.Info("cycle recorded",
		"status", record.Status,
		"avg_latency_ms", record.AvgLatencyMS,
		"packet_loss_pct", record.PacketLossPct,
		"download_speed_mbps", record.DownloadSpeedMbps,
		"took", j.clock.Since(started))
	j.notify(record, nil)
	return record, nil
}

func (j *networkJob) notify(record types.Record, err error) {
	for _, l := range j.listeners {
		l.CycleCompleted(record, err)
	}
}
