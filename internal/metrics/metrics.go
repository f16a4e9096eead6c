// Package metrics exposes cycle outcomes and API traffic as Prometheus
// collectors on a private registry.
package metrics

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SkylerRankin/netcheck/internal/types"
)

const namespace = "netcheck"

type Metrics struct {
	registry *prometheus.Registry

	cycles          *prometheus.CounterVec
	storeFailures   prometheus.Counter
	latency         prometheus.Gauge
	speed           prometheus.Gauge
	packetLoss      prometheus.Gauge
	lastCycle       prometheus.Gauge
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Monitoring cycles recorded, by health status",
		}, []string{"status"}),
		storeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Cycles whose record could not be appended",
		}),
		latency: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latency_avg_ms",
			Help:      "Average round trip time of the last cycle, NaN when unknown",
		}),
		speed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "download_speed_mbps",
			Help:      "Download speed of the last cycle, NaN when unknown",
		}),
		packetLoss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "packet_loss_pct",
			Help:      "Packet loss of the last cycle",
		}),
		lastCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last recorded cycle",
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}

	for _, status := range types.Statuses {
		m.cycles.WithLabelValues(string(status))
	}
	return m
}

// CycleCompleted updates the counters and last-cycle gauges.
func (m *Metrics) CycleCompleted(record types.Record, err error) {
	if err != nil {
		m.storeFailures.Inc()
		return
	}

	m.cycles.WithLabelValues(string(record.Status)).Inc()
	m.latency.Set(record.AvgLatencyMS.Else(math.NaN()))
	m.speed.Set(record.DownloadSpeedMbps.Else(math.NaN()))
	m.packetLoss.Set(record.PacketLossPct)
	m.lastCycle.Set(float64(record.Timestamp.Unix()))
}

// ObserveRequest records one served API request.
func (m *Metrics) ObserveRequest(method, endpoint string, code int, took time.Duration) {
	m.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(took.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
