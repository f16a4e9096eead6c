package metrics

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkylerRankin/netcheck/internal/optional"
	"github.com/SkylerRankin/netcheck/internal/types"
)

func TestCycleCompleted(t *testing.T) {
	m := New()
	ts := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	m.CycleCompleted(types.Record{
		Sample: types.Sample{
			Timestamp:         ts,
			AvgLatencyMS:      optional.New(42.0),
			PacketLossPct:     0,
			DownloadSpeedMbps: optional.New(8.5),
		},
		Status: types.StatusOK,
	}, nil)
	m.CycleCompleted(types.Record{
		Sample: types.Sample{Timestamp: ts.Add(time.Minute), PacketLossPct: 100, DownloadSpeedMbps: optional.New(0.0)},
		Status: types.StatusPacketLoss,
	}, nil)
	m.CycleCompleted(types.Record{}, errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("PACKET_LOSS")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.cycles.WithLabelValues("SLOW_SPEED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeFailures))
	assert.True(t, math.IsNaN(testutil.ToFloat64(m.latency)), "unknown latency is exported as NaN")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.speed))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.packetLoss))
	assert.Equal(t, float64(ts.Add(time.Minute).Unix()), testutil.ToFloat64(m.lastCycle))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/summary", http.StatusOK, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `netcheck_cycles_total{status="HIGH_LATENCY"} 0`)
	assert.Contains(t, body, `netcheck_http_requests_total{code="200",endpoint="/api/summary",method="GET"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
