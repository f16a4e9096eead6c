package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkylerRankin/netcheck/internal/database"
	"github.com/SkylerRankin/netcheck/internal/metrics"
	"github.com/SkylerRankin/netcheck/internal/optional"
	"github.com/SkylerRankin/netcheck/internal/types"
)

var base = time.Date(2026, 10, 19, 6, 0, 0, 0, time.Local)

func seededStore(t *testing.T, statuses ...types.Status) database.Store {
	t.Helper()
	store := database.NewCSVStore(filepath.Join(t.TempDir(), "network_monitor.csv"), false)
	for i, status := range statuses {
		_, err := store.Append(context.Background(), types.Record{
			Sample: types.Sample{
				Timestamp:         base.Add(time.Duration(i) * time.Hour),
				TargetHost:        "8.8.8.8",
				AvgLatencyMS:      optional.New(float64(50 * (i + 1))),
				MinLatencyMS:      optional.New(10.0),
				MaxLatencyMS:      optional.New(300.0),
				DownloadSpeedMbps: optional.New(10.0),
				DownloadTimeSec:   optional.New(0.1),
			},
			Status: status,
		})
		require.NoError(t, err)
	}
	return store
}

func newTestServer(store database.Store, m *metrics.Metrics) Server {
	return NewServer(Options{
		Log:         slog.New(slog.DiscardHandler),
		Clock:       clockwork.NewFakeClockAt(base.Add(4 * time.Hour)),
		Store:       store,
		Metrics:     m,
		IssueWindow: 24 * time.Hour,
	})
}

func get(t *testing.T, s Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSummary(t *testing.T) {
	s := newTestServer(seededStore(t, types.StatusOK, types.StatusOK, types.StatusHighLatency), nil)

	rec := get(t, s, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got struct {
		Total      int              `json:"total"`
		IssueCount int              `json:"issue_count"`
		Latency    types.FieldStats `json:"latency_ms"`
		LastSeen   string           `json:"last_seen"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.IssueCount)
	assert.Equal(t, types.FieldStats{Count: 3, Avg: 100, Min: 50, Max: 150}, got.Latency)
	assert.Equal(t, "2 hours ago", got.LastSeen)
}

func TestSummaryEmptyStore(t *testing.T) {
	s := newTestServer(seededStore(t), nil)

	rec := get(t, s, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "last_seen")
	assert.Contains(t, rec.Body.String(), `"total":0`)
}

func TestIssues(t *testing.T) {
	s := newTestServer(seededStore(t, types.StatusPacketLoss, types.StatusOK, types.StatusSlowSpeed, types.StatusOK), nil)

	var got issuesResponse
	rec := get(t, s, "/api/issues")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Issues, 2)

	rec = get(t, s, "/api/issues?hours=3")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Issues, 1)
	assert.Equal(t, types.StatusSlowSpeed, got.Issues[0].Status)

	rec = get(t, s, "/api/issues?hours=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"issues":[]`)
}

func TestIssuesRejectsBadWindow(t *testing.T) {
	s := newTestServer(seededStore(t), nil)

	for _, target := range []string{"/api/issues?hours=0", "/api/issues?hours=day"} {
		assert.Equal(t, http.StatusBadRequest, get(t, s, target).Code, target)
	}
}

func TestRecordsReturnsNewest(t *testing.T) {
	s := newTestServer(seededStore(t, types.StatusOK, types.StatusHighLatency, types.StatusOK, types.StatusSlowSpeed, types.StatusOK), nil)

	var got []types.Record
	rec := get(t, s, "/api/records?limit=3")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	require.Len(t, got, 3)
	assert.Equal(t, types.StatusOK, got[0].Status)
	assert.Equal(t, types.StatusSlowSpeed, got[1].Status)
	assert.True(t, got[2].Timestamp.Equal(base.Add(4*time.Hour)))

	rec = get(t, s, "/api/records")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 5)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/records?limit=-1").Code)
}

func TestRecordsEmptyStore(t *testing.T) {
	s := newTestServer(seededStore(t), nil)

	rec := get(t, s, "/api/records")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(seededStore(t, types.StatusOK), metrics.New())

	require.Equal(t, http.StatusOK, get(t, s, "/api/summary?x=1").Code)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `netcheck_http_requests_total{code="200",endpoint="/api/summary",method="GET"} 1`)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	s := newTestServer(seededStore(t), nil)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/nothing").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/metrics").Code, "metrics are off without a collector")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/summary", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
