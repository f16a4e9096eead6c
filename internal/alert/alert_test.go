package alert

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkylerRankin/netcheck/internal/types"
)

var since = time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

func TestNotifyPostsIssues(t *testing.T) {
	var got Payload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(slog.New(slog.DiscardHandler), srv.URL, srv.Client())
	err := n.Notify(context.Background(), Payload{
		Host:  "8.8.8.8",
		Since: since,
		Issues: []types.Issue{
			{Timestamp: since.Add(time.Hour), Status: types.StatusPacketLoss},
			{Timestamp: since.Add(2 * time.Hour), Status: types.StatusSlowSpeed},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "8.8.8.8", got.Host)
	assert.True(t, got.Since.Equal(since))
	require.Len(t, got.Issues, 2)
	assert.Equal(t, types.StatusPacketLoss, got.Issues[0].Status)
}

func TestNotifySkipsEmptyList(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := NewWebhookNotifier(slog.New(slog.DiscardHandler), srv.URL, srv.Client())
	require.NoError(t, n.Notify(context.Background(), Payload{Host: "8.8.8.8", Since: since}))
	assert.False(t, called)
}

func TestNotifyReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(slog.New(slog.DiscardHandler), srv.URL, srv.Client())
	err := n.Notify(context.Background(), Payload{
		Issues: []types.Issue{{Timestamp: since, Status: types.StatusHighLatency}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type recordingNotifier struct {
	payloads []Payload
	err      error
}

func (r *recordingNotifier) Notify(ctx context.Context, payload Payload) error {
	r.payloads = append(r.payloads, payload)
	return r.err
}

func TestCycleAlerter(t *testing.T) {
	at := since.Add(3 * time.Hour)
	tests := []struct {
		name   string
		status types.Status
		err    error
		sent   bool
	}{
		{name: "ok cycle", status: types.StatusOK},
		{name: "packet loss", status: types.StatusPacketLoss, sent: true},
		{name: "slow speed", status: types.StatusSlowSpeed, sent: true},
		{name: "unstored record", status: types.StatusHighLatency, err: errors.New("disk full")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			a := NewCycleAlerter(slog.New(slog.DiscardHandler), n, "8.8.8.8")

			a.CycleCompleted(types.Record{Sample: types.Sample{Timestamp: at}, Status: tt.status}, tt.err)

			if !tt.sent {
				assert.Empty(t, n.payloads)
				return
			}
			require.Len(t, n.payloads, 1)
			assert.Equal(t, "8.8.8.8", n.payloads[0].Host)
			assert.Equal(t, []types.Issue{{Timestamp: at, Status: tt.status}}, n.payloads[0].Issues)
		})
	}
}

func TestCycleAlerterPostsToWebhook(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	log := slog.New(slog.DiscardHandler)
	a := NewCycleAlerter(log, NewWebhookNotifier(log, srv.URL, srv.Client()), "1.1.1.1")
	a.CycleCompleted(types.Record{Sample: types.Sample{Timestamp: since}, Status: types.StatusHighLatency}, nil)

	assert.Equal(t, "1.1.1.1", got.Host)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, types.StatusHighLatency, got.Issues[0].Status)
}
