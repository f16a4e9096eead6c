// Package alert delivers the recent-issues list to an operator webhook.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/SkylerRankin/netcheck/internal/types"
)

const userAgent = "netcheck/1"

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Host   string        `json:"host"`
	Since  time.Time     `json:"since"`
	Issues []types.Issue `json:"issues"`
}

type Notifier interface {
	// Notify posts the issues. An empty list sends nothing.
	Notify(ctx context.Context, payload Payload) error
}

var _ Notifier = &webhookNotifier{}

type webhookNotifier struct {
	log    *slog.Logger
	url    string
	client *http.Client
}

func NewWebhookNotifier(log *slog.Logger, url string, client *http.Client) Notifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &webhookNotifier{
		log:    log,
		url:    url,
		client: client,
	}
}

func (n *webhookNotifier) Notify(ctx context.Context, payload Payload) error {
	if len(payload.Issues) == 0 {
		n.log.Debug("no issues to report", "since", payload.Since)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal alert payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build alert request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send alert")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("alert webhook returned %s", resp.Status)
	}

	n.log.Info("sent alert", "issues", len(payload.Issues), "since", payload.Since)
	return nil
}

const cycleAlertTimeout = 30 * time.Second

// CycleAlerter posts every stored non-OK cycle as a one-issue alert. It is a
// cycle listener for the daemon.
type CycleAlerter struct {
	log      *slog.Logger
	notifier Notifier
	host     string
}

func NewCycleAlerter(log *slog.Logger, notifier Notifier, host string) *CycleAlerter {
	return &CycleAlerter{
		log:      log,
		notifier: notifier,
		host:     host,
	}
}

func (a *CycleAlerter) CycleCompleted(record types.Record, err error) {
	if err != nil || record.Status == types.StatusOK {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cycleAlertTimeout)
	defer cancel()
	payload := Payload{
		Host:   a.host,
		Since:  record.Timestamp,
		Issues: []types.Issue{{Timestamp: record.Timestamp, Status: record.Status}},
	}
	if err := a.notifier.Notify(ctx, payload); err != nil {
		a.log.Error("failed to send cycle alert", "status", record.Status, "err", err)
	}
}
