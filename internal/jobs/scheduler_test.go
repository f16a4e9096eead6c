package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkylerRankin/netcheck/internal/config"
)

func TestSchedulerRunsOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var runs atomic.Int32

	s, err := NewScheduler(context.Background(), slog.New(slog.DiscardHandler), clock,
		config.ScheduleConfig{Interval: time.Minute},
		SchedulerJob{Name: "count", Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		}},
	)
	require.NoError(t, err)
	s.Start()
	defer s.Shutdown()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 5*time.Second, 10*time.Millisecond,
		"first run starts immediately")

	require.Eventually(t, func() bool {
		clock.Advance(time.Minute)
		return runs.Load() >= 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSchedulerKeepsRunningAfterJobError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var runs atomic.Int32

	s, err := NewScheduler(context.Background(), slog.New(slog.DiscardHandler), clock,
		config.ScheduleConfig{Interval: time.Minute},
		SchedulerJob{Name: "failing", Run: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("store unwritable")
		}},
	)
	require.NoError(t, err)
	s.Start()
	defer s.Shutdown()

	require.Eventually(t, func() bool {
		clock.Advance(time.Minute)
		return runs.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	_, err := NewScheduler(context.Background(), slog.New(slog.DiscardHandler), clockwork.NewFakeClock(),
		config.ScheduleConfig{Interval: time.Minute, Cron: "61 * * * *"},
		SchedulerJob{Name: "never", Run: func(ctx context.Context) error { return nil }},
	)
	assert.Error(t, err)
}

func TestSchedulerAcceptsCron(t *testing.T) {
	s, err := NewScheduler(context.Background(), slog.New(slog.DiscardHandler), clockwork.NewFakeClock(),
		config.ScheduleConfig{Cron: "*/5 * * * *"},
		SchedulerJob{Name: "cron", Run: func(ctx context.Context) error { return nil }},
	)
	require.NoError(t, err)
	assert.NoError(t, s.Shutdown())
}
