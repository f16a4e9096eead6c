package jobs

import (
	"context"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/SkylerRankin/netcheck/internal/config"
)

type Scheduler interface {
	Start()
	Shutdown() error
}

// SchedulerJob is one named unit of recurring work.
type SchedulerJob struct {
	Name string
	Run  func(ctx context.Context) error
}

// CycleJob wraps a Cycle for the scheduler. A store failure is logged by the
// cycle itself and surfaces here as the job error.
func CycleJob(cycle Cycle) SchedulerJob {
	return SchedulerJob{
		Name: "monitor-cycle",
		Run: func(ctx context.Context) error {
			_, err := cycle.Run(ctx)
			return err
		},
	}
}

var _ Scheduler = &scheduler{}

type scheduler struct {
	gocronScheduler gocron.Scheduler
}

// NewScheduler registers every job on the same interval or cron expression.
// Jobs run in singleton mode: a run still in progress when the next one is
// due causes that next run to be skipped, never to overlap.
func NewScheduler(ctx context.Context, log *slog.Logger, clock clockwork.Clock, cfg config.ScheduleConfig, jobs ...SchedulerJob) (Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLogger(log),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gocron scheduler")
	}

	definition := gocron.DurationJob(cfg.Interval)
	if cfg.Cron != "" {
		definition = gocron.CronJob(cfg.Cron, false)
	}

	for _, job := range jobs {
		_, err = s.NewJob(definition,
			gocron.NewTask(func() {
				if err := job.Run(ctx); err != nil {
					log.Error("failed to run job", "job", job.Name, "err", err)
				}
			}),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, errors.Wrapf(err, "failed to create job %s", job.Name)
		}
	}

	return &scheduler{
		gocronScheduler: s,
	}, nil
}

func (s scheduler) Start() {
	s.gocronScheduler.Start()
}

func (s scheduler) Shutdown() error {
	if err := s.gocronScheduler.Shutdown(); err != nil {
		return errors.Wrap(err, "failed to shutdown gocron scheduler")
	}
	return nil
}
