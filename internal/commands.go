package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/SkylerRankin/netcheck/internal/aggregate"
	"github.com/SkylerRankin/netcheck/internal/alert"
	"github.com/SkylerRankin/netcheck/internal/database"
	"github.com/SkylerRankin/netcheck/internal/discovery"
	"github.com/SkylerRankin/netcheck/internal/display"
	"github.com/SkylerRankin/netcheck/internal/jobs"
	"github.com/SkylerRankin/netcheck/internal/metrics"
	"github.com/SkylerRankin/netcheck/internal/network"
	"github.com/SkylerRankin/netcheck/internal/report"
	"github.com/SkylerRankin/netcheck/internal/server"
	websocket_client "github.com/SkylerRankin/netcheck/internal/websocket"
)

func (a *app) newCycle(store database.Store, listeners ...jobs.Listener) jobs.Cycle {
	return jobs.NewCycle(jobs.CycleOptions{
		Log:        a.log,
		Clock:      a.clock,
		Host:       a.cfg.Probe.PingHost,
		Thresholds: a.cfg.Thresholds,
		Latency:    network.NewLatencyProbe(a.cfg.Probe),
		Bandwidth:  network.NewBandwidthProbe(a.cfg.Probe, a.clock),
		Store:      store,
		Listeners:  listeners,
	})
}

// check runs one cycle. The result block is printed even when the record
// could not be stored; the store failure still fails the command.
func (a *app) check(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	progress := display.NewProgress(a.tty)
	progress.Start("Probing " + a.cfg.Probe.PingHost + " and " + a.cfg.Probe.DownloadURL)
	record, err := a.newCycle(store).Run(ctx)
	if err != nil {
		progress.Fail()
	} else {
		progress.Done()
	}

	a.printer.Record(record)
	return err
}

func (a *app) summary(ctx context.Context, format string) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := aggregate.Summarize(store.Scan(ctx))
	if err != nil {
		return err
	}
	if r.Skipped > 0 {
		a.log.Warn("skipped unreadable rows", "count", r.Skipped, "store", a.cfg.Store.Path)
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(r), "failed to write summary")
	}
	a.printer.Report(r)
	return nil
}

func (a *app) issues(ctx context.Context, hours int, notify bool) error {
	window := a.cfg.Alert.Window
	if hours > 0 {
		window = time.Duration(hours) * time.Hour
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	since := a.clock.Now().Add(-window)
	list, err := aggregate.SummarizeSince(store.Scan(ctx), since)
	if err != nil {
		return err
	}
	a.printer.Issues(list, since)

	if !notify {
		return nil
	}
	if a.cfg.Alert.WebhookURL == "" {
		return errors.New("--notify needs webhook_url to be configured")
	}
	notifier := alert.NewWebhookNotifier(a.log, a.cfg.Alert.WebhookURL, nil)
	return notifier.Notify(ctx, alert.Payload{
		Host:   a.cfg.Probe.PingHost,
		Since:  since,
		Issues: list,
	})
}

func (a *app) report(ctx context.Context, output string, hours int) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var since time.Time
	if hours > 0 {
		since = a.clock.Now().Add(-time.Duration(hours) * time.Hour)
	}

	f, err := os.Create(filepath.Clean(output))
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", output)
	}
	if err := report.Render(f, a.cfg.Probe.PingHost, store.Scan(ctx), since); err != nil {
		f.Close()
		os.Remove(output)
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", output)
	}

	a.log.Info("wrote report", "path", output)
	return nil
}

func (a *app) initStore(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		return err
	}
	a.log.Info("record store ready", "path", a.cfg.Store.Path, "backend", a.cfg.Store.Backend)
	return nil
}

func (a *app) newSweeper() *discovery.Sweeper {
	return discovery.NewSweeper(a.log, a.clock, a.cfg.Scan, discovery.ICMPPing(a.cfg.Probe.Timeout))
}

func (a *app) scan(ctx context.Context) error {
	results, err := a.newSweeper().Sweep(ctx)
	if err != nil {
		return err
	}
	for _, r := range discovery.Up(results) {
		a.log.Info("host up", "addr", r.Addr, "rtt", r.RTT)
	}
	return nil
}

// daemon serves the dashboard API until SIGINT or SIGTERM. With cycles set it
// also runs monitoring cycles, and the discovery sweep when enabled, on the
// configured schedule. With webhook_url set, every non-OK cycle is alerted.
func (a *app) daemon(ctx context.Context, cycles bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return err
	}

	collectors := metrics.New()
	broadcaster := websocket_client.NewBroadcaster(a.log)
	srv := server.NewServer(server.Options{
		Log:         a.log,
		Clock:       a.clock,
		Addr:        a.cfg.Server.ListenAddr,
		Store:       store,
		Broadcaster: broadcaster,
		Metrics:     collectors,
		IssueWindow: a.cfg.Alert.Window,
	})

	var scheduler jobs.Scheduler
	if cycles {
		listeners := []jobs.Listener{collectors, broadcaster}
		if a.cfg.Alert.WebhookURL != "" {
			notifier := alert.NewWebhookNotifier(a.log, a.cfg.Alert.WebhookURL, nil)
			listeners = append(listeners, alert.NewCycleAlerter(a.log, notifier, a.cfg.Probe.PingHost))
		}

		scheduled := []jobs.SchedulerJob{jobs.CycleJob(a.newCycle(store, listeners...))}
		if a.cfg.Scan.Enabled {
			sweeper := a.newSweeper()
			scheduled = append(scheduled, jobs.SchedulerJob{
				Name: "network-scan",
				Run: func(ctx context.Context) error {
					_, err := sweeper.Sweep(ctx)
					return err
				},
			})
		}

		scheduler, err = jobs.NewScheduler(ctx, a.log, a.clock, a.cfg.Schedule, scheduled...)
		if err != nil {
			return err
		}
	}

	a.log.Info("starting netcheck", "version", version, "addr", a.cfg.Server.ListenAddr,
		"store", a.cfg.Store.Path, "interval", a.cfg.Schedule.Interval, "cron", a.cfg.Schedule.Cron)

	grp, groupCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		broadcaster.Listen(groupCtx)
		return nil
	})
	grp.Go(srv.Listen)
	grp.Go(func() error {
		<-groupCtx.Done()
		a.log.Info("shutting down")
		if scheduler != nil {
			if err := scheduler.Shutdown(); err != nil {
				a.log.Error("failed to stop scheduler", "err", err)
			}
		}
		return srv.Shutdown(context.Background())
	})
	if scheduler != nil {
		scheduler.Start()
	}

	if err := grp.Wait(); err != nil {
		return err
	}
	if err := broadcaster.Shutdown(); err != nil {
		a.log.Error("failed to stop websocket broadcaster", "err", err)
	}
	a.log.Info("exiting netcheck")
	return nil
}
