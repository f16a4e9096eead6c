package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/SkylerRankin/netcheck/internal/config"
	"github.com/SkylerRankin/netcheck/internal/database"
	"github.com/SkylerRankin/netcheck/internal/display"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

type app struct {
	log     *slog.Logger
	cfg     config.Config
	clock   clockwork.Clock
	printer *display.Printer
	tty     bool
}

func main() {
	cli := kingpin.New("netcheck", "Probe network latency and bandwidth, record the results and report on them.")
	cli.Version(version)
	cli.HelpFlag.Short('h')

	configPath := cli.Flag("config", "Config file (KEY=value or YAML). Defaults to $NETCHECK_CONFIG, then ./netcheck.conf.").Short('c').String()
	overrides := cli.Flag("set", "Override one setting, e.g. --set ping_host=1.1.1.1. Repeatable.").PlaceHolder("KEY=VALUE").StringMap()
	logLevel := cli.Flag("log-level", "Log level: debug, info, warn or error.").String()

	checkCmd := cli.Command("check", "Run one monitoring cycle and print the result.").Default()

	summaryCmd := cli.Command("summary", "Summarize every recorded cycle.")
	summaryFormat := summaryCmd.Flag("format", "Output format.").Default("text").Enum("text", "json")

	issuesCmd := cli.Command("issues", "List non-OK cycles from the recent window.")
	issuesHours := issuesCmd.Flag("hours", "Window size in hours. Defaults to issue_window_hours.").Int()
	issuesNotify := issuesCmd.Flag("notify", "Post the list to webhook_url when it is not empty.").Bool()

	reportCmd := cli.Command("report", "Draw latency and download speed over time as a PNG.")
	reportOutput := reportCmd.Flag("output", "PNG file to write.").Short('o').Default("network_report.png").String()
	reportHours := reportCmd.Flag("hours", "Only chart the last N hours; 0 charts everything.").Default("0").Int()

	daemonCmd := cli.Command("daemon", "Run cycles on the configured schedule and serve the dashboard API.")
	serveCmd := cli.Command("serve", "Serve the dashboard API without running cycles.")
	scanCmd := cli.Command("scan", "Ping every address of network_scan_range and log which answer.")
	initCmd := cli.Command("init", "Create the record store if it does not exist.")

	command := kingpin.MustParse(cli.Parse(os.Args[1:]))

	a := newApp(*configPath, *overrides, *logLevel)
	ctx := context.Background()

	var err error
	switch command {
	case checkCmd.FullCommand():
		err = a.check(ctx)
	case summaryCmd.FullCommand():
		err = a.summary(ctx, *summaryFormat)
	case issuesCmd.FullCommand():
		err = a.issues(ctx, *issuesHours, *issuesNotify)
	case reportCmd.FullCommand():
		err = a.report(ctx, *reportOutput, *reportHours)
	case daemonCmd.FullCommand():
		err = a.daemon(ctx, true)
	case serveCmd.FullCommand():
		err = a.daemon(ctx, false)
	case scanCmd.FullCommand():
		err = a.scan(ctx)
	case initCmd.FullCommand():
		err = a.initStore(ctx)
	}

	if err != nil {
		a.log.Error("command failed", "command", command, "err", err)
		os.Exit(1)
	}
}

func newApp(configPath string, overrides map[string]string, logLevel string) *app {
	path, explicit := config.ResolvePath(configPath)
	cfg, warnings := config.Load(path, explicit)
	warnings = append(warnings, cfg.Apply(overrides)...)
	if logLevel != "" {
		warnings = append(warnings, cfg.Apply(map[string]string{"log_level": logLevel})...)
	}

	log := newLogger(cfg.LogLevel)
	for _, w := range warnings {
		log.Warn("config", "err", w)
	}
	log.Debug("loaded config", "path", path, "store", cfg.Store.Path, "backend", cfg.Store.Backend)

	clock := clockwork.NewRealClock()
	tty := display.IsTerminal(os.Stdout)
	return &app{
		log:     log,
		cfg:     cfg,
		clock:   clock,
		printer: display.NewPrinter(os.Stdout, tty, clock.Now),
		tty:     tty,
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func (a *app) openStore(ctx context.Context) (database.Store, error) {
	store, err := database.Open(ctx, a.cfg.Store)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store")
	}
	return store, nil
}
