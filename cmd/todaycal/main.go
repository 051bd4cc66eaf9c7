package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"todaycal/internal/agenda"
	"todaycal/internal/capture"
	"todaycal/internal/config"
	"todaycal/internal/feed"
	appLog "todaycal/internal/log"
	"todaycal/internal/metrics"
	"todaycal/internal/refresh"
	"todaycal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	print      bool
	server     string
	snapshot   string
	debug      bool
}

func main() {
	flags := parseFlags()

	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("todaycal starting", "version", version)

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil {
		appLog.Debug(".env not loaded", "reason", err.Error())
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv(os.LookupEnv)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if !flags.debug {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}
	formatter := agenda.NewFormatter(conf.Locale, loc)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"locale", formatter.Tag().String(),
		"refresh", conf.RefreshCron,
		"fetch_timeout", conf.FetchTimeout().String(),
		"calendar_configured", conf.CalendarURL != "",
		"once", flags.once,
		"print", flags.print,
		"snapshot", flags.snapshot,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	switch {
	case flags.print:
		if flags.server == "" {
			appLog.Error("missing --server", errors.New("--print requires --server"))
			os.Exit(2)
		}
		err = runOnce(ctx, feed.NewClient(flags.server, conf.FetchTimeout()), conf, loc, formatter)
	case flags.once:
		err = runOnce(ctx, feed.NewFetcher(conf.CalendarURL, conf.FetchTimeout()), conf, loc, formatter)
	default:
		err = runServer(ctx, conf, flags, loc, formatter)
	}

	if err != nil {
		appLog.Error("todaycal failed", err)
		os.Exit(1)
	}
	appLog.Info("todaycal exiting")
}

// runOnce performs a single refresh from src and prints the agenda.
func runOnce(ctx context.Context, src feed.Source, conf *config.Config, loc *time.Location, f agenda.Formatter) error {
	r := refresh.New(src, refresh.Options{
		Location: loc,
		Timeout:  conf.FetchTimeout(),
	})
	if err := r.Refresh(ctx); err != nil {
		fmt.Fprintln(os.Stderr, f.Text(agenda.MsgErrorPrefix, f.Text(agenda.MsgFetchFailed)))
		return err
	}
	view := agenda.Build(r.State().Events, time.Now(), f)
	return agenda.WriteText(os.Stdout, view)
}

// runServer serves the page and the proxy while refreshing on schedule.
// With --snapshot it captures the page once the first refresh settles and
// then returns.
func runServer(ctx context.Context, conf *config.Config, flags flagConfig, loc *time.Location, f agenda.Formatter) error {
	m := metrics.New()

	fetcher := feed.NewFetcher(conf.CalendarURL, conf.FetchTimeout(), feed.WithObserver(m))
	if !fetcher.Configured() {
		appLog.Warn("calendar URL not configured; set calendar_url or " + config.EnvCalendarURL)
	} else {
		appLog.Info("calendar feed", "url", fetcher.Redacted())
	}

	r := refresh.New(fetcher, refresh.Options{
		Location: loc,
		Timeout:  conf.FetchTimeout(),
		Schedule: conf.RefreshCron,
		Observer: m,
	})
	if err := r.Start(ctx); err != nil {
		return err
	}
	defer r.Stop()

	srv := web.NewServer(web.Options{
		Fetcher:        fetcher,
		Agenda:         r,
		Formatter:      f,
		Metrics:        m.Handler(),
		ReloadInterval: r.Interval(),
	})

	if flags.snapshot == "" {
		return web.Serve(ctx, conf.Listen, srv.Handler())
	}

	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()
	serveErr := make(chan error, 1)
	go func() { serveErr <- web.Serve(serveCtx, conf.Listen, srv.Handler()) }()

	if err := waitSettled(ctx, r, capture.DefaultTimeout); err != nil {
		return err
	}
	err := capture.Page(ctx, capture.Options{
		URL:        "http://" + conf.Listen + "/",
		OutputPath: flags.snapshot,
	})
	if err == nil {
		appLog.Info("snapshot written", "path", flags.snapshot)
	}

	stopServe()
	if serr := <-serveErr; serr != nil && err == nil {
		err = serr
	}
	return err
}

// waitSettled blocks until the refresher has left the loading state.
func waitSettled(ctx context.Context, r *refresh.Refresher, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for r.State().Loading {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for first refresh: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/todaycal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch the configured calendar once, print the agenda and exit")
	flag.BoolVar(&cfg.print, "print", false, "Print the agenda using a running server's /api/calendar (requires --server)")
	flag.StringVar(&cfg.server, "server", "", "Base URL of a running todaycal server, e.g. http://127.0.0.1:8080")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Serve, capture the agenda page to this PNG path and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
