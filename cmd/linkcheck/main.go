package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"drumkits/internal/backend"
	"drumkits/internal/config"
	"drumkits/internal/kit"
	"drumkits/internal/linkcheck"
	"drumkits/pkg/logger"
)

type checkConfig struct {
	Interval   time.Duration
	Timeout    time.Duration
	Concurrent int
}

func loadCheckConfig() checkConfig {
	interval, _ := time.ParseDuration(os.Getenv("CHECK_INTERVAL"))
	timeout, err := time.ParseDuration(os.Getenv("CHECK_TIMEOUT"))
	if err != nil {
		timeout = 5 * time.Second
	}
	concurrent, err := strconv.Atoi(os.Getenv("CHECK_CONCURRENCY"))
	if err != nil || concurrent <= 0 {
		concurrent = 8
	}
	return checkConfig{Interval: interval, Timeout: timeout, Concurrent: concurrent}
}

// linkcheck probes every kit's download link and logs the dead ones. It runs
// once unless CHECK_INTERVAL is set; the exit status is 1 when a one-shot
// run finds dead links.
func main() {
	config.LoadDotenv(".env.local", ".env")
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", false).Fatal().Err(err).Msg("invalid config")
	}
	log := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	cc := loadCheckConfig()
	flag.DurationVar(&cc.Interval, "interval", cc.Interval, "repeat checks on this interval; 0 runs once")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := backend.Open(ctx, cfg.Backend, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open catalog source")
	}
	defer closeSource()

	checker := linkcheck.New(cc.Timeout, cc.Concurrent)
	if cc.Interval <= 0 {
		dead, err := run(ctx, source, checker, log)
		if err != nil {
			log.Fatal().Err(err).Msg("link check failed")
		}
		if dead > 0 {
			stop()
			closeSource()
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(cc.Interval)
	defer ticker.Stop()
	for {
		if _, err := run(ctx, source, checker, log); err != nil {
			log.Error().Err(err).Msg("link check failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func run(ctx context.Context, source backend.Source, checker *linkcheck.Checker, log zerolog.Logger) (int, error) {
	rows, err := source.List(ctx, backend.Query{Detail: true})
	if err != nil {
		return 0, err
	}
	results := checker.Check(ctx, kit.NormalizeAll(rows))
	dead := 0
	for _, r := range results {
		if r.OK() {
			log.Debug().Str("slug", r.Slug).Int("status", r.Status).Dur("latency", r.Latency).Msg("link ok")
			continue
		}
		dead++
		ev := log.Warn().Str("slug", r.Slug).Str("url", r.URL).Int("status", r.Status)
		if r.Err != nil {
			ev = ev.Err(r.Err)
		}
		ev.Msg("dead download link")
	}
	log.Info().Int("checked", len(results)).Int("dead", dead).Msg("link check complete")
	return dead, nil
}
