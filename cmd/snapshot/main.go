package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"drumkits/internal/backend"
	"drumkits/internal/catalog"
	"drumkits/internal/config"
	"drumkits/pkg/logger"
)

// snapshot writes the catalog list to a local JSON file that the site falls
// back to in development. With -interval it keeps refreshing the file.
func main() {
	config.LoadDotenv(".env.local", ".env")
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", false).Fatal().Err(err).Msg("invalid config")
	}
	log := logger.New(cfg.LogLevel, cfg.IsDevelopment())

	out := flag.String("out", cfg.Catalog.SnapshotPath, "snapshot file to write")
	interval := flag.Duration("interval", 0, "rewrite the snapshot on this interval; 0 runs once")
	flag.Parse()
	if *out == "" {
		log.Fatal().Msg("no snapshot path: set SNAPSHOT_PATH or -out")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := backend.Open(ctx, cfg.Backend, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open catalog source")
	}
	defer closeSource()

	if *interval <= 0 {
		if err := snapshot(ctx, source, *out, cfg.Catalog.FetchTimeout, log); err != nil {
			log.Fatal().Err(err).Msg("snapshot failed")
		}
		return
	}

	log.Info().Str("out", *out).Dur("interval", *interval).Msg("snapshot loop starting")
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		if err := snapshot(ctx, source, *out, cfg.Catalog.FetchTimeout, log); err != nil {
			log.Error().Err(err).Msg("snapshot failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func snapshot(ctx context.Context, source backend.Source, path string, timeout time.Duration, log zerolog.Logger) error {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	rows, err := catalog.SourceFetcher{Source: source}.Fetch(fctx)
	if err != nil {
		return err
	}
	if err := catalog.WriteSnapshot(path, rows); err != nil {
		return err
	}
	log.Info().Int("rows", len(rows)).Str("out", path).Msg("snapshot written")
	return nil
}
