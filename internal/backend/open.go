package backend

import (
	"context"

	"github.com/rs/zerolog"

	"drumkits/internal/config"
	pgdb "drumkits/pkg/db"
)

// Open picks the catalog source: a direct Postgres pool when a database URL
// is configured, the REST interface otherwise. The returned func releases
// whatever Open acquired.
func Open(ctx context.Context, cfg config.BackendConfig, log zerolog.Logger) (Source, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := pgdb.Connect(ctx, cfg.DatabaseURL, pgdb.PoolOptions{PingTimeout: cfg.Timeout})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("table", cfg.Table).Msg("catalog source: postgres")
		return NewPostgres(pool, cfg.Table), pool.Close, nil
	}
	rest := NewREST(cfg.URL, cfg.AnonKey, cfg.Table, cfg.Timeout)
	if !rest.Configured() {
		log.Warn().Msg("catalog source: backend URL or key missing, reads will fail")
	} else {
		log.Info().Str("url", cfg.URL).Msg("catalog source: rest")
	}
	return rest, func() {}, nil
}
