package database

import (
	"context"
	"fmt"

	"github.com/dkalashnik/survey-rewards-bot/pkg/completion"
	"github.com/dkalashnik/survey-rewards-bot/pkg/config"
)

// OpenCompletionBackend connects the completion backend selected by
// cfg.StoreDriver. The returned close func releases the connection.
func OpenCompletionBackend(ctx context.Context, cfg *config.AppConfig) (completion.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		return completion.NewMemoryBackend(), noop, nil

	case config.StoreSQLite, config.StorePostgres:
		db, err := ConnectGorm(cfg.StoreDriver, cfg.StoreDSN)
		if err != nil {
			return nil, nil, err
		}
		backend, err := completion.NewGormBackend(db)
		if err != nil {
			_ = CloseGorm(db)
			return nil, nil, fmt.Errorf("prepare %s completion table: %w", cfg.StoreDriver, err)
		}
		return backend, func() error { return CloseGorm(db) }, nil

	case config.StoreRedis:
		client, err := ConnectRedis(ctx, cfg.RedisURI)
		if err != nil {
			return nil, nil, err
		}
		backend, err := completion.NewRedisBackend(client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return backend, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
