package cache

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/peak-enrich/internal/config"
)

// Open returns the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		return OpenFile(cfg.Path)
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL, cfg.Table)
	case "redis":
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisHash)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, eris.Errorf("cache: unsupported driver %q", cfg.Driver)
	}
}
