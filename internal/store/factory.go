package store

import (
	"context"
	"fmt"

	"github.com/tide-ide/tide/internal/config"
	"github.com/tide-ide/tide/internal/store/badgerstore"
	"github.com/tide-ide/tide/internal/store/memory"
	"github.com/tide-ide/tide/internal/store/sqlstore"
)

// Open creates the Store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(), nil
	case "badger":
		return badgerstore.Open(badgerstore.DefaultConfig(cfg.Path))
	case "sqlite":
		return sqlstore.OpenSQLite(ctx, cfg.Path)
	case "postgres":
		return sqlstore.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
