package video

import (
	"context"
	"fmt"

	"vidtube/internal/config"
)

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteStore(cfg.DSN)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	case "dynamodb":
		return NewDynamoDBStore(ctx, cfg.DSN, cfg.Region)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
