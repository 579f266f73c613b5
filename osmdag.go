package osmdag

import (
	"context"
	"io"
	"log/slog"

	"github.com/nasdf/osmdag/config"
	"github.com/nasdf/osmdag/core"
	"github.com/nasdf/osmdag/graphql"
	"github.com/nasdf/osmdag/storage"
)

// NewLogger returns a text logger writing to w at the level named in the config.
func NewLogger(w io.Writer, cfg config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// Open creates a new DB instance using the storage described by the config.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*core.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.Backend, cfg.Storage(logger))
	if err != nil {
		return nil, err
	}
	db, err := core.Open(ctx, store, core.Options{
		CacheSize: cfg.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return db, nil
}

// Execute runs a GraphQL operation against the db.
func Execute(ctx context.Context, db *core.DB, params graphql.QueryParams) graphql.QueryResponse {
	return graphql.Execute(ctx, db, params)
}
