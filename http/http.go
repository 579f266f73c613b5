package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nasdf/osmdag/core"
	"github.com/nasdf/osmdag/graphql"
	"github.com/nasdf/osmdag/index"
	"github.com/nasdf/osmdag/oplog"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// NewRegistry returns a prometheus registry containing all db metrics.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		oplog.AppendCount,
		index.IndexedCount,
		index.IndexLag,
		core.QueryDuration,
		core.QueryResults,
		core.WriteCount,
	)
	return reg
}

// Handler returns an http.Handler that serves the GraphQL api, playground, and metrics.
func Handler(db *core.DB, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", playground.Handler("osmdag", "/query"))
	mux.Handle("/query", graphql.Handler(db))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// ListenAndServe starts an http server bound to the given address and stops it when the context is cancelled.
func ListenAndServe(ctx context.Context, db *core.DB, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "http")

	srv := &http.Server{
		Addr:    addr,
		Handler: Handler(db, NewRegistry()),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Info("server listening", "addr", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
