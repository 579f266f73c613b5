// Package index maintains views derived from the log.
//
// Each view is kept up to date by an Indexer that consumes log entries in
// sequence order and writes to its own storage namespace. The sequence number
// of the last applied entry is committed atomically with the view updates so a
// restarted indexer resumes where it left off.
package index

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nasdf/osmdag/document"
	"github.com/nasdf/osmdag/oplog"
	"github.com/nasdf/osmdag/storage"
)

var checkpointKey = []byte("!seq")

// Options contains the settings shared by all indexes.
type Options struct {
	// Logger is used to report indexer activity.
	Logger *slog.Logger
}

// MapFunc adds the view updates for a single log entry to the batch.
type MapFunc func(ctx context.Context, n *oplog.Node, rec *document.Record, b *storage.Batch) error

// Indexer applies log entries to a view.
type Indexer struct {
	name   string
	log    *oplog.Log
	store  storage.Store
	fn     MapFunc
	logger *slog.Logger

	seq atomic.Uint64

	mu     sync.Mutex
	err    error
	notify chan struct{}
}

// NewIndexer returns an indexer that resumes from the checkpoint stored in store.
func NewIndexer(ctx context.Context, name string, log *oplog.Log, store storage.Store, fn MapFunc, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	x := &Indexer{
		name:   name,
		log:    log,
		store:  store,
		fn:     fn,
		logger: logger.With("component", "index", "index", name),
		notify: make(chan struct{}),
	}
	data, err := store.Get(ctx, checkpointKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		x.seq.Store(binary.BigEndian.Uint64(data))
	}
	return x, nil
}

// Name returns the name of the indexer.
func (x *Indexer) Name() string {
	return x.name
}

// Seq returns the sequence number of the last applied log entry.
func (x *Indexer) Seq() uint64 {
	return x.seq.Load()
}

// Err returns the error that stopped the indexer.
func (x *Indexer) Err() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.err
}

// Run applies log entries until the context is cancelled or an entry fails.
func (x *Indexer) Run(ctx context.Context) error {
	x.logger.Debug("indexer started", "seq", x.seq.Load())
	defer func() {
		x.logger.Debug("indexer stopped", "seq", x.seq.Load())
	}()

	for {
		for n, err := range x.log.Range(ctx, x.seq.Load()) {
			if err == nil {
				err = x.apply(ctx, n)
			}
			if err != nil {
				return x.fail(ctx, err)
			}
		}
		if err := x.log.Wait(ctx, x.seq.Load()); err != nil {
			return err
		}
	}
}

// Ready blocks until every entry appended before the call has been applied.
func (x *Indexer) Ready(ctx context.Context) error {
	return x.WaitFor(ctx, x.log.Seq())
}

// WaitFor blocks until the entry with the given sequence number has been applied.
func (x *Indexer) WaitFor(ctx context.Context, seq uint64) error {
	for {
		x.mu.Lock()
		ch, err := x.notify, x.err
		x.mu.Unlock()

		if x.seq.Load() >= seq {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (x *Indexer) apply(ctx context.Context, n *oplog.Node) error {
	rec, err := document.DecodeRecord(n.Value)
	if err != nil {
		return fmt.Errorf("decode %s: %w", n.Version, err)
	}
	var b storage.Batch
	if err := x.fn(ctx, n, rec, &b); err != nil {
		return fmt.Errorf("apply %s: %w", n.Version, err)
	}
	b.Put(checkpointKey, binary.BigEndian.AppendUint64(nil, n.Seq))
	if err := b.Commit(ctx, x.store); err != nil {
		return err
	}
	x.seq.Store(n.Seq)
	x.broadcast()

	IndexedCount.WithLabelValues(x.name).Inc()
	IndexLag.WithLabelValues(x.name).Set(float64(x.log.Seq() - n.Seq))
	return nil
}

func (x *Indexer) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err = fmt.Errorf("index %s: %w", x.name, err)
	x.logger.Error("indexer failed", "seq", x.seq.Load(), "err", err)

	x.mu.Lock()
	x.err = err
	x.mu.Unlock()

	x.broadcast()
	return err
}

func (x *Indexer) broadcast() {
	x.mu.Lock()
	defer x.mu.Unlock()

	close(x.notify)
	x.notify = make(chan struct{})
}
