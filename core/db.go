package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nasdf/osmdag/document"
	"github.com/nasdf/osmdag/index"
	"github.com/nasdf/osmdag/link"
	"github.com/nasdf/osmdag/oplog"
	"github.com/nasdf/osmdag/storage"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	blocksNamespace    = "b"
	logNamespace       = "log"
	headsNamespace     = "kv"
	refsNamespace      = "r"
	spatialNamespace   = "s"
	changesetNamespace = "c"
)

// fetchLimit is the maximum number of concurrent reads in a single fan-out.
const fetchLimit = 16

type Options struct {
	// CacheSize is the number of decoded log entries kept in memory.
	CacheSize int
	// Logger is used to report db activity. If nil, logs are discarded.
	Logger *slog.Logger
}

// DB is a versioned document store with spatial and reference indexes.
type DB struct {
	store     storage.Store
	log       *oplog.Log
	heads     *index.Heads
	refs      *index.Refs
	spatial   *index.Spatial
	changeset *index.Changeset
	indexers  []*index.Indexer
	logger    *slog.Logger

	writeLock *semaphore.Weighted
	closed    atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	errs      chan error
}

// Open returns a db that stores all of its data in the given store.
//
// The db takes ownership of the store and closes it when the db is closed.
func Open(ctx context.Context, store storage.Store, opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	links := link.NewStore(storage.NewBlocks(storage.Prefix(store, blocksNamespace)))
	log, err := oplog.Open(ctx, links, storage.Prefix(store, logNamespace), oplog.Options{
		CacheSize: opts.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	indexOpts := index.Options{Logger: logger}
	heads, err := index.NewHeads(ctx, log, storage.Prefix(store, headsNamespace), indexOpts)
	if err != nil {
		return nil, err
	}
	refs, err := index.NewRefs(ctx, log, storage.Prefix(store, refsNamespace), indexOpts)
	if err != nil {
		return nil, err
	}
	spatial, err := index.NewSpatial(ctx, log, storage.Prefix(store, spatialNamespace), indexOpts)
	if err != nil {
		return nil, err
	}
	changeset, err := index.NewChangeset(ctx, log, storage.Prefix(store, changesetNamespace), indexOpts)
	if err != nil {
		return nil, err
	}
	db := &DB{
		store:     store,
		log:       log,
		heads:     heads,
		refs:      refs,
		spatial:   spatial,
		changeset: changeset,
		indexers:  []*index.Indexer{heads.Indexer, refs.Indexer, spatial.Indexer, changeset.Indexer},
		logger:    logger.With("component", "db"),
		writeLock: semaphore.NewWeighted(1),
	}
	db.errs = make(chan error, len(db.indexers))

	runCtx, cancel := context.WithCancel(context.Background())
	db.cancel = cancel
	for _, x := range db.indexers {
		db.wg.Add(1)
		go func() {
			defer db.wg.Done()
			err := x.Run(runCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				db.errs <- err
			}
		}()
	}
	db.logger.Info("db opened", "seq", log.Seq())
	return db, nil
}

// Close stops all indexers and closes the underlying store.
func (db *DB) Close() error {
	if err := db.writeLock.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer db.writeLock.Release(1)

	if db.closed.Swap(true) {
		return ErrClosed
	}
	db.cancel()
	db.wg.Wait()
	db.logger.Info("db closed")
	return db.store.Close()
}

// Errors returns a channel that receives an error for every indexer that fails.
func (db *DB) Errors() <-chan error {
	return db.errs
}

// Ready blocks until all indexes have applied every entry written before the call.
func (db *DB) Ready(ctx context.Context) error {
	seq := db.log.Seq()
	for _, x := range db.indexers {
		if err := x.WaitFor(ctx, seq); err != nil {
			return err
		}
	}
	return nil
}

// Seq returns the sequence number of the last entry written to the log.
func (db *DB) Seq() uint64 {
	return db.log.Seq()
}

// Export writes the given version and all of its ancestors to w as a CAR.
func (db *DB) Export(ctx context.Context, version string, w io.Writer) (int64, error) {
	n, err := db.log.Export(ctx, version, w)
	if errors.Is(err, oplog.ErrNotFound) {
		return 0, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return n, err
}

// GetChanges returns the ids of documents written under the given changeset.
func (db *DB) GetChanges(ctx context.Context, changeset string) ([]string, error) {
	if err := db.changeset.Ready(ctx); err != nil {
		return nil, err
	}
	ids, err := db.changeset.List(ctx, changeset)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// withWriteLock runs fn while holding exclusive write access to the db.
func (db *DB) withWriteLock(ctx context.Context, fn func() error) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if err := db.writeLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer db.writeLock.Release(1)

	if db.closed.Load() {
		return ErrClosed
	}
	return fn()
}

// record returns the decoded log record with the given version.
func (db *DB) record(ctx context.Context, version string) (*document.Record, error) {
	n, err := db.log.Get(ctx, version)
	if errors.Is(err, oplog.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return document.DecodeRecord(n.Value)
}

// records returns the decoded log records for all of the given versions.
func (db *DB) records(ctx context.Context, versions []string) ([]*document.Record, error) {
	out := make([]*document.Record, len(versions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for i, v := range versions {
		g.Go(func() error {
			rec, err := db.record(gctx, v)
			out[i] = rec
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
