package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Options contains the settings shared by all storage backends.
type Options struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path string
	// InMemory keeps all data in memory. Useful for testing.
	InMemory bool
	// SyncWrites flushes every write to disk before returning.
	SyncWrites bool
	// Logger receives backend log output. If nil, backend logging is discarded.
	Logger *slog.Logger
}

// Pebble is a Store backed by a pebble database.
type Pebble struct {
	db    *pebble.DB
	write *pebble.WriteOptions
}

// OpenPebble opens a pebble database using the given options.
func OpenPebble(opts Options) (*Pebble, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	popts := &pebble.Options{
		Logger: newLogAdapter(opts.Logger),
	}
	path := opts.Path
	if opts.InMemory {
		popts.FS = vfs.NewMem()
		path = ""
	}
	db, err := pebble.Open(path, popts)
	if err != nil {
		return nil, fmt.Errorf("open pebble database: %w", err)
	}
	write := pebble.NoSync
	if opts.SyncWrites {
		write = pebble.Sync
	}
	return &Pebble{db: db, write: write}, nil
}

func (p *Pebble) Get(ctx context.Context, key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(val), nil
}

func (p *Pebble) Write(ctx context.Context, ops []Op) error {
	b := p.db.NewBatch()
	defer b.Close()
	for _, op := range ops {
		var err error
		if op.Delete {
			err = b.Delete(op.Key, nil)
		} else {
			err = b.Set(op.Key, op.Value, nil)
		}
		if err != nil {
			return err
		}
	}
	return b.Commit(p.write)
}

func (p *Pebble) Iterate(ctx context.Context, lower, upper []byte) iter.Seq2[Pair, error] {
	return func(yield func(Pair, error) bool) {
		it, err := p.db.NewIter(&pebble.IterOptions{
			LowerBound: lower,
			UpperBound: upper,
		})
		if err != nil {
			yield(Pair{}, err)
			return
		}
		defer it.Close()
		for valid := it.First(); valid; valid = it.Next() {
			if err := ctx.Err(); err != nil {
				yield(Pair{}, err)
				return
			}
			pair := Pair{
				Key:   bytes.Clone(it.Key()),
				Value: bytes.Clone(it.Value()),
			}
			if !yield(pair, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield(Pair{}, err)
		}
	}
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
