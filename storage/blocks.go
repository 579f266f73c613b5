package storage

import (
	"context"
	"errors"

	ipldstorage "github.com/ipld/go-ipld-prime/storage"
)

var (
	_ ipldstorage.ReadableStorage = (*Blocks)(nil)
	_ ipldstorage.WritableStorage = (*Blocks)(nil)
)

// Blocks exposes a Store as content addressed block storage.
type Blocks struct {
	store Store
}

// NewBlocks returns block storage that reads and writes blocks in the given store.
func NewBlocks(store Store) *Blocks {
	return &Blocks{store: store}
}

func (b *Blocks) Has(ctx context.Context, key string) (bool, error) {
	return Has(ctx, b.store, []byte(key))
}

func (b *Blocks) Get(ctx context.Context, key string) ([]byte, error) {
	return b.store.Get(ctx, []byte(key))
}

func (b *Blocks) Put(ctx context.Context, key string, content []byte) error {
	has, err := b.Has(ctx, key)
	if err != nil || has {
		return err
	}
	return b.store.Write(ctx, []Op{{Key: []byte(key), Value: content}})
}

// IsNotFound returns true if the error signals a missing block or key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
