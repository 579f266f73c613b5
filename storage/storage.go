package storage

import (
	"context"
	"errors"
	"iter"
)

var ErrNotFound = errors.New("key not found")

// Pair is a key value pair returned from an iteration.
type Pair struct {
	Key   []byte
	Value []byte
}

// Op is a single mutation within an atomic write.
type Op struct {
	Delete bool
	Key    []byte
	Value  []byte
}

// Store is a sorted key value namespace.
type Store interface {
	// Get returns the value for the given key or ErrNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Write applies all of the given ops atomically.
	Write(ctx context.Context, ops []Op) error
	// Iterate returns all pairs with keys in the range [lower, upper) in ascending order.
	//
	// A nil upper bound iterates until the end of the namespace.
	Iterate(ctx context.Context, lower, upper []byte) iter.Seq2[Pair, error]
	// Close releases any resources held by the store.
	Close() error
}

// Batch collects ops that are written together.
type Batch struct {
	ops []Op
}

// Put adds a put op to the batch.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, Op{Key: key, Value: value})
}

// Delete adds a delete op to the batch.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, Op{Key: key, Delete: true})
}

// Len returns the number of ops in the batch.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Ops returns the ops contained in the batch.
func (b *Batch) Ops() []Op {
	return b.ops
}

// Commit writes the batch to the given store.
func (b *Batch) Commit(ctx context.Context, s Store) error {
	if len(b.ops) == 0 {
		return nil
	}
	return s.Write(ctx, b.ops)
}

// Has returns true if the store contains the given key.
func Has(ctx context.Context, s Store, key []byte) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ScanPrefix returns all pairs with keys starting with the given prefix.
func ScanPrefix(ctx context.Context, s Store, prefix []byte) iter.Seq2[Pair, error] {
	return s.Iterate(ctx, prefix, PrefixEnd(prefix))
}

// PrefixEnd returns the smallest key that is greater than all keys with the given prefix.
//
// A nil result means the prefix has no upper bound.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
