package storage

import (
	"bytes"
	"context"
	"iter"
)

// prefixed isolates a namespace within a parent store.
type prefixed struct {
	parent Store
	prefix []byte
}

// Prefix returns a Store whose keys are isolated under the given namespace name.
//
// Closing the returned store does not close the parent.
func Prefix(parent Store, name string) Store {
	prefix := append([]byte(name), 0)
	if p, ok := parent.(*prefixed); ok {
		return &prefixed{parent: p.parent, prefix: append(bytes.Clone(p.prefix), prefix...)}
	}
	return &prefixed{parent: parent, prefix: prefix}
}

func (p *prefixed) key(key []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(key))
	out = append(out, p.prefix...)
	return append(out, key...)
}

func (p *prefixed) Get(ctx context.Context, key []byte) ([]byte, error) {
	return p.parent.Get(ctx, p.key(key))
}

func (p *prefixed) Write(ctx context.Context, ops []Op) error {
	out := make([]Op, len(ops))
	for i, op := range ops {
		out[i] = Op{Delete: op.Delete, Key: p.key(op.Key), Value: op.Value}
	}
	return p.parent.Write(ctx, out)
}

func (p *prefixed) Iterate(ctx context.Context, lower, upper []byte) iter.Seq2[Pair, error] {
	lo := p.key(lower)
	hi := PrefixEnd(p.prefix)
	if upper != nil {
		hi = p.key(upper)
	}
	return func(yield func(Pair, error) bool) {
		for pair, err := range p.parent.Iterate(ctx, lo, hi) {
			if err != nil {
				yield(Pair{}, err)
				return
			}
			pair.Key = pair.Key[len(p.prefix):]
			if !yield(pair, nil) {
				return
			}
		}
	}
}

func (p *prefixed) Close() error {
	return nil
}
