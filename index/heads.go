package index

import (
	"context"

	"github.com/nasdf/osmdag/document"
	"github.com/nasdf/osmdag/oplog"
	"github.com/nasdf/osmdag/storage"
)

// HeadsName is the name of the heads index.
const HeadsName = "heads"

var headsPrefix = []byte("h/")

// Heads tracks the head versions of every document.
//
// A version stops being a head once an entry for the same document links to it.
type Heads struct {
	*Indexer
}

// NewHeads returns the heads index stored in store.
func NewHeads(ctx context.Context, log *oplog.Log, store storage.Store, opts Options) (*Heads, error) {
	h := &Heads{}
	x, err := NewIndexer(ctx, HeadsName, log, store, h.mapEntry, opts.Logger)
	if err != nil {
		return nil, err
	}
	h.Indexer = x
	return h, nil
}

// Heads returns the head versions of the document with the given id.
func (h *Heads) Heads(ctx context.Context, id string) ([]string, error) {
	prefix := headKey(id, "")
	var versions []string
	for pair, err := range storage.ScanPrefix(ctx, h.store, prefix) {
		if err != nil {
			return nil, err
		}
		versions = append(versions, string(pair.Key[len(prefix):]))
	}
	return versions, nil
}

func (h *Heads) mapEntry(ctx context.Context, n *oplog.Node, rec *document.Record, b *storage.Batch) error {
	id := rec.Owner()
	for _, l := range n.Links {
		b.Delete(headKey(id, l))
	}
	b.Put(headKey(id, n.Version), nil)
	return nil
}

func headKey(id, version string) []byte {
	key := make([]byte, 0, len(headsPrefix)+len(id)+1+len(version))
	key = append(key, headsPrefix...)
	key = append(key, id...)
	key = append(key, 0)
	return append(key, version...)
}
