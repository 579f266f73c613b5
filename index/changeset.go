package index

import (
	"context"

	"github.com/nasdf/osmdag/document"
	"github.com/nasdf/osmdag/oplog"
	"github.com/nasdf/osmdag/storage"
)

// ChangesetName is the name of the changeset index.
const ChangesetName = "changeset"

var changesetPrefix = []byte("c/")

// Changeset records the documents written under each changeset.
//
// Membership is never retracted.
type Changeset struct {
	*Indexer
}

// NewChangeset returns the changeset index stored in store.
func NewChangeset(ctx context.Context, log *oplog.Log, store storage.Store, opts Options) (*Changeset, error) {
	c := &Changeset{}
	x, err := NewIndexer(ctx, ChangesetName, log, store, c.mapEntry, opts.Logger)
	if err != nil {
		return nil, err
	}
	c.Indexer = x
	return c, nil
}

// List returns the ids of documents written under the given changeset.
//
// An id is returned once for every version written under the changeset.
func (c *Changeset) List(ctx context.Context, changeset string) ([]string, error) {
	var ids []string
	for pair, err := range storage.ScanPrefix(ctx, c.store, changesetKey(changeset, "")) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, string(pair.Value))
	}
	return ids, nil
}

func (c *Changeset) mapEntry(ctx context.Context, n *oplog.Node, rec *document.Record, b *storage.Batch) error {
	cs := rec.Changeset()
	if cs == "" {
		return nil
	}
	b.Put(changesetKey(cs, n.Version), []byte(rec.Key))
	return nil
}

func changesetKey(changeset, version string) []byte {
	key := make([]byte, 0, len(changesetPrefix)+len(changeset)+1+len(version))
	key = append(key, changesetPrefix...)
	key = append(key, changeset...)
	key = append(key, 0)
	return append(key, version...)
}
