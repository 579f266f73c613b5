package index

import (
	"context"

	"github.com/nasdf/osmdag/document"
	"github.com/nasdf/osmdag/oplog"
	"github.com/nasdf/osmdag/storage"
)

// RefsName is the name of the reference index.
const RefsName = "refs"

var refsPrefix = []byte("r/")

// Referer is a document version that refers to another document.
type Referer struct {
	// Version is the version of the referring entry.
	Version string
	// ID is the id of the referring document.
	ID string
}

// Refs tracks which document versions refer to a document through refs or members.
type Refs struct {
	*Indexer
}

// NewRefs returns the reference index stored in store.
func NewRefs(ctx context.Context, log *oplog.Log, store storage.Store, opts Options) (*Refs, error) {
	r := &Refs{}
	x, err := NewIndexer(ctx, RefsName, log, store, r.mapEntry, opts.Logger)
	if err != nil {
		return nil, err
	}
	r.Indexer = x
	return r, nil
}

// Referers returns all versions currently registered as referring to the given document id.
func (r *Refs) Referers(ctx context.Context, id string) ([]Referer, error) {
	prefix := refKey(id, "")
	var referers []Referer
	for pair, err := range storage.ScanPrefix(ctx, r.store, prefix) {
		if err != nil {
			return nil, err
		}
		referers = append(referers, Referer{
			Version: string(pair.Key[len(prefix):]),
			ID:      string(pair.Value),
		})
	}
	return referers, nil
}

// mapEntry retracts the references of every superseded version.
//
// A deletion registers its own version under the references it retracts so
// that the deleted document can still be found from the documents it referred to.
func (r *Refs) mapEntry(ctx context.Context, n *oplog.Node, rec *document.Record, b *storage.Batch) error {
	for _, l := range n.Links {
		parent, err := r.log.Get(ctx, l)
		if err != nil {
			return err
		}
		prev, err := document.DecodeRecord(parent.Value)
		if err != nil {
			return err
		}
		for _, ref := range prev.References() {
			b.Delete(refKey(ref, l))
			if rec.IsDeletion() {
				b.Put(refKey(ref, n.Version), []byte(rec.Deleted))
			}
		}
	}
	if rec.IsDeletion() {
		return nil
	}
	for _, ref := range rec.References() {
		b.Put(refKey(ref, n.Version), []byte(rec.Key))
	}
	return nil
}

func refKey(ref, version string) []byte {
	key := make([]byte, 0, len(refsPrefix)+len(ref)+1+len(version))
	key = append(key, refsPrefix...)
	key = append(key, ref...)
	key = append(key, 0)
	return append(key, version...)
}
