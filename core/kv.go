package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/nasdf/osmdag/document"
	"github.com/nasdf/osmdag/oplog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Create writes the first version of a new document and returns its id.
func (db *DB) Create(ctx context.Context, value *document.Value, opts ...Option) (string, *oplog.Node, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", nil, err
	}
	n, err := db.Put(ctx, id.String(), value, opts...)
	if err != nil {
		return "", nil, err
	}
	return id.String(), n, nil
}

// Put writes a new version of the document with the given id.
//
// The new version supersedes the current heads unless WithLinks is given.
func (db *DB) Put(ctx context.Context, id string, value *document.Value, opts ...Option) (*oplog.Node, error) {
	o := applyOptions(opts)
	nodes, err := db.Batch(ctx, []document.Row{{
		Type:  document.RowPut,
		Key:   id,
		Value: value,
		Links: o.links,
	}})
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

// Del writes a deletion of the document with the given id.
//
// All current heads are deleted unless WithKeys is given.
func (db *DB) Del(ctx context.Context, id string, opts ...Option) (*oplog.Node, error) {
	o := applyOptions(opts)
	nodes, err := db.Batch(ctx, []document.Row{{
		Type:  document.RowDel,
		Key:   id,
		Links: o.keys,
	}})
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

// Get returns the head versions of the document with the given id.
//
// A deleted head is returned as a document with Deleted set and no value.
func (db *DB) Get(ctx context.Context, id string) (map[string]document.Document, error) {
	heads, err := db.Heads(ctx, id)
	if err != nil {
		return nil, err
	}
	recs, err := db.records(ctx, heads)
	if err != nil {
		return nil, err
	}
	out := make(map[string]document.Document, len(heads))
	for i, version := range heads {
		out[version] = recs[i].Document(version)
	}
	return out, nil
}

// Heads returns the sorted head versions of the document with the given id.
func (db *DB) Heads(ctx context.Context, id string) ([]string, error) {
	if err := db.heads.Ready(ctx); err != nil {
		return nil, err
	}
	heads, err := db.heads.Heads(ctx, id)
	if err != nil {
		return nil, err
	}
	slices.Sort(heads)
	return heads, nil
}

// Batch writes all of the given rows to the log atomically.
//
// Rows without a key are assigned a random id in place. Del rows are expanded
// into deletions that snapshot the geometry and references of the heads they
// remove. WithKeys selects the heads deleted by del rows that have no links of
// their own. No rows are written if any row fails to expand.
func (db *DB) Batch(ctx context.Context, rows []document.Row, opts ...Option) ([]*oplog.Node, error) {
	o := applyOptions(opts)
	for _, row := range rows {
		switch row.Type {
		case document.RowPut:
			if row.Value == nil {
				return nil, fmt.Errorf("put row %q requires a value", row.Key)
			}
		case document.RowDel:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnexpectedRowType, row.Type)
		}
	}
	for i := range rows {
		if rows[i].Key != "" {
			continue
		}
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, err
		}
		rows[i].Key = id.String()
	}

	var nodes []*oplog.Node
	err := db.withWriteLock(ctx, func() error {
		// heads must reflect every previous write before rows are expanded
		if err := db.heads.Ready(ctx); err != nil {
			return err
		}
		entries := make([]oplog.Entry, len(rows))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(fetchLimit)
		for i, row := range rows {
			if row.Type == document.RowDel && len(row.Links) == 0 {
				row.Links = o.keys
			}
			g.Go(func() error {
				entry, err := db.expand(gctx, row)
				entries[i] = entry
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		var err error
		nodes, err = db.log.AppendBatch(ctx, entries)
		if errors.Is(err, oplog.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		WriteCount.WithLabelValues(row.Type).Inc()
	}
	db.logger.Debug("batch written", "rows", len(rows), "seq", db.log.Seq())
	return nodes, nil
}

// expand returns the log entry for a single batch row.
func (db *DB) expand(ctx context.Context, row document.Row) (oplog.Entry, error) {
	if row.Type == document.RowDel {
		return db.deletion(ctx, row.Key, row.Links)
	}
	links := row.Links
	if len(links) == 0 {
		heads, err := db.heads.Heads(ctx, row.Key)
		if err != nil {
			return oplog.Entry{}, err
		}
		links = heads
	}
	rec := document.Record{Key: row.Key, Value: row.Value}
	value, err := rec.Encode()
	if err != nil {
		return oplog.Entry{}, err
	}
	return oplog.Entry{Value: value, Links: links}, nil
}

// deletion returns a log entry that deletes the selected heads of a document.
//
// The entry records the points, refs, and members of the deleted heads so the
// indexes can retract exactly what those heads contributed.
func (db *DB) deletion(ctx context.Context, id string, keys []string) (oplog.Entry, error) {
	selected := keys
	if len(selected) == 0 {
		heads, err := db.heads.Heads(ctx, id)
		if err != nil {
			return oplog.Entry{}, err
		}
		selected = heads
	}
	if len(selected) == 0 {
		return oplog.Entry{}, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	recs, err := db.records(ctx, selected)
	if err != nil {
		return oplog.Entry{}, err
	}
	rec := document.Record{Deleted: id}
	for _, prev := range recs {
		if prev.IsDeletion() {
			// the references registered by a deleted head must still be retracted
			rec.Refs = append(rec.Refs, prev.Refs...)
			rec.Members = append(rec.Members, prev.Members...)
			continue
		}
		if prev.Value.IsPoint() {
			rec.Points = append(rec.Points, prev.Value.Point())
		}
		rec.Refs = append(rec.Refs, prev.Value.Refs...)
		rec.Members = append(rec.Members, prev.Value.Members...)
	}
	value, err := rec.Encode()
	if err != nil {
		return oplog.Entry{}, err
	}
	return oplog.Entry{Value: value, Links: selected}, nil
}
