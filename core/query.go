package core

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/nasdf/osmdag/document"
	"github.com/nasdf/osmdag/index"

	"golang.org/x/sync/errgroup"
)

// BBox is an inclusive geographic bounding box.
type BBox = index.BBox

// Query returns every document within the bounding box along with the ways and
// relations that refer to them and the other nodes of those ways.
func (db *DB) Query(ctx context.Context, bbox BBox, opts ...Option) ([]document.Document, error) {
	var docs []document.Document
	for doc, err := range db.QueryStream(ctx, bbox, opts...) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// QueryStream returns the results of Query as they are resolved.
//
// When ordering by type, nodes are returned as soon as they are found while
// ways and relations are returned in order after all matches are resolved.
func (db *DB) QueryStream(ctx context.Context, bbox BBox, opts ...Option) iter.Seq2[document.Document, error] {
	o := applyOptions(opts)
	return func(yield func(document.Document, error) bool) {
		start := time.Now()
		defer func() {
			QueryDuration.Observe(time.Since(start).Seconds())
		}()

		if err := db.Ready(ctx); err != nil {
			yield(document.Document{}, err)
			return
		}
		c := newClosure(db)
		var buffered []document.Document
		for m, err := range db.spatial.QueryStream(ctx, bbox) {
			if err != nil {
				yield(document.Document{}, err)
				return
			}
			docs, err := c.collect(ctx, m.Version)
			if err != nil {
				yield(document.Document{}, err)
				return
			}
			for _, doc := range docs {
				if o.order == OrderType && doc.Type() != document.TypeNode {
					buffered = append(buffered, doc)
					continue
				}
				QueryResults.Inc()
				if !yield(doc, nil) {
					return
				}
			}
		}
		document.SortByType(buffered)
		for _, doc := range buffered {
			QueryResults.Inc()
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// closure collects documents connected to spatial matches.
//
// Its state is shared across all matches of a single query so that no version
// is processed and no document is returned more than once.
type closure struct {
	db *DB
	// seen contains versions that have been processed.
	seen map[string]struct{}
	// expanded contains ids of way members whose heads have been returned.
	expanded map[string]struct{}
	// emitted contains the id and version of returned documents.
	emitted map[string]struct{}
	out     []document.Document
}

func newClosure(db *DB) *closure {
	return &closure{
		db:       db,
		seen:     make(map[string]struct{}),
		expanded: make(map[string]struct{}),
		emitted:  make(map[string]struct{}),
	}
}

// collect returns the documents connected to the given version that have not
// been returned by a previous call.
func (c *closure) collect(ctx context.Context, version string) ([]document.Document, error) {
	c.out = nil
	if !c.visit(version) {
		return nil, nil
	}
	rec, err := c.db.record(ctx, version)
	if err != nil {
		return nil, err
	}
	if rec.IsDeletion() {
		c.emit(rec, version)
	} else if err := c.add(ctx, rec, version); err != nil {
		return nil, err
	}
	if err := c.climb(ctx, rec.Owner()); err != nil {
		return nil, err
	}
	return c.out, nil
}

// climb adds every document that refers to the given id, then the documents
// that refer to those, until no unseen referers remain.
func (c *closure) climb(ctx context.Context, id string) error {
	referers, err := c.db.refs.Referers(ctx, id)
	if err != nil {
		return err
	}
	var pending []index.Referer
	for _, r := range referers {
		if c.visit(r.Version) {
			pending = append(pending, r)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	versions := make([]string, len(pending))
	for i, r := range pending {
		versions[i] = r.Version
	}
	recs, err := c.db.records(ctx, versions)
	if err != nil {
		return err
	}
	for i, rec := range recs {
		if rec.IsDeletion() {
			c.emit(rec, versions[i])
		} else if err := c.addHeads(ctx, rec.Key, versions[i]); err != nil {
			return err
		}
		if err := c.climb(ctx, rec.Owner()); err != nil {
			return err
		}
	}
	return nil
}

// addHeads adds every current head of the document with the given id.
//
// Concurrent heads are all returned. The fallback version is used when the
// document has no heads.
func (c *closure) addHeads(ctx context.Context, id string, fallback string) error {
	heads, err := c.db.heads.Heads(ctx, id)
	if err != nil {
		return err
	}
	if len(heads) == 0 {
		heads = []string{fallback}
	}
	slices.Sort(heads)
	recs, err := c.db.records(ctx, heads)
	if err != nil {
		return err
	}
	for i, rec := range recs {
		c.visit(heads[i])
		if rec.IsDeletion() {
			c.emit(rec, heads[i])
			continue
		}
		if err := c.add(ctx, rec, heads[i]); err != nil {
			return err
		}
	}
	return nil
}

// add adds a live document. A way also adds the heads of all of its nodes
// that have not been visited yet.
func (c *closure) add(ctx context.Context, rec *document.Record, version string) error {
	c.emit(rec, version)
	if len(rec.Value.Refs) == 0 {
		return nil
	}
	var members []string
	for _, ref := range rec.Value.Refs {
		if _, ok := c.expanded[ref]; ok {
			continue
		}
		c.expanded[ref] = struct{}{}
		members = append(members, ref)
	}
	heads := make([][]string, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for i, ref := range members {
		g.Go(func() error {
			versions, err := c.db.heads.Heads(gctx, ref)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				return fmt.Errorf("%w: member %s of %s", ErrNotFound, ref, rec.Key)
			}
			slices.Sort(versions)
			heads[i] = versions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	var pending []string
	for _, versions := range heads {
		for _, v := range versions {
			if c.visit(v) {
				pending = append(pending, v)
			}
		}
	}
	recs, err := c.db.records(ctx, pending)
	if err != nil {
		return err
	}
	for i, member := range recs {
		c.emit(member, pending[i])
	}
	return nil
}

// visit marks the version as seen and returns false if it was already seen.
func (c *closure) visit(version string) bool {
	if _, ok := c.seen[version]; ok {
		return false
	}
	c.seen[version] = struct{}{}
	return true
}

// emit adds the documents of a record unless the same id and version was
// already returned. A deletion with a point snapshot is returned as one deleted
// node per point.
func (c *closure) emit(rec *document.Record, version string) {
	key := rec.Owner() + "\x00" + version
	if _, ok := c.emitted[key]; ok {
		return
	}
	c.emitted[key] = struct{}{}
	if !rec.IsDeletion() || len(rec.Points) == 0 {
		c.out = append(c.out, rec.Document(version))
		return
	}
	for _, p := range rec.Points {
		c.out = append(c.out, document.Document{
			ID:      rec.Deleted,
			Version: version,
			Deleted: true,
			Value:   &document.Value{Type: document.TypeNode, Lat: p.Lat, Lon: p.Lon},
		})
	}
}
