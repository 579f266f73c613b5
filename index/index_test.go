package index

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/nasdf/osmdag/document"
	"github.com/nasdf/osmdag/link"
	"github.com/nasdf/osmdag/oplog"
	"github.com/nasdf/osmdag/storage"

	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store     storage.Store
	log       *oplog.Log
	heads     *Heads
	refs      *Refs
	spatial   *Spatial
	changeset *Changeset
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := storage.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return openTestEnv(t, s)
}

func openTestEnv(t *testing.T, s storage.Store) *testEnv {
	t.Helper()
	ctx := context.Background()

	links := link.NewStore(storage.NewBlocks(storage.Prefix(s, "b")))
	log, err := oplog.Open(ctx, links, storage.Prefix(s, "log"), oplog.Options{})
	require.NoError(t, err)

	env := &testEnv{store: s, log: log}
	env.heads, err = NewHeads(ctx, log, storage.Prefix(s, "kv"), Options{})
	require.NoError(t, err)
	env.refs, err = NewRefs(ctx, log, storage.Prefix(s, "r"), Options{})
	require.NoError(t, err)
	env.spatial, err = NewSpatial(ctx, log, storage.Prefix(s, "s"), Options{})
	require.NoError(t, err)
	env.changeset, err = NewChangeset(ctx, log, storage.Prefix(s, "c"), Options{})
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{}, 4)
	for _, x := range []*Indexer{env.heads.Indexer, env.refs.Indexer, env.spatial.Indexer, env.changeset.Indexer} {
		go func() {
			x.Run(runCtx)
			done <- struct{}{}
		}()
	}
	t.Cleanup(func() {
		cancel()
		for i := 0; i < 4; i++ {
			<-done
		}
	})
	return env
}

func (e *testEnv) append(t *testing.T, rec document.Record, links ...string) string {
	t.Helper()

	value, err := rec.Encode()
	require.NoError(t, err)
	n, err := e.log.Append(context.Background(), value, links)
	require.NoError(t, err)
	return n.Version
}

func (e *testEnv) ready(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	for _, x := range []*Indexer{e.heads.Indexer, e.refs.Indexer, e.spatial.Indexer, e.changeset.Indexer} {
		require.NoError(t, x.Ready(ctx))
	}
}

func node(id string, lat, lon float64) document.Record {
	return document.Record{Key: id, Value: &document.Value{Type: document.TypeNode, Lat: lat, Lon: lon}}
}

func way(id string, refs ...string) document.Record {
	return document.Record{Key: id, Value: &document.Value{Type: document.TypeWay, Refs: refs}}
}

func TestHeads(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	v1 := env.append(t, node("n1", 1, 1))
	env.ready(t)

	heads, err := env.heads.Heads(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{v1}, heads)

	v2 := env.append(t, node("n1", 2, 2), v1)
	v3 := env.append(t, node("n1", 3, 3), v1)
	env.ready(t)

	heads, err = env.heads.Heads(ctx, "n1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{v2, v3}, heads)

	v4 := env.append(t, document.Record{Deleted: "n1"}, v2, v3)
	env.ready(t)

	heads, err = env.heads.Heads(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{v4}, heads)

	heads, err = env.heads.Heads(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, heads)
}

func TestRefs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	w1 := env.append(t, way("w1", "n1", "n2"))
	env.ready(t)

	referers, err := env.refs.Referers(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, []Referer{{Version: w1, ID: "w1"}}, referers)

	w2 := env.append(t, way("w1", "n2", "n3"), w1)
	env.ready(t)

	referers, err = env.refs.Referers(ctx, "n1")
	require.NoError(t, err)
	assert.Empty(t, referers)

	referers, err = env.refs.Referers(ctx, "n3")
	require.NoError(t, err)
	assert.Equal(t, []Referer{{Version: w2, ID: "w1"}}, referers)

	w3 := env.append(t, document.Record{Deleted: "w1", Refs: []string{"n2", "n3"}}, w2)
	env.ready(t)

	// a deletion registers itself under the references it retracts
	referers, err = env.refs.Referers(ctx, "n2")
	require.NoError(t, err)
	assert.Equal(t, []Referer{{Version: w3, ID: "w1"}}, referers)
}

func TestRefsMembers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	r1 := env.append(t, document.Record{Key: "r1", Value: &document.Value{
		Type:    document.TypeRelation,
		Members: []document.Member{{Ref: "w1", Role: "outer"}, {Ref: "r1"}},
	}})
	env.ready(t)

	referers, err := env.refs.Referers(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, []Referer{{Version: r1, ID: "r1"}}, referers)

	referers, err = env.refs.Referers(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []Referer{{Version: r1, ID: "r1"}}, referers)
}

func TestSpatial(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	n1 := env.append(t, node("n1", 10, 10))
	n2 := env.append(t, node("n2", -10, -10))
	env.append(t, node("n3", 10, 50))
	env.ready(t)

	matches, err := env.spatial.Query(ctx, BBox{MinLat: -20, MinLon: -20, MaxLat: 20, MaxLon: 20})
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Version: n2, Point: document.Point{Lat: -10, Lon: -10}},
		{Version: n1, Point: document.Point{Lat: 10, Lon: 10}},
	}, matches)

	// moving a node retracts its old point
	n1b := env.append(t, node("n1", 30, 30), n1)
	env.ready(t)

	matches, err = env.spatial.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 40, MaxLon: 40})
	require.NoError(t, err)
	assert.Equal(t, []Match{{Version: n1b, Point: document.Point{Lat: 30, Lon: 30}}}, matches)

	// deleting a node replaces the live point with the deletion snapshot
	del := env.append(t, document.Record{Deleted: "n2", Points: []document.Point{{Lat: -10, Lon: -10}}}, n2)
	env.ready(t)

	matches, err = env.spatial.Query(ctx, BBox{MinLat: -20, MinLon: -20, MaxLat: 0, MaxLon: 0})
	require.NoError(t, err)
	assert.Equal(t, []Match{{Version: del, Point: document.Point{Lat: -10, Lon: -10}}}, matches)

	matches, err = env.spatial.Query(ctx, BBox{MinLat: 1, MinLon: 1, MaxLat: 0, MaxLon: 0})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSpatialInclusiveBounds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	v := env.append(t, node("n1", 5, 5))
	env.ready(t)

	matches, err := env.spatial.Query(ctx, BBox{MinLat: 5, MinLon: 5, MaxLat: 5, MaxLon: 5})
	require.NoError(t, err)
	assert.Equal(t, []Match{{Version: v, Point: document.Point{Lat: 5, Lon: 5}}}, matches)
}

func TestChangeset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, id := range []string{"a", "b", "c"} {
		env.append(t, document.Record{Key: id, Value: &document.Value{Type: document.TypeNode, Changeset: "cs1"}})
	}
	env.append(t, document.Record{Key: "d", Value: &document.Value{Type: document.TypeNode, Changeset: "cs2"}})
	env.ready(t)

	ids, err := env.changeset.List(ctx, "cs1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

func TestIndexerResume(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewMemory()
	require.NoError(t, err)
	defer s.Close()

	env := openTestEnv(t, s)
	env.append(t, node("n1", 1, 1))
	env.ready(t)
	assert.Equal(t, uint64(1), env.heads.Seq())

	reopened := openTestEnv(t, s)
	assert.Equal(t, uint64(1), reopened.heads.Seq())
	require.NoError(t, reopened.heads.Ready(ctx))
}

func TestIndexerReadyIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.append(t, node("n1", 1, 1))
	env.ready(t)
	seq := env.spatial.Seq()

	env.ready(t)
	require.NoError(t, env.spatial.Ready(ctx))
	assert.Equal(t, seq, env.spatial.Seq())
}

func TestIndexerFailure(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewMemory()
	require.NoError(t, err)
	defer s.Close()

	links := link.NewStore(storage.NewBlocks(storage.Prefix(s, "b")))
	log, err := oplog.Open(ctx, links, storage.Prefix(s, "log"), oplog.Options{})
	require.NoError(t, err)

	failure := errors.New("boom")
	x, err := NewIndexer(ctx, "failing", log, storage.Prefix(s, "x"), func(context.Context, *oplog.Node, *document.Record, *storage.Batch) error {
		return failure
	}, nil)
	require.NoError(t, err)

	value, err := node("n1", 1, 1).Encode()
	require.NoError(t, err)
	_, err = log.Append(ctx, value, nil)
	require.NoError(t, err)

	err = x.Run(ctx)
	require.ErrorIs(t, err, failure)
	require.ErrorIs(t, x.Err(), failure)
	require.ErrorIs(t, x.Ready(ctx), failure)
}

func TestIndexerInvalidRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.log.Append(ctx, basicnode.NewString("not a record"), nil)
	require.NoError(t, err)

	require.Error(t, env.heads.Ready(ctx))
	require.Error(t, env.heads.Err())
}

func TestEncodeFloatOrder(t *testing.T) {
	values := []float64{math.Inf(-1), -180, -1.5, -0.0001, 0, 0.0001, 1.5, 180, math.Inf(1)}
	for i := 1; i < len(values); i++ {
		assert.Less(t, encodeFloat(values[i-1]), encodeFloat(values[i]))
	}
	for _, v := range values {
		assert.Equal(t, v, decodeFloat(encodeFloat(v)))
	}
	assert.Equal(t, encodeFloat(0), encodeFloat(math.Copysign(0, -1)))
}
