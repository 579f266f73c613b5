package link

import (
	"bytes"
	"context"
	"testing"

	"github.com/nasdf/osmdag/storage"

	"github.com/ipld/go-car/v2"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := storage.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return NewStore(storage.NewBlocks(s))
}

func buildEntry(t *testing.T, name string, parents ...datamodel.Link) datamodel.Node {
	t.Helper()

	node, err := qp.BuildMap(basicnode.Prototype.Map, 2, func(ma datamodel.MapAssembler) {
		qp.MapEntry(ma, "name", qp.String(name))
		qp.MapEntry(ma, "links", qp.List(int64(len(parents)), func(la datamodel.ListAssembler) {
			for _, p := range parents {
				qp.ListEntry(la, qp.Link(p))
			}
		}))
	})
	require.NoError(t, err)
	return node
}

func TestStoreAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	node := buildEntry(t, "a")
	lnk, err := store.Store(ctx, node)
	require.NoError(t, err)

	computed, err := store.ComputeLink(node)
	require.NoError(t, err)
	assert.Equal(t, lnk.String(), computed.String())

	parsed, err := Parse(lnk.String())
	require.NoError(t, err)

	loaded, err := store.Load(ctx, parsed, basicnode.Prototype.Map)
	require.NoError(t, err)

	nameNode, err := loaded.LookupByString("name")
	require.NoError(t, err)
	name, err := nameNode.AsString()
	require.NoError(t, err)
	assert.Equal(t, "a", name)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	parent, err := store.Store(ctx, buildEntry(t, "parent"))
	require.NoError(t, err)

	child, err := store.Store(ctx, buildEntry(t, "child", parent))
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := store.Export(ctx, child.String(), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	br, err := car.NewBlockReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, br.Roots, 1)
	assert.Equal(t, child.String(), br.Roots[0].String())

	count := 0
	for {
		_, err := br.Next()
		if err != nil {
			break
		}
		count++
	}
	assert.Equal(t, 2, count)
}

func TestExportInvalidVersion(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Export(context.Background(), "not-a-cid", &bytes.Buffer{})
	require.Error(t, err)
}
