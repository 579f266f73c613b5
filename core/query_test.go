package core

import (
	"context"
	"testing"

	"github.com/nasdf/osmdag/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resultKey struct {
	ID      string
	Deleted bool
}

func resultKeys(docs []document.Document) []resultKey {
	keys := make([]resultKey, len(docs))
	for i, d := range docs {
		keys[i] = resultKey{ID: d.ID, Deleted: d.Deleted}
	}
	return keys
}

func resultIDs(docs []document.Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

func TestQueryPoints(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "inside", nodeValue(1, 1))
	require.NoError(t, err)
	_, err = db.Put(ctx, "outside", nodeValue(10, 10))
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"inside"}, resultIDs(docs))
}

func TestQueryDeletedPoint(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	del, err := db.Del(ctx, "n1")
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	// the live point is retracted and only the deletion is reported
	assert.Equal(t, document.Document{
		ID:      "n1",
		Version: del.Version,
		Deleted: true,
		Value:   nodeValue(1, 1),
	}, docs[0])
}

func TestQueryMovedPoint(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	_, err = db.Put(ctx, "n1", nodeValue(5, 5))
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestQueryWayIncludesAllNodes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	_, err = db.Put(ctx, "n2", nodeValue(50, 50))
	require.NoError(t, err)
	_, err = db.Put(ctx, "w1", wayValue("n1", "n2"))
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"n1", "n2", "w1"}, resultIDs(docs))
}

func TestQueryRelationClosure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	_, err = db.Put(ctx, "w1", wayValue("n1"))
	require.NoError(t, err)
	// the relation is a member of itself
	_, err = db.Put(ctx, "r1", relationValue("w1", "r1"))
	require.NoError(t, err)
	_, err = db.Put(ctx, "r2", relationValue("r1"))
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"n1", "w1", "r1", "r2"}, resultIDs(docs))
}

func TestQueryRelationCycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	_, err = db.Put(ctx, "r1", relationValue("n1", "r2"))
	require.NoError(t, err)
	_, err = db.Put(ctx, "r2", relationValue("r1"))
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"n1", "r1", "r2"}, resultIDs(docs))
}

func TestQuerySharedNodes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	_, err = db.Put(ctx, "n2", nodeValue(1.5, 1.5))
	require.NoError(t, err)
	_, err = db.Put(ctx, "w1", wayValue("n1", "n2"))
	require.NoError(t, err)
	_, err = db.Put(ctx, "w2", wayValue("n2", "n1"))
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"n1", "n2", "w1", "w2"}, resultIDs(docs))
}

func TestQueryConflictingHeads(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	w1, err := db.Put(ctx, "w1", wayValue("n1"))
	require.NoError(t, err)
	_, err = db.Put(ctx, "w1", wayValue("n1"), WithLinks(w1.Version))
	require.NoError(t, err)
	_, err = db.Put(ctx, "w1", &document.Value{Type: document.TypeWay, Refs: []string{"n1"}, Tags: map[string]string{"a": "b"}}, WithLinks(w1.Version))
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"n1", "w1", "w1"}, resultIDs(docs))
}

func TestQueryDeletedWay(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	_, err = db.Put(ctx, "w1", wayValue("n1"))
	require.NoError(t, err)
	_, err = db.Del(ctx, "w1")
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []resultKey{{ID: "n1"}, {ID: "w1", Deleted: true}}, resultKeys(docs))
}

func TestQueryMissingMember(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	_, err = db.Put(ctx, "w1", wayValue("n1", "missing"))
	require.NoError(t, err)

	_, err = db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestQueryOrderByType(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	_, err = db.Put(ctx, "n2", nodeValue(1.5, 1.5))
	require.NoError(t, err)
	_, err = db.Put(ctx, "w1", wayValue("n1", "n2"))
	require.NoError(t, err)
	_, err = db.Put(ctx, "r1", relationValue("w1"))
	require.NoError(t, err)
	_, err = db.Put(ctx, "n3", nodeValue(1.8, 1.8))
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2}, OrderByType())
	require.NoError(t, err)

	var types []string
	for _, d := range docs {
		types = append(types, d.Type())
	}
	assert.Equal(t, []string{
		document.TypeNode,
		document.TypeNode,
		document.TypeNode,
		document.TypeWay,
		document.TypeRelation,
	}, types)
}

func TestQueryStreamStopsEarly(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i := 0; i < 5; i++ {
		_, _, err := db.Create(ctx, nodeValue(float64(i)/10, 1))
		require.NoError(t, err)
	}

	count := 0
	for _, err := range db.QueryStream(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2}) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestQueryWayWithDeletedNode(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	_, err = db.Put(ctx, "n2", nodeValue(50, 50))
	require.NoError(t, err)
	_, err = db.Put(ctx, "w1", wayValue("n1", "n2"))
	require.NoError(t, err)
	del, err := db.Del(ctx, "n1")
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []resultKey{{ID: "n1", Deleted: true}, {ID: "w1"}, {ID: "n2"}}, resultKeys(docs))

	var deleted []document.Document
	for _, doc := range docs {
		if doc.ID == "n1" {
			deleted = append(deleted, doc)
		}
	}
	require.Len(t, deleted, 1)
	assert.Equal(t, document.Document{
		ID:      "n1",
		Version: del.Version,
		Deleted: true,
		Value:   nodeValue(1, 1),
	}, deleted[0])
}

func TestQueryWayMemberDeletedOutside(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Put(ctx, "n1", nodeValue(1, 1))
	require.NoError(t, err)
	_, err = db.Put(ctx, "n2", nodeValue(50, 50))
	require.NoError(t, err)
	_, err = db.Put(ctx, "w1", wayValue("n1", "n2"))
	require.NoError(t, err)
	del, err := db.Del(ctx, "n2")
	require.NoError(t, err)

	docs, err := db.Query(ctx, BBox{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	// the deleted member is reported once with its last known point
	assert.Contains(t, docs, document.Document{
		ID:      "n2",
		Version: del.Version,
		Deleted: true,
		Value:   nodeValue(50, 50),
	})
}
