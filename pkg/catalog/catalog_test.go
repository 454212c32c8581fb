package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quiverdb/quiverdb/pkg/btree"
	"github.com/quiverdb/quiverdb/pkg/collation"
	"github.com/quiverdb/quiverdb/pkg/value"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	tree, err := btree.NewBTree(nil)
	require.NoError(t, err)
	return New(tree, nil)
}

func TestCreateAndFetchCollection(t *testing.T) {
	cat := newTestCatalog(t)

	_, err := cat.CreateCollection("widgets")
	require.NoError(t, err)

	_, err = cat.CreateCollection("widgets")
	require.ErrorIs(t, err, ErrCollectionExists)

	coll, err := cat.Collection("widgets")
	require.NoError(t, err)
	require.Equal(t, "widgets", coll.Name())
}

func TestInsertAssignsObjectIDAndRoundTrips(t *testing.T) {
	cat := newTestCatalog(t)
	coll, err := cat.CreateCollection("widgets")
	require.NoError(t, err)

	doc := value.NewDoc()
	require.NoError(t, doc.Set("name", value.NewString("sprocket")))

	id, err := coll.Insert(doc, collation.Invariant())
	require.NoError(t, err)
	require.False(t, id.IsNull())

	fetched, err := coll.Get(id)
	require.NoError(t, err)
	name, ok := fetched.Get("name")
	require.True(t, ok)
	require.Equal(t, "sprocket", name.AsString())
}

func TestCreateIndexRejectsNonIndexSafeExpression(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateCollection("widgets")
	require.NoError(t, err)

	require.NoError(t, cat.CreateIndex("widgets", "by_name", "$.name", false))
	require.Error(t, cat.CreateIndex("widgets", "by_calc", "$.a + $.b", false))
}

func TestInsertMaintainsIndexEntries(t *testing.T) {
	cat := newTestCatalog(t)
	coll, err := cat.CreateCollection("widgets")
	require.NoError(t, err)
	require.NoError(t, cat.CreateIndex("widgets", "by_name", "$.name", false))

	doc := value.NewDoc()
	require.NoError(t, doc.Set("name", value.NewString("sprocket")))
	_, err = coll.Insert(doc, collation.Invariant())
	require.NoError(t, err)

	snap, err := cat.Snapshot("widgets")
	require.NoError(t, err)
	idxs := snap.Indexes()
	require.Len(t, idxs, 1)
	require.Equal(t, int64(1), idxs[0].KeyCount)
}

func TestDropCollectionRemovesIndexes(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateCollection("widgets")
	require.NoError(t, err)
	require.NoError(t, cat.CreateIndex("widgets", "by_name", "$.name", false))

	require.NoError(t, cat.DropCollection("widgets"))
	_, err = cat.Collection("widgets")
	require.ErrorIs(t, err, ErrCollectionNotFound)
}
