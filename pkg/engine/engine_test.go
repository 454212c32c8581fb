package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quiverdb/quiverdb/pkg/expr"
	"github.com/quiverdb/quiverdb/pkg/planner"
	"github.com/quiverdb/quiverdb/pkg/txn"
	"github.com/quiverdb/quiverdb/pkg/value"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCompile(t *testing.T, source string) *expr.Node {
	t.Helper()
	n, err := expr.Compile(source)
	require.NoError(t, err)
	return n
}

func TestOpenInMemoryCreatesFreshDatabase(t *testing.T) {
	db := openTestDB(t)
	require.NotNil(t, db.catalog)
	require.Empty(t, db.catalog.ListCollections())
}

func TestCreateCollectionInsertAndGet(t *testing.T) {
	db := openTestDB(t)

	coll, err := db.CreateCollection("widgets")
	require.NoError(t, err)
	require.Equal(t, "widgets", coll.Name())

	doc := value.NewDoc()
	require.NoError(t, doc.Set("name", value.NewString("sprocket")))
	require.NoError(t, doc.Set("qty", value.NewInt64(3)))

	id, err := coll.Insert(doc)
	require.NoError(t, err)
	require.False(t, id.IsNull())

	fetched, err := coll.Get(id)
	require.NoError(t, err)
	name, ok := fetched.Get("name")
	require.True(t, ok)
	require.Equal(t, "sprocket", name.AsString())
}

func TestCollectionLookupOfUnknownNameFails(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Collection("missing")
	require.Error(t, err)
}

func TestExplainChoosesCreatedIndex(t *testing.T) {
	db := openTestDB(t)
	coll, err := db.CreateCollection("widgets")
	require.NoError(t, err)
	require.NoError(t, coll.CreateIndex("by_name", "$.name", false))

	q := &planner.Query{
		Select: mustCompile(t, "$"),
		Where:  []*expr.Node{mustCompile(t, "$.name = \"sprocket\"")},
	}

	plan, err := coll.Explain(q)
	require.NoError(t, err)
	require.Equal(t, "widgets", plan.Collection)
	require.Equal(t, "$.name", plan.IndexExpression)
}

func TestFindAppliesResidualFilters(t *testing.T) {
	db := openTestDB(t)
	coll, err := db.CreateCollection("widgets")
	require.NoError(t, err)

	for _, name := range []string{"sprocket", "cog", "widget"} {
		doc := value.NewDoc()
		require.NoError(t, doc.Set("name", value.NewString(name)))
		_, err := coll.Insert(doc)
		require.NoError(t, err)
	}

	q := &planner.Query{
		Select: mustCompile(t, "$"),
		Where:  []*expr.Node{mustCompile(t, "$.name = \"cog\"")},
	}

	cur, err := coll.Find(q)
	require.NoError(t, err)
	defer cur.Close()

	var names []string
	for cur.Next() {
		v, ok := cur.Document().Get("name")
		require.True(t, ok)
		names = append(names, v.AsString())
	}
	require.NoError(t, cur.Err())
	require.Equal(t, []string{"cog"}, names)
}

func TestDeleteRemovesDocument(t *testing.T) {
	db := openTestDB(t)
	coll, err := db.CreateCollection("widgets")
	require.NoError(t, err)

	doc := value.NewDoc()
	require.NoError(t, doc.Set("name", value.NewString("sprocket")))
	id, err := coll.Insert(doc)
	require.NoError(t, err)

	require.NoError(t, coll.Delete(id))
	_, err = coll.Get(id)
	require.Error(t, err)
}

func TestTxLockForUpdateParticipatesInConflictDetection(t *testing.T) {
	db := openTestDB(t)
	coll, err := db.CreateCollection("widgets")
	require.NoError(t, err)

	doc := value.NewDoc()
	require.NoError(t, doc.Set("name", value.NewString("sprocket")))
	id, err := coll.Insert(doc)
	require.NoError(t, err)

	idBytes, err := value.Encode(id)
	require.NoError(t, err)
	lockKey := "widgets:" + string(idBytes)

	reader, err := db.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, reader.LockForUpdate("widgets", id))

	writer, err := db.Begin(context.Background())
	require.NoError(t, err)
	writer.txn.SetWrite(lockKey, []byte("updated"))
	require.NoError(t, writer.Commit())

	require.ErrorIs(t, reader.Commit(), txn.ErrConflict)
}

func TestCompileHelperWrapsExprCompile(t *testing.T) {
	n, err := Compile("$.name")
	require.NoError(t, err)
	require.Equal(t, "$.name", n.Source())
}
