package test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/quiverdb/quiverdb/pkg/engine"
	"github.com/quiverdb/quiverdb/pkg/expr"
	"github.com/quiverdb/quiverdb/pkg/planner"
	"github.com/quiverdb/quiverdb/pkg/value"
)

func openDB(t testing.TB, cacheSize int) *engine.DB {
	t.Helper()
	db, err := engine.Open(":memory:", &engine.Options{InMemory: true, CacheSize: cacheSize})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	return db
}

func mustExpr(t testing.TB, source string) *expr.Node {
	t.Helper()
	n, err := expr.Compile(source)
	if err != nil {
		t.Fatalf("compile %q: %v", source, err)
	}
	return n
}

func insertValueDoc(t testing.TB, coll *engine.Collection, id int, name string) {
	t.Helper()
	doc := value.NewDoc()
	if err := doc.Set("seq", value.NewInt64(int64(id))); err != nil {
		t.Fatalf("set seq: %v", err)
	}
	if err := doc.Set("value", value.NewString(name)); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if _, err := coll.Insert(doc); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func countAll(t testing.TB, coll *engine.Collection) int {
	t.Helper()
	cur, err := coll.Find(&planner.Query{Select: mustExpr(t, "$")})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	defer cur.Close()

	count := 0
	for cur.Next() {
		count++
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error: %v", err)
	}
	return count
}

func TestConcurrentInserts(t *testing.T) {
	db := openDB(t, 1024*1024)
	defer db.Close()

	coll, err := db.CreateCollection("concurrent_test")
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	numGoroutines := 10
	insertsPerGoroutine := 100
	var wg sync.WaitGroup
	errCh := make(chan error, numGoroutines*insertsPerGoroutine)

	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()
			for i := 0; i < insertsPerGoroutine; i++ {
				doc := value.NewDoc()
				doc.Set("seq", value.NewInt64(int64(goroutineID*insertsPerGoroutine+i)))
				doc.Set("value", value.NewString(fmt.Sprintf("value-%d-%d", goroutineID, i)))
				if _, err := coll.Insert(doc); err != nil {
					errCh <- err
				}
			}
		}(g)
	}

	wg.Wait()
	close(errCh)

	errorCount := 0
	for err := range errCh {
		t.Errorf("insert error: %v", err)
		errorCount++
		if errorCount > 10 {
			t.Fatalf("too many errors, stopping")
		}
	}

	expected := numGoroutines * insertsPerGoroutine
	if got := countAll(t, coll); got != expected {
		t.Errorf("expected %d documents, got %d", expected, got)
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	db := openDB(t, 1024*1024)
	defer db.Close()

	coll, err := db.CreateCollection("rw_test")
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	for i := 0; i < 100; i++ {
		insertValueDoc(t, coll, i, fmt.Sprintf("value-%d", i))
	}

	var wg sync.WaitGroup
	duration := 2 * time.Second
	start := time.Now()

	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func(writerID int) {
			defer wg.Done()
			n := 0
			for time.Since(start) < duration {
				insertValueDoc(t, coll, n, fmt.Sprintf("writer-%d-%d", writerID, n))
				n++
			}
		}(w)
	}

	for r := 0; r < 5; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Since(start) < duration {
				cur, err := coll.Find(&planner.Query{Select: mustExpr(t, "$")})
				if err == nil {
					for cur.Next() {
					}
					cur.Close()
				}
			}
		}()
	}

	wg.Wait()
}

func TestTransactionIsolation(t *testing.T) {
	db := openDB(t, 1024*1024)
	defer db.Close()

	coll, err := db.CreateCollection("isolation_test")
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	doc := value.NewDoc()
	doc.Set("value", value.NewString("initial"))
	id, err := coll.Insert(doc)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	ctx := context.Background()
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.LockForUpdate("isolation_test", id); err != nil {
		tx.Rollback()
		t.Fatalf("lock for update: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	fetched, err := coll.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	v, ok := fetched.Get("value")
	if !ok || v.AsString() != "initial" {
		t.Errorf("expected value %q, got %v (ok=%v)", "initial", v, ok)
	}
}

func TestLargeDataset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large dataset test in short mode")
	}

	db := openDB(t, 10*1024*1024)
	defer db.Close()

	coll, err := db.CreateCollection("large_test")
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	numDocs := 10000
	start := time.Now()
	for i := 0; i < numDocs; i++ {
		doc := value.NewDoc()
		doc.Set("name", value.NewString(fmt.Sprintf("name-%d", i)))
		doc.Set("value", value.NewDouble(float64(i)*1.5))
		if _, err := coll.Insert(doc); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	insertDuration := time.Since(start)
	t.Logf("inserted %d documents in %v (%.0f docs/sec)",
		numDocs, insertDuration, float64(numDocs)/insertDuration.Seconds())

	start = time.Now()
	count := countAll(t, coll)
	queryDuration := time.Since(start)
	t.Logf("scanned %d documents in %v (%.0f docs/sec)",
		count, queryDuration, float64(count)/queryDuration.Seconds())

	if count != numDocs {
		t.Errorf("expected %d documents, got %d", numDocs, count)
	}
}

func TestBatchInsert(t *testing.T) {
	db := openDB(t, 1024*1024)
	defer db.Close()

	coll, err := db.CreateCollection("batch_test")
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	batchSize := 1000
	for i := 0; i < batchSize; i++ {
		insertValueDoc(t, coll, i, fmt.Sprintf("batch-value-%d", i))
	}

	if got := countAll(t, coll); got != batchSize {
		t.Errorf("expected %d documents, got %d", batchSize, got)
	}
}

func TestMultipleCollections(t *testing.T) {
	db := openDB(t, 1024*1024)
	defer db.Close()

	numCollections := 10
	for i := 0; i < numCollections; i++ {
		name := fmt.Sprintf("collection_%d", i)
		coll, err := db.CreateCollection(name)
		if err != nil {
			t.Fatalf("create collection %s: %v", name, err)
		}
		doc := value.NewDoc()
		doc.Set("data", value.NewString(fmt.Sprintf("data-%d", i)))
		if _, err := coll.Insert(doc); err != nil {
			t.Fatalf("insert into %s: %v", name, err)
		}
	}

	for i := 0; i < numCollections; i++ {
		name := fmt.Sprintf("collection_%d", i)
		coll, err := db.Collection(name)
		if err != nil {
			t.Fatalf("lookup collection %s: %v", name, err)
		}
		if got := countAll(t, coll); got != 1 {
			t.Errorf("expected 1 document in %s, got %d", name, got)
		}
	}
}

func TestConnectionResilience(t *testing.T) {
	db := openDB(t, 1024*1024)
	defer db.Close()

	coll, err := db.CreateCollection("resilience")
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	for i := 0; i < 100; i++ {
		doc := value.NewDoc()
		doc.Set("seq", value.NewInt64(int64(i)))
		if _, err := coll.Insert(doc); err != nil {
			t.Errorf("insert %d failed: %v", i, err)
		}

		cur, err := coll.Find(&planner.Query{Select: mustExpr(t, "$")})
		if err != nil {
			t.Errorf("find %d failed: %v", i, err)
			continue
		}
		for cur.Next() {
		}
		cur.Close()
	}

	if got := countAll(t, coll); got != 100 {
		t.Errorf("expected 100 documents, got %d", got)
	}
}
