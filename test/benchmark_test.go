package test

import (
	"context"
	"fmt"
	"testing"

	"github.com/quiverdb/quiverdb/pkg/engine"
	"github.com/quiverdb/quiverdb/pkg/planner"
	"github.com/quiverdb/quiverdb/pkg/value"
)

func benchCollection(b *testing.B, name string, cacheSize int) (*engine.DB, *engine.Collection) {
	b.Helper()
	db, err := engine.Open(":memory:", &engine.Options{InMemory: true, CacheSize: cacheSize})
	if err != nil {
		b.Fatal(err)
	}
	coll, err := db.CreateCollection(name)
	if err != nil {
		b.Fatal(err)
	}
	return db, coll
}

func BenchmarkInsert(b *testing.B) {
	db, coll := benchCollection(b, "bench", 10*1024*1024)
	defer db.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doc := value.NewDoc()
		doc.Set("seq", value.NewInt64(int64(i)))
		doc.Set("value", value.NewString(fmt.Sprintf("value-%d", i)))
		coll.Insert(doc)
	}
	b.StopTimer()
}

func BenchmarkInsertBatch(b *testing.B) {
	db, coll := benchCollection(b, "bench_batch", 10*1024*1024)
	defer db.Close()

	ctx := context.Background()
	batchSize := 100

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tx, _ := db.Begin(ctx)
		for j := 0; j < batchSize; j++ {
			doc := value.NewDoc()
			doc.Set("seq", value.NewInt64(int64(i*batchSize+j)))
			doc.Set("value", value.NewString(fmt.Sprintf("value-%d", i*batchSize+j)))
			coll.Insert(doc)
		}
		tx.Commit()
	}
	b.StopTimer()
}

func BenchmarkFind(b *testing.B) {
	db, coll := benchCollection(b, "bench_select", 10*1024*1024)
	defer db.Close()

	numDocs := 10000
	for i := 0; i < numDocs; i++ {
		doc := value.NewDoc()
		doc.Set("seq", value.NewInt64(int64(i)))
		doc.Set("value", value.NewString(fmt.Sprintf("value-%d", i)))
		coll.Insert(doc)
	}

	sel, _ := engine.Compile("$")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cur, _ := coll.Find(&planner.Query{Select: sel})
		cur.Close()
	}
	b.StopTimer()
}

func BenchmarkFindWithScan(b *testing.B) {
	db, coll := benchCollection(b, "bench_scan", 10*1024*1024)
	defer db.Close()

	numDocs := 1000
	for i := 0; i < numDocs; i++ {
		doc := value.NewDoc()
		doc.Set("seq", value.NewInt64(int64(i)))
		doc.Set("value", value.NewString(fmt.Sprintf("value-%d", i)))
		coll.Insert(doc)
	}

	sel, _ := engine.Compile("$")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cur, _ := coll.Find(&planner.Query{Select: sel})
		for cur.Next() {
			_ = cur.Document()
		}
		cur.Close()
	}
	b.StopTimer()
}

func BenchmarkCreateCollection(b *testing.B) {
	db, err := engine.Open(":memory:", &engine.Options{InMemory: true, CacheSize: 1024 * 1024})
	if err != nil {
		b.Fatal(err)
	}
	defer db.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		name := fmt.Sprintf("collection_%d", i)
		db.CreateCollection(name)
	}
	b.StopTimer()
}

func BenchmarkTransaction(b *testing.B) {
	db, coll := benchCollection(b, "bench_tx", 10*1024*1024)
	defer db.Close()

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doc := value.NewDoc()
		doc.Set("seq", value.NewInt64(int64(i)))
		id, _ := coll.Insert(doc)

		tx, _ := db.Begin(ctx)
		tx.LockForUpdate("bench_tx", id)
		tx.Commit()
	}
	b.StopTimer()
}

func BenchmarkConcurrentInsert(b *testing.B) {
	db, coll := benchCollection(b, "bench_concurrent", 10*1024*1024)
	defer db.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			doc := value.NewDoc()
			doc.Set("seq", value.NewInt64(int64(i)))
			doc.Set("value", value.NewString(fmt.Sprintf("value-%d", i)))
			coll.Insert(doc)
			i++
		}
	})
	b.StopTimer()
}

func BenchmarkConcurrentRead(b *testing.B) {
	db, coll := benchCollection(b, "bench_read", 10*1024*1024)
	defer db.Close()

	for i := 0; i < 1000; i++ {
		doc := value.NewDoc()
		doc.Set("seq", value.NewInt64(int64(i)))
		doc.Set("value", value.NewString(fmt.Sprintf("value-%d", i)))
		coll.Insert(doc)
	}

	sel, _ := engine.Compile("$")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			cur, _ := coll.Find(&planner.Query{Select: sel})
			cur.Close()
		}
	})
}
