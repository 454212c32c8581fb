// Package engine assembles the storage, catalog, transaction, and planner
// packages into the embedded Database/Collection facade spec.md §1
// describes: compile an expression, explain a query's plan, run it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/quiverdb/quiverdb/pkg/btree"
	"github.com/quiverdb/quiverdb/pkg/catalog"
	"github.com/quiverdb/quiverdb/pkg/collation"
	"github.com/quiverdb/quiverdb/pkg/expr"
	"github.com/quiverdb/quiverdb/pkg/planner"
	"github.com/quiverdb/quiverdb/pkg/storage"
	"github.com/quiverdb/quiverdb/pkg/txn"
	"github.com/quiverdb/quiverdb/pkg/value"
)

var (
	ErrDatabaseClosed = errors.New("database is closed")
)

// DB is a single open database file (spec.md §1: single file, embedded).
type DB struct {
	path    string
	backend storage.Backend
	pool    *storage.BufferPool
	wal     *storage.WAL
	catalog *catalog.Catalog
	txnMgr  *txn.Manager
	root    *btree.BTree
	coll    *collation.Collation

	mu     sync.RWMutex
	closed bool
	opts   *Options
}

// Options configures an opened database.
type Options struct {
	CacheSize  int
	InMemory   bool
	WALEnabled bool
	Collation  *collation.Collation
}

// DefaultOptions returns sensible defaults: a disk-backed, case-sensitive
// database with WALEnabled set. WALEnabled only makes Open attach and
// replay "<path>.wal" when it reopens an existing file; a newly created
// database opens no WAL, and no write path appends records to one.
func DefaultOptions() *Options {
	return &Options{
		CacheSize:  1024,
		WALEnabled: true,
		Collation:  collation.Invariant(),
	}
}

// Open opens or creates the single-file database at path. ":memory:"
// (or Options.InMemory) opens an in-memory, non-durable database.
func Open(path string, opts *Options) (*DB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Collation == nil {
		opts.Collation = collation.Invariant()
	}

	var backend storage.Backend
	var err error
	if opts.InMemory || path == ":memory:" {
		backend = storage.NewMemory()
	} else {
		if dir := filepath.Dir(path); dir != "." && dir != "/" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create directory: %w", err)
			}
		}
		backend, err = storage.OpenDisk(path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	}

	db := &DB{path: path, backend: backend, opts: opts, coll: opts.Collation}
	db.pool = storage.NewBufferPool(opts.CacheSize, backend)

	if err := db.initialize(); err != nil {
		backend.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) initialize() error {
	if db.backend.Size() == 0 {
		return db.createNew()
	}
	return db.loadExisting()
}

func (db *DB) createNew() error {
	metaPage := storage.NewPage(0, storage.PageTypeMeta)
	meta := storage.NewMetaPage()

	tree, err := btree.NewBTree(db.pool)
	if err != nil {
		return fmt.Errorf("create catalog tree: %w", err)
	}
	db.root = tree
	meta.RootPageID = tree.RootPageID()
	meta.Serialize(metaPage.Data)

	if _, err := db.backend.WriteAt(metaPage.Data, 0); err != nil {
		return fmt.Errorf("write meta page: %w", err)
	}

	db.catalog = catalog.New(db.root, db.pool)
	db.txnMgr = txn.NewManager(db.pool, db.wal)
	return db.backend.Sync()
}

func (db *DB) loadExisting() error {
	metaPage := storage.NewPage(0, storage.PageTypeMeta)
	if _, err := db.backend.ReadAt(metaPage.Data, 0); err != nil {
		return fmt.Errorf("read meta page: %w", err)
	}

	var meta storage.MetaPage
	if err := meta.Deserialize(metaPage.Data); err != nil {
		return fmt.Errorf("deserialize meta page: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("invalid database file: %w", err)
	}

	if db.opts.WALEnabled && db.path != ":memory:" {
		wal, err := storage.OpenWAL(db.path + ".wal")
		if err != nil {
			return fmt.Errorf("open WAL: %w", err)
		}
		db.wal = wal
		db.pool.SetWAL(wal)
		if wal.LSN() > wal.CheckpointLSN() {
			if err := wal.Recover(db.pool); err != nil {
				return fmt.Errorf("recover from WAL: %w", err)
			}
		}
	}

	db.root = btree.OpenBTree(db.pool, meta.RootPageID)
	db.catalog = catalog.New(db.root, db.pool)
	db.txnMgr = txn.NewManager(db.pool, db.wal)

	return db.catalog.Load()
}

// Close flushes and closes the database.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	if err := db.pool.Close(); err != nil {
		return err
	}
	if db.wal != nil {
		if err := db.wal.Close(); err != nil {
			return err
		}
	}
	return db.backend.Close()
}

// CreateCollection registers a new collection.
func (db *DB) CreateCollection(name string) (*Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	coll, err := db.catalog.CreateCollection(name)
	if err != nil {
		return nil, err
	}
	return &Collection{db: db, coll: coll}, nil
}

// Collection looks up an existing collection.
func (db *DB) Collection(name string) (*Collection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	coll, err := db.catalog.Collection(name)
	if err != nil {
		return nil, err
	}
	return &Collection{db: db, coll: coll}, nil
}

// Begin starts a new transaction.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	return &Tx{db: db, txn: db.txnMgr.Begin(txn.DefaultOptions())}, nil
}

// Collection is a handle bundling a catalog.Collection with the database
// it belongs to, so expression/plan operations have a collation and
// transaction manager to hand.
type Collection struct {
	db   *DB
	coll *catalog.Collection
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.coll.Name() }

// Insert adds doc to the collection.
func (c *Collection) Insert(doc *value.Doc) (value.Value, error) {
	return c.coll.Insert(doc, c.db.coll)
}

// Get fetches a document by id.
func (c *Collection) Get(id value.Value) (*value.Doc, error) {
	return c.coll.Get(id)
}

// Delete removes a document by id.
func (c *Collection) Delete(id value.Value) error {
	return c.coll.Delete(id, c.db.coll)
}

// CreateIndex compiles expression under compile_for_index rules and
// registers a new index.
func (c *Collection) CreateIndex(name, expression string, unique bool) error {
	return c.db.catalog.CreateIndex(c.coll.Name(), name, expression, unique)
}

// Explain compiles q against the collection's current indexes and
// returns the chosen plan without running it (spec.md §1: "explain a
// query's plan").
func (c *Collection) Explain(q *planner.Query) (*planner.Plan, error) {
	snap, err := c.db.catalog.Snapshot(c.coll.Name())
	if err != nil {
		return nil, err
	}
	return planner.Optimize(q, snap)
}

// Find runs q and returns a cursor over the matching documents.
func (c *Collection) Find(q *planner.Query) (*Cursor, error) {
	plan, err := c.Explain(q)
	if err != nil {
		return nil, err
	}
	it, err := c.coll.Scan()
	if err != nil {
		return nil, err
	}
	return &Cursor{coll: c.coll, it: it, plan: plan, query: q, db: c.db}, nil
}

// Cursor iterates the documents selected by a Find. It scans the full
// collection tree, not the plan's chosen index, and keeps each document
// for which every WHERE term of the query is truthy (including the term
// the plan's index consumed). No projection is applied.
type Cursor struct {
	coll  *catalog.Collection
	it    *catalog.DocIterator
	plan  *planner.Plan
	query *planner.Query
	db    *DB

	current *value.Doc
	err     error
}

// Next advances the cursor, applying the query's WHERE terms, and reports
// whether a new document is available.
func (cur *Cursor) Next() bool {
	for {
		doc, err := cur.it.Next()
		if err != nil {
			cur.err = nil // end of scan, not a failure
			return false
		}
		if cur.matches(doc) {
			cur.current = doc
			return true
		}
	}
}

func (cur *Cursor) matches(doc *value.Doc) bool {
	root := value.NewDocument(doc)
	for _, f := range cur.query.Where {
		v, err := f.ExecuteScalar(root, cur.db.coll, nil)
		if err != nil || !v.Truthy() {
			return false
		}
	}
	return true
}

// Document returns the document at the cursor's current position.
func (cur *Cursor) Document() *value.Doc { return cur.current }

// Err returns the error recorded during iteration. Next records none: the
// underlying iterator reports the end of the collection as an error, so
// Next treats every iterator error as the end of the scan and Err always
// returns nil.
func (cur *Cursor) Err() error { return cur.err }

// Close releases the cursor's underlying iterator.
func (cur *Cursor) Close() { cur.it.Close() }

// Tx is a handle to an in-flight transaction (spec.md §3.5's for_update
// flows through txn.Transaction.LockForUpdate).
type Tx struct {
	db  *DB
	txn *txn.Transaction
}

// LockForUpdate marks id as read-for-write within the transaction.
func (tx *Tx) LockForUpdate(collection string, id value.Value) error {
	key, err := value.Encode(id)
	if err != nil {
		return err
	}
	tx.txn.LockForUpdate(collection + ":" + string(key))
	return nil
}

// Commit commits the transaction.
func (tx *Tx) Commit() error { return tx.txn.Commit() }

// Rollback aborts the transaction.
func (tx *Tx) Rollback() error { return tx.txn.Rollback() }

// Compile compiles a standalone expression against the database's
// collation-free grammar (spec.md §4.2): a convenience wrapper so
// callers don't need to import pkg/expr directly for one-off use.
func Compile(source string) (*expr.Node, error) { return expr.Compile(source) }
