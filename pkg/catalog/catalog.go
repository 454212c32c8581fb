// Package catalog manages collection and index metadata, grounded on the
// teacher's table/index bookkeeping but re-scoped from relational tables
// to spec.md's document collections and expression-keyed indexes.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/quiverdb/quiverdb/pkg/btree"
	"github.com/quiverdb/quiverdb/pkg/expr"
	"github.com/quiverdb/quiverdb/pkg/storage"
)

var (
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrIndexExists        = errors.New("index already exists")
	ErrIndexNotFound      = errors.New("index not found")
)

// CollectionDef is the persisted record of one collection. A collection's
// index set starts empty: CreateCollection registers no "_id" index, and
// only CreateIndex adds entries to it.
type CollectionDef struct {
	Name       string `json:"name"`
	CreatedAt  int64  `json:"created_at"`
	RootPageID uint32 `json:"root_page_id"`
}

// IndexMeta is the persisted record backing an index.Descriptor. The
// expression is stored as canonical source text and recompiled with
// expr.CompileForIndex on load, since *expr.Node itself is not what gets
// serialized to the catalog tree.
type IndexMeta struct {
	Name       string `json:"name"`
	Collection string `json:"collection"`
	Expression string `json:"expression"`
	Unique     bool   `json:"unique"`
	RootPageID uint32 `json:"root_page_id"`

	compiled *expr.Node // recompiled on create/Load, never serialized
}

// Catalog owns collection and index metadata plus the B+Trees backing
// them. Grounded on the teacher's pkg/catalog.Catalog: a root metadata
// tree keyed by "col:"/"idx:" prefixes, with one data B+Tree per
// collection and one key B+Tree per index.
type Catalog struct {
	mu sync.RWMutex

	tree *btree.BTree
	pool *storage.BufferPool

	collections     map[string]*CollectionDef
	collectionTrees map[string]*btree.BTree

	indexes     map[string]map[string]*IndexMeta
	indexTrees  map[string]map[string]*btree.BTree
}

// New creates a catalog backed by tree for metadata and pool for any new
// B+Trees it allocates.
func New(tree *btree.BTree, pool *storage.BufferPool) *Catalog {
	return &Catalog{
		tree:            tree,
		pool:            pool,
		collections:     make(map[string]*CollectionDef),
		collectionTrees: make(map[string]*btree.BTree),
		indexes:         make(map[string]map[string]*IndexMeta),
		indexTrees:      make(map[string]map[string]*btree.BTree),
	}
}

// CreateCollection registers a new collection and allocates its data tree.
func (c *Catalog) CreateCollection(name string) (*Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.collections[name]; exists {
		return nil, ErrCollectionExists
	}

	dataTree, err := btree.NewBTree(c.pool)
	if err != nil {
		return nil, err
	}

	def := &CollectionDef{Name: name, RootPageID: dataTree.RootPageID()}
	if err := c.storeCollectionDef(def); err != nil {
		return nil, err
	}

	c.collections[name] = def
	c.collectionTrees[name] = dataTree
	c.indexes[name] = make(map[string]*IndexMeta)
	c.indexTrees[name] = make(map[string]*btree.BTree)

	return &Collection{name: name, catalog: c, tree: dataTree}, nil
}

// Collection looks up an existing collection handle.
func (c *Catalog) Collection(name string) (*Collection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tree, exists := c.collectionTrees[name]
	if !exists {
		return nil, ErrCollectionNotFound
	}
	return &Collection{name: name, catalog: c, tree: tree}, nil
}

// DropCollection removes a collection and all of its indexes.
func (c *Catalog) DropCollection(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.collections[name]; !exists {
		return ErrCollectionNotFound
	}

	for idxName := range c.indexes[name] {
		_ = c.tree.Delete(indexKey(name, idxName))
	}

	delete(c.collections, name)
	delete(c.collectionTrees, name)
	delete(c.indexes, name)
	delete(c.indexTrees, name)

	return c.tree.Delete(collectionKey(name))
}

// ListCollections returns every registered collection name.
func (c *Catalog) ListCollections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.collections))
	for name := range c.collections {
		names = append(names, name)
	}
	return names
}

// CreateIndex compiles expression under compile_for_index rules
// (spec.md §6.1) and registers a new index on collection.
func (c *Catalog) CreateIndex(collection, name, expression string, unique bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.collections[collection]; !exists {
		return ErrCollectionNotFound
	}
	if _, exists := c.indexes[collection][name]; exists {
		return ErrIndexExists
	}

	compiled, err := expr.CompileForIndex(expression)
	if err != nil {
		return err
	}

	keyTree, err := btree.NewBTree(c.pool)
	if err != nil {
		return err
	}

	meta := &IndexMeta{
		Name:       name,
		Collection: collection,
		Expression: compiled.Source(),
		Unique:     unique,
		RootPageID: keyTree.RootPageID(),
		compiled:   compiled,
	}
	if err := c.storeIndexMeta(meta); err != nil {
		return err
	}

	c.indexes[collection][name] = meta
	c.indexTrees[collection][name] = keyTree
	return nil
}

// DropIndex removes an index from a collection.
func (c *Catalog) DropIndex(collection, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.indexes[collection][name]; !exists {
		return ErrIndexNotFound
	}

	delete(c.indexes[collection], name)
	delete(c.indexTrees[collection], name)
	return c.tree.Delete(indexKey(collection, name))
}

func collectionKey(name string) []byte { return []byte("col:" + name) }
func indexKey(collection, name string) []byte {
	return []byte("idx:" + collection + ":" + name)
}

func (c *Catalog) storeCollectionDef(def *CollectionDef) error {
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	if c.tree == nil {
		return nil
	}
	return c.tree.Put(collectionKey(def.Name), data)
}

func (c *Catalog) storeIndexMeta(meta *IndexMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if c.tree == nil {
		return nil
	}
	return c.tree.Put(indexKey(meta.Collection, meta.Name), data)
}

// Load rehydrates collection and index metadata from the catalog tree,
// grounded on the teacher's Load (scan-by-prefix, json.Unmarshal into the
// def type). Data trees and index key trees are freshly allocated rather
// than reopened by page id, matching the fidelity of the teacher's own
// OpenBTree (which likewise does not replay page contents).
func (c *Catalog) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tree == nil {
		return nil
	}

	iter, err := c.tree.Scan([]byte("col:"), []byte("col:~"))
	if err != nil {
		return err
	}
	for {
		key, value, err := iter.Next()
		if err != nil || key == nil {
			break
		}
		var def CollectionDef
		if err := json.Unmarshal(value, &def); err != nil {
			iter.Close()
			return fmt.Errorf("catalog: decode collection %q: %w", key, err)
		}
		tree, err := btree.NewBTree(c.pool)
		if err != nil {
			iter.Close()
			return err
		}
		c.collections[def.Name] = &def
		c.collectionTrees[def.Name] = tree
		if c.indexes[def.Name] == nil {
			c.indexes[def.Name] = make(map[string]*IndexMeta)
			c.indexTrees[def.Name] = make(map[string]*btree.BTree)
		}
	}
	iter.Close()

	iter, err = c.tree.Scan([]byte("idx:"), []byte("idx:~"))
	if err != nil {
		return err
	}
	defer iter.Close()
	for {
		key, value, err := iter.Next()
		if err != nil || key == nil {
			break
		}
		if !bytes.HasPrefix(key, []byte("idx:")) {
			continue // Scan starts at the first key, not at "idx:"
		}
		var meta IndexMeta
		if err := json.Unmarshal(value, &meta); err != nil {
			return fmt.Errorf("catalog: decode index: %w", err)
		}
		compiled, err := expr.CompileForIndex(meta.Expression)
		if err != nil {
			return fmt.Errorf("catalog: recompile index %q: %w", meta.Name, err)
		}
		meta.compiled = compiled
		keyTree, err := btree.NewBTree(c.pool)
		if err != nil {
			return err
		}
		if c.indexes[meta.Collection] == nil {
			c.indexes[meta.Collection] = make(map[string]*IndexMeta)
			c.indexTrees[meta.Collection] = make(map[string]*btree.BTree)
		}
		c.indexes[meta.Collection][meta.Name] = &meta
		c.indexTrees[meta.Collection][meta.Name] = keyTree
	}

	return nil
}
