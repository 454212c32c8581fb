package catalog

import (
	"fmt"

	"github.com/quiverdb/quiverdb/pkg/btree"
	"github.com/quiverdb/quiverdb/pkg/collation"
	"github.com/quiverdb/quiverdb/pkg/value"
)

// Collection is a handle to one collection's document tree and the
// indexes maintained alongside it. Grounded on the teacher's table-scoped
// Insert/Update/Delete/Select (pkg/catalog.Catalog), re-targeted at
// documents instead of rows.
type Collection struct {
	name    string
	catalog *Catalog
	tree    *btree.BTree
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Insert stores doc, assigning a fresh ObjectId under "_id" when absent,
// and maintains every index registered on the collection.
func (c *Collection) Insert(doc *value.Doc, coll *collation.Collation) (value.Value, error) {
	id, ok := doc.Get("_id")
	if !ok || id.IsNull() {
		id = value.NewObjectID(value.GenerateObjectID())
		if err := doc.Set("_id", id); err != nil {
			return value.Value{}, err
		}
	}

	key, err := value.Encode(id)
	if err != nil {
		return value.Value{}, err
	}
	docBytes, err := value.Encode(value.NewDocument(doc))
	if err != nil {
		return value.Value{}, err
	}
	if err := c.tree.Put(key, docBytes); err != nil {
		return value.Value{}, err
	}

	if err := c.indexDocument(doc, id, coll); err != nil {
		return value.Value{}, err
	}
	return id, nil
}

// Get retrieves the document stored under id.
func (c *Collection) Get(id value.Value) (*value.Doc, error) {
	key, err := value.Encode(id)
	if err != nil {
		return nil, err
	}
	raw, err := c.tree.Get(key)
	if err != nil {
		return nil, fmt.Errorf("catalog: document %v not found: %w", id, err)
	}
	v, err := value.Decode(raw)
	if err != nil {
		return nil, err
	}
	return v.AsDocument(), nil
}

// Delete removes the document stored under id and its index entries.
func (c *Collection) Delete(id value.Value, coll *collation.Collation) error {
	doc, err := c.Get(id)
	if err != nil {
		return err
	}
	key, err := value.Encode(id)
	if err != nil {
		return err
	}
	if err := c.tree.Delete(key); err != nil {
		return err
	}
	return c.removeDocumentFromIndexes(doc, id, coll)
}

// Scan iterates every document in the collection in key order.
func (c *Collection) Scan() (*DocIterator, error) {
	it, err := c.tree.Scan(nil, nil)
	if err != nil {
		return nil, err
	}
	return &DocIterator{it: it}, nil
}

// DocIterator walks a collection's document tree, decoding values lazily.
type DocIterator struct {
	it *btree.Iterator
}

// Next returns the next document, or an error (including end-of-scan)
// once exhausted.
func (it *DocIterator) Next() (*value.Doc, error) {
	_, raw, err := it.it.Next()
	if err != nil {
		return nil, err
	}
	v, err := value.Decode(raw)
	if err != nil {
		return nil, err
	}
	return v.AsDocument(), nil
}

// Close releases the iterator.
func (it *DocIterator) Close() { it.it.Close() }

func (c *Collection) indexDocument(doc *value.Doc, id value.Value, coll *collation.Collation) error {
	c.catalog.mu.RLock()
	metas := c.catalog.indexes[c.name]
	trees := c.catalog.indexTrees[c.name]
	c.catalog.mu.RUnlock()

	for name, meta := range metas {
		keyTree := trees[name]
		vals, err := meta.compiled.Evaluate(nil, value.NewDocument(doc), value.NewDocument(doc), coll, nil)
		if err != nil {
			return err
		}
		for _, v := range vals {
			if err := putIndexEntry(keyTree, v, id, meta.Unique); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Collection) removeDocumentFromIndexes(doc *value.Doc, id value.Value, coll *collation.Collation) error {
	c.catalog.mu.RLock()
	metas := c.catalog.indexes[c.name]
	trees := c.catalog.indexTrees[c.name]
	c.catalog.mu.RUnlock()

	for name, meta := range metas {
		keyTree := trees[name]
		vals, err := meta.compiled.Evaluate(nil, value.NewDocument(doc), value.NewDocument(doc), coll, nil)
		if err != nil {
			return err
		}
		for _, v := range vals {
			if err := deleteIndexEntry(keyTree, v, id, meta.Unique); err != nil {
				return err
			}
		}
	}
	return nil
}

// putIndexEntry stores id under the encoded value v. Non-unique indexes
// suffix the stored key with the document id so every duplicate survives
// as its own B+Tree entry (a crude posting list of one entry each).
func putIndexEntry(tree *btree.BTree, v, id value.Value, unique bool) error {
	vb, err := value.Encode(v)
	if err != nil {
		return err
	}
	idb, err := value.Encode(id)
	if err != nil {
		return err
	}
	key := vb
	if !unique {
		key = append(append(vb, ':'), idb...)
	}
	return tree.Put(key, idb)
}

func deleteIndexEntry(tree *btree.BTree, v, id value.Value, unique bool) error {
	vb, err := value.Encode(v)
	if err != nil {
		return err
	}
	idb, err := value.Encode(id)
	if err != nil {
		return err
	}
	key := vb
	if !unique {
		key = append(append(vb, ':'), idb...)
	}
	return tree.Delete(key)
}
