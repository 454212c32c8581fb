package catalog

import (
	"github.com/quiverdb/quiverdb/pkg/index"
)

// Snapshot exposes one collection's index set to the planner
// (planner.Snapshot, spec.md §6.4) without importing the planner package
// directly — catalog stays a leaf relative to planner.
type Snapshot struct {
	catalog    *Catalog
	collection string
}

// Snapshot returns a planner-facing view of collection's indexes. The view
// is not a copy: each Indexes call reads the catalog's live index set under
// its read lock, so it reflects CreateIndex/DropIndex calls made after the
// view was taken.
func (c *Catalog) Snapshot(collection string) (*Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, exists := c.collections[collection]; !exists {
		return nil, ErrCollectionNotFound
	}
	return &Snapshot{catalog: c, collection: collection}, nil
}

// CollectionName implements planner.Snapshot.
func (s *Snapshot) CollectionName() string { return s.collection }

// Indexes implements planner.Snapshot.
func (s *Snapshot) Indexes() []*index.Descriptor {
	s.catalog.mu.RLock()
	defer s.catalog.mu.RUnlock()

	metas := s.catalog.indexes[s.collection]
	trees := s.catalog.indexTrees[s.collection]
	out := make([]*index.Descriptor, 0, len(metas))
	for name, meta := range metas {
		out = append(out, &index.Descriptor{
			Name:       meta.Name,
			Expression: meta.compiled,
			Unique:     meta.Unique,
			KeyCount:   int64(trees[name].Size()),
			HeadNode:   trees[name],
		})
	}
	return out
}

// CostEstimator implements planner.Snapshot: it hands back desc's
// get_cost(predicate) capability (spec.md §6.4), bound to key statistics
// derived from desc itself. DistinctCount for a unique index is
// trivially its key count; for non-unique indexes it is estimated as the
// tree's size, since the crude in-memory B+Tree keeps one entry per
// (value, document id) pair rather than a true posting list the
// optimizer could consult for duplicate counts.
func (s *Snapshot) CostEstimator(desc *index.Descriptor) index.CostEstimator {
	stats := index.Stats{KeyCount: desc.KeyCount, DistinctCount: desc.KeyCount}
	return index.NewCostEstimator(desc, stats)
}
