package planner

import "github.com/quiverdb/quiverdb/pkg/index"

// Snapshot is the read-only view of a collection's indexes the optimizer
// consumes (spec.md §6.4). The underlying storage layer is responsible
// for guaranteeing the list observed during planning does not change.
type Snapshot interface {
	CollectionName() string
	Indexes() []*index.Descriptor
	// CostEstimator returns desc's get_cost(predicate) capability
	// (spec.md §6.4), bound to that descriptor's own key statistics.
	CostEstimator(desc *index.Descriptor) index.CostEstimator
}
