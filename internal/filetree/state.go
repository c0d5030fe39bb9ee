// Package filetree keeps a lazily loaded mirror of the remote node tree,
// one sibling sequence per parent key, and applies create/rename/delete to
// it once the remote authority confirms them.
package filetree

import (
	"maps"

	"github.com/fruitsalade/swalang/internal/models"
	"github.com/fruitsalade/swalang/internal/tree"
)

// CacheState is an immutable snapshot of the node cache. Sequences and maps
// are never modified after publication; transitions copy what they change.
type CacheState struct {
	// NodesByParent holds each loaded parent's children in display order.
	NodesByParent map[models.ParentKey][]models.Node
	Loading       map[models.ParentKey]bool
	Errors        map[models.ParentKey]error

	// ActionInFlight is set while a create, rename or delete is outstanding.
	// It is advisory: nothing rejects a second mutation.
	ActionInFlight bool
	// LastActionError is the failure of the most recent mutation, cleared
	// when the next one starts.
	LastActionError error

	// partial marks sequences created by a local insert before the parent
	// was ever listed. The next Load of such a key always fetches.
	partial    map[models.ParentKey]bool
	actions    int
	generation uint64
}

func emptyState() CacheState {
	return CacheState{
		NodesByParent: map[models.ParentKey][]models.Node{},
		Loading:       map[models.ParentKey]bool{},
		Errors:        map[models.ParentKey]error{},
		partial:       map[models.ParentKey]bool{},
	}
}

// clone copies the top-level maps. Sequences are shared; they are replaced,
// never edited.
func (s CacheState) clone() CacheState {
	s.NodesByParent = maps.Clone(s.NodesByParent)
	s.Loading = maps.Clone(s.Loading)
	s.Errors = maps.Clone(s.Errors)
	s.partial = maps.Clone(s.partial)
	return s
}

// Children returns the cached sequence for key and whether it is loaded.
func (s CacheState) Children(key models.ParentKey) ([]models.Node, bool) {
	nodes, ok := s.NodesByParent[key]
	return nodes, ok
}

// IsLoading reports whether a load for key is in flight.
func (s CacheState) IsLoading(key models.ParentKey) bool {
	return s.Loading[key]
}

// Err returns the error of the last load of key, if any.
func (s CacheState) Err(key models.ParentKey) error {
	return s.Errors[key]
}

// NodeCount returns the number of cached nodes across all keys.
func (s CacheState) NodeCount() int {
	return tree.CountNodes(s.NodesByParent)
}
