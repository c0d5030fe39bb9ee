// Package tree provides ordering and copy-on-write helpers for sibling
// sequences of the node cache. Every function returns a new slice and never
// modifies its input.
package tree

import (
	"slices"
	"strings"

	"github.com/fruitsalade/swalang/internal/models"
)

// Compare orders folders before files, then names case-insensitively.
// Exact name and id break ties so the order is total.
func Compare(a, b models.Node) int {
	if a.IsFolder != b.IsFolder {
		if a.IsFolder {
			return -1
		}
		return 1
	}
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// Sorted returns a sorted copy of nodes.
func Sorted(nodes []models.Node) []models.Node {
	out := slices.Clone(nodes)
	if out == nil {
		out = []models.Node{}
	}
	slices.SortStableFunc(out, Compare)
	return out
}

// IsSorted reports whether nodes satisfy the display order.
func IsSorted(nodes []models.Node) bool {
	return slices.IsSortedFunc(nodes, Compare)
}

// Insert returns a sorted copy of nodes with n added.
func Insert(nodes []models.Node, n models.Node) []models.Node {
	out := make([]models.Node, 0, len(nodes)+1)
	out = append(out, nodes...)
	out = append(out, n)
	slices.SortStableFunc(out, Compare)
	return out
}

// IndexByID returns the position of the node with the given id, or -1.
func IndexByID(nodes []models.Node, id string) int {
	return slices.IndexFunc(nodes, func(n models.Node) bool { return n.ID == id })
}

// Replace returns a sorted copy with the node sharing n's id replaced by n.
// ok is false when no such node exists; the input is returned unchanged.
func Replace(nodes []models.Node, n models.Node) (out []models.Node, ok bool) {
	i := IndexByID(nodes, n.ID)
	if i < 0 {
		return nodes, false
	}
	out = slices.Clone(nodes)
	out[i] = n
	slices.SortStableFunc(out, Compare)
	return out, true
}

// Remove returns a copy of nodes without the node with the given id.
func Remove(nodes []models.Node, id string) (out []models.Node, ok bool) {
	i := IndexByID(nodes, id)
	if i < 0 {
		return nodes, false
	}
	out = make([]models.Node, 0, len(nodes)-1)
	out = append(out, nodes[:i]...)
	out = append(out, nodes[i+1:]...)
	return out, true
}

// Names returns the node names in order.
func Names(nodes []models.Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}

// CountNodes counts all nodes across every cached sequence.
func CountNodes(byParent map[models.ParentKey][]models.Node) int {
	count := 0
	for _, nodes := range byParent {
		count += len(nodes)
	}
	return count
}

// FindByID searches every cached sequence for a node.
func FindByID(byParent map[models.ParentKey][]models.Node, id string) (models.Node, bool) {
	for _, nodes := range byParent {
		if i := IndexByID(nodes, id); i >= 0 {
			return nodes[i], true
		}
	}
	return models.Node{}, false
}
