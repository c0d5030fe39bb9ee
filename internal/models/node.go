// Package models contains the data types shared by the cache, the vote
// reconciler and every gateway binding.
package models

import "time"

// ParentKey identifies "children of X" in the node cache.
type ParentKey string

// RootKey is the parent key of top-level nodes.
const RootKey ParentKey = "root"

// KeyOf converts a nullable parent id to its cache key.
func KeyOf(parentID *string) ParentKey {
	if parentID == nil || *parentID == "" {
		return RootKey
	}
	return ParentKey(*parentID)
}

// Node represents a file or folder in the virtual tree.
type Node struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsFolder  bool      `json:"is_folder"`
	ParentID  *string   `json:"parent_id"`
	Content   *string   `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ParentKey returns the cache key of the sequence this node belongs to.
func (n Node) ParentKey() ParentKey {
	return KeyOf(n.ParentID)
}

// CreateDetails is the payload for creating a node.
type CreateDetails struct {
	Name     string  `json:"name"`
	IsFolder bool    `json:"is_folder"`
	ParentID *string `json:"parent_id"`
	Content  *string `json:"content,omitempty"`
}

// NodePatch holds the fields of an update. Nil fields are left unchanged.
type NodePatch struct {
	Name *string `json:"name,omitempty"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
