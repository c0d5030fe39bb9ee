// Package gateway defines the contract between the sync core and the remote
// authority that owns nodes and suggestions.
package gateway

import (
	"context"

	"github.com/fruitsalade/swalang/internal/models"
)

// NodeGateway is the remote CRUD contract for nodes.
type NodeGateway interface {
	// ListNodes returns the children of parentID (nil = root) in any order.
	ListNodes(ctx context.Context, parentID *string) ([]models.Node, error)
	CreateNode(ctx context.Context, details models.CreateDetails) (models.Node, error)
	UpdateNode(ctx context.Context, nodeID string, patch models.NodePatch) (models.Node, error)
	DeleteNode(ctx context.Context, nodeID string) error
}

// VoteGateway is the remote contract for suggestions and votes.
type VoteGateway interface {
	// CastVote records this session's vote; VoteNone clears it.
	CastVote(ctx context.Context, suggestionID string, value models.Vote) error
	// ListSuggestions returns every suggestion with this session's vote.
	ListSuggestions(ctx context.Context) ([]models.Suggestion, error)
}

// Gateway is the full remote contract.
type Gateway interface {
	NodeGateway
	VoteGateway
}
