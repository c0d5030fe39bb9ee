// Package memory provides an in-process remote authority. It enforces the
// rules a hosted backend would (sibling-name uniqueness, existing parents,
// one vote per user) and supports failure injection for tests and demos.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fruitsalade/swalang/internal/gateway"
	"github.com/fruitsalade/swalang/internal/models"
)

// Op names used by Calls and FailNext.
const (
	OpList            = "list"
	OpCreate          = "create"
	OpUpdate          = "update"
	OpDelete          = "delete"
	OpCastVote        = "cast_vote"
	OpListSuggestions = "list_suggestions"
)

type suggestionRow struct {
	models.Suggestion
	base  int // score contributed by votes outside this ledger
	votes map[string]models.Vote
}

// Gateway is an in-memory gateway.Gateway.
type Gateway struct {
	mu          sync.Mutex
	userID      string
	nodes       map[string]models.Node
	suggestions map[string]*suggestionRow
	order       []string // suggestion ids in insertion order
	calls       map[string]int
	failures    map[string][]error
	latency     time.Duration
	hook        func(ctx context.Context, op string)
	now         func() time.Time
}

// New creates an empty gateway acting on behalf of userID.
func New(userID string) *Gateway {
	return &Gateway{
		userID:      userID,
		nodes:       make(map[string]models.Node),
		suggestions: make(map[string]*suggestionRow),
		calls:       make(map[string]int),
		failures:    make(map[string][]error),
		now:         time.Now,
	}
}

// SetLatency delays every call by d (honouring ctx).
func (g *Gateway) SetLatency(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.latency = d
}

// SetHook installs fn, called at the start of every operation before any
// state is read. Tests use it to hold calls in flight.
func (g *Gateway) SetHook(fn func(ctx context.Context, op string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hook = fn
}

// FailNext makes the next call of op return err. Queued failures are
// consumed in order.
func (g *Gateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = append(g.failures[op], err)
}

// Calls returns how many times op was invoked.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// SeedSuggestion adds a suggestion whose score already includes votes from
// other users. UserVote on s is recorded as this user's vote.
func (g *Gateway) SeedSuggestion(s models.Suggestion) models.Suggestion {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = g.now()
	}
	row := &suggestionRow{
		Suggestion: s,
		base:       s.Score - int(s.UserVote),
		votes:      make(map[string]models.Vote),
	}
	if s.UserVote != models.VoteNone {
		row.votes[g.userID] = s.UserVote
	}
	g.suggestions[s.ID] = row
	g.order = append(g.order, s.ID)
	return s
}

// Suggestion returns the authoritative state of one suggestion.
func (g *Gateway) Suggestion(id string) (models.Suggestion, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	row, ok := g.suggestions[id]
	if !ok {
		return models.Suggestion{}, false
	}
	return g.viewLocked(row), true
}

// SetUserVote records a vote from another user, as if cast by a second client.
func (g *Gateway) SetUserVote(suggestionID, userID string, v models.Vote) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if row, ok := g.suggestions[suggestionID]; ok {
		if v == models.VoteNone {
			delete(row.votes, userID)
		} else {
			row.votes[userID] = v
		}
	}
}

func (g *Gateway) enter(ctx context.Context, op string) error {
	g.mu.Lock()
	g.calls[op]++
	hook := g.hook
	latency := g.latency
	var injected error
	if queue := g.failures[op]; len(queue) > 0 {
		injected = queue[0]
		g.failures[op] = queue[1:]
	}
	g.mu.Unlock()

	if hook != nil {
		hook(ctx, op)
	}
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return gateway.Network(op, ctx.Err())
		}
	}
	return injected
}

// ListNodes implements gateway.NodeGateway.
func (g *Gateway) ListNodes(ctx context.Context, parentID *string) ([]models.Node, error) {
	if err := g.enter(ctx, OpList); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	key := models.KeyOf(parentID)
	out := []models.Node{}
	for _, n := range g.nodes {
		if n.ParentKey() == key {
			out = append(out, n)
		}
	}
	// Remote order is by creation time, not display order.
	slices.SortFunc(out, func(a, b models.Node) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// CreateNode implements gateway.NodeGateway.
func (g *Gateway) CreateNode(ctx context.Context, d models.CreateDetails) (models.Node, error) {
	if err := g.enter(ctx, OpCreate); err != nil {
		return models.Node{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	name := strings.TrimSpace(d.Name)
	if name == "" {
		return models.Node{}, gateway.Validation(OpCreate, "name is required")
	}
	if d.ParentID != nil && *d.ParentID != "" {
		parent, ok := g.nodes[*d.ParentID]
		if !ok {
			return models.Node{}, gateway.NotFound(OpCreate, "parent "+*d.ParentID+" does not exist")
		}
		if !parent.IsFolder {
			return models.Node{}, gateway.Validation(OpCreate, "parent is not a folder")
		}
	}
	key := models.KeyOf(d.ParentID)
	if g.siblingExistsLocked(key, name, "") {
		return models.Node{}, gateway.Validation(OpCreate, "a node named "+name+" already exists")
	}

	now := g.now()
	n := models.Node{
		ID:        uuid.NewString(),
		Name:      name,
		IsFolder:  d.IsFolder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if key != models.RootKey {
		n.ParentID = models.StringPtr(string(key))
	}
	if !d.IsFolder {
		content := ""
		if d.Content != nil {
			content = *d.Content
		}
		n.Content = &content
	}
	g.nodes[n.ID] = n
	return n, nil
}

// UpdateNode implements gateway.NodeGateway.
func (g *Gateway) UpdateNode(ctx context.Context, nodeID string, patch models.NodePatch) (models.Node, error) {
	if err := g.enter(ctx, OpUpdate); err != nil {
		return models.Node{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[nodeID]
	if !ok {
		return models.Node{}, gateway.NotFound(OpUpdate, "node "+nodeID+" does not exist")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return models.Node{}, gateway.Validation(OpUpdate, "name is required")
		}
		if g.siblingExistsLocked(n.ParentKey(), name, n.ID) {
			return models.Node{}, gateway.Validation(OpUpdate, "a node named "+name+" already exists")
		}
		n.Name = name
	}
	n.UpdatedAt = g.now()
	g.nodes[nodeID] = n
	return n, nil
}

// DeleteNode implements gateway.NodeGateway. Folders are removed with
// their descendants.
func (g *Gateway) DeleteNode(ctx context.Context, nodeID string) error {
	if err := g.enter(ctx, OpDelete); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[nodeID]; !ok {
		return gateway.NotFound(OpDelete, "node "+nodeID+" does not exist")
	}
	g.deleteLocked(nodeID)
	return nil
}

func (g *Gateway) deleteLocked(id string) {
	delete(g.nodes, id)
	for childID, n := range g.nodes {
		if n.ParentID != nil && *n.ParentID == id {
			g.deleteLocked(childID)
		}
	}
}

func (g *Gateway) siblingExistsLocked(key models.ParentKey, name, exceptID string) bool {
	for _, n := range g.nodes {
		if n.ID != exceptID && n.ParentKey() == key && strings.EqualFold(n.Name, name) {
			return true
		}
	}
	return false
}

// CastVote implements gateway.VoteGateway.
func (g *Gateway) CastVote(ctx context.Context, suggestionID string, value models.Vote) error {
	if err := g.enter(ctx, OpCastVote); err != nil {
		return err
	}
	if !value.Valid() {
		return gateway.Validation(OpCastVote, "vote must be -1, 0 or 1")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	row, ok := g.suggestions[suggestionID]
	if !ok {
		return gateway.NotFound(OpCastVote, "suggestion "+suggestionID+" does not exist")
	}
	if value == models.VoteNone {
		delete(row.votes, g.userID)
	} else {
		row.votes[g.userID] = value
	}
	return nil
}

// ListSuggestions implements gateway.VoteGateway.
func (g *Gateway) ListSuggestions(ctx context.Context) ([]models.Suggestion, error) {
	if err := g.enter(ctx, OpListSuggestions); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]models.Suggestion, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.viewLocked(g.suggestions[id]))
	}
	return out, nil
}

func (g *Gateway) viewLocked(row *suggestionRow) models.Suggestion {
	s := row.Suggestion
	s.Score = row.base
	for _, v := range row.votes {
		s.Score += int(v)
	}
	s.UserVote = row.votes[g.userID]
	return s
}
