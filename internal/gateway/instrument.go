package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/fruitsalade/swalang/internal/logging"
	"github.com/fruitsalade/swalang/internal/metrics"
	"github.com/fruitsalade/swalang/internal/models"
)

// Instrumented wraps a Gateway with call metrics and panic recovery.
// A panicking binding is reported as a KindUnknown error instead of
// unwinding through the caller.
type Instrumented struct {
	backend string
	next    Gateway
}

// Instrument wraps gw. backend labels the metrics.
func Instrument(backend string, gw Gateway) *Instrumented {
	return &Instrumented{backend: backend, next: gw}
}

func (g *Instrumented) observe(op string, start time.Time, errp *error) {
	if r := recover(); r != nil {
		logging.Error("gateway panic", logging.String("op", op), logging.String("panic", fmt.Sprint(r)))
		*errp = &Error{Kind: KindUnknown, Op: op, Message: fmt.Sprintf("panic: %v", r)}
	}
	metrics.RecordGatewayCall(g.backend, op, time.Since(start), *errp)
}

func (g *Instrumented) ListNodes(ctx context.Context, parentID *string) (nodes []models.Node, err error) {
	defer g.observe("list", time.Now(), &err)
	return g.next.ListNodes(ctx, parentID)
}

func (g *Instrumented) CreateNode(ctx context.Context, details models.CreateDetails) (node models.Node, err error) {
	defer g.observe("create", time.Now(), &err)
	return g.next.CreateNode(ctx, details)
}

func (g *Instrumented) UpdateNode(ctx context.Context, nodeID string, patch models.NodePatch) (node models.Node, err error) {
	defer g.observe("update", time.Now(), &err)
	return g.next.UpdateNode(ctx, nodeID, patch)
}

func (g *Instrumented) DeleteNode(ctx context.Context, nodeID string) (err error) {
	defer g.observe("delete", time.Now(), &err)
	return g.next.DeleteNode(ctx, nodeID)
}

func (g *Instrumented) CastVote(ctx context.Context, suggestionID string, value models.Vote) (err error) {
	defer g.observe("cast_vote", time.Now(), &err)
	return g.next.CastVote(ctx, suggestionID, value)
}

func (g *Instrumented) ListSuggestions(ctx context.Context) (out []models.Suggestion, err error) {
	defer g.observe("list_suggestions", time.Now(), &err)
	return g.next.ListSuggestions(ctx)
}
