// Package votes mirrors suggestion scores and this session's votes. Votes
// are applied locally at once and sent to the remote afterwards; a failed
// remote cast is recorded but not rolled back.
package votes

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/fruitsalade/swalang/internal/gateway"
	"github.com/fruitsalade/swalang/internal/logging"
	"github.com/fruitsalade/swalang/internal/metrics"
	"github.com/fruitsalade/swalang/internal/models"
	"github.com/fruitsalade/swalang/internal/serial"
	"github.com/fruitsalade/swalang/internal/store"
)

var (
	ErrUnknownSuggestion = errors.New("unknown suggestion")
	ErrInvalidVote       = errors.New("vote must be -1, 0 or 1")
)

// Resolve computes the effect of requesting a vote when the current vote is
// current. Requesting the current vote again clears it.
func Resolve(current, requested models.Vote) (effective models.Vote, delta int) {
	effective = requested
	if requested == current {
		effective = models.VoteNone
	}
	return effective, int(effective) - int(current)
}

// VoteState is an immutable snapshot of the mirrored suggestions.
type VoteState struct {
	Suggestions map[string]models.Suggestion
	// Order lists suggestion ids in the order the remote returned them.
	Order []string
	// Errors holds the last failed remote cast per suggestion. Local state
	// for those suggestions may differ from the remote until the next Load.
	Errors  map[string]error
	Loading bool
	LoadErr error

	generation uint64
}

func emptyState() VoteState {
	return VoteState{
		Suggestions: map[string]models.Suggestion{},
		Errors:      map[string]error{},
	}
}

func (s VoteState) clone() VoteState {
	s.Suggestions = maps.Clone(s.Suggestions)
	s.Errors = maps.Clone(s.Errors)
	return s
}

// List returns the suggestions in remote order.
func (s VoteState) List() []models.Suggestion {
	out := make([]models.Suggestion, 0, len(s.Order))
	for _, id := range s.Order {
		out = append(out, s.Suggestions[id])
	}
	return out
}

// Options configures a Reconciler.
type Options struct {
	// ReloadOnFailure reloads every suggestion from the remote after a
	// failed cast, replacing the optimistic score. Off by default: the
	// optimistic value stays until the next explicit Load.
	ReloadOnFailure bool
}

// Reconciler tracks per-suggestion votes and scores for one session.
type Reconciler struct {
	gw    gateway.VoteGateway
	opts  Options
	state *store.Store[VoteState]
	queue *serial.Queue
}

// New creates an empty Reconciler backed by gw.
func New(gw gateway.VoteGateway, opts Options) *Reconciler {
	return &Reconciler{
		gw:    gw,
		opts:  opts,
		state: store.New("votes", emptyState),
		queue: serial.NewQueue(),
	}
}

// State returns the last committed snapshot.
func (r *Reconciler) State() VoteState {
	return r.state.State()
}

// Subscribe registers fn to receive every committed snapshot.
func (r *Reconciler) Subscribe(fn store.Listener[VoteState]) (unsubscribe func()) {
	return r.state.Subscribe(fn)
}

// Get returns one suggestion.
func (r *Reconciler) Get(id string) (models.Suggestion, bool) {
	s, ok := r.State().Suggestions[id]
	return s, ok
}

// Reset clears all mirrored suggestions. Loads and casts still in flight
// complete against the remote but no longer change the mirror.
func (r *Reconciler) Reset() {
	r.state.Update(func(s VoteState) VoteState {
		next := emptyState()
		next.generation = s.generation + 1
		return next
	})
}

// Load replaces the mirror with the remote's current suggestions, scores
// and votes. This is the only operation that reconciles a diverged score.
func (r *Reconciler) Load(ctx context.Context) error {
	var gen uint64
	r.state.Update(func(s VoteState) VoteState {
		next := s.clone()
		next.Loading = true
		next.LoadErr = nil
		gen = next.generation
		return next
	})

	list, err := r.gw.ListSuggestions(context.WithoutCancel(ctx))

	r.state.Update(func(s VoteState) VoteState {
		if s.generation != gen {
			return s
		}
		if err != nil {
			next := s.clone()
			next.Loading = false
			next.LoadErr = err
			return next
		}
		next := emptyState()
		next.generation = gen
		next.Order = make([]string, 0, len(list))
		for _, sg := range list {
			if _, dup := next.Suggestions[sg.ID]; !dup {
				next.Order = append(next.Order, sg.ID)
			}
			next.Suggestions[sg.ID] = sg
		}
		return next
	})

	if err != nil {
		logging.WithContext(ctx).Warn("load suggestions failed", zap.Error(err))
		return fmt.Errorf("load suggestions: %w", err)
	}
	logging.WithContext(ctx).Debug("suggestions loaded", zap.Int("count", len(list)))
	return nil
}

// CastVote applies requested to the local mirror immediately and sends the
// effective vote to the remote in the background. Casts for one suggestion
// reach the remote in call order. The returned suggestion is the local
// state after the vote.
func (r *Reconciler) CastVote(ctx context.Context, suggestionID string, requested models.Vote) (models.Suggestion, error) {
	if !requested.Valid() {
		return models.Suggestion{}, ErrInvalidVote
	}

	var (
		updated   models.Suggestion
		effective models.Vote
		delta     int
		gen       uint64
	)
	_, ok := r.state.UpdateIf(func(s VoteState) (VoteState, bool) {
		cur, ok := s.Suggestions[suggestionID]
		if !ok {
			return s, false
		}
		effective, delta = Resolve(cur.UserVote, requested)
		cur.UserVote = effective
		cur.Score += delta
		updated = cur

		next := s.clone()
		next.Suggestions[suggestionID] = cur
		delete(next.Errors, suggestionID)
		gen = next.generation
		return next, true
	})
	if !ok {
		return models.Suggestion{}, fmt.Errorf("cast vote %s: %w", suggestionID, ErrUnknownSuggestion)
	}

	metrics.RecordVote(effective.String())
	log := logging.WithContext(ctx).With(logging.SuggestionID(suggestionID))
	log.Debug("vote applied",
		zap.Stringer("requested", requested), zap.Stringer("effective", effective), zap.Int("delta", delta))

	remoteCtx := context.WithoutCancel(ctx)
	r.queue.Submit(suggestionID, func() {
		r.send(remoteCtx, log, gen, suggestionID, effective)
	})

	return updated, nil
}

func (r *Reconciler) send(ctx context.Context, log *zap.Logger, gen uint64, suggestionID string, v models.Vote) {
	err := castGuarded(ctx, r.gw, suggestionID, v)
	if err == nil {
		return
	}

	metrics.RecordVoteDivergence()
	log.Warn("remote vote failed; local score kept", zap.Stringer("vote", v), zap.Error(err))
	stale := false
	r.state.Update(func(s VoteState) VoteState {
		if s.generation != gen {
			stale = true
			return s
		}
		if _, ok := s.Suggestions[suggestionID]; !ok {
			return s
		}
		next := s.clone()
		next.Errors[suggestionID] = err
		return next
	})

	if r.opts.ReloadOnFailure && !stale {
		if err := r.Load(ctx); err != nil {
			log.Warn("reload after failed vote", zap.Error(err))
		}
	}
}

func castGuarded(ctx context.Context, gw gateway.VoteGateway, suggestionID string, v models.Vote) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &gateway.Error{Kind: gateway.KindUnknown, Op: "cast_vote", Message: fmt.Sprintf("panic: %v", p)}
		}
	}()
	return gw.CastVote(ctx, suggestionID, v)
}

// Flush waits until no remote cast is queued or running.
func (r *Reconciler) Flush() {
	r.queue.Wait()
}

// Diverged returns the ids whose last remote cast failed, sorted.
func (r *Reconciler) Diverged() []string {
	return slices.Sorted(maps.Keys(r.State().Errors))
}
