package filetree

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fruitsalade/swalang/internal/gateway"
	"github.com/fruitsalade/swalang/internal/logging"
	"github.com/fruitsalade/swalang/internal/metrics"
	"github.com/fruitsalade/swalang/internal/models"
	"github.com/fruitsalade/swalang/internal/serial"
	"github.com/fruitsalade/swalang/internal/store"
	"github.com/fruitsalade/swalang/internal/tree"
)

// Options configures a Tree.
type Options struct {
	// SerializeMutations runs create/rename/delete one at a time per parent
	// key instead of relying on the advisory ActionInFlight flag.
	SerializeMutations bool
}

// Tree is the node cache plus the mutation coordinator for one session.
type Tree struct {
	gw    gateway.NodeGateway
	opts  Options
	state *store.Store[CacheState]
	queue *serial.Queue
}

// New creates an empty Tree backed by gw.
func New(gw gateway.NodeGateway, opts Options) *Tree {
	return &Tree{
		gw:    gw,
		opts:  opts,
		state: store.New("filetree", emptyState),
		queue: serial.NewQueue(),
	}
}

// State returns the last committed snapshot.
func (t *Tree) State() CacheState {
	return t.state.State()
}

// Subscribe registers fn to receive every committed snapshot.
func (t *Tree) Subscribe(fn store.Listener[CacheState]) (unsubscribe func()) {
	return t.state.Subscribe(fn)
}

// Reset clears every cached sequence and status flag. Remote calls still in
// flight complete without touching the new state.
func (t *Tree) Reset() {
	t.commit(func(s CacheState) CacheState {
		next := emptyState()
		next.generation = s.generation + 1
		return next
	})
	logging.Debug("node cache reset")
}

// Children returns the cached children of parentID.
func (t *Tree) Children(parentID *string) ([]models.Node, bool) {
	return t.State().Children(models.KeyOf(parentID))
}

// Find looks a node up across all cached sequences.
func (t *Tree) Find(nodeID string) (models.Node, bool) {
	return tree.FindByID(t.State().NodesByParent, nodeID)
}

func (t *Tree) commit(fn func(CacheState) CacheState) CacheState {
	s := t.state.Update(fn)
	metrics.SetCacheSize(len(s.NodesByParent), s.NodeCount())
	return s
}

// Load fetches the children of parentID. It returns immediately, without a
// remote call, when a load for the same key is already in flight or when the
// key is cached and force is false. A sequence that only holds nodes created
// locally counts as not cached. Concurrent callers do not wait for the
// in-flight request.
func (t *Tree) Load(ctx context.Context, parentID *string, force bool) error {
	key := models.KeyOf(parentID)
	log := logging.WithContext(ctx).With(logging.ParentKey(string(key)))

	var gen uint64
	_, started := t.state.UpdateIf(func(s CacheState) (CacheState, bool) {
		if s.Loading[key] {
			return s, false
		}
		if _, cached := s.NodesByParent[key]; cached && !force && !s.partial[key] {
			return s, false
		}
		next := s.clone()
		next.Loading[key] = true
		delete(next.Errors, key)
		gen = next.generation
		return next, true
	})
	if !started {
		metrics.RecordCacheLoad("skipped")
		log.Debug("load skipped")
		return nil
	}
	metrics.RecordCacheLoad("started")

	var nodes []models.Node
	err := guard("list", func() (err error) {
		nodes, err = t.gw.ListNodes(context.WithoutCancel(ctx), parentID)
		return err
	})

	t.commit(func(s CacheState) CacheState {
		if s.generation != gen {
			return s
		}
		next := s.clone()
		next.Loading[key] = false
		if err != nil {
			next.Errors[key] = err
		} else {
			next.NodesByParent[key] = tree.Sorted(nodes)
			delete(next.partial, key)
		}
		return next
	})

	if err != nil {
		metrics.RecordCacheLoad("error")
		log.Warn("load failed", zap.Error(err))
		return fmt.Errorf("load %s: %w", key, err)
	}
	metrics.RecordCacheLoad("success")
	log.Debug("loaded", zap.Int("count", len(nodes)))
	return nil
}

// Create asks the remote to create a node and, once it confirms, inserts
// the returned node into its parent's sequence. On failure the cache is
// unchanged.
func (t *Tree) Create(ctx context.Context, details models.CreateDetails) (models.Node, error) {
	key := models.KeyOf(details.ParentID)
	var node models.Node
	err := t.mutate(ctx, key, "create", func(ctx context.Context) (func(CacheState) CacheState, error) {
		created, err := t.gw.CreateNode(ctx, details)
		if err != nil {
			return nil, err
		}
		node = created
		return func(s CacheState) CacheState {
			if _, cached := s.NodesByParent[key]; !cached {
				s.partial[key] = true
			}
			s.NodesByParent[key] = tree.Insert(s.NodesByParent[key], created)
			return s
		}, nil
	})
	if err != nil {
		return models.Node{}, fmt.Errorf("create %q: %w", details.Name, err)
	}
	logging.WithContext(ctx).Info("node created",
		logging.NodeID(node.ID), logging.ParentKey(string(key)), zap.Bool("folder", node.IsFolder))
	return node, nil
}

// Rename asks the remote to rename nodeID. On success the node is replaced
// in the sequence of the parent the remote reports. If that sequence is not
// cached or does not contain the node the cache is left as is.
func (t *Tree) Rename(ctx context.Context, nodeID, newName string) (models.Node, error) {
	key := models.RootKey
	if n, ok := t.Find(nodeID); ok {
		key = n.ParentKey()
	}

	var node models.Node
	err := t.mutate(ctx, key, "rename", func(ctx context.Context) (func(CacheState) CacheState, error) {
		updated, err := t.gw.UpdateNode(ctx, nodeID, models.NodePatch{Name: &newName})
		if err != nil {
			return nil, err
		}
		node = updated
		return func(s CacheState) CacheState {
			target := updated.ParentKey()
			seq, cached := s.NodesByParent[target]
			if !cached {
				staleRename(ctx, updated, "parent not cached")
				return s
			}
			out, found := tree.Replace(seq, updated)
			if !found {
				staleRename(ctx, updated, "node not in parent sequence")
				return s
			}
			s.NodesByParent[target] = out
			return s
		}, nil
	})
	if err != nil {
		return models.Node{}, fmt.Errorf("rename %s: %w", nodeID, err)
	}
	logging.WithContext(ctx).Info("node renamed", logging.NodeID(nodeID), zap.String("name", node.Name))
	return node, nil
}

func staleRename(ctx context.Context, n models.Node, reason string) {
	metrics.RecordStaleRename()
	logging.WithContext(ctx).Debug("rename not reflected in cache",
		logging.NodeID(n.ID), logging.ParentKey(string(n.ParentKey())), zap.String("reason", reason))
}

// Delete asks the remote to delete nodeID and, only once it confirms,
// removes it from the sequence of parentID.
func (t *Tree) Delete(ctx context.Context, nodeID string, parentID *string) error {
	key := models.KeyOf(parentID)
	err := t.mutate(ctx, key, "delete", func(ctx context.Context) (func(CacheState) CacheState, error) {
		if err := t.gw.DeleteNode(ctx, nodeID); err != nil {
			return nil, err
		}
		return func(s CacheState) CacheState {
			if seq, cached := s.NodesByParent[key]; cached {
				if out, found := tree.Remove(seq, nodeID); found {
					s.NodesByParent[key] = out
				}
			}
			return s
		}, nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", nodeID, err)
	}
	logging.WithContext(ctx).Info("node deleted", logging.NodeID(nodeID), logging.ParentKey(string(key)))
	return nil
}

// mutate brackets a remote mutation with the ActionInFlight flag. remote
// returns the cache edit to apply on success; the edit receives a cloned
// state and is committed together with clearing the flag.
func (t *Tree) mutate(ctx context.Context, key models.ParentKey, op string,
	remote func(context.Context) (func(CacheState) CacheState, error)) error {

	var err error
	run := func() {
		var gen uint64
		t.commit(func(s CacheState) CacheState {
			next := s.clone()
			next.actions++
			next.ActionInFlight = true
			next.LastActionError = nil
			gen = next.generation
			return next
		})

		var apply func(CacheState) CacheState
		err = guard(op, func() (err error) {
			apply, err = remote(context.WithoutCancel(ctx))
			return err
		})

		t.commit(func(s CacheState) CacheState {
			if s.generation != gen {
				return s
			}
			next := s.clone()
			next.actions--
			next.ActionInFlight = next.actions > 0
			if err != nil {
				next.LastActionError = err
				return next
			}
			if apply != nil {
				next = apply(next)
			}
			return next
		})
	}

	if t.opts.SerializeMutations {
		t.queue.Do(string(key), run)
	} else {
		run()
	}

	metrics.RecordMutation(op, err == nil)
	if err != nil {
		logging.WithContext(ctx).Warn("mutation failed",
			zap.String("op", op), logging.ParentKey(string(key)), zap.Error(err))
	}
	return err
}

// guard converts a panic in fn into an error so that no failure unwinds
// through the cache's public methods.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &gateway.Error{Kind: gateway.KindUnknown, Op: op, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return fn()
}
