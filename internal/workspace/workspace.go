// Package workspace ties the node cache and the vote reconciler of one
// client session to a single gateway.
package workspace

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/fruitsalade/swalang/internal/config"
	"github.com/fruitsalade/swalang/internal/filetree"
	"github.com/fruitsalade/swalang/internal/gateway"
	"github.com/fruitsalade/swalang/internal/gateway/memory"
	"github.com/fruitsalade/swalang/internal/gateway/postgres"
	"github.com/fruitsalade/swalang/internal/gateway/rest"
	"github.com/fruitsalade/swalang/internal/logging"
	"github.com/fruitsalade/swalang/internal/session"
	"github.com/fruitsalade/swalang/internal/votes"
)

// Snapshot is the combined state of both stores.
type Snapshot struct {
	Files filetree.CacheState
	Votes votes.VoteState
}

// Options configures a Workspace.
type Options struct {
	Files filetree.Options
	Votes votes.Options
}

// Workspace is one client session.
type Workspace struct {
	Files *filetree.Tree
	Votes *votes.Reconciler

	gw      gateway.Gateway
	session *session.Session
	closer  io.Closer

	// mu orders combined notifications so listeners never see them interleaved.
	mu sync.Mutex
}

// New builds a Workspace over gw.
func New(gw gateway.Gateway, sess *session.Session, opts Options) *Workspace {
	return &Workspace{
		Files:   filetree.New(gw, opts.Files),
		Votes:   votes.New(gw, opts.Votes),
		gw:      gw,
		session: sess,
	}
}

// Open resolves the session and gateway named by cfg and builds a
// Workspace. The gateway is instrumented with metrics.
func Open(cfg *config.Config) (*Workspace, error) {
	sess, err := resolveSession(cfg)
	if err != nil {
		return nil, err
	}

	var (
		gw     gateway.Gateway
		closer io.Closer
	)
	switch cfg.Backend {
	case config.BackendMemory:
		gw = memory.Demo(sess.UserID)
	case config.BackendREST:
		gw = rest.New(rest.Config{
			BaseURL: cfg.APIURL,
			APIKey:  cfg.APIKey,
			Token:   sess.Token,
			Timeout: cfg.RequestTimeout,
		})
	case config.BackendPostgres:
		pg, err := postgres.Open(cfg.DatabaseURL, sess.UserID)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(cfg.MigrationsDir); err != nil {
			pg.Close()
			return nil, err
		}
		gw, closer = pg, pg
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	logging.Info("workspace opened",
		zap.String("backend", cfg.Backend), zap.String("user", sess.UserID))

	w := New(gateway.Instrument(cfg.Backend, gw), sess, Options{
		Files: filetree.Options{SerializeMutations: cfg.SerializeMutations},
		Votes: votes.Options{ReloadOnFailure: cfg.VoteReloadOnFailure},
	})
	w.closer = closer
	return w, nil
}

func resolveSession(cfg *config.Config) (*session.Session, error) {
	if cfg.Token == "" {
		return session.Anonymous(cfg.UserID), nil
	}
	sess, err := session.Parse(cfg.Token, cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	if sess.IsExpired(0) {
		logging.Warn("access token has expired", zap.Time("expires_at", sess.ExpiresAt))
	}
	return sess, nil
}

// Session returns the signed-in user.
func (w *Workspace) Session() *session.Session {
	return w.session
}

// Gateway returns the gateway both stores use.
func (w *Workspace) Gateway() gateway.Gateway {
	return w.gw
}

// Snapshot returns the current state of both stores.
func (w *Workspace) Snapshot() Snapshot {
	return Snapshot{Files: w.Files.State(), Votes: w.Votes.State()}
}

// Subscribe registers fn to receive the combined snapshot whenever either
// store commits.
func (w *Workspace) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	unFiles := w.Files.Subscribe(func(files filetree.CacheState) {
		w.mu.Lock()
		defer w.mu.Unlock()
		fn(Snapshot{Files: files, Votes: w.Votes.State()})
	})
	unVotes := w.Votes.Subscribe(func(vs votes.VoteState) {
		w.mu.Lock()
		defer w.mu.Unlock()
		fn(Snapshot{Files: w.Files.State(), Votes: vs})
	})
	return func() {
		unFiles()
		unVotes()
	}
}

// Reset clears both stores.
func (w *Workspace) Reset() {
	w.Files.Reset()
	w.Votes.Reset()
}

// Close waits for outstanding vote casts and releases the gateway.
func (w *Workspace) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.Votes.Flush()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn("closing with vote casts still in flight")
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
