package votes

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/fruitsalade/swalang/internal/gateway"
	"github.com/fruitsalade/swalang/internal/gateway/memory"
	"github.com/fruitsalade/swalang/internal/models"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		current, requested models.Vote
		effective          models.Vote
		delta              int
	}{
		{models.VoteNone, models.VoteUp, models.VoteUp, 1},
		{models.VoteNone, models.VoteDown, models.VoteDown, -1},
		{models.VoteNone, models.VoteNone, models.VoteNone, 0},
		{models.VoteUp, models.VoteUp, models.VoteNone, -1},
		{models.VoteUp, models.VoteDown, models.VoteDown, -2},
		{models.VoteUp, models.VoteNone, models.VoteNone, -1},
		{models.VoteDown, models.VoteDown, models.VoteNone, 1},
		{models.VoteDown, models.VoteUp, models.VoteUp, 2},
		{models.VoteDown, models.VoteNone, models.VoteNone, 1},
	}
	for _, tt := range tests {
		eff, delta := Resolve(tt.current, tt.requested)
		if eff != tt.effective || delta != tt.delta {
			t.Errorf("Resolve(%v, %v) = (%v, %d), want (%v, %d)",
				tt.current, tt.requested, eff, delta, tt.effective, tt.delta)
		}
	}
}

func TestResolveToggleReturnsToStart(t *testing.T) {
	for _, start := range []models.Vote{models.VoteDown, models.VoteNone, models.VoteUp} {
		for _, v := range []models.Vote{models.VoteDown, models.VoteUp} {
			e1, d1 := Resolve(start, v)
			e2, d2 := Resolve(e1, v)
			if start == v {
				continue
			}
			if e2 != models.VoteNone {
				t.Errorf("start %v, twice %v: ended at %v, want none", start, v, e2)
			}
			if d1+d2 != int(models.VoteNone)-int(start) {
				t.Errorf("start %v, twice %v: total delta %d", start, v, d1+d2)
			}
		}
	}
}

func seeded(t *testing.T, opts Options) (*memory.Gateway, *Reconciler, string) {
	t.Helper()
	g := memory.New("me")
	s := g.SeedSuggestion(models.Suggestion{Word: "sheng", Score: 10})
	r := New(g, opts)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return g, r, s.ID
}

func TestCastVoteScenario(t *testing.T) {
	ctx := context.Background()
	g, r, id := seeded(t, Options{})

	steps := []struct {
		vote  models.Vote
		want  models.Vote
		score int
	}{
		{models.VoteUp, models.VoteUp, 11},
		{models.VoteDown, models.VoteDown, 9},
		{models.VoteDown, models.VoteNone, 10},
	}
	for i, st := range steps {
		got, err := r.CastVote(ctx, id, st.vote)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got.UserVote != st.want || got.Score != st.score {
			t.Errorf("step %d: got {%v, %d}, want {%v, %d}", i, got.UserVote, got.Score, st.want, st.score)
		}
		if s, _ := r.Get(id); s != got {
			t.Errorf("step %d: state %+v differs from returned %+v", i, s, got)
		}
	}

	r.Flush()
	if n := g.Calls(memory.OpCastVote); n != 3 {
		t.Errorf("remote casts = %d, want 3", n)
	}
	remote, _ := g.Suggestion(id)
	if remote.Score != 10 || remote.UserVote != models.VoteNone {
		t.Errorf("remote = {%v, %d}, want {none, 10}", remote.UserVote, remote.Score)
	}
}

func TestCastVoteUnknownSuggestion(t *testing.T) {
	g, r, _ := seeded(t, Options{})
	before := r.State()

	_, err := r.CastVote(context.Background(), "missing", models.VoteUp)
	if !errors.Is(err, ErrUnknownSuggestion) {
		t.Fatalf("err = %v, want ErrUnknownSuggestion", err)
	}
	r.Flush()
	if g.Calls(memory.OpCastVote) != 0 {
		t.Error("remote called for unknown suggestion")
	}
	if len(r.State().Suggestions) != len(before.Suggestions) {
		t.Error("state changed")
	}
}

func TestCastVoteInvalidValue(t *testing.T) {
	_, r, id := seeded(t, Options{})
	if _, err := r.CastVote(context.Background(), id, models.Vote(3)); !errors.Is(err, ErrInvalidVote) {
		t.Fatalf("err = %v, want ErrInvalidVote", err)
	}
	if s, _ := r.Get(id); s.Score != 10 {
		t.Errorf("score = %d, want 10", s.Score)
	}
}

// A failed remote cast is not rolled back: local score and remote score
// disagree until the next Load.
func TestFailedCastKeepsOptimisticScore(t *testing.T) {
	ctx := context.Background()
	g, r, id := seeded(t, Options{})
	g.FailNext(memory.OpCastVote, gateway.Network(memory.OpCastVote, errors.New("offline")))

	got, err := r.CastVote(ctx, id, models.VoteUp)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if got.Score != 11 {
		t.Fatalf("optimistic score = %d, want 11", got.Score)
	}
	r.Flush()

	s, _ := r.Get(id)
	if s.Score != 11 || s.UserVote != models.VoteUp {
		t.Errorf("local = {%v, %d}, want {up, 11}", s.UserVote, s.Score)
	}
	if !gateway.IsNetwork(r.State().Errors[id]) {
		t.Errorf("recorded error = %v, want network error", r.State().Errors[id])
	}
	if d := r.Diverged(); !slices.Equal(d, []string{id}) {
		t.Errorf("Diverged = %v", d)
	}
	remote, _ := g.Suggestion(id)
	if remote.Score != 10 {
		t.Errorf("remote score = %d, want 10", remote.Score)
	}

	if err := r.Load(ctx); err != nil {
		t.Fatal(err)
	}
	s, _ = r.Get(id)
	if s.Score != 10 || s.UserVote != models.VoteNone {
		t.Errorf("after Load = {%v, %d}, want {none, 10}", s.UserVote, s.Score)
	}
	if len(r.Diverged()) != 0 {
		t.Error("Load did not clear cast errors")
	}
}

func TestReloadOnFailure(t *testing.T) {
	g, r, id := seeded(t, Options{ReloadOnFailure: true})
	g.FailNext(memory.OpCastVote, gateway.Validation(memory.OpCastVote, "closed"))

	if _, err := r.CastVote(context.Background(), id, models.VoteDown); err != nil {
		t.Fatal(err)
	}
	r.Flush()

	s, _ := r.Get(id)
	if s.Score != 10 || s.UserVote != models.VoteNone {
		t.Errorf("after reload = {%v, %d}, want {none, 10}", s.UserVote, s.Score)
	}
	if g.Calls(memory.OpListSuggestions) != 2 {
		t.Errorf("list calls = %d, want 2", g.Calls(memory.OpListSuggestions))
	}
}

func TestRemoteCastsKeepCallOrder(t *testing.T) {
	ctx := context.Background()
	g, r, id := seeded(t, Options{})

	var mu sync.Mutex
	var seen []models.Vote
	rec := &recordingGateway{Gateway: g, mu: &mu, seen: &seen}
	r.gw = rec

	for _, v := range []models.Vote{models.VoteUp, models.VoteDown, models.VoteDown, models.VoteUp, models.VoteUp} {
		if _, err := r.CastVote(ctx, id, v); err != nil {
			t.Fatal(err)
		}
	}
	r.Flush()

	want := []models.Vote{models.VoteUp, models.VoteDown, models.VoteNone, models.VoteUp, models.VoteNone}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(seen, want) {
		t.Errorf("remote saw %v, want %v", seen, want)
	}
	remote, _ := g.Suggestion(id)
	local, _ := r.Get(id)
	if remote.Score != local.Score {
		t.Errorf("remote %d, local %d", remote.Score, local.Score)
	}
}

type recordingGateway struct {
	*memory.Gateway
	mu   *sync.Mutex
	seen *[]models.Vote
}

func (g *recordingGateway) CastVote(ctx context.Context, id string, v models.Vote) error {
	g.mu.Lock()
	*g.seen = append(*g.seen, v)
	g.mu.Unlock()
	return g.Gateway.CastVote(ctx, id, v)
}

type panickingVotes struct{ *memory.Gateway }

func (panickingVotes) CastVote(context.Context, string, models.Vote) error { panic("boom") }

func TestPanickingCastIsRecorded(t *testing.T) {
	g, r, id := seeded(t, Options{})
	r.gw = panickingVotes{g}

	if _, err := r.CastVote(context.Background(), id, models.VoteUp); err != nil {
		t.Fatal(err)
	}
	r.Flush()
	if gateway.KindOf(r.State().Errors[id]) != gateway.KindUnknown || r.State().Errors[id] == nil {
		t.Errorf("recorded error = %v", r.State().Errors[id])
	}
}

func TestSubscribeSeesOptimisticUpdate(t *testing.T) {
	_, r, id := seeded(t, Options{})

	var scores []int
	unsubscribe := r.Subscribe(func(s VoteState) {
		scores = append(scores, s.Suggestions[id].Score)
	})
	if _, err := r.CastVote(context.Background(), id, models.VoteUp); err != nil {
		t.Fatal(err)
	}
	r.Flush()
	unsubscribe()

	if len(scores) != 1 || scores[0] != 11 {
		t.Errorf("notified scores = %v, want [11]", scores)
	}
}

func TestLoadPreservesRemoteOrder(t *testing.T) {
	g := memory.New("me")
	for _, w := range []string{"zing", "aje", "mambo"} {
		g.SeedSuggestion(models.Suggestion{Word: w})
	}
	r := New(g, Options{})
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	var words []string
	for _, s := range r.State().List() {
		words = append(words, s.Word)
	}
	if !slices.Equal(words, []string{"zing", "aje", "mambo"}) {
		t.Errorf("order = %v", words)
	}

	r.Reset()
	if len(r.State().Suggestions) != 0 {
		t.Error("Reset kept suggestions")
	}
}

func hold(g *memory.Gateway, op string) (entered chan struct{}, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	g.SetHook(func(_ context.Context, got string) {
		if got != op {
			return
		}
		entered <- struct{}{}
		<-release
	})
	return entered, release
}

func TestResetDropsLateLoad(t *testing.T) {
	g := memory.New("me")
	g.SeedSuggestion(models.Suggestion{Word: "jambo"})
	r := New(g, Options{})
	entered, release := hold(g, memory.OpListSuggestions)

	done := make(chan error)
	go func() { done <- r.Load(context.Background()) }()
	<-entered
	r.Reset()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Load: %v", err)
	}

	s := r.State()
	if len(s.Suggestions) != 0 || len(s.Order) != 0 || s.Loading {
		t.Errorf("state after Reset and late Load = %+v", s)
	}

	g.SetHook(nil)
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(r.State().Suggestions) != 1 {
		t.Errorf("Load after Reset found %d suggestions, want 1", len(r.State().Suggestions))
	}
}

func TestResetDropsLateCastFailure(t *testing.T) {
	g, r, id := seeded(t, Options{ReloadOnFailure: true})
	g.FailNext(memory.OpCastVote, gateway.Network(memory.OpCastVote, errors.New("offline")))
	entered, release := hold(g, memory.OpCastVote)

	if _, err := r.CastVote(context.Background(), id, models.VoteUp); err != nil {
		t.Fatal(err)
	}
	<-entered
	r.Reset()
	close(release)
	r.Flush()

	s := r.State()
	if len(s.Suggestions) != 0 || len(s.Errors) != 0 {
		t.Errorf("state after Reset and late cast = %+v", s)
	}
	if g.Calls(memory.OpListSuggestions) != 1 {
		t.Errorf("list calls = %d, want 1", g.Calls(memory.OpListSuggestions))
	}
}

func TestFlushWhileCasting(t *testing.T) {
	g, r, id := seeded(t, Options{})
	var casts sync.WaitGroup
	casts.Add(1)
	go func() {
		defer casts.Done()
		for i := 0; i < 20; i++ {
			if _, err := r.CastVote(context.Background(), id, models.VoteUp); err != nil {
				t.Error(err)
				return
			}
			r.Flush()
		}
	}()
	r.Flush()
	casts.Wait()
	r.Flush()

	remote, _ := g.Suggestion(id)
	local, _ := r.Get(id)
	if remote.Score != local.Score || g.Calls(memory.OpCastVote) != 20 {
		t.Errorf("remote %d, local %d, casts %d", remote.Score, local.Score, g.Calls(memory.OpCastVote))
	}
}
