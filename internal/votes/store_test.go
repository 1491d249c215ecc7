package votes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codyrutscher/voting-app/internal/apperr"
	"github.com/codyrutscher/voting-app/internal/storage"
	"github.com/codyrutscher/voting-app/internal/voting"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []voting.SubmitRequest
	fn      func(voting.SubmitRequest) (voting.SubmitResult, error)
	entered chan string   // receives the contestant id when Submit begins
	gate    chan struct{} // when non-nil, Submit blocks until closed
}

func (f *fakeSubmitter) Submit(ctx context.Context, req voting.SubmitRequest) (voting.SubmitResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.fn
	entered := f.entered
	gate := f.gate
	f.mu.Unlock()

	if entered != nil {
		entered <- req.ContestantID
	}
	if gate != nil {
		<-gate
	}
	if fn != nil {
		return fn(req)
	}
	return voting.SubmitResult{Accepted: true, VoteCount: 1}, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSubmitter) set(fn func(voting.SubmitRequest) (voting.SubmitResult, error)) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

func accept(count int) func(voting.SubmitRequest) (voting.SubmitResult, error) {
	return func(voting.SubmitRequest) (voting.SubmitResult, error) {
		return voting.SubmitResult{Accepted: true, VoteCount: count}, nil
	}
}

func reject(reason voting.Reason) func(voting.SubmitRequest) (voting.SubmitResult, error) {
	return func(voting.SubmitRequest) (voting.SubmitResult, error) {
		return voting.SubmitResult{Reason: reason}, nil
	}
}

func fail(err error) func(voting.SubmitRequest) (voting.SubmitResult, error) {
	return func(voting.SubmitRequest) (voting.SubmitResult, error) {
		return voting.SubmitResult{}, err
	}
}

func openSession(id string, maxVotes int) *voting.Session {
	now := time.Now()
	return &voting.Session{
		ID:              id,
		Name:            "Test Session",
		Active:          true,
		StartsAt:        now.Add(-time.Hour),
		EndsAt:          now.Add(time.Hour),
		MaxVotesPerUser: maxVotes,
	}
}

// checkInvariant asserts totalVotes == size of the voted set.
func checkInvariant(t *testing.T, s *Store) {
	t.Helper()
	snap := s.Snapshot()
	if snap.User.TotalVotes != len(snap.User.Voted) {
		t.Fatalf("invariant broken: TotalVotes = %d, set size = %d",
			snap.User.TotalVotes, len(snap.User.Voted))
	}
}

func TestAddVote_SequentialUpToLimit(t *testing.T) {
	client := &fakeSubmitter{}
	s := New(Options{Client: client})
	t.Cleanup(s.Close)
	s.SetSession(openSession("s1", 3))

	for _, id := range []string{"x", "y", "z"} {
		if err := s.AddVote(context.Background(), id); err != nil {
			t.Fatalf("AddVote(%q) returned error: %v", id, err)
		}
		checkInvariant(t, s)
	}

	snap := s.Snapshot()
	if snap.User.TotalVotes != 3 {
		t.Fatalf("TotalVotes = %d, want 3", snap.User.TotalVotes)
	}
	if s.CanVote() {
		t.Fatalf("CanVote() = true after using all votes")
	}
	if s.RemainingVotes() != 0 {
		t.Fatalf("RemainingVotes() = %d, want 0", s.RemainingVotes())
	}

	err := s.AddVote(context.Background(), "w")
	if err == nil {
		t.Fatalf("fourth AddVote returned nil, want limit error")
	}
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("fourth AddVote error = %v, want KindValidation", err)
	}
	if client.callCount() != 3 {
		t.Fatalf("submission count = %d, want 3 (limit check is local)", client.callCount())
	}
	if got := s.Snapshot().User.TotalVotes; got != 3 {
		t.Fatalf("TotalVotes after rejected vote = %d, want 3 (unchanged)", got)
	}
	checkInvariant(t, s)
}

func TestAddVote_SecondVoteForSameContestantIsRejectedLocally(t *testing.T) {
	client := &fakeSubmitter{}
	s := New(Options{Client: client})
	t.Cleanup(s.Close)
	s.SetSession(openSession("s1", 5))

	if err := s.AddVote(context.Background(), "x"); err != nil {
		t.Fatalf("AddVote returned error: %v", err)
	}

	err := s.AddVote(context.Background(), "x")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("second AddVote = %v, want KindValidation", err)
	}
	if client.callCount() != 1 {
		t.Fatalf("submission count = %d, want 1 (no network round-trip)", client.callCount())
	}
	if got := s.Snapshot().User.TotalVotes; got != 1 {
		t.Fatalf("TotalVotes = %d, want 1", got)
	}
	checkInvariant(t, s)
}

func TestAddVote_RemainingVotesArithmetic(t *testing.T) {
	client := &fakeSubmitter{}
	s := New(Options{Client: client})
	t.Cleanup(s.Close)
	s.SetSession(openSession("s1", 4))

	for i, id := range []string{"a", "b", "c"} {
		if err := s.AddVote(context.Background(), id); err != nil {
			t.Fatalf("AddVote(%q) returned error: %v", id, err)
		}
		total := s.Snapshot().User.TotalVotes
		if s.RemainingVotes()+total != 4 {
			t.Fatalf("after %d votes: remaining %d + total %d != 4", i+1, s.RemainingVotes(), total)
		}
	}
}

func TestAddVote_RollsBackOnFailureAndRetrySucceeds(t *testing.T) {
	mem := storage.NewMemBackend()
	persist := storage.NewNamespace[voting.SerializableUserVoteState](mem, mem, "votes.")
	client := &fakeSubmitter{}
	client.set(fail(apperr.Network("network", "could not reach the voting service", errors.New("refused"))))

	s := New(Options{Client: client, Persist: persist})
	t.Cleanup(s.Close)
	s.SetSession(openSession("s1", 3))

	err := s.AddVote(context.Background(), "x")
	if err == nil {
		t.Fatalf("AddVote returned nil, want network error")
	}

	if s.HasVotedFor("x") {
		t.Fatalf("HasVotedFor(x) = true after rollback")
	}
	snap := s.Snapshot()
	if snap.User.TotalVotes != 0 {
		t.Fatalf("TotalVotes = %d, want 0 after rollback", snap.User.TotalVotes)
	}
	checkInvariant(t, s)

	// The persisted form was rolled back too.
	stored := persist.Read("s1", voting.Serialize(voting.NewUserVoteState("s1")))
	if stored.TotalVotes != 0 || len(stored.VotedIDs) != 0 {
		t.Fatalf("persisted state = %#v, want empty after rollback", stored)
	}

	if snap.Err == nil {
		t.Fatalf("store error = nil, want recoverable network error")
	}
	if snap.Err.Kind != apperr.KindNetwork {
		t.Fatalf("store error kind = %v, want KindNetwork", snap.Err.Kind)
	}
	if !snap.Err.Recoverable() || snap.Err.Retry == nil {
		t.Fatalf("store error = %#v, want recoverable with retry", snap.Err)
	}

	// The carried retry, with a now-succeeding client, lands the vote.
	client.set(accept(10))
	if err := snap.Err.Retry(context.Background()); err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if !s.HasVotedFor("x") {
		t.Fatalf("HasVotedFor(x) = false after successful retry")
	}
	if got := s.Snapshot().User.TotalVotes; got != 1 {
		t.Fatalf("TotalVotes = %d, want 1 after retry", got)
	}
	if s.Snapshot().Err != nil {
		t.Fatalf("store error = %v after success, want nil", s.Snapshot().Err)
	}
}

func TestAddVote_SingleFlightPerContestant(t *testing.T) {
	client := &fakeSubmitter{
		entered: make(chan string, 1),
		gate:    make(chan struct{}),
	}
	s := New(Options{Client: client})
	t.Cleanup(s.Close)
	s.SetSession(openSession("s1", 3))

	done := make(chan error, 1)
	go func() { done <- s.AddVote(context.Background(), "x") }()
	<-client.entered // the first submission is now in flight

	// A rapid repeat click is a no-op: no error, no second submission.
	if err := s.AddVote(context.Background(), "x"); err != nil {
		t.Fatalf("repeat AddVote while in flight = %v, want nil no-op", err)
	}
	if client.callCount() != 1 {
		t.Fatalf("submission count = %d, want 1", client.callCount())
	}

	close(client.gate)
	if err := <-done; err != nil {
		t.Fatalf("first AddVote returned error: %v", err)
	}
	if got := s.Snapshot().User.TotalVotes; got != 1 {
		t.Fatalf("TotalVotes = %d, want 1", got)
	}
	checkInvariant(t, s)
}

func TestAddVote_ServerAlreadyVotedIsAdoptedLocally(t *testing.T) {
	client := &fakeSubmitter{}
	client.set(reject(voting.ReasonAlreadyVoted))
	s := New(Options{Client: client})
	t.Cleanup(s.Close)
	s.SetSession(openSession("s1", 3))

	err := s.AddVote(context.Background(), "x")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("AddVote = %v, want KindValidation", err)
	}
	// Another tab had voted: the server's knowledge is adopted so the UI
	// stops offering this contestant.
	if !s.HasVotedFor("x") {
		t.Fatalf("HasVotedFor(x) = false, want server truth adopted")
	}
	checkInvariant(t, s)
}

func TestAddVote_RemoteRejectionCarriesRetry(t *testing.T) {
	client := &fakeSubmitter{}
	client.set(reject(voting.ReasonVotingClosed))
	s := New(Options{Client: client})
	t.Cleanup(s.Close)
	s.SetSession(openSession("s1", 3))

	err := s.AddVote(context.Background(), "x")
	if err == nil {
		t.Fatalf("AddVote returned nil, want rejection")
	}
	appErr := apperr.FromError(err)
	if appErr.Retry == nil || !appErr.Recoverable() {
		t.Fatalf("rejection = %#v, want recoverable with retry", appErr)
	}
	if s.HasVotedFor("x") {
		t.Fatalf("HasVotedFor(x) = true after rejection, want rollback")
	}
	checkInvariant(t, s)
}

func TestStore_OptimisticCountBumpAndRollback(t *testing.T) {
	client := &fakeSubmitter{}
	client.set(fail(apperr.Network("network", "down", nil)))
	s := New(Options{Client: client})
	t.Cleanup(s.Close)
	s.SetSession(openSession("s1", 3))
	s.SetContestants([]voting.Contestant{{ID: "x", Name: "X", VoteCount: 10, Active: true}})

	_ = s.AddVote(context.Background(), "x")

	// Failed vote: the optimistic bump was reverted.
	if got := s.Snapshot().Contestants[0].VoteCount; got != 10 {
		t.Fatalf("VoteCount = %d, want 10 after rollback", got)
	}

	client.set(accept(42))
	if err := s.AddVote(context.Background(), "x"); err != nil {
		t.Fatalf("AddVote returned error: %v", err)
	}
	// Accepted vote: the server's count is adopted.
	if got := s.Snapshot().Contestants[0].VoteCount; got != 42 {
		t.Fatalf("VoteCount = %d, want server count 42", got)
	}
}

func TestStore_CrossInstanceAdoption(t *testing.T) {
	mem := storage.NewMemBackend()
	session := openSession("s1", 3)

	a := New(Options{
		Client:  &fakeSubmitter{},
		Persist: storage.NewNamespace[voting.SerializableUserVoteState](mem, mem, "votes."),
	})
	t.Cleanup(a.Close)
	b := New(Options{
		Client:  &fakeSubmitter{},
		Persist: storage.NewNamespace[voting.SerializableUserVoteState](mem, mem, "votes."),
	})
	t.Cleanup(b.Close)

	a.SetSession(session)
	b.SetSession(session)

	if err := a.AddVote(context.Background(), "x"); err != nil {
		t.Fatalf("AddVote returned error: %v", err)
	}

	// B never called AddVote; it adopted A's persisted write.
	if !b.HasVotedFor("x") {
		t.Fatalf("b.HasVotedFor(x) = false, want adoption of external change")
	}
	if got := b.Snapshot().User.TotalVotes; got != 1 {
		t.Fatalf("b TotalVotes = %d, want 1", got)
	}
	checkInvariant(t, b)
}

func TestStore_ExternalDeletionEmptiesState(t *testing.T) {
	mem := storage.NewMemBackend()
	session := openSession("s1", 3)

	a := New(Options{
		Client:  &fakeSubmitter{},
		Persist: storage.NewNamespace[voting.SerializableUserVoteState](mem, mem, "votes."),
	})
	t.Cleanup(a.Close)
	b := New(Options{
		Client:  &fakeSubmitter{},
		Persist: storage.NewNamespace[voting.SerializableUserVoteState](mem, mem, "votes."),
	})
	t.Cleanup(b.Close)

	a.SetSession(session)
	b.SetSession(session)
	_ = a.AddVote(context.Background(), "x")

	a.ResetState()

	if b.HasVotedFor("x") {
		t.Fatalf("b.HasVotedFor(x) = true after external reset")
	}
	checkInvariant(t, b)
}

func TestStore_CorruptPersistedStateInitializesEmpty(t *testing.T) {
	mem := storage.NewMemBackend()
	if err := mem.Set("votes.s1", "{definitely not json"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s := New(Options{
		Client:  &fakeSubmitter{},
		Persist: storage.NewNamespace[voting.SerializableUserVoteState](mem, mem, "votes."),
	})
	t.Cleanup(s.Close)
	s.SetSession(openSession("s1", 3))

	snap := s.Snapshot()
	if snap.User.TotalVotes != 0 || len(snap.User.Voted) != 0 {
		t.Fatalf("user state = %#v, want empty after corrupt load", snap.User)
	}
	if snap.Err == nil || snap.Err.Kind != apperr.KindStorage {
		t.Fatalf("store error = %#v, want KindStorage", snap.Err)
	}
	// The store still works without persistence drama.
	if err := s.AddVote(context.Background(), "x"); err != nil {
		t.Fatalf("AddVote returned error: %v", err)
	}
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	mem := storage.NewMemBackend()
	session := openSession("s1", 3)

	first := New(Options{
		Client:  &fakeSubmitter{},
		Persist: storage.NewNamespace[voting.SerializableUserVoteState](mem, mem, "votes."),
	})
	first.SetSession(session)
	if err := first.AddVote(context.Background(), "x"); err != nil {
		t.Fatalf("AddVote returned error: %v", err)
	}
	first.Close()

	second := New(Options{
		Client:  &fakeSubmitter{},
		Persist: storage.NewNamespace[voting.SerializableUserVoteState](mem, mem, "votes."),
	})
	t.Cleanup(second.Close)
	second.SetSession(session)

	if !second.HasVotedFor("x") {
		t.Fatalf("HasVotedFor(x) = false in a fresh store, want persisted vote loaded")
	}
	checkInvariant(t, second)
}

func TestSetSession_SameIDRefreshesMetadataOnly(t *testing.T) {
	client := &fakeSubmitter{}
	s := New(Options{Client: client})
	t.Cleanup(s.Close)

	s.SetSession(openSession("s1", 3))
	_ = s.AddVote(context.Background(), "x")

	refreshed := openSession("s1", 5)
	s.SetSession(refreshed)

	snap := s.Snapshot()
	if snap.Session.MaxVotesPerUser != 5 {
		t.Fatalf("MaxVotesPerUser = %d, want refreshed 5", snap.Session.MaxVotesPerUser)
	}
	if !s.HasVotedFor("x") {
		t.Fatalf("votes lost on a same-id metadata refresh")
	}
}

func TestSetSession_DefaultCarriesVotesAcrossIDs(t *testing.T) {
	s := New(Options{Client: &fakeSubmitter{}})
	t.Cleanup(s.Close)

	s.SetSession(openSession("s1", 3))
	_ = s.AddVote(context.Background(), "x")

	s.SetSession(openSession("s2", 3))

	if !s.HasVotedFor("x") {
		t.Fatalf("votes dropped on session change, want carried by default")
	}
	if got := s.Snapshot().User.SessionID; got != "s2" {
		t.Fatalf("SessionID = %q, want re-homed to s2", got)
	}
	checkInvariant(t, s)
}

func TestSetSession_DiscardPolicyScopesVotesPerSession(t *testing.T) {
	mem := storage.NewMemBackend()
	s := New(Options{
		Client:                 &fakeSubmitter{},
		Persist:                storage.NewNamespace[voting.SerializableUserVoteState](mem, mem, "votes."),
		DiscardOnSessionChange: true,
	})
	t.Cleanup(s.Close)

	s.SetSession(openSession("s1", 3))
	_ = s.AddVote(context.Background(), "x")

	s.SetSession(openSession("s2", 3))
	if s.HasVotedFor("x") {
		t.Fatalf("votes carried into s2, want discarded under the policy")
	}

	// Moving back to s1 reloads what was persisted for it.
	s.SetSession(openSession("s1", 3))
	if !s.HasVotedFor("x") {
		t.Fatalf("s1 votes lost, want reloaded from persistence")
	}
	checkInvariant(t, s)
}

func TestResetState_ClearsEverything(t *testing.T) {
	mem := storage.NewMemBackend()
	s := New(Options{
		Client:  &fakeSubmitter{},
		Persist: storage.NewNamespace[voting.SerializableUserVoteState](mem, mem, "votes."),
	})
	t.Cleanup(s.Close)

	s.SetSession(openSession("s1", 3))
	_ = s.AddVote(context.Background(), "x")
	_ = s.AddVote(context.Background(), "y")

	s.ResetState()

	snap := s.Snapshot()
	if snap.Session != nil || snap.User.TotalVotes != 0 || len(snap.User.Voted) != 0 || snap.Err != nil {
		t.Fatalf("snapshot after reset = %#v, want initial state", snap)
	}
	keys, err := mem.Keys("votes.")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("persisted keys after reset = %v, want none", keys)
	}
}

func TestCanVote_RequiresOpenWindowAndVotesLeft(t *testing.T) {
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s := New(Options{
		Client: &fakeSubmitter{},
		Now:    func() time.Time { return now },
	})
	t.Cleanup(s.Close)

	if s.CanVote() {
		t.Fatalf("CanVote() = true with no session")
	}

	session := &voting.Session{
		ID:              "s1",
		Active:          true,
		StartsAt:        base.Add(-time.Hour),
		EndsAt:          base.Add(time.Hour),
		MaxVotesPerUser: 1,
	}
	s.SetSession(session)
	if !s.CanVote() {
		t.Fatalf("CanVote() = false inside an open window with votes left")
	}

	// Window closes as time passes; no new fetch needed.
	now = base.Add(2 * time.Hour)
	if s.CanVote() {
		t.Fatalf("CanVote() = true after the window closed")
	}

	now = base
	if err := s.AddVote(context.Background(), "x"); err != nil {
		t.Fatalf("AddVote returned error: %v", err)
	}
	if s.CanVote() {
		t.Fatalf("CanVote() = true with no votes left")
	}
}

func TestAddVote_NoSessionFailsFast(t *testing.T) {
	client := &fakeSubmitter{}
	s := New(Options{Client: client})
	t.Cleanup(s.Close)

	err := s.AddVote(context.Background(), "x")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("AddVote without session = %v, want KindValidation", err)
	}
	if client.callCount() != 0 {
		t.Fatalf("submission attempted without a session")
	}
}

func TestStore_CloseDiscardsInFlightResolution(t *testing.T) {
	client := &fakeSubmitter{
		entered: make(chan string, 1),
		gate:    make(chan struct{}),
	}
	s := New(Options{Client: client})
	s.SetSession(openSession("s1", 3))

	done := make(chan error, 1)
	go func() { done <- s.AddVote(context.Background(), "x") }()
	<-client.entered

	s.Close()
	close(client.gate)

	if err := <-done; err != nil {
		t.Fatalf("AddVote after Close = %v, want discarded nil", err)
	}
}
