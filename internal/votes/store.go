// Package votes holds the client-side voting state machine: which
// contestants this user has voted for, how many votes remain, and the
// optimistic submit-commit-or-rollback protocol around the backend call.
package votes

import (
	"context"
	"sync"
	"time"

	"github.com/codyrutscher/voting-app/internal/apperr"
	"github.com/codyrutscher/voting-app/internal/storage"
	"github.com/codyrutscher/voting-app/internal/voting"
)

// Persist is the storage adapter type the store keeps in sync. One entry is
// written per session id under the adapter's namespace.
type Persist = storage.Namespace[voting.SerializableUserVoteState]

// Options configure a Store. Everything is injected; the store owns no
// process-wide state.
type Options struct {
	// Client performs the remote vote registration. Required.
	Client voting.Submitter
	// Persist mirrors the user's vote state to storage. Optional; a nil
	// Persist means purely in-memory operation.
	Persist *Persist
	// DiscardOnSessionChange controls what happens to in-progress votes
	// when SetSession observes a different session id. The default (false)
	// keeps them, matching the behavior callers historically relied on;
	// true scopes votes strictly per session and loads whatever was
	// persisted for the new id instead.
	DiscardOnSessionChange bool
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Snapshot is a defensive copy of the store's observable state.
type Snapshot struct {
	Session      *voting.Session
	Contestants  []voting.Contestant
	User         voting.UserVoteState
	WindowActive bool
	Loading      bool
	Err          *apperr.AppError
}

// Store is the authoritative per-session record of the user's votes. All
// methods are safe for concurrent use; submissions for different
// contestants may be in flight at once, while a second AddVote for a
// contestant whose submission is still outstanding is a no-op.
type Store struct {
	client  voting.Submitter
	persist *Persist
	discard bool
	now     func() time.Time

	mu          sync.Mutex
	session     *voting.Session
	contestants []voting.Contestant
	user        voting.UserVoteState
	lastErr     *apperr.AppError
	inFlight    map[string]bool
	watchStop   func()
	closed      bool
}

// New builds a Store. It panics if opts.Client is nil; everything else has
// a workable default.
func New(opts Options) *Store {
	if opts.Client == nil {
		panic("votes: Options.Client is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		client:   opts.Client,
		persist:  opts.Persist,
		discard:  opts.DiscardOnSessionChange,
		now:      now,
		user:     voting.NewUserVoteState(""),
		inFlight: make(map[string]bool),
	}
}

// SetSession replaces the tracked session and reloads or carries the user's
// vote state depending on the configured session-change policy. Passing the
// same session id refreshes metadata without touching votes.
func (s *Store) SetSession(session *voting.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.session = cloneSession(session)
	if session == nil {
		return
	}
	if s.user.SessionID == session.ID {
		return
	}

	switch {
	case s.user.SessionID == "" && s.user.TotalVotes == 0:
		// First session observed: adopt whatever was persisted for it.
		s.user = s.loadPersisted(session.ID)
	case s.discard:
		s.user = s.loadPersisted(session.ID)
	default:
		// Carry in-progress votes across the id change and re-home them
		// under the new session's key.
		s.user.SessionID = session.ID
		s.user.UpdatedAt = s.now()
		s.persistLocked()
	}
	s.rewatchLocked(session.ID)
}

// SetContestants replaces the roster, typically from a poll refresh. Server
// counts are authoritative and overwrite any local optimistic bumps.
func (s *Store) SetContestants(contestants []voting.Contestant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.contestants = cloneContestants(contestants)
}

// AddVote registers a vote for the contestant. The voted set and total are
// updated optimistically and persisted before the remote call; a failed
// call reverts exactly that tentative entry and surfaces a recoverable
// error whose Retry re-invokes AddVote for the same contestant.
func (s *Store) AddVote(ctx context.Context, contestantID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.session == nil {
		err := apperr.Validation("no_session", "no voting session is loaded")
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	if s.inFlight[contestantID] {
		// Single-flight: a rapid repeat click must not double-submit.
		s.mu.Unlock()
		return nil
	}
	if s.user.HasVoted(contestantID) {
		err := apperr.Validation("already_voted", voting.ReasonAlreadyVoted.Message())
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	if s.user.TotalVotes >= s.session.MaxVotesPerUser {
		err := apperr.Validation("vote_limit", voting.ReasonLimitExceeded.Message())
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	// Phase one and two: remember the absence, apply the tentative vote.
	s.user.Voted[contestantID] = true
	s.user.TotalVotes++
	s.user.UpdatedAt = s.now()
	s.bumpCountLocked(contestantID, +1)
	s.persistLocked()
	s.inFlight[contestantID] = true
	req := voting.SubmitRequest{ContestantID: contestantID, SessionID: s.session.ID}
	s.mu.Unlock()

	result, err := s.client.Submit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, contestantID)
	if s.closed {
		return nil
	}

	if err == nil && result.Accepted {
		// Phase three, commit: the optimistic entry stands.
		if result.VoteCount > 0 {
			s.setCountLocked(contestantID, result.VoteCount)
		}
		s.lastErr = nil
		return nil
	}

	// Phase three, revert: undo this contestant's tentative entry. Other
	// in-flight votes keep theirs; the shared total is adjusted here, under
	// the lock that applied it.
	if s.user.Voted[contestantID] {
		delete(s.user.Voted, contestantID)
		s.user.TotalVotes--
		s.user.UpdatedAt = s.now()
		s.bumpCountLocked(contestantID, -1)
		s.persistLocked()
	}

	appErr := s.submitError(contestantID, result, err)
	s.lastErr = appErr
	return appErr
}

// HasVotedFor reports whether the contestant is in the voted set.
func (s *Store) HasVotedFor(contestantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.HasVoted(contestantID)
}

// RemainingVotes returns how many votes the user may still cast, never
// negative. Zero when no session is loaded.
func (s *Store) RemainingVotes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return 0
	}
	if left := s.session.MaxVotesPerUser - s.user.TotalVotes; left > 0 {
		return left
	}
	return 0
}

// CanVote reports whether a vote is currently possible: a session is
// loaded, its window is open, and the user has votes left.
func (s *Store) CanVote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canVoteLocked()
}

func (s *Store) canVoteLocked() bool {
	if s.session == nil {
		return false
	}
	return s.session.WindowOpen(s.now()) && s.user.TotalVotes < s.session.MaxVotesPerUser
}

// ResetState returns every field to its initial value and clears all
// persisted entries under the store's namespace. This is the only way the
// voted set shrinks.
func (s *Store) ResetState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchStop != nil {
		s.watchStop()
		s.watchStop = nil
	}
	s.session = nil
	s.contestants = nil
	s.user = voting.NewUserVoteState("")
	s.lastErr = nil
	if s.persist != nil {
		s.persist.Clear()
	}
}

// ClearError drops the surfaced error without touching vote state.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Snapshot returns a copy of the observable state for rendering.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Session:      cloneSession(s.session),
		Contestants:  cloneContestants(s.contestants),
		User:         s.user.Clone(),
		WindowActive: s.session != nil && s.session.WindowOpen(s.now()),
		Loading:      len(s.inFlight) > 0,
		Err:          s.lastErr,
	}
	return snap
}

// Close detaches the store: the storage watch is stopped and any submission
// that resolves afterwards is discarded without touching state.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.watchStop != nil {
		s.watchStop()
		s.watchStop = nil
	}
}

// loadPersisted reads the saved state for sessionID, falling back to empty.
// A parse failure surfaces as a StorageError on the store without blocking
// initialization.
func (s *Store) loadPersisted(sessionID string) voting.UserVoteState {
	empty := voting.NewUserVoteState(sessionID)
	if s.persist == nil {
		return empty
	}
	before := s.persist.LastError()
	stored := s.persist.Read(sessionID, voting.Serialize(empty))
	if after := s.persist.LastError(); after != nil && after != before {
		s.lastErr = apperr.FromError(after)
	}
	u := voting.Deserialize(stored)
	if u.SessionID == "" {
		u.SessionID = sessionID
	}
	return u
}

func (s *Store) persistLocked() {
	if s.persist == nil || s.user.SessionID == "" {
		return
	}
	s.persist.Write(s.user.SessionID, voting.Serialize(s.user))
}

// rewatchLocked points the external-change subscription at the new session
// key. External writes are authoritative; external deletion empties the
// local set.
func (s *Store) rewatchLocked(sessionID string) {
	if s.watchStop != nil {
		s.watchStop()
		s.watchStop = nil
	}
	if s.persist == nil {
		return
	}
	s.watchStop = s.persist.Watch(sessionID, func(v voting.SerializableUserVoteState, present bool) {
		s.adoptExternal(sessionID, v, present)
	})
}

func (s *Store) adoptExternal(sessionID string, v voting.SerializableUserVoteState, present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.user.SessionID != sessionID {
		return
	}
	if !present {
		s.user = voting.NewUserVoteState(sessionID)
		return
	}
	u := voting.Deserialize(v)
	if u.SessionID == "" {
		u.SessionID = sessionID
	}
	s.user = u
}

func (s *Store) submitError(contestantID string, result voting.SubmitResult, err error) *apperr.AppError {
	retry := func(ctx context.Context) error {
		return s.AddVote(ctx, contestantID)
	}
	if err != nil {
		appErr := apperr.FromError(err)
		if appErr.Kind != apperr.KindValidation {
			appErr = &apperr.AppError{
				Kind:    appErr.Kind,
				Code:    appErr.Code,
				Message: appErr.Message,
				Err:     appErr.Err,
				Retry:   retry,
			}
		}
		return appErr
	}

	switch result.Reason {
	case voting.ReasonAlreadyVoted:
		// The server knows about a vote we do not (another tab, usually).
		// Record it locally so the UI stops offering the contestant.
		s.user.Voted[contestantID] = true
		s.user.TotalVotes++
		s.user.UpdatedAt = s.now()
		s.persistLocked()
		return apperr.Validation("already_voted", voting.ReasonAlreadyVoted.Message())
	case voting.ReasonLimitExceeded:
		return apperr.Validation("vote_limit", voting.ReasonLimitExceeded.Message())
	default:
		return &apperr.AppError{
			Kind:    apperr.KindValidation,
			Code:    string(result.Reason),
			Message: result.Reason.Message(),
			Retry:   retry,
		}
	}
}

func (s *Store) bumpCountLocked(contestantID string, delta int) {
	for i := range s.contestants {
		if s.contestants[i].ID == contestantID {
			if next := s.contestants[i].VoteCount + delta; next >= 0 {
				s.contestants[i].VoteCount = next
			}
			return
		}
	}
}

func (s *Store) setCountLocked(contestantID string, count int) {
	for i := range s.contestants {
		if s.contestants[i].ID == contestantID {
			s.contestants[i].VoteCount = count
			return
		}
	}
}

func cloneSession(session *voting.Session) *voting.Session {
	if session == nil {
		return nil
	}
	dup := *session
	dup.ContestantIDs = append([]string(nil), session.ContestantIDs...)
	return &dup
}

func cloneContestants(items []voting.Contestant) []voting.Contestant {
	if len(items) == 0 {
		return nil
	}
	dup := make([]voting.Contestant, len(items))
	copy(dup, items)
	return dup
}
