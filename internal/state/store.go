package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/codyrutscher/voting-app/internal/voting"
)

// Snapshot represents the latest polled data available to the UI.
type Snapshot struct {
	Session             voting.Session
	HasSession          bool
	Contestants         []voting.Contestant
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored snapshot. When err is non-nil the previous data
// is kept but the error is recorded for visibility.
func (s *Store) Update(session *voting.Session, contestants []voting.Contestant, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Contestants = cloneContestants(contestants)
	if session != nil {
		s.snapshot.Session = *session
		s.snapshot.HasSession = true
	} else {
		s.snapshot.HasSession = false
	}
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Contestants = cloneContestants(s.snapshot.Contestants)
	snap.Session.ContestantIDs = append([]string(nil), s.snapshot.Session.ContestantIDs...)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneContestants(items []voting.Contestant) []voting.Contestant {
	if len(items) == 0 {
		return nil
	}
	dup := make([]voting.Contestant, len(items))
	copy(dup, items)
	return dup
}
