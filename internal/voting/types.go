package voting

import (
	"sort"
	"time"
)

// Session is a time-boxed voting event with a fixed contestant roster and a
// per-user vote cap. It is immutable once fetched; a poll replaces it whole.
type Session struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Active          bool      `json:"active"`
	StartsAt        time.Time `json:"startsAt"`
	EndsAt          time.Time `json:"endsAt"`
	MaxVotesPerUser int       `json:"maxVotesPerUser"`
	ContestantIDs   []string  `json:"contestantIds"`
}

// WindowOpen reports whether the session accepts votes at the given instant:
// marked active and now within [StartsAt, EndsAt].
func (s Session) WindowOpen(now time.Time) bool {
	if !s.Active {
		return false
	}
	return !now.Before(s.StartsAt) && !now.After(s.EndsAt)
}

// Contestant describes a single entrant. VoteCount is advisory: polling
// refreshes it and the local client may bump it optimistically, so it can
// diverge from server truth until the next poll.
type Contestant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description"`
	VoteCount   int    `json:"voteCount"`
	Active      bool   `json:"active"`
	Category    string `json:"category,omitempty"`
}

// UserVoteState is the per-session record of which contestants this user has
// voted for. TotalVotes always equals the size of the voted set.
type UserVoteState struct {
	SessionID  string
	Voted      map[string]bool
	TotalVotes int
	UpdatedAt  time.Time
}

// NewUserVoteState returns an empty record for the given session.
func NewUserVoteState(sessionID string) UserVoteState {
	return UserVoteState{SessionID: sessionID, Voted: make(map[string]bool)}
}

// HasVoted reports whether the contestant is in the voted set.
func (u UserVoteState) HasVoted(contestantID string) bool {
	return u.Voted[contestantID]
}

// Clone returns a deep copy so callers can hold a snapshot safely.
func (u UserVoteState) Clone() UserVoteState {
	dup := u
	dup.Voted = make(map[string]bool, len(u.Voted))
	for id := range u.Voted {
		dup.Voted[id] = true
	}
	return dup
}

// SerializableUserVoteState is the storage form of UserVoteState: the voted
// set flattened to a sorted list and the timestamp as an RFC 3339 string.
type SerializableUserVoteState struct {
	SessionID  string   `json:"sessionId"`
	VotedIDs   []string `json:"votedContestantIds"`
	TotalVotes int      `json:"totalVotes"`
	UpdatedAt  string   `json:"lastUpdated"`
}

// Serialize converts the in-memory record to its storage form.
func Serialize(u UserVoteState) SerializableUserVoteState {
	ids := make([]string, 0, len(u.Voted))
	for id := range u.Voted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := SerializableUserVoteState{
		SessionID:  u.SessionID,
		VotedIDs:   ids,
		TotalVotes: len(ids),
	}
	if !u.UpdatedAt.IsZero() {
		out.UpdatedAt = u.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// Deserialize rebuilds the in-memory record from its storage form. The total
// is recomputed from the list so a tampered counter cannot break the
// set-size invariant; duplicate ids collapse.
func Deserialize(s SerializableUserVoteState) UserVoteState {
	u := NewUserVoteState(s.SessionID)
	for _, id := range s.VotedIDs {
		if id == "" {
			continue
		}
		u.Voted[id] = true
	}
	u.TotalVotes = len(u.Voted)
	if s.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339, s.UpdatedAt); err == nil {
			u.UpdatedAt = t
		}
	}
	return u
}

// SessionResponse mirrors the payload returned by /api/session.
type SessionResponse struct {
	Session Session `json:"session"`
}

// ContestantListResponse mirrors /api/contestants.
type ContestantListResponse struct {
	Contestants []Contestant `json:"contestants"`
}

// SubmitRequest is the outbound vote registration payload.
type SubmitRequest struct {
	ContestantID string `json:"contestantId"`
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId,omitempty"`
}

// SubmitResponse mirrors the backend's vote registration reply. On rejection
// Error holds one of the Reason codes.
type SubmitResponse struct {
	Success   bool   `json:"success"`
	VoteCount int    `json:"voteCount,omitempty"`
	Error     string `json:"error,omitempty"`
}
