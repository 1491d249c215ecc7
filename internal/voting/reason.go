package voting

// Reason enumerates why the backend rejected an otherwise well-formed vote.
type Reason string

const (
	ReasonAlreadyVoted       Reason = "ALREADY_VOTED"
	ReasonLimitExceeded      Reason = "LIMIT_EXCEEDED"
	ReasonVotingClosed       Reason = "VOTING_CLOSED"
	ReasonContestantInactive Reason = "CONTESTANT_INACTIVE"
	ReasonInvalidContestant  Reason = "INVALID_CONTESTANT"
)

// ParseReason maps a backend error string onto the taxonomy. The second
// return is false for strings outside it (treated as transport-level noise).
func ParseReason(s string) (Reason, bool) {
	switch Reason(s) {
	case ReasonAlreadyVoted, ReasonLimitExceeded, ReasonVotingClosed,
		ReasonContestantInactive, ReasonInvalidContestant:
		return Reason(s), true
	}
	return "", false
}

// Message returns a human-readable description for UI display.
func (r Reason) Message() string {
	switch r {
	case ReasonAlreadyVoted:
		return "You have already voted for this contestant"
	case ReasonLimitExceeded:
		return "You have used all of your votes"
	case ReasonVotingClosed:
		return "Voting is closed for this session"
	case ReasonContestantInactive:
		return "This contestant is no longer accepting votes"
	case ReasonInvalidContestant:
		return "Unknown contestant"
	default:
		return "Vote rejected"
	}
}
