package mockapi

import (
	"time"

	"github.com/codyrutscher/voting-app/internal/voting"
)

// DemoSession returns the built-in voting session: open now, three votes
// per user.
func DemoSession() voting.Session {
	now := time.Now()
	return voting.Session{
		ID:              "summer-showdown-2026",
		Name:            "Summer Showdown",
		Active:          true,
		StartsAt:        now.Add(-time.Hour),
		EndsAt:          now.Add(24 * time.Hour),
		MaxVotesPerUser: 3,
		ContestantIDs:   []string{"c-aurora", "c-basil", "c-cedar", "c-dahlia", "c-ember"},
	}
}

// DemoContestants returns the built-in roster matching DemoSession.
func DemoContestants() []voting.Contestant {
	return []voting.Contestant{
		{
			ID:          "c-aurora",
			Name:        "Aurora",
			ImageURL:    "https://img.example.com/aurora.jpg",
			Description: "Synthwave trio from Tromsø",
			VoteCount:   412,
			Active:      true,
			Category:    "music",
		},
		{
			ID:          "c-basil",
			Name:        "Basil & The Leaves",
			ImageURL:    "https://img.example.com/basil.jpg",
			Description: "Folk quartet with a brass section",
			VoteCount:   388,
			Active:      true,
			Category:    "music",
		},
		{
			ID:          "c-cedar",
			Name:        "Cedar",
			ImageURL:    "https://img.example.com/cedar.jpg",
			Description: "Solo acoustic set",
			VoteCount:   256,
			Active:      true,
			Category:    "music",
		},
		{
			ID:          "c-dahlia",
			Name:        "Dahlia",
			ImageURL:    "https://img.example.com/dahlia.jpg",
			Description: "Street dance crew",
			VoteCount:   301,
			Active:      true,
			Category:    "dance",
		},
		{
			ID:          "c-ember",
			Name:        "Ember",
			ImageURL:    "https://img.example.com/ember.jpg",
			Description: "Fire poi performance art",
			VoteCount:   97,
			Active:      false,
			Category:    "performance",
		},
	}
}
