// Package seed holds the fixed demo dataset used to bootstrap a store that
// has never been persisted. Accessors return fresh copies so callers can
// mutate freely.
package seed

import (
	"time"

	"github.com/victornm/roastline/internal/domain"
)

// Users returns the demo accounts. Any of their emails can be used to log
// in with an arbitrary password.
func Users() []domain.User {
	return []domain.User{
		{
			ID:       "1",
			Username: "Alex",
			Avatar:   "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?ixlib=rb-1.2.1&auto=format&fit=crop&w=100&q=80",
			Email:    "alex@example.com",
		},
		{
			ID:       "2",
			Username: "Taylor",
			Avatar:   "https://images.unsplash.com/photo-1494790108377-be9c29b29330?ixlib=rb-1.2.1&auto=format&fit=crop&w=100&q=80",
			Email:    "taylor@example.com",
		},
		{
			ID:       "3",
			Username: "Jordan",
			Avatar:   "https://images.unsplash.com/photo-1500648767791-00dcc994a43e?ixlib=rb-1.2.1&auto=format&fit=crop&w=100&q=80",
			Email:    "jordan@example.com",
		},
		{
			ID:       "4",
			Username: "Casey",
			Avatar:   "https://images.unsplash.com/photo-1568602471122-7832951cc4c5?ixlib=rb-1.2.1&auto=format&fit=crop&w=100&q=80",
			Email:    "casey@example.com",
		},
		{
			ID:       "5",
			Username: "Morgan",
			Avatar:   "https://images.unsplash.com/photo-1544005313-94ddf0286df2?ixlib=rb-1.2.1&auto=format&fit=crop&w=100&q=80",
			Email:    "morgan@example.com",
		},
	}
}

// Groups returns the demo groups. Timestamps are derived from now so the
// dataset always looks recent; Comedy Club was last active a day ago.
func Groups(now time.Time) []domain.Group {
	return []domain.Group{
		{
			ID:         "1",
			Name:       "Savage Squad",
			Members:    []string{"1", "2", "3", "4"},
			CreatedBy:  "1",
			CreatedAt:  now,
			Score:      30,
			LastActive: now,
		},
		{
			ID:         "2",
			Name:       "Roast Masters",
			Members:    []string{"2", "3", "4", "5"},
			CreatedBy:  "2",
			CreatedAt:  now,
			Score:      70,
			LastActive: now,
		},
		{
			ID:         "3",
			Name:       "Comedy Club",
			Members:    []string{"1", "2", "3", "4", "5"},
			CreatedBy:  "3",
			CreatedAt:  now.Add(-24 * time.Hour),
			Score:      14,
			LastActive: now.Add(-24 * time.Hour),
		},
	}
}

// Situations returns the prompt pool. Challenges reference prompts by index.
func Situations() []string {
	return []string{
		"When your friend shows up wearing the same outfit they've worn for 5 days straight",
		"When someone takes a selfie with every meal they eat",
		"When your friend says they're 'on their way' but you know they haven't left home yet",
		"When someone brings a guitar to a party and starts playing 'Wonderwall'",
		"When your friend claims they're a fitness guru after going to the gym once",
		"When someone talks about their crypto investments for the 100th time",
		"When your friend posts motivational quotes but never follows their own advice",
		"When someone watches one episode of a show and suddenly becomes an expert",
		"When your friend cancels plans last minute for the third time this month",
		"When someone uses a filter that makes them look nothing like themselves",
	}
}

func Roasts(now time.Time) []domain.Roast {
	return []domain.Roast{
		{
			ID:          "1",
			UserID:      "1",
			GroupID:     "1",
			SituationID: "1",
			Content:     "I thought your clothes were developing separation anxiety, but now I see they're in a committed relationship with your body odor.",
			Votes:       []string{"3", "4"},
			CreatedAt:   now,
		},
		{
			ID:          "2",
			UserID:      "2",
			GroupID:     "1",
			SituationID: "1",
			Content:     "Is your washing machine broken or is this a new strategy to be recognized from a distance?",
			Votes:       []string{"1"},
			CreatedAt:   now,
		},
		{
			ID:          "3",
			UserID:      "3",
			GroupID:     "1",
			SituationID: "1",
			Content:     "Your outfit is so consistent it should run for office.",
			Votes:       []string{},
			CreatedAt:   now,
		},
	}
}

// Challenges returns the single demo challenge, expiring 6 hours from now.
func Challenges(now time.Time) []domain.Challenge {
	return []domain.Challenge{
		{
			ID:          "1",
			SituationID: "1",
			GroupID:     "1",
			CreatedAt:   now,
			ExpiresAt:   now.Add(6 * time.Hour),
			Roasts:      []string{"1", "2", "3"},
		},
	}
}
