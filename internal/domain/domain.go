package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered account. Identity fields never change after signup;
// username and avatar may be rewritten via profile update.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Email    string `json:"email"`
}

// Group is a named set of users who share challenges.
// Members is an ordered list of user ids; the creator is always a member.
type Group struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Members    []string  `json:"members"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	Score      int       `json:"score"`
	LastActive time.Time `json:"lastActive"`
}

// Challenge is one prompt instance scoped to a single group.
// SituationID is an index into the situation pool, carried as a string.
// ExpiresAt is advisory: expired challenges are never removed.
type Challenge struct {
	ID          string    `json:"id"`
	SituationID string    `json:"situationId"`
	GroupID     string    `json:"groupId"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Roasts      []string  `json:"roasts"`
}

// Roast is a user's submission for a challenge, subject to peer voting.
// Votes holds the ids of the users who voted, each at most once.
type Roast struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	GroupID     string    `json:"groupId"`
	SituationID string    `json:"situationId"`
	Content     string    `json:"content"`
	Votes       []string  `json:"votes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GroupScore is a group's accumulated heat, recomputed from effective votes.
type GroupScore struct {
	GroupID    string
	Heat       decimal.Decimal
	UpdateTime time.Time
}

// Leaderboard ranks all groups by heat.
// Entries are sorted by heat in descending order.
type Leaderboard struct {
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	GroupID string
	Heat    float64
}
