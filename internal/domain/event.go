package domain

import "time"

const (
	EventNameVoteCast           = "vote.cast"
	EventNameScoreUpdated       = "score.updated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventVoteCast is published after a vote is actually appended to a roast.
// Repeated votes by the same user do not publish.
type EventVoteCast struct {
	Roast Roast
	Voter string
	At    time.Time
}

func (EventVoteCast) Name() string { return EventNameVoteCast }

type EventScoreUpdated struct {
	Score GroupScore
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
