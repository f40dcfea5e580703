// Package score turns effective votes into group heat. The stored seeded
// score on a group is never rewritten; heat is a derived figure feeding
// the leaderboard.
package score

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/victornm/roastline/internal/domain"
	"github.com/victornm/roastline/internal/event"
)

// Reader is the slice of the domain store the service needs.
type Reader interface {
	GroupHeat(groupID string) int
}

type Config struct {
	EventBus *event.Bus
	Store    Reader
}

type Service struct {
	eb    *event.Bus
	store Reader
}

func NewService(c Config) *Service {
	s := &Service{
		eb:    c.EventBus,
		store: c.Store,
	}

	s.eb.Subscribe(domain.EventNameVoteCast, func(ctx context.Context, e event.Event) error {
		return s.RecordVote(ctx, e.(domain.EventVoteCast))
	})

	return s
}

// RecordVote recomputes the heat of the voted roast's group and publishes
// the updated score.
func (s *Service) RecordVote(ctx context.Context, e domain.EventVoteCast) error {
	heat := decimal.NewFromInt(int64(s.store.GroupHeat(e.Roast.GroupID)))

	s.eb.Publish(ctx, domain.EventScoreUpdated{
		Score: domain.GroupScore{
			GroupID:    e.Roast.GroupID,
			Heat:       heat,
			UpdateTime: e.At,
		},
	})

	return nil
}
