// Package leaderboard maintains the global group ranking in a redis sorted
// set and republishes it, throttled, whenever a group's heat changes.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/roastline/internal/domain"
	"github.com/victornm/roastline/internal/errors"
	"github.com/victornm/roastline/internal/event"
)

const publishInterval = 200 * time.Millisecond

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreUpdated))
	})

	return s
}

// GetLeaderboard returns every ranked group, hottest first.
func (s *Service) GetLeaderboard(ctx context.Context) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard is empty"))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			GroupID: z.Member.(string),
			Heat:    z.Score,
		})
	}

	return &domain.Leaderboard{Entries: entries}, nil
}

// UpdateLeaderboard overwrites the group's heat in the ranking.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	sc := e.Score

	if err := s.redis.ZAdd(ctx, s.leaderboardKey(), redis.Z{
		Score:  sc.Heat.InexactFloat64(),
		Member: sc.GroupID,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, sc)
}

// schedulePublishLeaderboard publishes the standings at most once per
// interval: a burst of votes collapses into a single publish. The SetNX
// key doubles as a cross-instance guard, same caveats as any best-effort
// redis lock.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, sc domain.GroupScore) error {
	ok, err := s.redis.SetNX(ctx, s.timeKey(), sc.UpdateTime.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, sc)
}

func (s *Service) publishLeaderboard(ctx context.Context, sc domain.GroupScore) error {
	l, err := s.GetLeaderboard(ctx)
	if err != nil {
		return fmt.Errorf("get leaderboard failed: group=%s: %w", sc.GroupID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return s.redis.Set(ctx, s.timeKey(), sc.UpdateTime.UnixMilli(), publishInterval).Err()
}

func (s *Service) leaderboardKey() string {
	return fmt.Sprintf("%s:leaderboard", s.prefix)
}

func (s *Service) timeKey() string {
	return fmt.Sprintf("%s:leaderboard:time", s.prefix)
}
