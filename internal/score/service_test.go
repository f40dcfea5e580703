package score_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/victornm/roastline/internal/domain"
	"github.com/victornm/roastline/internal/event"
	"github.com/victornm/roastline/internal/score"
)

type fakeReader map[string]int

func (r fakeReader) GroupHeat(groupID string) int { return r[groupID] }

func TestService_RecordVote(t *testing.T) {
	eb := event.NewBus()

	var (
		mu        sync.Mutex
		published []domain.EventScoreUpdated
	)
	eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		published = append(published, e.(domain.EventScoreUpdated))
		mu.Unlock()
		return nil
	})

	s := score.NewService(score.Config{
		EventBus: eb,
		Store:    fakeReader{"1": 4},
	})

	at := time.Now()
	err := s.RecordVote(context.Background(), domain.EventVoteCast{
		Roast: domain.Roast{ID: "r1", GroupID: "1"},
		Voter: "2",
		At:    at,
	})
	require.NoError(t, err)

	eb.Stop()

	require.Len(t, published, 1)
	require.Equal(t, "1", published[0].Score.GroupID)
	require.True(t, decimal.NewFromInt(4).Equal(published[0].Score.Heat))
	require.Equal(t, at, published[0].Score.UpdateTime)
}

func TestService_SubscribesToVoteCast(t *testing.T) {
	eb := event.NewBus()

	var (
		mu        sync.Mutex
		published []domain.EventScoreUpdated
	)
	eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		published = append(published, e.(domain.EventScoreUpdated))
		mu.Unlock()
		return nil
	})

	score.NewService(score.Config{
		EventBus: eb,
		Store:    fakeReader{"2": 1},
	})

	eb.Publish(context.Background(), domain.EventVoteCast{
		Roast: domain.Roast{ID: "r2", GroupID: "2"},
		Voter: "5",
		At:    time.Now(),
	})

	eb.Stop()

	require.Len(t, published, 1)
	require.Equal(t, "2", published[0].Score.GroupID)
}
