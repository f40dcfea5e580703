package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/roastline/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Leaderboard struct {
		Entries []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		GroupID string `json:"group_id"`
		Heat    string `json:"heat"`
	}
)

// PublishLeaderboardUpdated pushes the new standings to every member of
// every ranked group over their personal pubsub channel.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	data := Leaderboard{
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	recipients := make(map[string]struct{})
	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			GroupID: entry.GroupID,
			Heat:    formatHeat(entry.Heat),
		})

		g, ok := a.app.Group(entry.GroupID)
		if !ok {
			continue
		}
		for _, m := range g.Members {
			recipients[m] = struct{}{}
		}
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for user := range recipients {
		user := user
		eg.Go(func() error {
			return a.publishNotification(ctx, user, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, user, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:user:%s", a.prefix, user), b).Err()
}

func formatHeat(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
