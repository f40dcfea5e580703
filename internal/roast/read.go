package roast

import (
	"strconv"

	"github.com/victornm/roastline/internal/domain"
)

// Read access is whole-snapshot or derived from it; every returned value
// is a copy, never a reference into the store.

// State returns a copy of the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.clone()
}

func (s *Store) Group(groupID string) (domain.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.state.Groups {
		if g.ID == groupID {
			g.Members = cloneStrings(g.Members)
			return g, true
		}
	}

	return domain.Group{}, false
}

func (s *Store) Challenge(challengeID string) (domain.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.state.Challenges {
		if c.ID == challengeID {
			c.Roasts = cloneStrings(c.Roasts)
			return c, true
		}
	}

	return domain.Challenge{}, false
}

func (s *Store) Roast(roastID string) (domain.Roast, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.state.Roasts {
		if r.ID == roastID {
			return cloneRoast(r), true
		}
	}

	return domain.Roast{}, false
}

// LatestChallenge returns the group's most recent challenge by creation
// time. Ties keep the earliest-appended challenge.
func (s *Store) LatestChallenge(groupID string) (domain.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		latest domain.Challenge
		found  bool
	)
	for _, c := range s.state.Challenges {
		if c.GroupID != groupID {
			continue
		}

		if !found || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
			found = true
		}
	}

	if !found {
		return domain.Challenge{}, false
	}

	latest.Roasts = cloneStrings(latest.Roasts)
	return latest, true
}

// GroupsForUser returns the groups the user is a member of, in insertion
// order.
func (s *Store) GroupsForUser(userID string) []domain.Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Group
	for _, g := range s.state.Groups {
		for _, m := range g.Members {
			if m == userID {
				g.Members = cloneStrings(g.Members)
				out = append(out, g)
				break
			}
		}
	}

	return out
}

// RoastsForChallenge returns the roasts linked into the challenge, in
// submission order.
func (s *Store) RoastsForChallenge(challengeID string) []domain.Roast {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, c := range s.state.Challenges {
		if c.ID == challengeID {
			ids = c.Roasts
			break
		}
	}

	var out []domain.Roast
	for _, r := range s.state.Roasts {
		for _, id := range ids {
			if r.ID == id {
				out = append(out, cloneRoast(r))
				break
			}
		}
	}

	return out
}

// GroupHeat sums the votes across all of a group's roasts.
func (s *Store) GroupHeat(groupID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, r := range s.state.Roasts {
		if r.GroupID == groupID {
			total += len(r.Votes)
		}
	}

	return total
}

// SituationText resolves a situation reference to its prompt. The
// reference is an index into the pool, carried as a string; anything
// unparsable resolves to the empty prompt.
func (s *Store) SituationText(situationID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.state.Situations) == 0 {
		return ""
	}

	idx, err := strconv.Atoi(situationID)
	if err != nil || idx < 0 {
		return ""
	}

	return s.state.Situations[idx%len(s.state.Situations)]
}
