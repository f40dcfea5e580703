// Package roast owns the shared collections: groups, challenges, roasts
// and the situation prompt pool, plus the two transient selection pointers
// the client navigates with.
package roast

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/roastline/internal/domain"
	"github.com/victornm/roastline/internal/event"
	"github.com/victornm/roastline/internal/kv"
	"github.com/victornm/roastline/internal/seed"
)

// StateKey is the document key the domain snapshot is persisted under.
const StateKey = "roastline:app"

const challengeWindow = 24 * time.Hour

// State is the full domain snapshot. CurrentGroup and CurrentChallenge are
// selection pointers, not domain truth: nothing validates that they exist.
// An empty string means nothing is selected.
type State struct {
	Groups           []domain.Group     `json:"groups"`
	Challenges       []domain.Challenge `json:"challenges"`
	Roasts           []domain.Roast     `json:"roasts"`
	Situations       []string           `json:"situations"`
	CurrentGroup     string             `json:"currentGroup,omitempty"`
	CurrentChallenge string             `json:"currentChallenge,omitempty"`
}

type Config struct {
	KV       kv.Store
	EventBus *event.Bus

	// Now and NewID are injectable for tests. They default to time.Now and
	// time-ordered uuids, so "latest challenge by creation time" holds for
	// generated ids too.
	Now   func() time.Time
	NewID func() string

	// RandIntn picks the situation for a new challenge. Defaults to
	// math/rand.
	RandIntn func(n int) int
}

// Store applies every mutation atomically under one lock and persists the
// whole snapshot after each one. Lookups that miss are silent no-ops by
// contract: callers needing failure feedback must pre-validate.
type Store struct {
	kv       kv.Store
	eb       *event.Bus
	now      func() time.Time
	newID    func() string
	randIntn func(n int) int

	mu     sync.Mutex
	state  State
	seeded State
}

func NewStore(c Config) *Store {
	s := &Store{
		kv:       c.KV,
		eb:       c.EventBus,
		now:      c.Now,
		newID:    c.NewID,
		randIntn: c.RandIntn,
	}

	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = newID
	}
	if s.randIntn == nil {
		s.randIntn = rand.Intn
	}

	at := s.now()
	s.seeded = State{
		Groups:     seed.Groups(at),
		Challenges: seed.Challenges(at),
		Roasts:     seed.Roasts(at),
		Situations: seed.Situations(),
	}
	s.state = s.seeded.clone()
	return s
}

// Hydrate loads the persisted snapshot, if any. A store that has never
// been persisted keeps its seed state. Must be called before serving.
func (s *Store) Hydrate(ctx context.Context) error {
	b, err := s.kv.Get(ctx, StateKey)
	if stderrors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("roast: hydrate: %w", err)
	}

	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return fmt.Errorf("roast: hydrate: unmarshal: %w", err)
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

// SetCurrentGroup assigns the group selection pointer. Pass "" to clear.
func (s *Store) SetCurrentGroup(ctx context.Context, groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentGroup = groupID
	s.commit(ctx)
}

// SetCurrentChallenge assigns the challenge selection pointer. Pass "" to clear.
func (s *Store) SetCurrentChallenge(ctx context.Context, challengeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentChallenge = challengeID
	s.commit(ctx)
}

// AddGroup appends a fully-formed group. Id uniqueness is the caller's
// responsibility.
func (s *Store) AddGroup(ctx context.Context, g domain.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Groups = append(s.state.Groups, g)
	s.commit(ctx)
}

// JoinGroup appends the user to the group's member list. The append is
// unconditional: joining twice leaves a duplicate entry, and the surface
// above is expected to reject a second join.
func (s *Store) JoinGroup(ctx context.Context, groupID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.Groups {
		if s.state.Groups[i].ID == groupID {
			s.state.Groups[i].Members = append(s.state.Groups[i].Members, userID)
			s.commit(ctx)
			return
		}
	}
}

// LeaveGroup removes every occurrence of the user from the group's member
// list.
func (s *Store) LeaveGroup(ctx context.Context, groupID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.Groups {
		if s.state.Groups[i].ID != groupID {
			continue
		}

		members := s.state.Groups[i].Members[:0:0]
		for _, m := range s.state.Groups[i].Members {
			if m != userID {
				members = append(members, m)
			}
		}
		s.state.Groups[i].Members = members
		s.commit(ctx)
		return
	}
}

type SubmitRoastRequest struct {
	UserID      string
	GroupID     string
	ChallengeID string
	Content     string
}

// SubmitRoast appends a new roast and links it into the given challenge.
// The roast inherits the challenge's situation reference; an unknown
// challenge id leaves the roast unlinked. Returns the new roast id.
func (s *Store) SubmitRoast(ctx context.Context, req SubmitRoastRequest) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := domain.Roast{
		ID:        s.newID(),
		UserID:    req.UserID,
		GroupID:   req.GroupID,
		Content:   req.Content,
		Votes:     []string{},
		CreatedAt: s.now(),
	}

	for i := range s.state.Challenges {
		if s.state.Challenges[i].ID == req.ChallengeID {
			r.SituationID = s.state.Challenges[i].SituationID
			s.state.Challenges[i].Roasts = append(s.state.Challenges[i].Roasts, r.ID)
			break
		}
	}

	s.state.Roasts = append(s.state.Roasts, r)
	s.commit(ctx)
	return r.ID
}

// VoteForRoast appends the user to the roast's vote list once. Voting
// again with the same user has no further effect. An effective vote
// publishes a vote event for the scoring pipeline.
func (s *Store) VoteForRoast(ctx context.Context, roastID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.Roasts {
		if s.state.Roasts[i].ID != roastID {
			continue
		}

		for _, v := range s.state.Roasts[i].Votes {
			if v == userID {
				return
			}
		}

		s.state.Roasts[i].Votes = append(s.state.Roasts[i].Votes, userID)
		s.commit(ctx)

		if s.eb != nil {
			s.eb.Publish(ctx, domain.EventVoteCast{
				Roast: cloneRoast(s.state.Roasts[i]),
				Voter: userID,
				At:    s.now(),
			})
		}
		return
	}
}

// CreateChallenge appends a new challenge for the group with a situation
// picked uniformly at random from the pool, expiring one day out. The
// group id is not validated. Returns the new challenge id.
func (s *Store) CreateChallenge(ctx context.Context, groupID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := domain.Challenge{
		ID:          s.newID(),
		SituationID: strconv.Itoa(s.randIntn(len(s.state.Situations))),
		GroupID:     groupID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(challengeWindow),
		Roasts:      []string{},
	}

	s.state.Challenges = append(s.state.Challenges, c)
	s.commit(ctx)
	return c.ID
}

// ResetStore restores all four collections to the seed dataset captured at
// construction and clears both selection pointers.
func (s *Store) ResetStore(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.seeded.clone()
	s.commit(ctx)
}

// commit persists the whole snapshot. Fire-and-forget: a failed write is
// logged and the in-memory state stands, so a crash before the next
// successful write loses this mutation. Callers must hold mu.
func (s *Store) commit(ctx context.Context) {
	b, err := json.Marshal(s.state)
	if err != nil {
		slog.ErrorContext(ctx, "roast: marshal state failed", "error", err)
		return
	}

	if err := s.kv.Set(ctx, StateKey, b); err != nil {
		slog.ErrorContext(ctx, "roast: persist state failed", "error", err)
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func (st State) clone() State {
	cp := st
	cp.Groups = make([]domain.Group, len(st.Groups))
	for i, g := range st.Groups {
		g.Members = cloneStrings(g.Members)
		cp.Groups[i] = g
	}
	cp.Challenges = make([]domain.Challenge, len(st.Challenges))
	for i, c := range st.Challenges {
		c.Roasts = cloneStrings(c.Roasts)
		cp.Challenges[i] = c
	}
	cp.Roasts = make([]domain.Roast, len(st.Roasts))
	for i, r := range st.Roasts {
		cp.Roasts[i] = cloneRoast(r)
	}
	cp.Situations = cloneStrings(st.Situations)
	return cp
}

func cloneRoast(r domain.Roast) domain.Roast {
	r.Votes = cloneStrings(r.Votes)
	return r
}

// cloneStrings keeps empty distinct from nil so persisted documents keep
// their [] fields.
func cloneStrings(xs []string) []string {
	if xs == nil {
		return nil
	}

	cp := make([]string, len(xs))
	copy(cp, xs)
	return cp
}
