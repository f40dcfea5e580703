// Package auth owns the current session: the authenticated user, the
// status flags the client renders from, and the known-user registry the
// demo accounts live in.
package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/victornm/roastline/internal/domain"
	"github.com/victornm/roastline/internal/kv"
	"github.com/victornm/roastline/internal/seed"
)

// StateKey is the document key the session snapshot is persisted under.
const StateKey = "roastline:auth"

const (
	loginLatency  = time.Second
	logoutLatency = 500 * time.Millisecond
	updateLatency = 500 * time.Millisecond
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgEmailInUse         = "Email already in use"
)

// State is the full session snapshot. The whole struct is what gets
// persisted and what the view layer reads.
type State struct {
	User            *domain.User  `json:"user"`
	IsAuthenticated bool          `json:"isAuthenticated"`
	IsLoading       bool          `json:"isLoading"`
	Err             string        `json:"error,omitempty"`
	Users           []domain.User `json:"users"`
}

type Config struct {
	KV kv.Store

	// Delay simulates upstream latency. Defaults to time.Sleep;
	// tests inject a no-op.
	Delay func(d time.Duration)
}

// Store is the session state machine. Operations never return errors:
// every failure is captured in the state's error field, and IsLoading is
// reset on all paths.
type Store struct {
	kv    kv.Store
	delay func(d time.Duration)

	mu    sync.Mutex
	state State
}

func NewStore(c Config) *Store {
	s := &Store{
		kv:    c.KV,
		delay: c.Delay,
	}

	if s.delay == nil {
		s.delay = time.Sleep
	}

	s.state = State{Users: seed.Users()}
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
		return fmt.Errorf("auth: hydrate: %w", err)
	}

	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return fmt.Errorf("auth: hydrate: unmarshal: %w", err)
	}

	// An in-flight operation persisted before a crash stays loading forever
	// otherwise.
	st.IsLoading = false
	if len(st.Users) == 0 {
		st.Users = seed.Users()
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

// State returns a copy of the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.clone()
}

// KnownUsers returns the registry: the seed accounts plus everyone who
// signed up on this instance.
func (s *Store) KnownUsers() []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.User(nil), s.state.Users...)
}

// Login authenticates by exact email match against the known users.
// Any password is accepted for a known email.
func (s *Store) Login(ctx context.Context, email, password string) {
	s.begin(ctx)
	s.delay(loginLatency)

	s.mu.Lock()
	defer s.mu.Unlock()

	var found *domain.User
	for i := range s.state.Users {
		if s.state.Users[i].Email == email {
			found = &s.state.Users[i]
			break
		}
	}

	if found == nil {
		s.state.Err = msgInvalidCredentials
		s.state.IsLoading = false
		s.commit(ctx)
		return
	}

	u := *found
	s.state.User = &u
	s.state.IsAuthenticated = true
	s.state.IsLoading = false
	s.commit(ctx)
}

// Signup registers a new account and signs it in. The generated id is the
// registry size plus one; the avatar is a generated placeholder.
func (s *Store) Signup(ctx context.Context, username, email, password string) {
	s.begin(ctx)
	s.delay(loginLatency)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.state.Users {
		if u.Email == email {
			s.state.Err = msgEmailInUse
			s.state.IsLoading = false
			s.commit(ctx)
			return
		}
	}

	u := domain.User{
		ID:       strconv.Itoa(len(s.state.Users) + 1),
		Username: username,
		Email:    email,
		Avatar:   fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=random", url.QueryEscape(username)),
	}

	s.state.Users = append(s.state.Users, u)
	s.state.User = &u
	s.state.IsAuthenticated = true
	s.state.IsLoading = false
	s.commit(ctx)
}

// Logout clears the session.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.state.IsLoading = true
	s.commit(ctx)
	s.mu.Unlock()

	s.delay(logoutLatency)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.User = nil
	s.state.IsAuthenticated = false
	s.state.IsLoading = false
	s.commit(ctx)
}

// UserPatch carries the profile fields an update may rewrite.
// Nil fields are left untouched.
type UserPatch struct {
	Username *string `json:"username"`
	Avatar   *string `json:"avatar"`
	Email    *string `json:"email"`
}

// UpdateUser merges the patch into the current user. Without a session it
// is a no-op.
func (s *Store) UpdateUser(ctx context.Context, patch UserPatch) {
	s.mu.Lock()
	s.state.IsLoading = true
	s.commit(ctx)
	s.mu.Unlock()

	s.delay(updateLatency)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.User != nil {
		if patch.Username != nil {
			s.state.User.Username = *patch.Username
		}
		if patch.Avatar != nil {
			s.state.User.Avatar = *patch.Avatar
		}
		if patch.Email != nil {
			s.state.User.Email = *patch.Email
		}
	}

	s.state.IsLoading = false
	s.commit(ctx)
}

// begin marks the start of an operation: loading on, previous error cleared.
func (s *Store) begin(ctx context.Context) {
	s.mu.Lock()
	s.state.IsLoading = true
	s.state.Err = ""
	s.commit(ctx)
	s.mu.Unlock()
}

// commit persists the whole snapshot. The write is fire-and-forget: a
// failure is logged, never surfaced, so a crash after the in-memory update
// can lose the latest mutation. Callers must hold mu.
func (s *Store) commit(ctx context.Context) {
	b, err := json.Marshal(s.state)
	if err != nil {
		slog.ErrorContext(ctx, "auth: marshal state failed", "error", err)
		return
	}

	if err := s.kv.Set(ctx, StateKey, b); err != nil {
		slog.ErrorContext(ctx, "auth: persist state failed", "error", err)
	}
}

func (st State) clone() State {
	cp := st
	if st.User != nil {
		u := *st.User
		cp.User = &u
	}
	cp.Users = append([]domain.User(nil), st.Users...)
	return cp
}
