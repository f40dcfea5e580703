package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/roastline/internal/api"
	"github.com/victornm/roastline/internal/auth"
	"github.com/victornm/roastline/internal/event"
	"github.com/victornm/roastline/internal/kv"
	"github.com/victornm/roastline/internal/leaderboard"
	"github.com/victornm/roastline/internal/roast"
	"github.com/victornm/roastline/internal/score"
)

func TestLogin(t *testing.T) {
	ts := makeStack(t)

	w := ts.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "alex@example.com",
		"password": "whatever",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.IsAuthenticated)
	require.Equal(t, "alex@example.com", resp.User.Email)
}

func TestLogin_UnknownEmail(t *testing.T) {
	ts := makeStack(t)

	w := ts.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Invalid email or password")
}

func TestLogin_Validation(t *testing.T) {
	ts := makeStack(t)

	tests := map[string]map[string]string{
		"missing email":    {"password": "x"},
		"missing password": {"email": "alex@example.com"},
		"malformed email":  {"email": "not-an-email", "password": "x"},
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/v1/auth/login", body)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSignup(t *testing.T) {
	ts := makeStack(t)

	w := ts.do(http.MethodPost, "/v1/auth/signup", map[string]string{
		"username": "Riley",
		"email":    "riley@example.com",
		"password": "x",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp api.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.IsAuthenticated)
	require.Equal(t, "6", resp.User.ID)

	w = ts.do(http.MethodPost, "/v1/auth/signup", map[string]string{
		"username": "Other",
		"email":    "riley@example.com",
		"password": "x",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "Email already in use")
}

func TestJoinGroup(t *testing.T) {
	ts := makeStack(t)
	ts.login(t, "morgan@example.com")

	w := ts.do(http.MethodPost, "/v1/groups/1/join", nil)
	require.Equal(t, http.StatusOK, w.Code)

	g, ok := ts.app.Group("1")
	require.True(t, ok)
	require.Equal(t, []string{"1", "2", "3", "4", "5"}, g.Members)
	require.Equal(t, "1", ts.app.State().CurrentGroup)

	w = ts.do(http.MethodPost, "/v1/groups/1/join", nil)
	require.Equal(t, http.StatusConflict, w.Code, "a second join should be rejected")

	g, _ = ts.app.Group("1")
	require.Equal(t, []string{"1", "2", "3", "4", "5"}, g.Members, "membership should be unchanged")
}

func TestJoinGroup_Errors(t *testing.T) {
	ts := makeStack(t)

	w := ts.do(http.MethodPost, "/v1/groups/1/join", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code, "joining requires a session")

	ts.login(t, "morgan@example.com")
	w = ts.do(http.MethodPost, "/v1/groups/999/join", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeaveGroup(t *testing.T) {
	ts := makeStack(t)
	ts.login(t, "taylor@example.com")

	w := ts.do(http.MethodPost, "/v1/groups/1/leave", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	g, _ := ts.app.Group("1")
	require.Equal(t, []string{"1", "3", "4"}, g.Members)
}

func TestCreateGroup(t *testing.T) {
	ts := makeStack(t)
	ts.login(t, "alex@example.com")

	w := ts.do(http.MethodPost, "/v1/groups", map[string]string{"name": "Night Shift"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp api.CreateGroupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "Night Shift", resp.Group.Name)
	require.Equal(t, []string{"1"}, resp.Group.Members, "the creator is the only member")
	require.NotEmpty(t, resp.ChallengeID)

	st := ts.app.State()
	require.Equal(t, resp.Group.ID, st.CurrentGroup)
	require.Equal(t, resp.ChallengeID, st.CurrentChallenge)

	ch, ok := ts.app.Challenge(resp.ChallengeID)
	require.True(t, ok)
	require.Equal(t, resp.Group.ID, ch.GroupID)
}

func TestCreateGroup_Validation(t *testing.T) {
	ts := makeStack(t)
	ts.login(t, "alex@example.com")

	w := ts.do(http.MethodPost, "/v1/groups", map[string]string{"name": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGroupChallenge(t *testing.T) {
	ts := makeStack(t)
	ts.login(t, "alex@example.com")

	w := ts.do(http.MethodGet, "/v1/groups/1/challenge", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view api.ChallengeView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Equal(t, "1", view.Challenge.ID)
	require.NotEmpty(t, view.Situation)
	require.Len(t, view.Roasts, 3)
	require.False(t, view.Expired)
	require.True(t, view.Submitted, "alex already has a seed roast on this challenge")

	w = ts.do(http.MethodGet, "/v1/groups/2/challenge", nil)
	require.Equal(t, http.StatusNotFound, w.Code, "group 2 has no challenges yet")
}

func TestSubmitRoast(t *testing.T) {
	ts := makeStack(t)
	ts.login(t, "casey@example.com")

	w := ts.do(http.MethodPost, "/v1/challenges/1/roasts", map[string]string{
		"content": "At this point the outfit is load-bearing.",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	r, ok := ts.app.Roast(resp.ID)
	require.True(t, ok)
	require.Equal(t, "4", r.UserID)
	require.Equal(t, []string{}, r.Votes)

	w = ts.do(http.MethodPost, "/v1/challenges/1/roasts", map[string]string{
		"content": "Second try.",
	})
	require.Equal(t, http.StatusConflict, w.Code, "one roast per user per challenge")
}

func TestSubmitRoast_NotAMember(t *testing.T) {
	ts := makeStack(t)
	ts.login(t, "morgan@example.com")

	w := ts.do(http.MethodPost, "/v1/challenges/1/roasts", map[string]string{
		"content": "Sneaking in.",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoteFlowUpdatesLeaderboard(t *testing.T) {
	ts := makeStack(t)
	ts.login(t, "casey@example.com")

	w := ts.do(http.MethodGet, "/v1/leaderboard", nil)
	require.Equal(t, http.StatusNotFound, w.Code, "no votes, no ranking")

	w = ts.do(http.MethodPost, "/v1/roasts/3/votes", nil)
	require.Equal(t, http.StatusOK, w.Code)

	r, _ := ts.app.Roast("3")
	require.Equal(t, []string{"4"}, r.Votes)

	// Voting again adds nothing.
	w = ts.do(http.MethodPost, "/v1/roasts/3/votes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	r, _ = ts.app.Roast("3")
	require.Equal(t, []string{"4"}, r.Votes)

	// Wait for the vote -> score -> leaderboard chain to drain.
	ts.eb.Stop()

	w = ts.do(http.MethodGet, "/v1/leaderboard", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.Leaderboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	require.Equal(t, "1", resp.Entries[0].GroupID)
	require.Equal(t, "4", resp.Entries[0].Heat, "seed votes plus the new one")
}

func TestStateAndSelection(t *testing.T) {
	ts := makeStack(t)

	w := ts.do(http.MethodPut, "/v1/state/selection", map[string]string{"currentGroup": "2"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, "/v1/state", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var st roast.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Equal(t, "2", st.CurrentGroup)
	require.Len(t, st.Groups, 3)
	require.Len(t, st.Situations, 10)
}

func TestResetState(t *testing.T) {
	ts := makeStack(t)
	ts.login(t, "morgan@example.com")

	ts.do(http.MethodPost, "/v1/groups/1/join", nil)
	g, _ := ts.app.Group("1")
	require.Len(t, g.Members, 5)

	w := ts.do(http.MethodPost, "/v1/state/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	g, _ = ts.app.Group("1")
	require.Equal(t, []string{"1", "2", "3", "4"}, g.Members)
	require.Empty(t, ts.app.State().CurrentGroup)
}

type stack struct {
	engine *gin.Engine
	eb     *event.Bus
	app    *roast.Store
}

func (ts *stack) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func (ts *stack) login(t *testing.T, email string) {
	t.Helper()

	w := ts.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    email,
		"password": "x",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func makeStack(t *testing.T) *stack {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	gin.SetMode(gin.TestMode)

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	eb := event.NewBus()

	authStore := auth.NewStore(auth.Config{
		KV:    kv.NewMemory(),
		Delay: func(time.Duration) {},
	})

	appStore := roast.NewStore(roast.Config{
		KV:       kv.NewMemory(),
		EventBus: eb,
	})

	ls := leaderboard.NewService(leaderboard.Config{
		EventBus: eb,
		Redis:    rc,
		Prefix:   "test:roastline",
	})

	score.NewService(score.Config{
		EventBus: eb,
		Store:    appStore,
	})

	engine := gin.New()
	api.New(api.Config{
		Router:       engine,
		EventBus:     eb,
		Auth:         authStore,
		App:          appStore,
		Leaderboard:  ls,
		Redis:        rc,
		PubsubPrefix: "test:roastline:pubsub",
	})

	return &stack{
		engine: engine,
		eb:     eb,
		app:    appStore,
	}
}
