// Package api exposes the store operations to the mobile client as a JSON
// HTTP surface. Per-field validation and existence checks live here; the
// stores themselves stay silent on unknown ids.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/roastline/internal/auth"
	"github.com/victornm/roastline/internal/domain"
	"github.com/victornm/roastline/internal/errors"
	"github.com/victornm/roastline/internal/event"
	"github.com/victornm/roastline/internal/leaderboard"
	"github.com/victornm/roastline/internal/roast"
)

var emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Auth         *auth.Store
	App          *roast.Store
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	auth *auth.Store
	app  *roast.Store
	ls   *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		auth:   c.Auth,
		app:    c.App,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	a.register(c.Router)

	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

func (a *API) register(r gin.IRouter) {
	v1 := r.Group("/v1")

	v1.POST("/auth/login", a.Login)
	v1.POST("/auth/signup", a.Signup)
	v1.POST("/auth/logout", a.Logout)
	v1.PATCH("/auth/user", a.UpdateUser)
	v1.GET("/auth/session", a.Session)
	v1.GET("/users", a.ListUsers)

	v1.GET("/state", a.GetState)
	v1.POST("/state/reset", a.ResetState)
	v1.PUT("/state/selection", a.SetSelection)

	v1.GET("/groups", a.ListGroups)
	v1.POST("/groups", a.CreateGroup)
	v1.POST("/groups/:id/join", a.JoinGroup)
	v1.POST("/groups/:id/leave", a.LeaveGroup)
	v1.GET("/groups/:id/challenge", a.GroupChallenge)
	v1.POST("/groups/:id/challenges", a.CreateChallenge)

	v1.POST("/challenges/:id/roasts", a.SubmitRoast)
	v1.POST("/roasts/:id/votes", a.VoteForRoast)

	v1.GET("/leaderboard", a.GetLeaderboard)
}

type (
	Session struct {
		User            *domain.User `json:"user"`
		IsAuthenticated bool         `json:"isAuthenticated"`
		IsLoading       bool         `json:"isLoading"`
		Error           string       `json:"error,omitempty"`
	}

	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	SignupRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

func (a *API) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("email and password are required")))
		return
	}
	if !emailRe.MatchString(req.Email) {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid email address")))
		return
	}

	a.auth.Login(c.Request.Context(), req.Email, req.Password)

	st := a.auth.State()
	if !st.IsAuthenticated {
		abort(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("%s", st.Err)))
		return
	}

	c.JSON(http.StatusOK, toSession(st))
}

func (a *API) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("username, email and password are required")))
		return
	}
	if !emailRe.MatchString(req.Email) {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid email address")))
		return
	}

	a.auth.Signup(c.Request.Context(), req.Username, req.Email, req.Password)

	st := a.auth.State()
	if st.Err != "" {
		abort(c, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("%s", st.Err)))
		return
	}

	c.JSON(http.StatusCreated, toSession(st))
}

func (a *API) Logout(c *gin.Context) {
	a.auth.Logout(c.Request.Context())
	c.JSON(http.StatusOK, toSession(a.auth.State()))
}

func (a *API) UpdateUser(c *gin.Context) {
	var patch auth.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	if _, err := a.sessionUser(); err != nil {
		abort(c, err)
		return
	}

	if patch.Email != nil && !emailRe.MatchString(*patch.Email) {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid email address")))
		return
	}

	a.auth.UpdateUser(c.Request.Context(), patch)
	c.JSON(http.StatusOK, toSession(a.auth.State()))
}

func (a *API) Session(c *gin.Context) {
	c.JSON(http.StatusOK, toSession(a.auth.State()))
}

func (a *API) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": a.auth.KnownUsers()})
}

func (a *API) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, a.app.State())
}

func (a *API) ResetState(c *gin.Context) {
	a.app.ResetStore(c.Request.Context())
	slog.InfoContext(c.Request.Context(), "api: store reset to seed dataset")
	c.JSON(http.StatusOK, a.app.State())
}

type SelectionRequest struct {
	CurrentGroup     *string `json:"currentGroup"`
	CurrentChallenge *string `json:"currentChallenge"`
}

// SetSelection assigns the transient selection pointers. Absent fields are
// untouched; an explicit empty string clears a pointer. Ids are not
// validated, matching the store contract.
func (a *API) SetSelection(c *gin.Context) {
	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	ctx := c.Request.Context()
	if req.CurrentGroup != nil {
		a.app.SetCurrentGroup(ctx, *req.CurrentGroup)
	}
	if req.CurrentChallenge != nil {
		a.app.SetCurrentChallenge(ctx, *req.CurrentChallenge)
	}

	c.Status(http.StatusNoContent)
}

type CreateGroupRequest struct {
	Name string `json:"name"`
}

type CreateGroupResponse struct {
	Group       domain.Group `json:"group"`
	ChallengeID string       `json:"challengeId"`
}

func (a *API) ListGroups(c *gin.Context) {
	if member := c.Query("member"); member != "" {
		c.JSON(http.StatusOK, gin.H{"groups": a.app.GroupsForUser(member)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": a.app.State().Groups})
}

// CreateGroup creates a group with the caller as its only member, spins up
// the group's first challenge, and selects both.
func (a *API) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("group name is required")))
		return
	}

	u, err := a.sessionUser()
	if err != nil {
		abort(c, err)
		return
	}

	ctx := c.Request.Context()
	now := time.Now()
	g := domain.Group{
		ID:         newID(),
		Name:       req.Name,
		Members:    []string{u.ID},
		CreatedBy:  u.ID,
		CreatedAt:  now,
		Score:      0,
		LastActive: now,
	}

	a.app.AddGroup(ctx, g)
	challengeID := a.app.CreateChallenge(ctx, g.ID)
	a.app.SetCurrentGroup(ctx, g.ID)
	a.app.SetCurrentChallenge(ctx, challengeID)

	slog.InfoContext(ctx, "api: group created", "group", g.ID, "name", g.Name, "creator", u.ID)

	c.JSON(http.StatusCreated, CreateGroupResponse{
		Group:       g,
		ChallengeID: challengeID,
	})
}

// JoinGroup adds the caller to the group named by its invite code (the
// group id, in this demo) and selects it. Joining a group twice is
// rejected here: the store append is deliberately unconditional.
func (a *API) JoinGroup(c *gin.Context) {
	u, err := a.sessionUser()
	if err != nil {
		abort(c, err)
		return
	}

	g, ok := a.app.Group(c.Param("id"))
	if !ok {
		abort(c, errors.New(errors.CodeNotFound, errors.WithMessagef("group not found: %s", c.Param("id"))))
		return
	}

	for _, m := range g.Members {
		if m == u.ID {
			abort(c, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("already a member of group %s", g.ID)))
			return
		}
	}

	ctx := c.Request.Context()
	a.app.JoinGroup(ctx, g.ID, u.ID)
	a.app.SetCurrentGroup(ctx, g.ID)

	g, _ = a.app.Group(g.ID)
	c.JSON(http.StatusOK, gin.H{"group": g})
}

func (a *API) LeaveGroup(c *gin.Context) {
	u, err := a.sessionUser()
	if err != nil {
		abort(c, err)
		return
	}

	g, ok := a.app.Group(c.Param("id"))
	if !ok {
		abort(c, errors.New(errors.CodeNotFound, errors.WithMessagef("group not found: %s", c.Param("id"))))
		return
	}

	a.app.LeaveGroup(c.Request.Context(), g.ID, u.ID)
	c.Status(http.StatusNoContent)
}

type ChallengeView struct {
	Challenge domain.Challenge `json:"challenge"`
	Situation string           `json:"situation"`
	Roasts    []domain.Roast   `json:"roasts"`
	Expired   bool             `json:"expired"`
	Remaining string           `json:"remaining"`
	Submitted bool             `json:"submitted"`
}

// GroupChallenge returns the group's latest challenge with everything the
// challenge screen renders: prompt text, submissions, remaining time, and
// whether the caller already submitted.
func (a *API) GroupChallenge(c *gin.Context) {
	groupID := c.Param("id")
	if _, ok := a.app.Group(groupID); !ok {
		abort(c, errors.New(errors.CodeNotFound, errors.WithMessagef("group not found: %s", groupID)))
		return
	}

	ch, ok := a.app.LatestChallenge(groupID)
	if !ok {
		abort(c, errors.New(errors.CodeNotFound, errors.WithMessagef("no active challenge for group %s", groupID)))
		return
	}

	view := ChallengeView{
		Challenge: ch,
		Situation: a.app.SituationText(ch.SituationID),
		Roasts:    a.app.RoastsForChallenge(ch.ID),
	}

	now := time.Now()
	if now.After(ch.ExpiresAt) {
		view.Expired = true
		view.Remaining = "Expired"
	} else {
		d := ch.ExpiresAt.Sub(now)
		view.Remaining = formatRemaining(d)
	}

	if st := a.auth.State(); st.User != nil {
		for _, r := range view.Roasts {
			if r.UserID == st.User.ID {
				view.Submitted = true
				break
			}
		}
	}

	c.JSON(http.StatusOK, view)
}

func (a *API) CreateChallenge(c *gin.Context) {
	groupID := c.Param("id")
	if _, ok := a.app.Group(groupID); !ok {
		abort(c, errors.New(errors.CodeNotFound, errors.WithMessagef("group not found: %s", groupID)))
		return
	}

	id := a.app.CreateChallenge(c.Request.Context(), groupID)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type SubmitRoastRequest struct {
	Content string `json:"content"`
}

// SubmitRoast submits the caller's roast for a challenge. One submission
// per user per challenge; the caller must belong to the challenge's group.
func (a *API) SubmitRoast(c *gin.Context) {
	var req SubmitRoastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("roast content is required")))
		return
	}

	u, err := a.sessionUser()
	if err != nil {
		abort(c, err)
		return
	}

	ch, ok := a.app.Challenge(c.Param("id"))
	if !ok {
		abort(c, errors.New(errors.CodeNotFound, errors.WithMessagef("challenge not found: %s", c.Param("id"))))
		return
	}

	g, ok := a.app.Group(ch.GroupID)
	if !ok {
		abort(c, errors.New(errors.CodeNotFound, errors.WithMessagef("group not found: %s", ch.GroupID)))
		return
	}

	member := false
	for _, m := range g.Members {
		if m == u.ID {
			member = true
			break
		}
	}
	if !member {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("user %s is not a member of group %s", u.ID, g.ID)))
		return
	}

	for _, r := range a.app.RoastsForChallenge(ch.ID) {
		if r.UserID == u.ID {
			abort(c, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("roast already submitted for challenge %s", ch.ID)))
			return
		}
	}

	id := a.app.SubmitRoast(c.Request.Context(), roast.SubmitRoastRequest{
		UserID:      u.ID,
		GroupID:     g.ID,
		ChallengeID: ch.ID,
		Content:     req.Content,
	})

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// VoteForRoast registers the caller's vote. Voting twice is not an error;
// the vote list holds each voter once.
func (a *API) VoteForRoast(c *gin.Context) {
	u, err := a.sessionUser()
	if err != nil {
		abort(c, err)
		return
	}

	r, ok := a.app.Roast(c.Param("id"))
	if !ok {
		abort(c, errors.New(errors.CodeNotFound, errors.WithMessagef("roast not found: %s", c.Param("id"))))
		return
	}

	a.app.VoteForRoast(c.Request.Context(), r.ID, u.ID)

	r, _ = a.app.Roast(r.ID)
	c.JSON(http.StatusOK, gin.H{"roast": r})
}

func (a *API) GetLeaderboard(c *gin.Context) {
	l, err := a.ls.GetLeaderboard(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	resp := Leaderboard{Entries: make([]LeaderboardEntry, 0, len(l.Entries))}
	for _, e := range l.Entries {
		resp.Entries = append(resp.Entries, LeaderboardEntry{
			GroupID: e.GroupID,
			Heat:    formatHeat(e.Heat),
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) sessionUser() (*domain.User, error) {
	st := a.auth.State()
	if !st.IsAuthenticated || st.User == nil {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("not signed in"))
	}

	return st.User, nil
}

func toSession(st auth.State) Session {
	return Session{
		User:            st.User,
		IsAuthenticated: st.IsAuthenticated,
		IsLoading:       st.IsLoading,
		Error:           st.Err,
	}
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func formatRemaining(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}
