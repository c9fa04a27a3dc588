package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viewmaxx/backend/internal/config"
	"github.com/viewmaxx/backend/internal/logging"
	"github.com/viewmaxx/backend/internal/middleware"
	"github.com/viewmaxx/backend/internal/token"
	"github.com/viewmaxx/backend/pkg/models"
)

type usersFixture struct {
	api    *API
	users  *memoryUserStore
	router *gin.Engine
}

// setupUsersFixture wires the user endpoints whose guard checks run before
// any database access. The database-backed paths are exercised elsewhere.
func setupUsersFixture(t *testing.T) *usersFixture {
	gin.SetMode(gin.TestMode)

	users := &memoryUserStore{users: map[string]*models.User{
		"alice": {ID: "alice", Email: "alice@example.com", Username: "alice", Role: models.UserRoleUser},
		"bob":   {ID: "bob", Email: "bob@example.com", Username: "bob", Role: models.UserRoleUser},
	}}

	logger, err := logging.NewDefaultLogger()
	require.NoError(t, err)

	tokens := token.NewService(users, &memoryTokenStore{tokens: make(map[string]string)}, config.AuthConfig{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}, logger)

	api := &API{
		cfg:    &config.Config{Environment: "test"},
		tokens: tokens,
		logger: logger,
	}

	requireAuth := middleware.RequireAuth(tokens, users)

	router := gin.New()
	router.PUT("/api/users/:id", requireAuth, api.updateProfile)
	router.POST("/api/users/:id/subscribe", requireAuth, api.subscribe)

	return &usersFixture{api: api, users: users, router: router}
}

func (f *usersFixture) accessToken(t *testing.T, userID string) string {
	user, err := f.users.FindUserByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	pair, err := f.api.tokens.Issue(context.Background(), user)
	require.NoError(t, err)
	return pair.AccessToken
}

func (f *usersFixture) do(method, path string, body interface{}, bearer string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestSubscribeToSelfRejected(t *testing.T) {
	f := setupUsersFixture(t)
	bearer := f.accessToken(t, "alice")

	w := f.do(http.MethodPost, "/api/users/alice/subscribe", nil, bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "cannot subscribe to yourself")
}

func TestSubscribeRequiresAuth(t *testing.T) {
	f := setupUsersFixture(t)

	w := f.do(http.MethodPost, "/api/users/bob/subscribe", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateProfileOwnerOnly(t *testing.T) {
	f := setupUsersFixture(t)
	bearer := f.accessToken(t, "alice")

	w := f.do(http.MethodPut, "/api/users/bob", gin.H{"bio": "not yours"}, bearer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "permission")
}
