package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viewmaxx/backend/internal/config"
	"github.com/viewmaxx/backend/internal/logging"
	"github.com/viewmaxx/backend/internal/metrics"
	"github.com/viewmaxx/backend/internal/token"
	"github.com/viewmaxx/backend/pkg/models"
)

type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (s *memoryUserStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (s *memoryUserStore) UpdateRefreshToken(ctx context.Context, userID string, tok *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[userID]; ok {
		user.RefreshToken = tok
	}
	return nil
}

type memoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (s *memoryTokenStore) SetRefreshToken(ctx context.Context, userID, tok string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = tok
	return nil
}

func (s *memoryTokenStore) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[userID], nil
}

func (s *memoryTokenStore) DeleteRefreshToken(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

func setupGuard(t *testing.T) (*token.Service, *memoryUserStore) {
	gin.SetMode(gin.TestMode)

	users := &memoryUserStore{users: map[string]*models.User{
		"user-1": {
			ID:       "user-1",
			Email:    "viewer@example.com",
			Username: "viewer",
			Role:     models.UserRoleUser,
		},
		"admin-1": {
			ID:       "admin-1",
			Email:    "admin@example.com",
			Username: "admin",
			Role:     models.UserRoleAdmin,
		},
	}}

	logger, err := logging.NewDefaultLogger()
	require.NoError(t, err)

	svc := token.NewService(users, &memoryTokenStore{tokens: make(map[string]string)}, config.AuthConfig{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}, logger)

	return svc, users
}

func protectedRouter(svc *token.Service, users *memoryUserStore, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	handlers := append([]gin.HandlerFunc{RequireAuth(svc, users)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		user, _ := GetUser(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	router.GET("/protected", handlers...)
	return router
}

func doRequest(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w
}

func issueFor(t *testing.T, svc *token.Service, users *memoryUserStore, id string) string {
	user, err := users.FindUserByID(context.Background(), id)
	require.NoError(t, err)
	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)
	return pair.AccessToken
}

func TestRequireAuthRejections(t *testing.T) {
	svc, users := setupGuard(t)
	router := protectedRouter(svc, users)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{
			name:           "missing authorization header",
			header:         "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed header",
			header:         "NotBearer abc",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "garbage token",
			header:         "Bearer not.a.token",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.header)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), `"success":false`)
		})
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	svc, users := setupGuard(t)
	router := protectedRouter(svc, users)

	logger, err := logging.NewDefaultLogger()
	require.NoError(t, err)
	expiredSvc := token.NewService(users, &memoryTokenStore{tokens: make(map[string]string)}, config.AuthConfig{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  -1 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}, logger)

	accessToken := issueFor(t, expiredSvc, users, "user-1")

	before := testutil.ToFloat64(metrics.AuthFailuresTotal.WithLabelValues("token_expired"))

	w := doRequest(router, "Bearer "+accessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "expired")

	after := testutil.ToFloat64(metrics.AuthFailuresTotal.WithLabelValues("token_expired"))
	assert.Equal(t, before+1, after, "each expired-token rejection counts once")
}

func TestRequireAuthDeletedUser(t *testing.T) {
	svc, users := setupGuard(t)
	router := protectedRouter(svc, users)

	accessToken := issueFor(t, svc, users, "user-1")
	delete(users.users, "user-1")

	w := doRequest(router, "Bearer "+accessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "does no longer exist")
}

func TestRequireAuthRestrictedAccounts(t *testing.T) {
	svc, users := setupGuard(t)
	router := protectedRouter(svc, users)

	accessToken := issueFor(t, svc, users, "user-1")

	// A structurally valid, unexpired token succeeds first
	w := doRequest(router, "Bearer "+accessToken)
	require.Equal(t, http.StatusOK, w.Code)

	before := testutil.ToFloat64(metrics.AuthFailuresTotal.WithLabelValues("banned"))

	// Ban takes effect immediately because the guard re-reads the database
	users.users["user-1"].IsBanned = true
	w = doRequest(router, "Bearer "+accessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "banned")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuthFailuresTotal.WithLabelValues("banned")))

	users.users["user-1"].IsBanned = false
	users.users["user-1"].IsSuspended = true
	w = doRequest(router, "Bearer "+accessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "suspended")
}

func TestRequireRole(t *testing.T) {
	svc, users := setupGuard(t)
	router := protectedRouter(svc, users, RequireRole(models.UserRoleAdmin))

	userToken := issueFor(t, svc, users, "user-1")
	adminToken := issueFor(t, svc, users, "admin-1")

	w := doRequest(router, "Bearer "+userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "permission")

	w = doRequest(router, "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOptionalAuthNeverBlocks(t *testing.T) {
	svc, users := setupGuard(t)

	router := gin.New()
	router.GET("/feed", OptionalAuth(svc, users), func(c *gin.Context) {
		if user, ok := GetUser(c); ok {
			c.JSON(http.StatusOK, gin.H{"viewer": user.Username})
			return
		}
		c.JSON(http.StatusOK, gin.H{"viewer": "guest"})
	})

	get := func(header string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/feed", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("no token proceeds as guest", func(t *testing.T) {
		w := get("")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "guest")
	})

	t.Run("malformed token proceeds as guest", func(t *testing.T) {
		w := get("Bearer garbage")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "guest")
	})

	t.Run("banned user proceeds as guest", func(t *testing.T) {
		accessToken := issueFor(t, svc, users, "user-1")
		users.users["user-1"].IsBanned = true
		defer func() { users.users["user-1"].IsBanned = false }()

		w := get("Bearer " + accessToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "guest")
	})

	t.Run("valid token attaches the user", func(t *testing.T) {
		accessToken := issueFor(t, svc, users, "user-1")
		w := get("Bearer " + accessToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"viewer":"viewer"`)
	})
}
