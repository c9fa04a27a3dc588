package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/viewmaxx/backend/internal/metrics"
	"github.com/viewmaxx/backend/internal/respond"
	"github.com/viewmaxx/backend/internal/token"
	"github.com/viewmaxx/backend/pkg/models"
)

const (
	// UserContextKey holds the authenticated user's public projection
	UserContextKey = "current_user"
	// AuthContextKey holds the authenticated user's id
	AuthContextKey = "user_id"
)

// UserLoader loads the current user record for the subject of a token.
// The guard re-reads the database on every request instead of trusting the
// claims, so role and ban changes take effect immediately.
type UserLoader interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// extractBearerToken pulls the token out of the Authorization header
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}

// resolveUser runs the shared verification path: verify the access token,
// then load a fresh user record for its subject. RequireAuth and
// OptionalAuth both go through here; only their failure handling differs.
func resolveUser(c *gin.Context, tokens *token.Service, users UserLoader, tokenString string) (*models.User, error) {
	claims, err := tokens.VerifyAccess(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := users.FindUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, token.ErrUserNotFound
	}

	return user, nil
}

// RequireAuth gates a route on a valid access token and an unrestricted
// account
func RequireAuth(tokens *token.Service, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
			respond.Error(c, http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
			return
		}

		user, err := resolveUser(c, tokens, users, tokenString)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrTokenExpired):
				metrics.AuthFailuresTotal.WithLabelValues("token_expired").Inc()
				respond.Error(c, http.StatusUnauthorized, "Your token has expired! Please log in again.")
			case errors.Is(err, token.ErrInvalidToken):
				metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
				respond.Error(c, http.StatusUnauthorized, "Invalid token. Please log in again!")
			case errors.Is(err, token.ErrUserNotFound):
				metrics.AuthFailuresTotal.WithLabelValues("user_not_found").Inc()
				respond.Error(c, http.StatusUnauthorized, "The user belonging to this token does no longer exist.")
			default:
				metrics.AuthFailuresTotal.WithLabelValues("error").Inc()
				respond.InternalError(c, http.StatusInternalServerError, "Something went wrong!", err)
			}
			return
		}

		if user.IsBanned {
			metrics.AuthFailuresTotal.WithLabelValues("banned").Inc()
			respond.Error(c, http.StatusForbidden, "Your account has been banned.")
			return
		}
		if user.IsSuspended {
			metrics.AuthFailuresTotal.WithLabelValues("suspended").Inc()
			respond.Error(c, http.StatusForbidden, "Your account has been suspended.")
			return
		}

		c.Set(AuthContextKey, user.ID)
		c.Set(UserContextKey, user.Public())
		c.Next()
	}
}

// RequireRole composes after RequireAuth and gates on the attached user's role
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
			return
		}

		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}

		respond.Error(c, http.StatusForbidden, "You do not have permission to perform this action")
	}
}

// OptionalAuth attaches the user when a valid token is presented but never
// blocks the request. Every failure, including a restricted account, results
// in an anonymous request.
func OptionalAuth(tokens *token.Service, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			c.Next()
			return
		}

		user, err := resolveUser(c, tokens, users, tokenString)
		if err != nil || user.IsRestricted() {
			c.Next()
			return
		}

		c.Set(AuthContextKey, user.ID)
		c.Set(UserContextKey, user.Public())
		c.Next()
	}
}

// GetUserID retrieves the authenticated user's id from the context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(AuthContextKey)
	if !exists {
		return "", false
	}

	userIDStr, ok := userID.(string)
	return userIDStr, ok
}

// GetUser retrieves the authenticated user's projection from the context
func GetUser(c *gin.Context) (*models.PublicUser, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return nil, false
	}

	user, ok := value.(*models.PublicUser)
	return user, ok
}
