package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/viewmaxx/backend/internal/metrics"
	"github.com/viewmaxx/backend/internal/middleware"
	"github.com/viewmaxx/backend/internal/respond"
	"github.com/viewmaxx/backend/internal/token"
	"github.com/viewmaxx/backend/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Username    string `json:"username" binding:"required,min=3,max=30"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (api *API) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Please provide a valid email, username and password")
		return
	}

	existing, err := api.repo.FindUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to create account", err)
		return
	}
	if existing != nil {
		respond.Error(c, http.StatusBadRequest, "An account with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	user := &models.User{
		Email:        req.Email,
		Username:     req.Username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}

	if err := api.repo.CreateUser(c.Request.Context(), user); err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	pair, err := api.tokens.Issue(c.Request.Context(), user)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	api.logger.LogAuthEvent("register", user.ID, true)
	respond.Success(c, http.StatusCreated, gin.H{
		"user":         user.Public(),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (api *API) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Please provide email and password")
		return
	}

	user, err := api.repo.FindUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to log in", err)
		return
	}

	// Same response for unknown email and wrong password
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		respond.Error(c, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	if user.IsBanned {
		metrics.LoginsTotal.WithLabelValues("restricted").Inc()
		respond.Error(c, http.StatusForbidden, "Your account has been banned.")
		return
	}
	if user.IsSuspended {
		metrics.LoginsTotal.WithLabelValues("restricted").Inc()
		respond.Error(c, http.StatusForbidden, "Your account has been suspended.")
		return
	}

	pair, err := api.tokens.Issue(c.Request.Context(), user)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to log in", err)
		return
	}

	if err := api.repo.UpdateLastLogin(c.Request.Context(), user.ID); err != nil {
		api.logger.WithUserID(user.ID).ErrorWithErr("Failed to stamp last login", err)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	api.logger.LogAuthEvent("login", user.ID, true)
	respond.Success(c, http.StatusOK, gin.H{
		"user":         user.Public(),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (api *API) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		respond.Error(c, http.StatusBadRequest, "Refresh token is required")
		return
	}

	pair, user, err := api.tokens.Rotate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("failure").Inc()
		switch {
		case errors.Is(err, token.ErrInvalidRefreshToken):
			respond.Error(c, http.StatusUnauthorized, "Invalid refresh token")
		case errors.Is(err, token.ErrUserNotFound), errors.Is(err, token.ErrAccountRestricted):
			respond.Error(c, http.StatusUnauthorized, "User not found or account restricted")
		default:
			respond.InternalError(c, http.StatusInternalServerError, "Failed to refresh session", err)
		}
		return
	}

	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	respond.Success(c, http.StatusOK, gin.H{
		"user":         user,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// logout revokes the caller's refresh token. It always succeeds: a session
// that no longer exists is just as logged out.
func (api *API) logout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if ok {
		api.tokens.Revoke(c.Request.Context(), userID)
		api.logger.LogAuthEvent("logout", userID, true)
	}

	respond.Success(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (api *API) currentUser(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
		return
	}

	respond.Success(c, http.StatusOK, gin.H{"user": user})
}
