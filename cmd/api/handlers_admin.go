package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/viewmaxx/backend/internal/respond"
)

// setRestriction flips a moderation flag on an account. Banning or
// suspending also revokes the refresh token so the session cannot outlive
// the decision.
func (api *API) setRestriction(c *gin.Context, apply func(string) error, restricted bool, event string) {
	userID := c.Param("id")

	if err := apply(userID); err != nil {
		if strings.Contains(err.Error(), "user not found") {
			respond.Error(c, http.StatusNotFound, "User not found")
			return
		}
		respond.InternalError(c, http.StatusInternalServerError, "Failed to update account status", err)
		return
	}

	if restricted {
		api.tokens.Revoke(c.Request.Context(), userID)
		api.gateway.NotifyUser(userID, "account_status", gin.H{"status": event})
	}

	api.logger.WithUserID(userID).Infof("Account status changed to %s", event)
	respond.Success(c, http.StatusOK, gin.H{"message": "Account " + event})
}

func (api *API) banUser(c *gin.Context) {
	api.setRestriction(c, func(id string) error {
		return api.repo.SetUserBanned(c.Request.Context(), id, true)
	}, true, "banned")
}

func (api *API) unbanUser(c *gin.Context) {
	api.setRestriction(c, func(id string) error {
		return api.repo.SetUserBanned(c.Request.Context(), id, false)
	}, false, "unbanned")
}

func (api *API) suspendUser(c *gin.Context) {
	api.setRestriction(c, func(id string) error {
		return api.repo.SetUserSuspended(c.Request.Context(), id, true)
	}, true, "suspended")
}

func (api *API) reinstateUser(c *gin.Context) {
	api.setRestriction(c, func(id string) error {
		return api.repo.SetUserSuspended(c.Request.Context(), id, false)
	}, false, "reinstated")
}
