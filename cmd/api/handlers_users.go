package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/viewmaxx/backend/internal/middleware"
	"github.com/viewmaxx/backend/internal/respond"
	"github.com/viewmaxx/backend/pkg/models"
)

func (api *API) getUserProfile(c *gin.Context) {
	user, err := api.repo.FindUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to load user", err)
		return
	}
	if user == nil {
		respond.Error(c, http.StatusNotFound, "User not found")
		return
	}

	respond.Success(c, http.StatusOK, gin.H{"user": user.Public()})
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
	Bio         *string `json:"bio" binding:"omitempty,max=500"`
	Avatar      *string `json:"avatar" binding:"omitempty,max=500"`
}

// updateProfile overwrites the editable profile fields. Omitted fields keep
// their current value, so the request reads the record first.
func (api *API) updateProfile(c *gin.Context) {
	targetID := c.Param("id")

	caller, _ := middleware.GetUser(c)
	if caller.ID != targetID && caller.Role != models.UserRoleAdmin {
		respond.Error(c, http.StatusForbidden, "You do not have permission to perform this action")
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Invalid profile payload")
		return
	}

	current, err := api.repo.FindUserByID(c.Request.Context(), targetID)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to load user", err)
		return
	}
	if current == nil {
		respond.Error(c, http.StatusNotFound, "User not found")
		return
	}

	displayName, bio, avatar := current.DisplayName, current.Bio, current.Avatar
	if req.DisplayName != nil {
		displayName = *req.DisplayName
	}
	if req.Bio != nil {
		bio = *req.Bio
	}
	if req.Avatar != nil {
		avatar = *req.Avatar
	}

	updated, err := api.repo.UpdateUserProfile(c.Request.Context(), targetID, displayName, bio, avatar)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to update profile", err)
		return
	}
	if updated == nil {
		respond.Error(c, http.StatusNotFound, "User not found")
		return
	}

	api.logger.WithUserID(targetID).Info("Profile updated")
	respond.Success(c, http.StatusOK, gin.H{"user": updated.Public()})
}

func (api *API) subscribe(c *gin.Context) {
	channelID := c.Param("id")
	caller, _ := middleware.GetUser(c)

	if caller.ID == channelID {
		respond.Error(c, http.StatusBadRequest, "You cannot subscribe to yourself")
		return
	}

	channel, err := api.repo.FindUserByID(c.Request.Context(), channelID)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to load user", err)
		return
	}
	if channel == nil {
		respond.Error(c, http.StatusNotFound, "User not found")
		return
	}

	created, err := api.repo.Subscribe(c.Request.Context(), caller.ID, channelID)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to subscribe", err)
		return
	}

	if created {
		// The channel owner hears about it in their personal room
		api.gateway.NotifyUser(channelID, "new_subscriber", gin.H{
			"user_id":   caller.ID,
			"username":  caller.Username,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		api.logger.WithUserID(caller.ID).WithField("channel_id", channelID).Info("Subscribed")
	}

	respond.Success(c, http.StatusOK, gin.H{"message": "Subscribed"})
}

func (api *API) unsubscribe(c *gin.Context) {
	channelID := c.Param("id")
	caller, _ := middleware.GetUser(c)

	removed, err := api.repo.Unsubscribe(c.Request.Context(), caller.ID, channelID)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to unsubscribe", err)
		return
	}
	if !removed {
		respond.Error(c, http.StatusNotFound, "Subscription not found")
		return
	}

	api.logger.WithUserID(caller.ID).WithField("channel_id", channelID).Info("Unsubscribed")
	respond.Success(c, http.StatusOK, gin.H{"message": "Unsubscribed"})
}

func (api *API) listSubscribers(c *gin.Context) {
	limit, offset := pagination(c)

	subscribers, err := api.repo.ListSubscribers(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to list subscribers", err)
		return
	}
	if subscribers == nil {
		subscribers = []*models.PublicUser{}
	}

	respond.Success(c, http.StatusOK, gin.H{"subscribers": subscribers})
}

func (api *API) listSubscriptions(c *gin.Context) {
	limit, offset := pagination(c)

	subscriptions, err := api.repo.ListSubscriptions(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to list subscriptions", err)
		return
	}
	if subscriptions == nil {
		subscriptions = []*models.PublicUser{}
	}

	respond.Success(c, http.StatusOK, gin.H{"subscriptions": subscriptions})
}
