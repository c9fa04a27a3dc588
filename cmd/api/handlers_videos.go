package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/viewmaxx/backend/internal/metrics"
	"github.com/viewmaxx/backend/internal/middleware"
	"github.com/viewmaxx/backend/internal/respond"
	"github.com/viewmaxx/backend/internal/storage"
	"github.com/viewmaxx/backend/pkg/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	videoCacheTTL = 5 * time.Minute
)

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (api *API) uploadVideo(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	file, header, err := c.Request.FormFile("video")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "No video file provided")
		return
	}
	defer file.Close()

	title := c.PostForm("title")
	if title == "" {
		respond.Error(c, http.StatusBadRequest, "Title is required")
		return
	}

	videoID := uuid.New().String()
	objectKey := storage.VideoObjectKey(videoID, header.Filename)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = storage.ContentType(header.Filename)
	}

	if err := api.storage.Upload(c.Request.Context(), objectKey, file, header.Size, contentType); err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to store video", err)
		return
	}

	video := &models.Video{
		ID:          videoID,
		UserID:      userID,
		Title:       title,
		Description: c.PostForm("description"),
		Filename:    header.Filename,
		OriginalURL: objectKey,
		Size:        header.Size,
		Status:      models.VideoStatusProcessing,
	}
	if visibility := c.PostForm("visibility"); visibility != "" {
		video.Visibility = models.VideoVisibility(visibility)
	}

	if err := api.repo.CreateVideo(c.Request.Context(), video); err != nil {
		// Do not leave the raw upload orphaned
		if derr := api.storage.Delete(c.Request.Context(), objectKey); derr != nil {
			api.logger.WithVideoID(videoID).ErrorWithErr("Failed to clean up orphaned upload", derr)
		}
		respond.InternalError(c, http.StatusInternalServerError, "Failed to create video", err)
		return
	}

	job := &models.TranscodeJob{
		VideoID:   video.ID,
		ObjectKey: objectKey,
		Filename:  header.Filename,
		Size:      header.Size,
	}
	if err := api.queue.PublishTranscodeJob(c.Request.Context(), job); err != nil {
		// The video record exists; the scheduler can re-enqueue it later
		api.logger.WithVideoID(video.ID).ErrorWithErr("Failed to publish transcode job", err)
	}

	metrics.VideoUploadsTotal.Inc()
	metrics.VideoUploadSizeBytes.Observe(float64(header.Size))
	api.logger.WithUserID(userID).WithVideoID(video.ID).Info("Video uploaded")

	respond.Success(c, http.StatusCreated, gin.H{"video": video})
}

func (api *API) getVideo(c *gin.Context) {
	videoID := c.Param("id")

	video, err := api.cache.GetVideo(c.Request.Context(), videoID)
	if err != nil {
		api.logger.WithVideoID(videoID).ErrorWithErr("Failed to read video cache", err)
	}

	if video == nil {
		video, err = api.repo.GetVideo(c.Request.Context(), videoID)
		if err != nil {
			respond.InternalError(c, http.StatusInternalServerError, "Failed to load video", err)
			return
		}
		if video == nil {
			respond.Error(c, http.StatusNotFound, "Video not found")
			return
		}

		if err := api.cache.SetVideo(c.Request.Context(), video, videoCacheTTL); err != nil {
			api.logger.WithVideoID(videoID).ErrorWithErr("Failed to cache video", err)
		}
	}

	// Private videos are visible to their owner and staff only
	if video.Visibility == models.VideoVisibilityPrivate {
		viewer, ok := middleware.GetUser(c)
		if !ok || (viewer.ID != video.UserID && viewer.Role == models.UserRoleUser) {
			respond.Error(c, http.StatusNotFound, "Video not found")
			return
		}
	}

	if err := api.repo.IncrementVideoViews(c.Request.Context(), videoID); err != nil {
		api.logger.WithVideoID(videoID).ErrorWithErr("Failed to increment views", err)
	}

	respond.Success(c, http.StatusOK, gin.H{"video": video})
}

// downloadVideo streams the original upload back to its owner. Transcoded
// renditions are served elsewhere; this is the raw file.
func (api *API) downloadVideo(c *gin.Context) {
	videoID := c.Param("id")

	video, err := api.repo.GetVideo(c.Request.Context(), videoID)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to load video", err)
		return
	}
	if video == nil {
		respond.Error(c, http.StatusNotFound, "Video not found")
		return
	}

	user, _ := middleware.GetUser(c)
	if user.ID != video.UserID && user.Role != models.UserRoleAdmin {
		respond.Error(c, http.StatusForbidden, "You do not have permission to perform this action")
		return
	}

	object, err := api.storage.Download(c.Request.Context(), video.OriginalURL)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to fetch video file", err)
		return
	}
	defer object.Close()

	c.Header("Content-Disposition", `attachment; filename="`+video.Filename+`"`)
	c.DataFromReader(http.StatusOK, video.Size, storage.ContentType(video.Filename), object, nil)
}

func (api *API) listVideos(c *gin.Context) {
	limit, offset := pagination(c)

	videos, err := api.repo.ListVideos(c.Request.Context(), limit, offset)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to list videos", err)
		return
	}
	if videos == nil {
		videos = []*models.Video{}
	}

	respond.Success(c, http.StatusOK, gin.H{"videos": videos})
}

func (api *API) deleteVideo(c *gin.Context) {
	videoID := c.Param("id")

	video, err := api.repo.GetVideo(c.Request.Context(), videoID)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to load video", err)
		return
	}
	if video == nil {
		respond.Error(c, http.StatusNotFound, "Video not found")
		return
	}

	user, _ := middleware.GetUser(c)
	if user.ID != video.UserID && user.Role != models.UserRoleAdmin && user.Role != models.UserRoleModerator {
		respond.Error(c, http.StatusForbidden, "You do not have permission to perform this action")
		return
	}

	if err := api.repo.DeleteVideo(c.Request.Context(), videoID); err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to delete video", err)
		return
	}

	if err := api.cache.DeleteVideo(c.Request.Context(), videoID); err != nil {
		api.logger.WithVideoID(videoID).ErrorWithErr("Failed to evict video cache", err)
	}

	// Objects go last: a leftover object is recoverable, a dangling record is not
	if err := api.storage.DeletePrefix(c.Request.Context(), "videos/"+videoID+"/"); err != nil {
		api.logger.WithVideoID(videoID).ErrorWithErr("Failed to delete video objects", err)
	}

	api.logger.WithUserID(user.ID).WithVideoID(videoID).Info("Video deleted")
	respond.Success(c, http.StatusOK, gin.H{"message": "Video deleted"})
}

type createCommentRequest struct {
	Content string `json:"content" binding:"required,max=2000"`
}

func (api *API) createComment(c *gin.Context) {
	videoID := c.Param("id")

	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "Comment content is required")
		return
	}

	video, err := api.repo.GetVideo(c.Request.Context(), videoID)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to load video", err)
		return
	}
	if video == nil {
		respond.Error(c, http.StatusNotFound, "Video not found")
		return
	}

	user, _ := middleware.GetUser(c)
	comment := &models.Comment{
		VideoID:  videoID,
		UserID:   user.ID,
		Username: user.Username,
		Content:  req.Content,
	}

	if err := api.repo.CreateComment(c.Request.Context(), comment); err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to create comment", err)
		return
	}

	// Viewers currently watching get the comment pushed over the gateway
	api.gateway.BroadcastCommentAdded(videoID, comment)

	respond.Success(c, http.StatusCreated, gin.H{"comment": comment})
}

func (api *API) listComments(c *gin.Context) {
	videoID := c.Param("id")
	limit, offset := pagination(c)

	comments, err := api.repo.ListVideoComments(c.Request.Context(), videoID, limit, offset)
	if err != nil {
		respond.InternalError(c, http.StatusInternalServerError, "Failed to list comments", err)
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}

	respond.Success(c, http.StatusOK, gin.H{"comments": comments})
}
