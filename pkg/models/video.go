package models

import (
	"time"
)

// VideoStatus represents the processing state of an uploaded video
type VideoStatus string

const (
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusFailed     VideoStatus = "failed"
)

// VideoVisibility controls who can see a video
type VideoVisibility string

const (
	VideoVisibilityPublic   VideoVisibility = "public"
	VideoVisibilityUnlisted VideoVisibility = "unlisted"
	VideoVisibilityPrivate  VideoVisibility = "private"
)

// Video represents an uploaded video
type Video struct {
	ID           string          `json:"id" db:"id"`
	UserID       string          `json:"user_id" db:"user_id"`
	Title        string          `json:"title" db:"title"`
	Description  string          `json:"description" db:"description"`
	Filename     string          `json:"filename" db:"filename"`
	OriginalURL  string          `json:"original_url" db:"original_url"`
	ThumbnailURL string          `json:"thumbnail_url" db:"thumbnail_url"`
	Size         int64           `json:"size" db:"size"`
	Duration     float64         `json:"duration" db:"duration"`
	Views        int64           `json:"views" db:"views"`
	Likes        int64           `json:"likes" db:"likes"`
	Status       VideoStatus     `json:"status" db:"status"`
	Visibility   VideoVisibility `json:"visibility" db:"visibility"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// TranscodeJob is the message published after an upload for the
// transcoding worker to pick up
type TranscodeJob struct {
	VideoID   string    `json:"video_id"`
	ObjectKey string    `json:"object_key"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	QueuedAt  time.Time `json:"queued_at"`
}
