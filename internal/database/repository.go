package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/viewmaxx/backend/pkg/models"
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks the underlying database connection
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Users

const userColumns = `id, email, username, display_name, avatar, bio, password_hash, role,
	       is_verified, is_banned, is_suspended, refresh_token,
	       subscribers_count, subscribing_count, total_views, total_videos,
	       last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.DisplayName, &user.Avatar,
		&user.Bio, &user.PasswordHash, &user.Role,
		&user.IsVerified, &user.IsBanned, &user.IsSuspended, &user.RefreshToken,
		&user.SubscribersCount, &user.SubscribingCount, &user.TotalViews, &user.TotalVideos,
		&user.LastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

// CreateUser creates a new user record
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.UserRoleUser
	}

	query := `
		INSERT INTO users (id, email, username, display_name, avatar, bio, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING last_login, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.DisplayName, user.Avatar,
		user.Bio, user.PasswordHash, user.Role,
	).Scan(&user.LastLogin, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// FindUserByID retrieves a user by ID, returning nil when no such user exists
func (r *Repository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.Pool.QueryRow(ctx, query, id))
}

// FindUserByEmail retrieves a user by email, returning nil when no such user exists
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.Pool.QueryRow(ctx, query, email))
}

// UpdateRefreshToken overwrites the stored refresh token for a user.
// A nil token clears the column.
func (r *Repository) UpdateRefreshToken(ctx context.Context, userID string, token *string) error {
	query := `UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}

	return nil
}

// UpdateLastLogin stamps the user's last login time
func (r *Repository) UpdateLastLogin(ctx context.Context, userID string) error {
	query := `UPDATE users SET last_login = NOW(), updated_at = NOW() WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}

// UpdateUserProfile overwrites the user's editable profile fields and
// returns the updated record, or nil when no such user exists
func (r *Repository) UpdateUserProfile(ctx context.Context, userID, displayName, bio, avatar string) (*models.User, error) {
	query := `
		UPDATE users SET display_name = $2, bio = $3, avatar = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(r.db.Pool.QueryRow(ctx, query, userID, displayName, bio, avatar))
}

// Subscribe records a subscription and bumps both counters. It reports
// whether the subscription was newly created; repeating an existing
// subscription is a no-op.
func (r *Repository) Subscribe(ctx context.Context, subscriberID, channelID string) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO subscriptions (subscriber_id, channel_id)
		VALUES ($1, $2)
		ON CONFLICT (subscriber_id, channel_id) DO NOTHING
	`, subscriberID, channelID)
	if err != nil {
		return false, fmt.Errorf("failed to create subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET subscribers_count = subscribers_count + 1, updated_at = NOW() WHERE id = $1`, channelID); err != nil {
		return false, fmt.Errorf("failed to bump subscribers count: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET subscribing_count = subscribing_count + 1, updated_at = NOW() WHERE id = $1`, subscriberID); err != nil {
		return false, fmt.Errorf("failed to bump subscribing count: %w", err)
	}

	return true, tx.Commit(ctx)
}

// Unsubscribe removes a subscription and decrements both counters. It
// reports whether a subscription actually existed.
func (r *Repository) Unsubscribe(ctx context.Context, subscriberID, channelID string) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2
	`, subscriberID, channelID)
	if err != nil {
		return false, fmt.Errorf("failed to delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET subscribers_count = GREATEST(subscribers_count - 1, 0), updated_at = NOW() WHERE id = $1`, channelID); err != nil {
		return false, fmt.Errorf("failed to drop subscribers count: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET subscribing_count = GREATEST(subscribing_count - 1, 0), updated_at = NOW() WHERE id = $1`, subscriberID); err != nil {
		return false, fmt.Errorf("failed to drop subscribing count: %w", err)
	}

	return true, tx.Commit(ctx)
}

func (r *Repository) listUsersBy(ctx context.Context, query string, args ...interface{}) ([]*models.PublicUser, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.PublicUser
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user.Public())
	}

	return users, rows.Err()
}

// ListSubscribers retrieves the accounts subscribed to a channel, newest
// subscription first
func (r *Repository) ListSubscribers(ctx context.Context, channelID string, limit, offset int) ([]*models.PublicUser, error) {
	// The subscription timestamp is aliased so created_at in the select
	// list stays unambiguous
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN (
			SELECT subscriber_id, channel_id, created_at AS subscribed_at FROM subscriptions
		) s ON s.subscriber_id = u.id
		WHERE s.channel_id = $1
		ORDER BY s.subscribed_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.listUsersBy(ctx, query, channelID, limit, offset)
}

// ListSubscriptions retrieves the channels an account subscribes to, newest
// subscription first
func (r *Repository) ListSubscriptions(ctx context.Context, subscriberID string, limit, offset int) ([]*models.PublicUser, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN (
			SELECT subscriber_id, channel_id, created_at AS subscribed_at FROM subscriptions
		) s ON s.channel_id = u.id
		WHERE s.subscriber_id = $1
		ORDER BY s.subscribed_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.listUsersBy(ctx, query, subscriberID, limit, offset)
}

// SetUserBanned sets or clears the banned flag on a user
func (r *Repository) SetUserBanned(ctx context.Context, userID string, banned bool) error {
	query := `UPDATE users SET is_banned = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, userID, banned)
	if err != nil {
		return fmt.Errorf("failed to update ban status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// SetUserSuspended sets or clears the suspended flag on a user
func (r *Repository) SetUserSuspended(ctx context.Context, userID string, suspended bool) error {
	query := `UPDATE users SET is_suspended = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, userID, suspended)
	if err != nil {
		return fmt.Errorf("failed to update suspend status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// Videos

const videoColumns = `id, user_id, title, description, filename, original_url, thumbnail_url,
	       size, duration, views, likes, status, visibility, created_at, updated_at`

func scanVideo(row pgx.Row) (*models.Video, error) {
	var video models.Video
	err := row.Scan(
		&video.ID, &video.UserID, &video.Title, &video.Description, &video.Filename,
		&video.OriginalURL, &video.ThumbnailURL, &video.Size, &video.Duration,
		&video.Views, &video.Likes, &video.Status, &video.Visibility,
		&video.CreatedAt, &video.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan video: %w", err)
	}
	return &video, nil
}

// CreateVideo creates a new video record
func (r *Repository) CreateVideo(ctx context.Context, video *models.Video) error {
	if video.ID == "" {
		video.ID = uuid.New().String()
	}
	if video.Status == "" {
		video.Status = models.VideoStatusProcessing
	}
	if video.Visibility == "" {
		video.Visibility = models.VideoVisibilityPublic
	}

	query := `
		INSERT INTO videos (id, user_id, title, description, filename, original_url, size, status, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		video.ID, video.UserID, video.Title, video.Description, video.Filename,
		video.OriginalURL, video.Size, video.Status, video.Visibility,
	).Scan(&video.CreatedAt, &video.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetVideo retrieves a video by ID, returning nil when no such video exists
func (r *Repository) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	return scanVideo(r.db.Pool.QueryRow(ctx, query, id))
}

// ListVideos retrieves public videos with pagination, newest first
func (r *Repository) ListVideos(ctx context.Context, limit, offset int) ([]*models.Video, error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE visibility = 'public'
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}

	return videos, rows.Err()
}

// ListStuckVideos retrieves videos that have sat in processing longer than
// the cutoff, oldest first
func (r *Repository) ListStuckVideos(ctx context.Context, olderThan time.Duration, limit int) ([]*models.Video, error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE status = 'processing' AND created_at < NOW() - ($1 * INTERVAL '1 second')
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, int64(olderThan.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck videos: %w", err)
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}

	return videos, rows.Err()
}

// DeleteVideo deletes a video and its comments
func (r *Repository) DeleteVideo(ctx context.Context, id string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE video_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	return tx.Commit(ctx)
}

// IncrementVideoViews bumps the view counter for a video and its owner
func (r *Repository) IncrementVideoViews(ctx context.Context, id string) error {
	query := `
		WITH bumped AS (
			UPDATE videos SET views = views + 1 WHERE id = $1 RETURNING user_id
		)
		UPDATE users SET total_views = total_views + 1
		WHERE id IN (SELECT user_id FROM bumped)
	`

	_, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}

	return nil
}

// Comments

// CreateComment creates a new comment record
func (r *Repository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}

	query := `
		INSERT INTO comments (id, video_id, user_id, username, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		comment.ID, comment.VideoID, comment.UserID, comment.Username, comment.Content,
	).Scan(&comment.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	return nil
}

// ListVideoComments retrieves comments for a video, newest first
func (r *Repository) ListVideoComments(ctx context.Context, videoID string, limit, offset int) ([]*models.Comment, error) {
	query := `
		SELECT id, video_id, user_id, username, content, created_at
		FROM comments
		WHERE video_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, videoID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		var comment models.Comment
		err := rows.Scan(
			&comment.ID, &comment.VideoID, &comment.UserID, &comment.Username,
			&comment.Content, &comment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &comment)
	}

	return comments, rows.Err()
}
