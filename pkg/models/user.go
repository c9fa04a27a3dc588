package models

import (
	"time"
)

// UserRole represents user roles
type UserRole string

const (
	UserRoleUser      UserRole = "USER"
	UserRoleAdmin     UserRole = "ADMIN"
	UserRoleModerator UserRole = "MODERATOR"
)

// User represents a platform account
type User struct {
	ID               string    `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	Username         string    `json:"username" db:"username"`
	DisplayName      string    `json:"display_name" db:"display_name"`
	Avatar           string    `json:"avatar" db:"avatar"`
	Bio              string    `json:"bio" db:"bio"`
	PasswordHash     string    `json:"-" db:"password_hash"`
	Role             UserRole  `json:"role" db:"role"`
	IsVerified       bool      `json:"is_verified" db:"is_verified"`
	IsBanned         bool      `json:"is_banned" db:"is_banned"`
	IsSuspended      bool      `json:"is_suspended" db:"is_suspended"`
	RefreshToken     *string   `json:"-" db:"refresh_token"`
	SubscribersCount int       `json:"subscribers_count" db:"subscribers_count"`
	SubscribingCount int       `json:"subscribing_count" db:"subscribing_count"`
	TotalViews       int64     `json:"total_views" db:"total_views"`
	TotalVideos      int       `json:"total_videos" db:"total_videos"`
	LastLogin        time.Time `json:"last_login" db:"last_login"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// IsRestricted reports whether the account is blocked from authenticating
func (u *User) IsRestricted() bool {
	return u.IsBanned || u.IsSuspended
}

// PublicUser is the projection of a user that is safe to return to clients
// and to attach to request or socket contexts
type PublicUser struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Username         string   `json:"username"`
	DisplayName      string   `json:"display_name"`
	Avatar           string   `json:"avatar"`
	Role             UserRole `json:"role"`
	IsVerified       bool     `json:"is_verified"`
	SubscribersCount int      `json:"subscribers_count"`
	TotalViews       int64    `json:"total_views"`
	TotalVideos      int      `json:"total_videos"`
}

// Public returns the public projection of the user
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:               u.ID,
		Email:            u.Email,
		Username:         u.Username,
		DisplayName:      u.DisplayName,
		Avatar:           u.Avatar,
		Role:             u.Role,
		IsVerified:       u.IsVerified,
		SubscribersCount: u.SubscribersCount,
		TotalViews:       u.TotalViews,
		TotalVideos:      u.TotalVideos,
	}
}
