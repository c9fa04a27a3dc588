package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/viewmaxx/backend/internal/config"
	"github.com/viewmaxx/backend/internal/logging"
	"github.com/viewmaxx/backend/pkg/models"
)

// Sentinel errors for token verification. Callers branch on these to pick
// status codes and messages, so they must stay distinct.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountRestricted   = errors.New("account restricted")
)

// UserStore is the slice of the user repository the token service needs
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateRefreshToken(ctx context.Context, userID string, token *string) error
}

// TokenStore holds the single active refresh token per user
type TokenStore interface {
	SetRefreshToken(ctx context.Context, userID, token string, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, userID string) (string, error)
	DeleteRefreshToken(ctx context.Context, userID string) error
}

// AccessClaims is the claim set of a short-lived access token
type AccessClaims struct {
	UserID string          `json:"id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set of a refresh token
type RefreshClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Service mints and validates the access/refresh token pair and owns
// persistence and revocation of refresh tokens
type Service struct {
	users  UserStore
	store  TokenStore
	cfg    config.AuthConfig
	logger *logging.Logger
}

// NewService creates a new token service
func NewService(users UserStore, store TokenStore, cfg config.AuthConfig, logger *logging.Logger) *Service {
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}

	return &Service{
		users:  users,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Issue mints a new access/refresh pair for the user and persists the
// refresh token in both the token store and the user record. The store is
// written first; if the database write fails, the store entry is rolled
// back best-effort and a single error is returned.
func (s *Service) Issue(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	now := time.Now()

	accessClaims := AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).
		SignedString([]byte(s.cfg.AccessSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	// The jti makes every issued refresh token unique even within the same
	// second, so rotation always yields a different token string.
	refreshClaims := RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).
		SignedString([]byte(s.cfg.RefreshSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	if err := s.store.SetRefreshToken(ctx, user.ID, refreshToken, s.cfg.RefreshTokenTTL); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	if err := s.users.UpdateRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		if delErr := s.store.DeleteRefreshToken(ctx, user.ID); delErr != nil {
			s.logger.WithUserID(user.ID).ErrorWithErr("failed to roll back stored refresh token", delErr)
		}
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// VerifyAccess validates an access token's signature and expiry.
// Returns ErrTokenExpired for a well-signed token past its expiry and
// ErrInvalidToken for everything else.
func (s *Service) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.AccessSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Rotate validates a refresh token against both its signature and the
// currently stored value, then issues a brand-new pair. The old token stops
// matching because the new issuance overwrites the stored value.
//
// Two concurrent rotations for the same user race on the stored value; the
// last writer wins and the loser's pair fails its next rotation. There is no
// per-user lock, matching the issuance model where the store entry is always
// overwritten wholesale.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (*models.TokenPair, *models.PublicUser, error) {
	claims := &RefreshClaims{}

	token, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.RefreshSecret), nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, nil, ErrInvalidRefreshToken
	}

	stored, err := s.store.GetRefreshToken(ctx, claims.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if stored == "" || stored != refreshToken {
		return nil, nil, ErrInvalidRefreshToken
	}

	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	if user.IsRestricted() {
		return nil, nil, ErrAccountRestricted
	}

	pair, err := s.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	return pair, user.Public(), nil
}

// Revoke deletes the stored refresh token and nulls the database column.
// Best effort: failures are logged and swallowed so a logout handler can
// never crash on revocation.
func (s *Service) Revoke(ctx context.Context, userID string) {
	if err := s.store.DeleteRefreshToken(ctx, userID); err != nil {
		s.logger.WithUserID(userID).ErrorWithErr("failed to delete stored refresh token", err)
	}

	if err := s.users.UpdateRefreshToken(ctx, userID, nil); err != nil {
		s.logger.WithUserID(userID).ErrorWithErr("failed to clear refresh token column", err)
		return
	}

	s.logger.WithUserID(userID).Info("Tokens revoked")
}
