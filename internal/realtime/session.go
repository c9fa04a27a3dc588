package realtime

import (
	"context"
	"errors"

	"github.com/viewmaxx/backend/internal/token"
	"github.com/viewmaxx/backend/pkg/models"
)

// ErrAuthenticationRequired is returned when a handshake carries no token at
// all. Verification failures keep their token package sentinels so the
// gateway can report distinct rejection reasons.
var ErrAuthenticationRequired = errors.New("authentication error")

// Session is the per-connection authentication state. The profile snapshot
// is captured at handshake time and not re-validated for the lifetime of
// the connection.
type Session struct {
	UserID string
	User   *models.PublicUser
}

// Authenticated reports whether a user is bound to the session
func (s *Session) Authenticated() bool {
	return s.UserID != ""
}

// UserLoader loads the user record for a token subject at handshake time
type UserLoader interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticator validates handshake tokens with the same rules as the HTTP
// guard and produces socket sessions
type Authenticator struct {
	tokens *token.Service
	users  UserLoader
}

// NewAuthenticator creates a new socket authenticator
func NewAuthenticator(tokens *token.Service, users UserLoader) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate is the mandatory handshake variant: every failure rejects the
// connection with a distinct error.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (*Session, error) {
	if tokenString == "" {
		return nil, ErrAuthenticationRequired
	}

	claims, err := a.tokens.VerifyAccess(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := a.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, token.ErrUserNotFound
	}
	if user.IsRestricted() {
		return nil, token.ErrAccountRestricted
	}

	return &Session{UserID: user.ID, User: user.Public()}, nil
}

// AuthenticateOptional is the guest-permitting variant: identical checks,
// but any failure yields an unauthenticated session instead of an error.
func (a *Authenticator) AuthenticateOptional(ctx context.Context, tokenString string) *Session {
	session, err := a.Authenticate(ctx, tokenString)
	if err != nil {
		return &Session{}
	}
	return session
}
