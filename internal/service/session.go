package service

import (
	"context"

	"storefront/internal/models"
)

// Authenticated reports whether the session carries a token. Pure
// predicate; redirecting to login is the consuming view's job.
func Authenticated(s models.Session) bool {
	return s.Token != ""
}

// RequireSession gates mutating operations on an authenticated session
func RequireSession(s models.Session) error {
	if !Authenticated(s) {
		return &AuthError{Msg: "please log in to continue"}
	}
	return nil
}

// SessionRegistry stores sessions by token so gated requests can rebuild
// the session value from the Authorization header. Sessions are created
// by the external auth flow and destroyed explicitly on logout.
type SessionRegistry interface {
	SaveSession(ctx context.Context, session models.Session) error
	LoadSession(ctx context.Context, token string) (models.Session, error)
	DeleteSession(ctx context.Context, token string) error
}
