// Package store defines the durable client-storage interface implemented by
// concrete backends. It is the CLI-side equivalent of the browser's local
// storage: a handful of well-known keys holding the session token, the cached
// user snapshot, and the one-shot post-login navigation hints.
package store

import (
	"context"
	"time"

	"github.com/parishdesk/parishdesk/internal/model"
)

// Storage keys. KeyRefreshToken is cleared on logout but never written by
// this client; the refresh flow lives elsewhere in the platform.
const (
	KeyAccessToken   = "access_token"
	KeyRefreshToken  = "refresh_token"
	KeyUserSnapshot  = "user_snapshot"
	KeyLoginSuccess  = "auth_success"
	KeyLoginRedirect = "auth_redirect"
)

// Store provides durable client storage for session state.
type Store interface {
	// SaveAccessToken persists the bearer token with its expiry (diagnostics only;
	// the backend remains the authority on token validity).
	SaveAccessToken(ctx context.Context, token string, expiresAt time.Time) error
	// AccessToken loads the persisted token. errs.ErrNotFound when absent.
	AccessToken(ctx context.Context) (string, time.Time, error)

	// SaveUser persists the full user snapshot.
	SaveUser(ctx context.Context, u *model.User) error
	// User loads the persisted snapshot. errs.ErrNotFound when absent.
	User(ctx context.Context) (*model.User, error)

	// SetLoginHints records the post-login success flag and redirect target.
	SetLoginHints(ctx context.Context, route string) error
	// TakeLoginHints consumes the hints: both keys are deleted on read.
	TakeLoginHints(ctx context.Context) (route string, ok bool, err error)

	// ClearAuth removes both token entries and the user snapshot.
	ClearAuth(ctx context.Context) error

	Close() error
}
