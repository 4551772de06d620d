// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across gateway/session/store layers.
var (
	// ErrNoSession indicates an operation that requires an authenticated user.
	ErrNoSession = errors.New("no active session")

	// ErrInvalidServerResponse indicates the login mutation resolved without a token.
	ErrInvalidServerResponse = errors.New("invalid response from server")

	// ErrUserFetchFailed indicates the post-login "me" query returned no user.
	ErrUserFetchFailed = errors.New("failed to fetch user data after login")

	// ErrMalformedResponse indicates a response missing its success wrapper.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrBranchNotFound indicates a branch id outside the user's memberships.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrNotFound indicates the requested entry does not exist in client storage.
	ErrNotFound = errors.New("not found")
)

// Fixed user-facing messages surfaced via Manager.LastError. The wording is
// part of the UI contract; do not rephrase casually.
const (
	MsgSessionExpired  = "Your session has expired. Please log in again."
	MsgLoginBadPayload = "Login failed. Invalid response from server."
	MsgUserFetchFailed = "Failed to fetch user data after login"
	MsgLoginFallback   = "Login failed. Please try again."
)
