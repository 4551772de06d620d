// Package session owns the authenticated-user lifecycle: login, restore,
// logout, profile and MFA operations, branch context, and permission checks.
// A Manager is constructed explicitly with its gateway, storage, and logger;
// there is no ambient singleton.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/parishdesk/parishdesk/internal/errs"
	"github.com/parishdesk/parishdesk/internal/gateway"
	"github.com/parishdesk/parishdesk/internal/model"
	"github.com/parishdesk/parishdesk/internal/store"
)

// Gateway is the GraphQL surface the manager depends on.
type Gateway interface {
	// Me resolves the current user; overrideToken replaces the global bearer
	// token for this one request when non-empty.
	Me(ctx context.Context, overrideToken string) (*gateway.MeUser, error)
	// Login exchanges credentials for an opaque bearer token string.
	Login(ctx context.Context, email, password string) (string, error)
	// Register creates a new account.
	Register(ctx context.Context, email, password, firstName, lastName, branchID string) (*gateway.RegisteredUser, error)
	// Logout invalidates the server-side session.
	Logout(ctx context.Context) (*gateway.OpResult, error)
	// ForgotPassword triggers the password-reset flow.
	ForgotPassword(ctx context.Context, email string) (*gateway.OpResult, error)
	// ResendVerification re-sends the account verification email.
	ResendVerification(ctx context.Context, email string) (*gateway.OpResult, error)
	// UpdateUser persists profile edits (first/last name only).
	UpdateUser(ctx context.Context, firstName, lastName string) (*gateway.UpdatedUser, error)
	// SetupMFA begins MFA enrollment.
	SetupMFA(ctx context.Context) (*gateway.MFASetup, error)
	// VerifyMFA confirms an enrollment code.
	VerifyMFA(ctx context.Context, code string) (*gateway.OpResult, error)
	// DisableMFA turns MFA off.
	DisableMFA(ctx context.Context) (*gateway.OpResult, error)
}

// Manager is the session manager. Mutating operations are serialized through
// an internal mutex; the loading flag remains a cheap hint for UIs, not the
// synchronization mechanism.
type Manager struct {
	gw  Gateway
	st  store.Store
	log *zap.Logger

	opMu sync.Mutex // serializes mutating operations

	mu           sync.RWMutex
	currentUser  *model.User
	activeBranch string
	lastErr      string
	loading      bool
}

// New constructs a Manager with injected dependencies.
func New(gw Gateway, st store.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{gw: gw, st: st, log: log}
}

// beginOp serializes the operation, raises loading, clears the last error.
func (m *Manager) beginOp() {
	m.opMu.Lock()
	m.mu.Lock()
	m.loading = true
	m.lastErr = ""
	m.mu.Unlock()
}

// endOp lowers loading in every path, including panics further up the stack.
func (m *Manager) endOp() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
	m.opMu.Unlock()
}

func (m *Manager) setLastError(msg string) {
	m.mu.Lock()
	m.lastErr = msg
	m.mu.Unlock()
}

func (m *Manager) setUser(u *model.User, activeBranch string) {
	m.mu.Lock()
	m.currentUser = u
	m.activeBranch = activeBranch
	m.mu.Unlock()
}

// CurrentUser returns the authenticated principal, or nil. The returned value
// is replaced, never mutated, by subsequent operations.
func (m *Manager) CurrentUser() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentUser
}

// ActiveBranchID returns the branch context the user operates within.
func (m *Manager) ActiveBranchID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeBranch
}

// IsLoading reports whether an operation is in flight.
func (m *Manager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// LastError returns the last human-readable failure message, cleared at the
// start of each operation.
func (m *Manager) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Restore rebuilds the session from durable storage at startup: it loads the
// persisted token, verifies it against the backend, and merges the stale
// snapshot with fresh backend fields. A token that no longer resolves a user
// is routine, not exceptional: all persisted auth state is discarded, the
// session-expired message is recorded, and Restore returns nil with the
// manager unauthenticated.
func (m *Manager) Restore(ctx context.Context) error {
	m.beginOp()
	defer m.endOp()

	token, _, err := m.st.AccessToken(ctx)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			m.log.Warn("read persisted token", zap.Error(err))
		}
		return nil
	}

	me, err := m.gw.Me(ctx, token)
	if err != nil || me == nil {
		if err != nil {
			m.log.Info("session restore rejected", zap.Error(err))
		}
		if cerr := m.st.ClearAuth(ctx); cerr != nil {
			m.log.Warn("clear auth state", zap.Error(cerr))
		}
		m.setUser(nil, "")
		m.setLastError(errs.MsgSessionExpired)
		return nil
	}

	stale, err := m.st.User(ctx)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		m.log.Warn("read user snapshot", zap.Error(err))
	}

	var user *model.User
	if stale != nil {
		user = mergeUser(stale, me)
	} else {
		user = buildUser(me, "")
	}
	m.setUser(user, user.PrimaryBranchID)
	m.log.Debug("session restored", zap.String("user_id", user.ID))
	return nil
}

// Login authenticates, persists the token, fetches the user with the fresh
// token attached, and decides the post-login route. The token is persisted
// before the user fetch and deliberately stays persisted when that fetch
// fails; Restore clears it on the next start.
func (m *Manager) Login(ctx context.Context, creds model.Credentials) (*model.LoginResult, error) {
	m.beginOp()
	defer m.endOp()

	token, err := m.gw.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		msg := gateway.Message(err, errs.MsgLoginFallback)
		m.setLastError(msg)
		m.log.Debug("login rejected", zap.String("email", creds.Email), zap.Error(err))
		return nil, err
	}
	if token == "" {
		m.setLastError(errs.MsgLoginBadPayload)
		return nil, errs.ErrInvalidServerResponse
	}

	if err := m.st.SaveAccessToken(ctx, token, expiryFromToken(token)); err != nil {
		m.setLastError(err.Error())
		return nil, fmt.Errorf("persist token: %w", err)
	}

	// Re-fetch with the fresh token attached explicitly so we never race the
	// global auth-header wiring.
	me, err := m.gw.Me(ctx, token)
	if err != nil || me == nil {
		m.setLastError(errs.MsgUserFetchFailed)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errs.ErrUserFetchFailed, gateway.Message(err, errs.MsgUserFetchFailed))
		}
		return nil, errs.ErrUserFetchFailed
	}

	user := buildUser(me, creds.BranchID)
	m.setUser(user, user.PrimaryBranchID)

	if creds.RememberMe {
		if err := m.st.SaveUser(ctx, user); err != nil {
			m.log.Warn("persist user snapshot", zap.Error(err))
		}
	}

	route := model.RouteForRole(user.PrimaryRole)
	if err := m.st.SetLoginHints(ctx, route); err != nil {
		m.log.Warn("persist login hints", zap.Error(err))
	}
	m.log.Info("logged in",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.PrimaryRole)),
	)
	return &model.LoginResult{RedirectTo: route}, nil
}

// Register creates an account and immediately attempts a login with the same
// credentials. When the nested login yields a token, a default member user is
// persisted and the dashboard route is returned; when it does not (or the
// login call itself fails), registration stands and the login route is
// returned so the user can establish a session explicitly.
func (m *Manager) Register(ctx context.Context, in model.RegisterInput) (string, error) {
	m.beginOp()
	defer m.endOp()

	if _, err := m.gw.Register(ctx, in.Email, in.Password, in.FirstName, in.LastName, in.BranchID); err != nil {
		m.setLastError(gateway.Message(err, "Registration failed. Please try again."))
		return "", err
	}

	token, err := m.gw.Login(ctx, in.Email, in.Password)
	if err != nil || token == "" {
		if err != nil {
			m.setLastError(gateway.Message(err, errs.MsgLoginFallback))
			m.log.Info("auto-login after registration failed", zap.Error(err))
		}
		return model.LoginRoute, nil
	}

	if err := m.st.SaveAccessToken(ctx, token, expiryFromToken(token)); err != nil {
		m.setLastError(err.Error())
		return "", fmt.Errorf("persist token: %w", err)
	}

	user := defaultUser(in)
	m.setUser(user, user.PrimaryBranchID)
	if err := m.st.SaveUser(ctx, user); err != nil {
		m.log.Warn("persist user snapshot", zap.Error(err))
	}

	route := model.RouteForRole(user.PrimaryRole)
	if err := m.st.SetLoginHints(ctx, route); err != nil {
		m.log.Warn("persist login hints", zap.Error(err))
	}
	m.log.Info("registered", zap.String("user_id", user.ID))
	return route, nil
}

// Logout tears the local session down unconditionally: the backend mutation
// is best-effort, and a network failure must never trap the user in an
// authenticated UI. The mutation error, if any, is recorded and returned
// after teardown.
func (m *Manager) Logout(ctx context.Context) error {
	m.beginOp()
	defer m.endOp()

	_, err := m.gw.Logout(ctx)
	if err != nil {
		m.setLastError(gateway.Message(err, "Logout failed."))
		m.log.Warn("backend logout failed", zap.Error(err))
	}

	if cerr := m.st.ClearAuth(ctx); cerr != nil {
		m.log.Warn("clear auth state", zap.Error(cerr))
	}
	m.setUser(nil, "")
	m.log.Info("logged out")
	return err
}

// ResetPassword triggers the password-reset flow for email.
func (m *Manager) ResetPassword(ctx context.Context, email string) (*model.ProviderResult, error) {
	m.beginOp()
	defer m.endOp()

	res, err := m.gw.ForgotPassword(ctx, email)
	if err != nil {
		m.setLastError(gateway.Message(err, "Failed to send password reset email."))
		return nil, err
	}
	if res == nil {
		m.setLastError(errs.ErrMalformedResponse.Error())
		return nil, errs.ErrMalformedResponse
	}
	return &model.ProviderResult{Success: res.Success, Message: res.Message}, nil
}

// SendVerificationEmail re-sends the account verification email.
func (m *Manager) SendVerificationEmail(ctx context.Context, email string) (*model.ProviderResult, error) {
	m.beginOp()
	defer m.endOp()

	res, err := m.gw.ResendVerification(ctx, email)
	if err != nil {
		m.setLastError(gateway.Message(err, "Failed to send verification email."))
		return nil, err
	}
	if res == nil {
		m.setLastError(errs.ErrMalformedResponse.Error())
		return nil, errs.ErrMalformedResponse
	}
	return &model.ProviderResult{Success: res.Success, Message: res.Message}, nil
}

// UpdateUser persists first/last name server-side, merges the canonical
// response with the caller's partial onto the current user, and refreshes the
// snapshot when one exists.
func (m *Manager) UpdateUser(ctx context.Context, upd model.UserUpdate) (*model.User, error) {
	m.beginOp()
	defer m.endOp()

	cur := m.CurrentUser()
	if cur == nil {
		m.setLastError(errs.ErrNoSession.Error())
		return nil, errs.ErrNoSession
	}

	first, last := cur.FirstName, cur.LastName
	if upd.FirstName != nil {
		first = *upd.FirstName
	}
	if upd.LastName != nil {
		last = *upd.LastName
	}

	resp, err := m.gw.UpdateUser(ctx, first, last)
	if err != nil {
		m.setLastError(gateway.Message(err, "Failed to update profile."))
		return nil, err
	}

	merged := *cur
	merged.FirstName = first
	merged.LastName = last
	if resp != nil {
		// Backend is canonical for the fields it returns.
		merged.FirstName = resp.FirstName
		merged.LastName = resp.LastName
	}
	if upd.PhotoURL != nil {
		merged.PhotoURL = *upd.PhotoURL
	}
	if upd.Preferences != nil {
		merged.Preferences = *upd.Preferences
	}

	m.setUser(&merged, m.ActiveBranchID())
	m.refreshSnapshot(ctx, &merged)
	return &merged, nil
}

// SetupMFA begins MFA enrollment and returns the QR code URL.
func (m *Manager) SetupMFA(ctx context.Context) (string, error) {
	m.beginOp()
	defer m.endOp()

	res, err := m.gw.SetupMFA(ctx)
	if err != nil {
		m.setLastError(gateway.Message(err, "Failed to setup MFA."))
		return "", err
	}
	if res == nil || res.QRCodeURL == "" {
		m.setLastError(errs.ErrMalformedResponse.Error())
		return "", errs.ErrMalformedResponse
	}
	return res.QRCodeURL, nil
}

// VerifyMFA confirms an enrollment code. A missing success-wrapper is an
// error; a backend-rejected code resolves false for the UI to handle.
func (m *Manager) VerifyMFA(ctx context.Context, code string) (bool, error) {
	m.beginOp()
	defer m.endOp()

	res, err := m.gw.VerifyMFA(ctx, code)
	if err != nil {
		m.setLastError(gateway.Message(err, "Failed to verify MFA code."))
		return false, err
	}
	if res == nil {
		m.setLastError(errs.ErrMalformedResponse.Error())
		return false, errs.ErrMalformedResponse
	}
	if res.Success {
		if cur := m.CurrentUser(); cur != nil {
			enabled := *cur
			enabled.MFAEnabled = true
			m.setUser(&enabled, m.ActiveBranchID())
			m.refreshSnapshot(ctx, &enabled)
		}
	}
	return res.Success, nil
}

// DisableMFA turns MFA off; backend-reported success is required.
func (m *Manager) DisableMFA(ctx context.Context) error {
	m.beginOp()
	defer m.endOp()

	res, err := m.gw.DisableMFA(ctx)
	if err != nil {
		m.setLastError(gateway.Message(err, "Failed to disable MFA."))
		return err
	}
	if res == nil {
		m.setLastError(errs.ErrMalformedResponse.Error())
		return errs.ErrMalformedResponse
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "Failed to disable MFA."
		}
		m.setLastError(msg)
		return fmt.Errorf("disable mfa: %s", msg)
	}
	if cur := m.CurrentUser(); cur != nil {
		disabled := *cur
		disabled.MFAEnabled = false
		m.setUser(&disabled, m.ActiveBranchID())
		m.refreshSnapshot(ctx, &disabled)
	}
	return nil
}

// CheckPermission reports whether the current user holds permission within
// the active branch. super_admin passes any check as long as the active
// branch resolves to a real membership.
func (m *Manager) CheckPermission(permission string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.currentUser == nil || m.activeBranch == "" {
		return false
	}
	branch := m.currentUser.Branch(m.activeBranch)
	if branch == nil {
		return false
	}
	if m.currentUser.PrimaryRole == model.RoleSuperAdmin {
		return true
	}
	for _, p := range branch.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// SetActiveBranch switches the branch context. The id must be among the
// user's memberships.
func (m *Manager) SetActiveBranch(branchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentUser == nil {
		return errs.ErrNoSession
	}
	if m.currentUser.Branch(branchID) == nil {
		return errs.ErrBranchNotFound
	}
	m.activeBranch = branchID
	return nil
}

// TakeLoginRedirect consumes the one-shot post-login navigation hint.
func (m *Manager) TakeLoginRedirect(ctx context.Context) (string, bool) {
	route, ok, err := m.st.TakeLoginHints(ctx)
	if err != nil {
		m.log.Warn("consume login hints", zap.Error(err))
		return "", false
	}
	return route, ok
}

// refreshSnapshot re-persists u only when a snapshot already exists (the user
// opted into remember-me at login, or registered).
func (m *Manager) refreshSnapshot(ctx context.Context, u *model.User) {
	if _, err := m.st.User(ctx); err != nil {
		return
	}
	if err := m.st.SaveUser(ctx, u); err != nil {
		m.log.Warn("refresh user snapshot", zap.Error(err))
	}
}
