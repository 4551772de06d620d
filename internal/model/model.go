// Package model defines domain entities shared by the session manager,
// the GraphQL gateway, and the client storage layer.
package model

import "strings"

// Role is the closed set of roles the application understands. Backend role
// names are free-form strings; NormalizeRole maps them into this set.
type Role string

const (
	RoleSuperAdmin     Role = "super_admin"
	RoleBranchAdmin    Role = "branch_admin"
	RolePastor         Role = "pastor"
	RoleFinanceManager Role = "finance_manager"
	RoleContentManager Role = "content_manager"
	RoleMinistryLeader Role = "ministry_leader"
	RoleVolunteer      Role = "volunteer"
	RoleMember         Role = "member"
)

// AllRoles lists every supported role.
func AllRoles() []Role {
	return []Role{
		RoleSuperAdmin,
		RoleBranchAdmin,
		RolePastor,
		RoleFinanceManager,
		RoleContentManager,
		RoleMinistryLeader,
		RoleVolunteer,
		RoleMember,
	}
}

// NormalizeRole lower-cases a backend role name and replaces separators with
// underscores ("Branch Admin" -> "branch_admin"). The result is not required
// to be a known Role; RouteForRole handles the rest.
func NormalizeRole(name string) Role {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return Role(s)
}

// DeriveRole picks the primary role from the backend-reported role names:
// first entry, normalized. Falls back to member when the list is empty.
func DeriveRole(names []string) Role {
	if len(names) == 0 || strings.TrimSpace(names[0]) == "" {
		return RoleMember
	}
	return NormalizeRole(names[0])
}

// IsMultiBranchAdmin reports whether any backend role name contains "admin".
// The substring match is intentionally loose to cover backend variants like
// "Branch Admin" and "SuperAdmin".
func IsMultiBranchAdmin(names []string) bool {
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), "admin") {
			return true
		}
	}
	return false
}

// DashboardFallbackRoute is returned for any role outside the enumeration.
const DashboardFallbackRoute = "/dashboard"

// LoginRoute is where a client lands when no session could be established.
const LoginRoute = "/login"

// RouteForRole maps a role to its dashboard route. Total over Role: unknown
// values get the generic dashboard.
func RouteForRole(r Role) string {
	switch r {
	case RoleSuperAdmin:
		return "/dashboard/super-admin"
	case RoleBranchAdmin:
		return "/dashboard/branch-admin"
	case RolePastor:
		return "/dashboard/pastor"
	case RoleFinanceManager:
		return "/dashboard/finance"
	case RoleContentManager:
		return "/dashboard/content"
	case RoleMinistryLeader:
		return "/dashboard/ministry"
	case RoleVolunteer:
		return "/dashboard/volunteer"
	case RoleMember:
		return "/dashboard/member"
	default:
		return DashboardFallbackRoute
	}
}

// UserBranch is a single organizational-unit membership.
type UserBranch struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions"`
}

// Preferences are client-side presentation settings; defaulted locally, not
// synchronized to the backend yet.
type Preferences struct {
	Theme         string `json:"theme"` // light | dark | system
	Notifications bool   `json:"notifications"`
	Language      string `json:"language"`
}

// DefaultPreferences returns the preferences applied to freshly built users.
func DefaultPreferences() Preferences {
	return Preferences{Theme: "system", Notifications: true, Language: "en"}
}

// User is the authenticated principal, denormalized for client use.
type User struct {
	ID                 string       `json:"id"`
	Email              string       `json:"email"`
	FirstName          string       `json:"firstName"`
	LastName           string       `json:"lastName"`
	PhotoURL           string       `json:"photoUrl,omitempty"`
	PrimaryBranchID    string       `json:"primaryBranchId"`
	Branches           []UserBranch `json:"branches"`
	PrimaryRole        Role         `json:"primaryRole"`
	IsMultiBranchAdmin bool         `json:"isMultiBranchAdmin"`
	OrganisationID     string       `json:"organisationId,omitempty"`
	Preferences        Preferences  `json:"preferences"`
	MFAEnabled         bool         `json:"mfaEnabled"`
}

// Branch returns the membership entry matching id, or nil.
func (u *User) Branch(id string) *UserBranch {
	for i := range u.Branches {
		if u.Branches[i].ID == id {
			return &u.Branches[i]
		}
	}
	return nil
}

// Credentials is the login input.
type Credentials struct {
	Email      string
	Password   string
	RememberMe bool
	BranchID   string // optional explicit branch context
}

// LoginResult reports where a freshly authenticated user should land. The
// caller performs the navigation; the session manager only decides the route.
type LoginResult struct {
	RedirectTo string
}

// RegisterInput is the account-creation input.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	BranchID  string
}

// UserUpdate is a partial profile edit. Only first/last name are persisted
// server-side through the update mutation; the rest merges locally.
type UserUpdate struct {
	FirstName   *string
	LastName    *string
	PhotoURL    *string
	Preferences *Preferences
}

// ProviderResult is the backend's {success, message} wrapper for one-shot
// operations (password reset, verification email, MFA confirm/disable).
type ProviderResult struct {
	Success bool
	Message string
}
