package session

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/parishdesk/parishdesk/internal/gateway"
	"github.com/parishdesk/parishdesk/internal/model"
)

// baselinePermissions are granted on synthesized branch memberships; the
// backend "me" payload does not carry per-branch permission lists yet.
var baselinePermissions = []string{"view_events", "view_sermons"}

// fallbackTokenTTL is assumed when a token carries no exp claim.
const fallbackTokenTTL = 15 * time.Minute

// expiryFromToken reads the exp claim without verifying the signature; the
// backend stays the authority on validity, this is for local diagnostics.
func expiryFromToken(tok string) time.Time {
	var claims jwt.RegisteredClaims
	_, _ = jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) { return nil, nil },
		jwt.WithoutClaimsValidation(),
	)
	if claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(fallbackTokenTTL)
}

// synthesizedBranch substitutes for an empty backend membership list so the
// rest of the app never handles a user without a branch.
func synthesizedBranch(role model.Role) model.UserBranch {
	id, _ := uuid.NewV4()
	return model.UserBranch{
		ID:          id.String(),
		Name:        "Default Branch",
		Role:        role,
		Permissions: append([]string(nil), baselinePermissions...),
	}
}

func branchesFromMe(me *gateway.MeUser) []model.UserBranch {
	branches := make([]model.UserBranch, 0, len(me.UserBranches))
	for _, ub := range me.UserBranches {
		branches = append(branches, model.UserBranch{
			ID:          ub.Branch.ID,
			Name:        ub.Branch.Name,
			Role:        model.NormalizeRole(ub.Role.Name),
			Permissions: append([]string(nil), baselinePermissions...),
		})
	}
	return branches
}

// buildUser constructs a fresh User from a "me" payload. Primary branch
// resolution order: the caller-preferred branch, the first backend
// membership, a synthesized default. MFAEnabled is deliberately false on
// fresh builds: the wire payload does not report MFA state yet.
func buildUser(me *gateway.MeUser, preferredBranchID string) *model.User {
	roleNames := me.RoleNames()
	role := model.DeriveRole(roleNames)

	branches := branchesFromMe(me)
	if len(branches) == 0 {
		branches = []model.UserBranch{synthesizedBranch(role)}
	}

	primary := preferredBranchID
	if primary == "" {
		primary = branches[0].ID
	}

	return &model.User{
		ID:                 me.ID,
		Email:              me.Email,
		FirstName:          me.FirstName,
		LastName:           me.LastName,
		PrimaryBranchID:    primary,
		Branches:           branches,
		PrimaryRole:        role,
		IsMultiBranchAdmin: model.IsMultiBranchAdmin(roleNames),
		OrganisationID:     me.OrganisationID,
		Preferences:        model.DefaultPreferences(),
		MFAEnabled:         false,
	}
}

// mergeUser reconciles a stale persisted snapshot with fresh backend fields.
// Backend-sourced identity and role always win; branches, preferences, MFA
// state, and the rest are retained from the snapshot.
func mergeUser(stale *model.User, me *gateway.MeUser) *model.User {
	roleNames := me.RoleNames()

	merged := *stale
	merged.ID = me.ID
	merged.Email = me.Email
	merged.FirstName = me.FirstName
	merged.LastName = me.LastName
	merged.PrimaryRole = model.DeriveRole(roleNames)
	merged.IsMultiBranchAdmin = model.IsMultiBranchAdmin(roleNames)
	if me.OrganisationID != "" {
		merged.OrganisationID = me.OrganisationID
	}
	if len(merged.Branches) == 0 {
		merged.Branches = []model.UserBranch{synthesizedBranch(merged.PrimaryRole)}
	}
	if merged.PrimaryBranchID == "" {
		merged.PrimaryBranchID = merged.Branches[0].ID
	}
	return &merged
}

// defaultUser is the locally constructed account used right after
// registration, before the backend profile is first fetched.
func defaultUser(in model.RegisterInput) *model.User {
	branch := synthesizedBranch(model.RoleMember)
	if in.BranchID != "" {
		branch.ID = in.BranchID
	}
	id, _ := uuid.NewV4()
	return &model.User{
		ID:                 id.String(),
		Email:              in.Email,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		PrimaryBranchID:    branch.ID,
		Branches:           []model.UserBranch{branch},
		PrimaryRole:        model.RoleMember,
		IsMultiBranchAdmin: false,
		Preferences:        model.DefaultPreferences(),
		MFAEnabled:         false,
	}
}
