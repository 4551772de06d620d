package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parishdesk/parishdesk/internal/gateway"
	"github.com/parishdesk/parishdesk/internal/model"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestExpiryFromToken(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(45 * time.Minute).Truncate(time.Second)
	got := expiryFromToken(signedToken(t, exp))
	if !got.Equal(exp) {
		t.Fatalf("expiry = %v, want %v", got, exp)
	}

	// Opaque tokens get the fallback TTL.
	got = expiryFromToken("not-a-jwt")
	if until := time.Until(got); until < 14*time.Minute || until > 16*time.Minute {
		t.Fatalf("fallback expiry %v off from fallback TTL", until)
	}
}

func TestBuildUser_PrimaryBranchResolution(t *testing.T) {
	t.Parallel()

	me := &gateway.MeUser{
		ID:    "u-1",
		Email: "a@example.org",
		Roles: []gateway.NamedRole{{Name: "Pastor"}},
		UserBranches: []gateway.MeBranchMembership{
			{Branch: gateway.MeBranch{ID: "b-1", Name: "North"}, Role: gateway.NamedRole{Name: "Pastor"}},
			{Branch: gateway.MeBranch{ID: "b-2", Name: "South"}, Role: gateway.NamedRole{Name: "Volunteer"}},
		},
	}

	u := buildUser(me, "b-2")
	if u.PrimaryBranchID != "b-2" {
		t.Fatalf("preferred branch ignored: %q", u.PrimaryBranchID)
	}

	u = buildUser(me, "")
	if u.PrimaryBranchID != "b-1" {
		t.Fatalf("first membership not used: %q", u.PrimaryBranchID)
	}
	if u.PrimaryRole != model.RolePastor {
		t.Fatalf("role = %q", u.PrimaryRole)
	}
	if u.Branches[1].Role != model.RoleVolunteer {
		t.Fatalf("per-branch role = %q", u.Branches[1].Role)
	}
}

func TestBuildUser_SynthesizesBranch(t *testing.T) {
	t.Parallel()

	me := &gateway.MeUser{ID: "u-1", Roles: []gateway.NamedRole{{Name: "Member"}}}
	u := buildUser(me, "")
	if len(u.Branches) != 1 {
		t.Fatalf("branches = %+v", u.Branches)
	}
	b := u.Branches[0]
	if b.ID == "" || b.Name != "Default Branch" {
		t.Fatalf("synthesized branch = %+v", b)
	}
	if u.PrimaryBranchID != b.ID {
		t.Fatalf("primary branch %q != synthesized %q", u.PrimaryBranchID, b.ID)
	}
	if len(b.Permissions) == 0 {
		t.Fatal("synthesized branch has no baseline permissions")
	}
}

func TestMergeUser(t *testing.T) {
	t.Parallel()

	stale := &model.User{
		ID:              "u-1",
		Email:           "old@example.org",
		FirstName:       "Old",
		PrimaryBranchID: "b-1",
		Branches:        []model.UserBranch{{ID: "b-1", Permissions: []string{"manage_members"}}},
		OrganisationID:  "org-old",
		Preferences:     model.Preferences{Theme: "dark"},
		MFAEnabled:      true,
	}
	me := &gateway.MeUser{
		ID:        "u-1",
		Email:     "new@example.org",
		FirstName: "New",
		Roles:     []gateway.NamedRole{{Name: "Super Admin"}},
	}

	merged := mergeUser(stale, me)
	if merged.Email != "new@example.org" || merged.FirstName != "New" {
		t.Fatalf("backend identity must win: %+v", merged)
	}
	if merged.PrimaryRole != model.RoleSuperAdmin || !merged.IsMultiBranchAdmin {
		t.Fatalf("role derivation: %+v", merged)
	}
	if merged.OrganisationID != "org-old" {
		t.Fatalf("empty backend org must not clobber: %q", merged.OrganisationID)
	}
	if !merged.MFAEnabled || merged.Preferences.Theme != "dark" {
		t.Fatalf("snapshot-only state lost: %+v", merged)
	}
	if merged.Branches[0].Permissions[0] != "manage_members" {
		t.Fatalf("snapshot branches lost: %+v", merged.Branches)
	}
}

func TestMergeUser_SynthesizesMissingBranch(t *testing.T) {
	t.Parallel()

	stale := &model.User{ID: "u-1"}
	me := &gateway.MeUser{ID: "u-1", Roles: []gateway.NamedRole{{Name: "Member"}}}

	merged := mergeUser(stale, me)
	if len(merged.Branches) != 1 || merged.PrimaryBranchID != merged.Branches[0].ID {
		t.Fatalf("branch not synthesized: %+v", merged)
	}
}

func TestDefaultUser(t *testing.T) {
	t.Parallel()

	u := defaultUser(model.RegisterInput{
		Email: "b@example.org", FirstName: "Bob", LastName: "Hill",
	})
	if u.PrimaryRole != model.RoleMember || u.IsMultiBranchAdmin {
		t.Fatalf("default user = %+v", u)
	}
	if u.Preferences != model.DefaultPreferences() {
		t.Fatalf("preferences = %+v", u.Preferences)
	}

	u = defaultUser(model.RegisterInput{Email: "b@example.org", BranchID: "b-7"})
	if u.PrimaryBranchID != "b-7" || u.Branches[0].ID != "b-7" {
		t.Fatalf("branch override ignored: %+v", u)
	}
}
