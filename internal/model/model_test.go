package model

import (
	"strings"
	"testing"
)

func TestNormalizeRole(t *testing.T) {
	t.Parallel()
	cases := map[string]Role{
		"Branch Admin":  RoleBranchAdmin,
		"branch-admin":  RoleBranchAdmin,
		"  Super Admin": RoleSuperAdmin,
		"PASTOR":        RolePastor,
		"member":        RoleMember,
		"Head Usher":    Role("head_usher"),
	}
	for in, want := range cases {
		if got := NormalizeRole(in); got != want {
			t.Fatalf("NormalizeRole(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeriveRole(t *testing.T) {
	t.Parallel()

	if got := DeriveRole(nil); got != RoleMember {
		t.Fatalf("empty list: %q", got)
	}
	if got := DeriveRole([]string{"  "}); got != RoleMember {
		t.Fatalf("blank first entry: %q", got)
	}
	if got := DeriveRole([]string{"Finance Manager", "Member"}); got != RoleFinanceManager {
		t.Fatalf("first entry wins: %q", got)
	}
}

func TestIsMultiBranchAdmin(t *testing.T) {
	t.Parallel()

	if IsMultiBranchAdmin([]string{"Pastor", "Volunteer"}) {
		t.Fatal("no admin role present")
	}
	for _, n := range []string{"Branch Admin", "SuperAdmin", "administrator"} {
		if !IsMultiBranchAdmin([]string{"Member", n}) {
			t.Fatalf("%q should match", n)
		}
	}
}

func TestRouteForRole_TotalAndDistinct(t *testing.T) {
	t.Parallel()

	seen := map[string]Role{}
	for _, r := range AllRoles() {
		route := RouteForRole(r)
		if route == "" {
			t.Fatalf("empty route for %q", r)
		}
		if route == DashboardFallbackRoute {
			t.Fatalf("known role %q fell through to fallback", r)
		}
		if !strings.HasPrefix(route, "/dashboard/") {
			t.Fatalf("route %q for %q outside dashboard", route, r)
		}
		if prev, dup := seen[route]; dup {
			t.Fatalf("route %q shared by %q and %q", route, prev, r)
		}
		seen[route] = r
	}

	if got := RouteForRole(Role("head_usher")); got != DashboardFallbackRoute {
		t.Fatalf("unknown role route = %q", got)
	}
}

func TestUserBranchLookup(t *testing.T) {
	t.Parallel()

	u := &User{Branches: []UserBranch{{ID: "b-1"}, {ID: "b-2", Name: "South"}}}
	if b := u.Branch("b-2"); b == nil || b.Name != "South" {
		t.Fatalf("Branch(b-2) = %+v", b)
	}
	if u.Branch("b-404") != nil {
		t.Fatal("unknown id must resolve nil")
	}
}
