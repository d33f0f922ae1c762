package guard_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mealpoint/portal/guard"
	"github.com/mealpoint/portal/identity"
	"github.com/mealpoint/portal/session"
)

func adminSession() session.Session {
	return session.Session{
		Token:    "opaque-token-1",
		Identity: &identity.Identity{PrincipalName: "admin1", Role: identity.RoleAdmin},
		Status:   session.StatusAuthenticated,
	}
}

func vendorSession() session.Session {
	return session.Session{
		Token:    "opaque-token-2",
		Identity: &identity.Identity{PrincipalName: "vendor1", Role: identity.RoleVendor},
		Status:   session.StatusAuthenticated,
	}
}

func TestCanEnterSuspendsWhileAuthenticating(t *testing.T) {
	g := guard.New(nil)

	decision := g.CanEnter(session.Session{Status: session.StatusAuthenticating}, identity.AdminHome)
	require.Equal(t, guard.VerdictSuspend, decision.Verdict)
}

func TestCanEnterRedirectsUnauthenticatedWithResume(t *testing.T) {
	g := guard.New(nil)

	decision := g.CanEnter(session.Session{Status: session.StatusUnauthenticated}, identity.AdminHome)
	require.Equal(t, guard.Decision{
		Verdict:           guard.VerdictRedirect,
		RedirectPath:      guard.LoginPath,
		ResumeDestination: identity.AdminHome,
	}, decision)
}

func TestCanEnterAllowsMatchingRole(t *testing.T) {
	g := guard.New(nil)

	require.Equal(t, guard.VerdictAllow, g.CanEnter(adminSession(), identity.AdminHome).Verdict)
	require.Equal(t, guard.VerdictAllow, g.CanEnter(adminSession(), "/admin/users").Verdict)
	require.Equal(t, guard.VerdictAllow, g.CanEnter(vendorSession(), identity.VendorHome).Verdict)
}

func TestCanEnterRoleMismatchRedirectsToLogin(t *testing.T) {
	g := guard.New(nil)

	// A vendor asking for an admin destination is sent to login, never to
	// an access-denied page.
	decision := g.CanEnter(vendorSession(), identity.AdminHome)
	require.Equal(t, guard.VerdictRedirect, decision.Verdict)
	require.Equal(t, guard.LoginPath, decision.RedirectPath)
	require.Equal(t, identity.AdminHome, decision.ResumeDestination)
}

func TestCanEnterPublicDestinationsAlwaysAllowed(t *testing.T) {
	g := guard.New(nil)

	for _, s := range []session.Session{
		{Status: session.StatusUnauthenticated},
		{Status: session.StatusAuthenticating},
		adminSession(),
	} {
		require.Equal(t, guard.VerdictAllow, g.CanEnter(s, "/about").Verdict)
	}
}

func TestNewTableValidatesRules(t *testing.T) {
	_, err := guard.NewTable([]guard.Rule{{Prefix: "no-slash", Role: identity.RoleAdmin}})
	require.Error(t, err)

	_, err = guard.NewTable([]guard.Rule{{Prefix: "/kitchen", Role: "chef"}})
	require.Error(t, err)
}

func TestTablePrefixMatching(t *testing.T) {
	table, err := guard.NewTable([]guard.Rule{{Prefix: "/admin/", Role: identity.RoleAdmin}})
	require.NoError(t, err)

	role, protected := table.RequiredRole("/admin/users")
	require.True(t, protected)
	require.Equal(t, identity.RoleAdmin, role)

	// The bare prefix without the trailing slash is covered too.
	_, protected = table.RequiredRole("/admin")
	require.True(t, protected)

	_, protected = table.RequiredRole("/administrivia")
	require.False(t, protected)
}

func TestLoadTableFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	contents := `routes:
  - prefix: /admin-dashboard
    role: admin
  - prefix: /vendor-dashboard
    role: vendor
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	table, err := guard.LoadTable(path)
	require.NoError(t, err)

	role, protected := table.RequiredRole("/vendor-dashboard")
	require.True(t, protected)
	require.Equal(t, identity.RoleVendor, role)
}

func TestLoadTableRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n bad yaml ["), 0o600))

	_, err := guard.LoadTable(path)
	require.Error(t, err)

	_, err = guard.LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
