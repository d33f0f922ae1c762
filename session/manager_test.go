package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/mealpoint/portal/identity"
	"github.com/mealpoint/portal/session"
	"github.com/mealpoint/portal/session/tokenstore"
	"github.com/mealpoint/portal/session/tokenstore/storefake"
)

const (
	testToken     = "opaque-session-token-1"
	testPrincipal = "admin1"
)

func testIdentity() identity.Identity {
	return identity.Identity{
		PrincipalName:      testPrincipal,
		Role:               identity.RoleAdmin,
		MustChangePassword: false,
	}
}

func newManager(t *testing.T, store *storefake.FakeStore, options ...session.ManagerOption) *session.Manager {
	t.Helper()

	m, err := session.NewManager(store, options...)
	require.NoError(t, err)
	return m
}

func TestNewManagerRequiresStore(t *testing.T) {
	_, err := session.NewManager(nil)
	require.Error(t, err)
}

func TestStatusIsAuthenticatingUntilHydrated(t *testing.T) {
	m := newManager(t, storefake.NewFakeStore())

	require.Equal(t, session.StatusAuthenticating, m.Current().Status)
}

func TestHydrateEmptyStoreIsUnauthenticated(t *testing.T) {
	m := newManager(t, storefake.NewFakeStore())

	require.NoError(t, m.Hydrate())

	current := m.Current()
	require.Equal(t, session.StatusUnauthenticated, current.Status)
	require.Empty(t, current.Token)
	require.Nil(t, current.Identity)
}

func TestHydrateRestoresPersistedSession(t *testing.T) {
	store := storefake.NewFakeStore()
	store.Seed(&tokenstore.PersistedSession{Token: testToken, Identity: testIdentity()})
	m := newManager(t, store)

	require.NoError(t, m.Hydrate())

	current := m.Current()
	require.Equal(t, session.StatusAuthenticated, current.Status)
	require.Equal(t, testToken, current.Token)
	require.NotNil(t, current.Identity)
	require.Equal(t, testPrincipal, current.Identity.PrincipalName)
}

func TestHydrateReadsStoreExactlyOnce(t *testing.T) {
	store := storefake.NewFakeStore()
	m := newManager(t, store)

	require.NoError(t, m.Hydrate())
	require.NoError(t, m.Hydrate())
	require.Equal(t, 1, store.LoadCalls)
}

func TestHydrateUnreadableStoreFailsOpen(t *testing.T) {
	store := storefake.NewFakeStore()
	store.LoadErr = errors.New("disk failure")
	m := newManager(t, store)

	require.NoError(t, m.Hydrate())
	require.Equal(t, session.StatusUnauthenticated, m.Current().Status)
}

func TestHydrateExpiredJWTStartsUnauthenticated(t *testing.T) {
	expired := signedJWT(t, time.Now().Add(-time.Hour))

	store := storefake.NewFakeStore()
	store.Seed(&tokenstore.PersistedSession{Token: expired, Identity: testIdentity()})
	m := newManager(t, store)

	require.NoError(t, m.Hydrate())

	require.Equal(t, session.StatusUnauthenticated, m.Current().Status)
	require.Nil(t, store.Stored())
}

func TestHydrateUnexpiredJWTRestoresSession(t *testing.T) {
	live := signedJWT(t, time.Now().Add(time.Hour))

	store := storefake.NewFakeStore()
	store.Seed(&tokenstore.PersistedSession{Token: live, Identity: testIdentity()})
	m := newManager(t, store)

	require.NoError(t, m.Hydrate())
	require.Equal(t, session.StatusAuthenticated, m.Current().Status)
}

func TestAuthenticatePersistsSession(t *testing.T) {
	store := storefake.NewFakeStore()
	m := newManager(t, store)
	require.NoError(t, m.Hydrate())

	require.NoError(t, m.Authenticate(testToken, testIdentity()))

	current := m.Current()
	require.Equal(t, session.StatusAuthenticated, current.Status)
	require.Equal(t, testToken, current.Token)

	stored := store.Stored()
	require.NotNil(t, stored)
	require.Equal(t, testToken, stored.Token)
	require.Equal(t, testIdentity(), stored.Identity)
}

func TestAuthenticateRejectsIncompleteState(t *testing.T) {
	store := storefake.NewFakeStore()
	m := newManager(t, store)
	require.NoError(t, m.Hydrate())

	require.Error(t, m.Authenticate("", testIdentity()))
	require.Error(t, m.Authenticate(testToken, identity.Identity{}))
	require.Equal(t, session.StatusUnauthenticated, m.Current().Status)
	require.Equal(t, 0, store.SaveCalls)
}

func TestUpdateIdentityClearsMustChangeAndKeepsToken(t *testing.T) {
	store := storefake.NewFakeStore()
	m := newManager(t, store)
	require.NoError(t, m.Hydrate())

	id := testIdentity()
	id.MustChangePassword = true
	require.NoError(t, m.Authenticate(testToken, id))

	mustChange := false
	require.NoError(t, m.UpdateIdentity(session.IdentityPatch{MustChangePassword: &mustChange}))

	current := m.Current()
	require.False(t, current.Identity.MustChangePassword)
	require.Equal(t, testToken, current.Token)

	stored := store.Stored()
	require.NotNil(t, stored)
	require.Equal(t, testToken, stored.Token)
	require.False(t, stored.Identity.MustChangePassword)
}

func TestUpdateIdentityWithoutSessionFails(t *testing.T) {
	m := newManager(t, storefake.NewFakeStore())
	require.NoError(t, m.Hydrate())

	mustChange := false
	require.Error(t, m.UpdateIdentity(session.IdentityPatch{MustChangePassword: &mustChange}))
}

func TestLogoutClearsSessionAndStore(t *testing.T) {
	store := storefake.NewFakeStore()
	m := newManager(t, store)
	require.NoError(t, m.Hydrate())
	require.NoError(t, m.Authenticate(testToken, testIdentity()))

	require.NoError(t, m.Logout())

	current := m.Current()
	require.Equal(t, session.StatusUnauthenticated, current.Status)
	require.Empty(t, current.Token)
	require.Nil(t, current.Identity)
	require.Nil(t, store.Stored())
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := storefake.NewFakeStore()
	m := newManager(t, store)
	require.NoError(t, m.Hydrate())
	require.NoError(t, m.Authenticate(testToken, testIdentity()))

	require.NoError(t, m.Logout())
	afterFirst := m.Current()
	clears := store.ClearCalls

	require.NoError(t, m.Logout())
	require.Equal(t, afterFirst, m.Current())
	require.Equal(t, clears, store.ClearCalls)
}

func TestSubscribeObservesMutations(t *testing.T) {
	store := storefake.NewFakeStore()
	m := newManager(t, store)
	require.NoError(t, m.Hydrate())

	ch, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, m.Authenticate(testToken, testIdentity()))
	snapshot := <-ch
	require.Equal(t, session.StatusAuthenticated, snapshot.Status)

	require.NoError(t, m.Logout())
	snapshot = <-ch
	require.Equal(t, session.StatusUnauthenticated, snapshot.Status)
	require.Nil(t, snapshot.Identity)
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	m := newManager(t, storefake.NewFakeStore())
	require.NoError(t, m.Hydrate())

	ch, cancel := m.Subscribe()
	cancel()

	require.NoError(t, m.Authenticate(testToken, testIdentity()))

	_, open := <-ch
	require.False(t, open)
}

func TestCurrentReturnsACopy(t *testing.T) {
	m := newManager(t, storefake.NewFakeStore())
	require.NoError(t, m.Hydrate())
	require.NoError(t, m.Authenticate(testToken, testIdentity()))

	current := m.Current()
	current.Identity.PrincipalName = "tampered"

	require.Equal(t, testPrincipal, m.Current().Identity.PrincipalName)
}

func signedJWT(t *testing.T, expiry time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": testPrincipal,
		"exp": expiry.Unix(),
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}
