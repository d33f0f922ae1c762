package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mealpoint/portal/authapi/apifake"
	"github.com/mealpoint/portal/identity"
	"github.com/mealpoint/portal/internal/config"
	"github.com/mealpoint/portal/server"
	"github.com/mealpoint/portal/session"
	"github.com/mealpoint/portal/session/tokenstore/storefake"
)

const (
	testAdminUser     = "admin1"
	testAdminPassword = "correct-password"
	testAdminEmail    = "admin1@example.com"
	testVendorUser    = "vendor1"
)

// testConfig overrides policy knobs without touching the environment.
type testConfig struct {
	config.EnvVars
	allowSkip bool
}

func (c testConfig) GetAllowSkipPasswordChange() bool { return c.allowSkip }

func (testConfig) GetEnv() string { return "TEST" }

type testFixture struct {
	server   *server.Server
	api      *apifake.FakeClient
	store    *storefake.FakeStore
	sessions *session.Manager
}

func setupTestFixture(t *testing.T, hydrate bool, accounts ...apifake.Account) *testFixture {
	t.Helper()

	if len(accounts) == 0 {
		accounts = []apifake.Account{
			{
				Username: testAdminUser,
				Password: testAdminPassword,
				Email:    testAdminEmail,
				Role:     identity.RoleAdmin,
			},
			{
				Username: testVendorUser,
				Password: testAdminPassword,
				Email:    "vendor1@example.com",
				Role:     identity.RoleVendor,
			},
		}
	}

	store := storefake.NewFakeStore()
	sessions, err := session.NewManager(store)
	require.NoError(t, err)
	if hydrate {
		require.NoError(t, sessions.Hydrate())
	}

	api := apifake.NewFakeClient(accounts...)

	srv, err := server.New(testConfig{allowSkip: true}, sessions, api, nil)
	require.NoError(t, err)

	return &testFixture{server: srv, api: api, store: store, sessions: sessions}
}

func (f *testFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (f *testFixture) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var view map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func TestLoginPageStartsFlow(t *testing.T) {
	f := setupTestFixture(t, true)

	rec := f.get(t, server.RouteLogin+"?role=vendor")

	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Equal(t, "login", view["state"])
	require.Equal(t, "vendor", view["role"])
}

func TestLoginPageRejectsUnknownRole(t *testing.T) {
	f := setupTestFixture(t, true)

	rec := f.get(t, server.RouteLogin+"?role=superuser")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginFlowReachesDashboard(t *testing.T) {
	f := setupTestFixture(t, true)

	f.get(t, server.RouteLogin)
	rec := f.post(t, server.RouteAuthLogin, map[string]string{
		"username": testAdminUser,
		"password": testAdminPassword,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Equal(t, "success", view["state"])
	require.Equal(t, identity.AdminHome, view["redirectTarget"])

	dashboard := f.get(t, server.RouteAdminDashboard)
	require.Equal(t, http.StatusOK, dashboard.Code)
	require.Equal(t, testAdminUser, decodeView(t, dashboard)["username"])
}

func TestWrongPasswordStaysOnLoginForm(t *testing.T) {
	f := setupTestFixture(t, true)

	f.get(t, server.RouteLogin)
	rec := f.post(t, server.RouteAuthLogin, map[string]string{
		"username": testAdminUser,
		"password": "not-the-password",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Equal(t, "login", view["state"])
	require.NotNil(t, view["feedback"])
	require.Equal(t, session.StatusUnauthenticated, f.sessions.Current().Status)
}

func TestSubmissionWithoutActiveFlowConflicts(t *testing.T) {
	f := setupTestFixture(t, true)

	rec := f.post(t, server.RouteAuthLogin, map[string]string{
		"username": testAdminUser,
		"password": testAdminPassword,
	})

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGuardRedirectsWhenSignedOut(t *testing.T) {
	f := setupTestFixture(t, true)

	rec := f.get(t, server.RouteAdminDashboard)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, server.RouteLogin))
	require.Contains(t, location, "resume=%2Fadmin-dashboard")
}

func TestGuardSuspendsWhileHydrating(t *testing.T) {
	f := setupTestFixture(t, false)

	rec := f.get(t, server.RouteAdminDashboard)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestGuardRejectsWrongRoleLikeSignedOut(t *testing.T) {
	f := setupTestFixture(t, true)

	f.get(t, server.RouteLogin+"?role=vendor")
	f.post(t, server.RouteAuthLogin, map[string]string{
		"username": testVendorUser,
		"password": testAdminPassword,
	})

	rec := f.get(t, server.RouteAdminDashboard)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Location"), server.RouteLogin))
}

func TestSessionEndpointNeverExposesToken(t *testing.T) {
	f := setupTestFixture(t, true)

	f.get(t, server.RouteLogin)
	f.post(t, server.RouteAuthLogin, map[string]string{
		"username": testAdminUser,
		"password": testAdminPassword,
	})

	rec := f.get(t, server.RouteAuthSession)

	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Equal(t, string(session.StatusAuthenticated), view["status"])
	require.Equal(t, testAdminUser, view["username"])
	require.NotContains(t, rec.Body.String(), "token")
	require.NotContains(t, rec.Body.String(), f.sessions.Current().Token)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setupTestFixture(t, true)

	first := f.get(t, server.RouteAuthLogout)
	second := f.get(t, server.RouteAuthLogout)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, string(session.StatusUnauthenticated), decodeView(t, second)["status"])
}

func TestForcedChangeInterposedAndCompleted(t *testing.T) {
	f := setupTestFixture(t, true, apifake.Account{
		Username:           testAdminUser,
		Password:           testAdminPassword,
		Email:              testAdminEmail,
		Role:               identity.RoleAdmin,
		MustChangePassword: true,
	})

	f.get(t, server.RouteLogin)
	loginRec := f.post(t, server.RouteAuthLogin, map[string]string{
		"username": testAdminUser,
		"password": testAdminPassword,
	})
	require.Equal(t, "forcedPasswordChange", decodeView(t, loginRec)["state"])

	changeRec := f.post(t, server.RouteChangePassword, map[string]string{
		"oldPassword":     "",
		"newPassword":     "brand-new-password",
		"confirmPassword": "brand-new-password",
	})

	view := decodeView(t, changeRec)
	require.Equal(t, "success", view["state"])
	require.False(t, f.sessions.Current().Identity.MustChangePassword)
}

func TestSkipChangeLeavesFlagSet(t *testing.T) {
	f := setupTestFixture(t, true, apifake.Account{
		Username:           testAdminUser,
		Password:           testAdminPassword,
		Email:              testAdminEmail,
		Role:               identity.RoleAdmin,
		MustChangePassword: true,
	})

	f.get(t, server.RouteLogin)
	f.post(t, server.RouteAuthLogin, map[string]string{
		"username": testAdminUser,
		"password": testAdminPassword,
	})

	rec := f.post(t, server.RouteSkipChangePassword, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", decodeView(t, rec)["state"])
	require.True(t, f.sessions.Current().Identity.MustChangePassword)
}

func TestRecoveryFlowEndToEnd(t *testing.T) {
	f := setupTestFixture(t, true)

	f.get(t, server.RouteLogin)

	forgotRec := f.post(t, server.RouteForgotPassword, nil)
	require.Equal(t, "forgotPassword", decodeView(t, forgotRec)["state"])

	emailRec := f.post(t, server.RouteRecoveryEmail, map[string]string{"email": testAdminEmail})
	require.Equal(t, "awaitingRecoveryCode", decodeView(t, emailRec)["state"])

	codeRec := f.post(t, server.RouteRecoveryCode, map[string]string{"code": "123456"})
	require.Equal(t, "passwordReset", decodeView(t, codeRec)["state"])

	resetRec := f.post(t, server.RouteResetPassword, map[string]string{
		"newPassword":     "replacement-pass",
		"confirmPassword": "replacement-pass",
	})

	view := decodeView(t, resetRec)
	require.Equal(t, "login", view["state"])
	require.NotEmpty(t, view["notice"])
	require.Equal(t, session.StatusUnauthenticated, f.sessions.Current().Status)
	require.Equal(t, "replacement-pass", f.api.PasswordOf(testAdminUser))
}

func TestVisitingLoginAbandonsRecovery(t *testing.T) {
	f := setupTestFixture(t, true)

	f.get(t, server.RouteLogin)
	f.post(t, server.RouteForgotPassword, nil)

	rec := f.get(t, server.RouteLogin)

	require.Equal(t, "login", decodeView(t, rec)["state"])
	flowRec := f.get(t, server.RouteAuthFlow)
	require.Equal(t, "login", decodeView(t, flowRec)["state"])
}

func TestFlowStateNotFoundBeforeLoginVisit(t *testing.T) {
	f := setupTestFixture(t, true)

	rec := f.get(t, server.RouteAuthFlow)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedBodyRejected(t *testing.T) {
	f := setupTestFixture(t, true)

	f.get(t, server.RouteLogin)
	req := httptest.NewRequest(http.MethodPost, server.RouteAuthLogin, strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
