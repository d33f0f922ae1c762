package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Login & Logout
	RouteLogin      = "/login"
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"

	// Auth Routes - Password Management
	RouteChangePassword     = "/auth/change-password"
	RouteSkipChangePassword = "/auth/change-password/skip"
	RouteForgotPassword     = "/auth/forgot-password"
	RouteRecoveryEmail      = "/auth/recovery-email"
	RouteRecoveryCode       = "/auth/recovery-code"
	RouteResetPassword      = "/auth/reset-password"

	// Session state for the UI
	RouteAuthSession = "/auth/session"
	RouteAuthFlow    = "/auth/flow"

	// Guarded dashboard routes
	RouteAdminDashboard  = "/admin-dashboard"
	RouteVendorDashboard = "/vendor-dashboard"
)
