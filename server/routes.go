package server

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteFunc("GET "+RouteLogin, s.LoginPageHandler())
	s.RegisterRouteFunc("POST "+RouteAuthLogin, s.LoginSubmissionHandler())
	s.RegisterRouteFunc("GET "+RouteAuthLogout, s.LogoutHandler())

	// Forced first-login password change
	s.RegisterRouteFunc("POST "+RouteChangePassword, s.ChangePasswordHandler())
	s.RegisterRouteFunc("POST "+RouteSkipChangePassword, s.SkipChangePasswordHandler())

	// Password recovery
	s.RegisterRouteFunc("POST "+RouteForgotPassword, s.ForgotPasswordHandler())
	s.RegisterRouteFunc("POST "+RouteRecoveryEmail, s.RecoveryEmailHandler())
	s.RegisterRouteFunc("POST "+RouteRecoveryCode, s.RecoveryCodeHandler())
	s.RegisterRouteFunc("POST "+RouteResetPassword, s.ResetPasswordHandler())

	// State the UI polls
	s.RegisterRouteFunc("GET "+RouteAuthSession, s.SessionHandler())
	s.RegisterRouteFunc("GET "+RouteAuthFlow, s.FlowStateHandler())

	// Guarded dashboard routes
	s.RegisterRouteFunc("GET "+RouteAdminDashboard, ChainMiddleware(s.AdminDashboardHandler(), s.RequireRoute()))
	s.RegisterRouteFunc("GET "+RouteVendorDashboard, ChainMiddleware(s.VendorDashboardHandler(), s.RequireRoute()))
}
