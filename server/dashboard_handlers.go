package server

import (
	"net/http"
)

// AdminDashboardHandler renders the admin dashboard shell. The guard
// middleware has already confirmed the session holds the admin role.
func (s *Server) AdminDashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := s.sessions.Current()
		if current.Identity == nil {
			http.Error(w, "no identity", http.StatusInternalServerError)
			return
		}

		data := map[string]interface{}{
			"page":     "admin-dashboard",
			"appName":  s.config.GetAppName(),
			"username": current.Identity.PrincipalName,
			"role":     string(current.Identity.Role),
		}
		writeJSON(w, http.StatusOK, data)
	}
}

// VendorDashboardHandler renders the vendor dashboard shell.
func (s *Server) VendorDashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := s.sessions.Current()
		if current.Identity == nil {
			http.Error(w, "no identity", http.StatusInternalServerError)
			return
		}

		data := map[string]interface{}{
			"page":     "vendor-dashboard",
			"appName":  s.config.GetAppName(),
			"username": current.Identity.PrincipalName,
			"role":     string(current.Identity.Role),
		}
		writeJSON(w, http.StatusOK, data)
	}
}
