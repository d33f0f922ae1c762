package server

import (
	"net/http"
	"net/url"

	"github.com/mealpoint/portal/guard"
)

// RequireRoute is middleware for guarded routes. It asks the route guard
// whether the current session may enter the requested path and either
// admits the request, asks the client to retry while hydration is still
// running, or redirects to the login page with the original destination
// preserved for resumption.
func (s *Server) RequireRoute() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			decision := s.guard.CanEnter(s.sessions.Current(), r.URL.Path)

			switch decision.Verdict {
			case guard.VerdictAllow:
				next(w, r)

			case guard.VerdictSuspend:
				// Session restore has not finished yet. The client should
				// hold the navigation and retry shortly.
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session restore in progress", http.StatusServiceUnavailable)

			case guard.VerdictRedirect:
				target := decision.RedirectPath
				if decision.ResumeDestination != "" {
					target += "?resume=" + url.QueryEscape(decision.ResumeDestination)
				}
				http.Redirect(w, r, target, http.StatusSeeOther)

			default:
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		}
	}
}
