// Package guard decides whether a navigation to a destination is admitted,
// suspended, or redirected to login based on the current session.
package guard

import (
	"github.com/mealpoint/portal/session"
)

// Verdict is the kind of decision the guard reaches.
type Verdict string

const (
	// VerdictAllow admits the navigation.
	VerdictAllow Verdict = "allow"

	// VerdictSuspend means the session is still hydrating: render nothing,
	// and never redirect prematurely.
	VerdictSuspend Verdict = "suspend"

	// VerdictRedirect sends the visitor to RedirectPath, recording the
	// destination they asked for so a successful login can return them.
	VerdictRedirect Verdict = "redirect"
)

// LoginPath is where unauthenticated navigation is redirected.
const LoginPath = "/login"

// Decision is the outcome of a guard check.
type Decision struct {
	Verdict           Verdict
	RedirectPath      string
	ResumeDestination string
}

// Guard applies the route-guarding policy over a role table.
type Guard struct {
	table *Table
}

// New creates a guard over the given table. A nil table uses the default.
func New(table *Table) *Guard {
	if table == nil {
		table = DefaultTable()
	}
	return &Guard{table: table}
}

// CanEnter decides whether the session may enter destination.
//
// A role mismatch is deliberately treated exactly like being
// unauthenticated: the visitor is sent to login, not to an error page, so
// a direct URL reveals nothing about the other role's routes.
func (g *Guard) CanEnter(s session.Session, destination string) Decision {
	required, protected := g.table.RequiredRole(destination)
	if !protected {
		return Decision{Verdict: VerdictAllow}
	}

	switch s.Status {
	case session.StatusAuthenticating:
		return Decision{Verdict: VerdictSuspend}

	case session.StatusAuthenticated:
		if s.Identity != nil && s.Identity.Role == required {
			return Decision{Verdict: VerdictAllow}
		}
		return g.redirectToLogin(destination)

	default:
		return g.redirectToLogin(destination)
	}
}

func (g *Guard) redirectToLogin(destination string) Decision {
	return Decision{
		Verdict:           VerdictRedirect,
		RedirectPath:      LoginPath,
		ResumeDestination: destination,
	}
}
