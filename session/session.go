package session

import "github.com/mealpoint/portal/identity"

// Status is the authentication status of the portal process.
type Status string

const (
	// StatusAuthenticating is the startup state, held until the token store
	// has been read. Route guarding must neither admit nor redirect while in
	// this state.
	StatusAuthenticating Status = "authenticating"

	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticated   Status = "authenticated"
)

// Session is the client-held record of whether, and as whom, the current
// user is authenticated.
//
// Invariant: Status == StatusAuthenticated exactly when Token and Identity
// are both present; Status == StatusUnauthenticated exactly when both are
// absent. Observers never see a partial combination.
type Session struct {
	Token    string
	Identity *identity.Identity
	Status   Status
}

// Authenticated reports whether the session holds a full authenticated
// state.
func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// IdentityPatch describes a partial identity update. Nil fields are left
// untouched. Only the password-change obligation is mutable for the
// lifetime of a session.
type IdentityPatch struct {
	MustChangePassword *bool
}
