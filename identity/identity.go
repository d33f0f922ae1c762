package identity

import "fmt"

// Role determines both UI routing and which backend endpoint group a
// credential holder authenticates against.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleVendor Role = "vendor"
)

// Home routes for each role after a successful sign-in.
const (
	AdminHome  = "/admin-dashboard"
	VendorHome = "/vendor-dashboard"
)

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleVendor:
		return RoleVendor, nil
	}
	return "", fmt.Errorf("[ParseRole] unknown role %q", s)
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleVendor
}

// Home returns the dashboard route a member of this role lands on after
// authenticating.
func (r Role) Home() string {
	if r == RoleVendor {
		return VendorHome
	}
	return AdminHome
}

// Identity is the authenticated principal: who they are, which role they
// hold, and whether they still owe a password change. It is immutable for
// the lifetime of a session except MustChangePassword, which is cleared
// only by a successful password change.
type Identity struct {
	PrincipalName      string `json:"principal_name"`
	Role               Role   `json:"role"`
	MustChangePassword bool   `json:"must_change_password"`
}

// Complete reports whether the identity carries the fields a session
// requires. Partially persisted identities must never back a session.
func (i Identity) Complete() bool {
	return i.PrincipalName != "" && i.Role.Valid()
}
