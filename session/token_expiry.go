package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenUsable reports whether a persisted token can still back a restored
// session. The backend token is opaque to the portal, but when it happens
// to be a JWT we can reject one that is already past its expiry instead of
// restoring a session the backend will bounce on first use. Anything that
// is not a parseable JWT is assumed usable; the backend remains the
// authority either way.
func tokenUsable(token string, now time.Time) bool {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.Before(exp.Time)
}
