package tokenstore

import "github.com/mealpoint/portal/identity"

// PersistedSession is the single durable record written on every successful
// authentication: the opaque backend token together with the identity it
// belongs to. It is the only thing the portal keeps across restarts.
type PersistedSession struct {
	Token    string            `json:"token"`
	Identity identity.Identity `json:"identity"`
}

// Complete reports whether the record can back a full session. A token
// without an identity (or the reverse) must load as absent, never as a
// half-valid session.
func (p *PersistedSession) Complete() bool {
	return p != nil && p.Token != "" && p.Identity.Complete()
}

// Store defines the interface for durable session persistence.
// Implementations own the storage exclusively; no other component touches
// it directly.
type Store interface {
	// Load returns the persisted session, or (nil, nil) when none exists.
	// Malformed or partially written data is treated as absent. An error is
	// returned only for infrastructure failures; callers treat those as
	// absent too.
	Load() (*PersistedSession, error)

	// Save atomically replaces the persisted session. The record must be
	// complete.
	Save(session *PersistedSession) error

	// Clear removes the persisted session. Clearing an empty store is not
	// an error.
	Clear() error
}
