package storefake

import (
	"sync"

	"github.com/mealpoint/portal/session/tokenstore"
)

// FakeStore is a thread-safe in-memory implementation of tokenstore.Store
// for tests. Errors can be injected per operation, and call counts are
// recorded so tests can assert that nothing was written.
type FakeStore struct {
	mu      sync.Mutex
	session *tokenstore.PersistedSession

	LoadErr  error
	SaveErr  error
	ClearErr error

	LoadCalls  int
	SaveCalls  int
	ClearCalls int
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// Load returns the stored session or the injected error.
func (f *FakeStore) Load() (*tokenstore.PersistedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.LoadCalls++
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}
	if f.session == nil {
		return nil, nil
	}
	// Return a copy to prevent external modifications
	copied := *f.session
	return &copied, nil
}

// Save stores a copy of the session or returns the injected error.
func (f *FakeStore) Save(session *tokenstore.PersistedSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SaveCalls++
	if f.SaveErr != nil {
		return f.SaveErr
	}
	copied := *session
	f.session = &copied
	return nil
}

// Clear removes the stored session or returns the injected error.
func (f *FakeStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ClearCalls++
	if f.ClearErr != nil {
		return f.ClearErr
	}
	f.session = nil
	return nil
}

// Seed places a session in the store without counting as a Save call.
func (f *FakeStore) Seed(session *tokenstore.PersistedSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = session
}

// Stored returns the currently held session without counting as a Load call.
func (f *FakeStore) Stored() *tokenstore.PersistedSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}
