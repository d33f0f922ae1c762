package session

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealpoint/portal/identity"
	"github.com/mealpoint/portal/session/tokenstore"
)

// subscriberBuffer is the channel depth for each subscriber. A slow
// subscriber misses intermediate snapshots rather than blocking mutation.
const subscriberBuffer = 8

// Manager is the process-wide session state. It owns the Session record,
// persists it through the token store on every successful authentication,
// and notifies subscribers on every mutation so protected views can unmount
// when the session ends.
type Manager struct {
	mu          sync.RWMutex
	store       tokenstore.Store
	session     Session
	subscribers map[int]chan Session
	nextSubID   int
	hydrated    bool
	nowTime     func() time.Time
	logger      zerolog.Logger
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithLogger sets the logger used for session lifecycle events.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session manager backed by the given store. The
// manager starts in StatusAuthenticating; callers must Hydrate exactly once
// before any route-guard decision is made.
func NewManager(store tokenstore.Store, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] token store is required")
	}

	m := &Manager{
		store:       store,
		session:     Session{Status: StatusAuthenticating},
		subscribers: make(map[int]chan Session),
		nowTime:     time.Now,
		logger:      zerolog.Nop(),
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// Hydrate reads the token store once and settles the session into either
// Authenticated or Unauthenticated. Any doubt about the persisted record
// fails open to Unauthenticated, never to a half-valid session. Subsequent
// calls are no-ops.
func (m *Manager) Hydrate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hydrated {
		return nil
	}
	m.hydrated = true

	persisted, err := m.store.Load()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Token store unreadable, starting unauthenticated")
		m.setLocked(Session{Status: StatusUnauthenticated})
		return nil
	}

	if persisted == nil {
		m.setLocked(Session{Status: StatusUnauthenticated})
		return nil
	}

	if !tokenUsable(persisted.Token, m.nowTime()) {
		m.logger.Info().Msg("Persisted token has expired, starting unauthenticated")
		if err := m.store.Clear(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to clear expired session")
		}
		m.setLocked(Session{Status: StatusUnauthenticated})
		return nil
	}

	id := persisted.Identity
	m.setLocked(Session{
		Token:    persisted.Token,
		Identity: &id,
		Status:   StatusAuthenticated,
	})
	m.logger.Info().Str("principal", id.PrincipalName).Str("role", string(id.Role)).Msg("Session restored")
	return nil
}

// Current returns a snapshot of the session. The identity is copied so
// callers cannot mutate shared state.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Authenticate transitions to Authenticated and persists the session.
// The persisted record survives restarts; a persistence failure is returned
// but does not undo the in-memory transition.
func (m *Manager) Authenticate(token string, id identity.Identity) error {
	if token == "" {
		return errors.New("[Manager.Authenticate] token is required")
	}
	if !id.Complete() {
		return errors.New("[Manager.Authenticate] identity is incomplete")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idCopy := id
	m.setLocked(Session{
		Token:    token,
		Identity: &idCopy,
		Status:   StatusAuthenticated,
	})

	if err := m.store.Save(&tokenstore.PersistedSession{Token: token, Identity: id}); err != nil {
		return errors.Wrap(err, "[Manager.Authenticate] persist session")
	}
	return nil
}

// UpdateIdentity applies a partial identity update to an authenticated
// session and re-persists the record with the existing token. Used to clear
// the password-change obligation after a successful forced change.
func (m *Manager) UpdateIdentity(patch IdentityPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Status != StatusAuthenticated || m.session.Identity == nil {
		return errors.New("[Manager.UpdateIdentity] no authenticated session")
	}

	id := *m.session.Identity
	if patch.MustChangePassword != nil {
		id.MustChangePassword = *patch.MustChangePassword
	}

	m.setLocked(Session{
		Token:    m.session.Token,
		Identity: &id,
		Status:   StatusAuthenticated,
	})

	if err := m.store.Save(&tokenstore.PersistedSession{Token: m.session.Token, Identity: id}); err != nil {
		return errors.Wrap(err, "[Manager.UpdateIdentity] persist session")
	}
	return nil
}

// Logout transitions to Unauthenticated, clears persistent storage and
// signals all subscribers. Logging out an already unauthenticated session
// is a no-op.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Status == StatusUnauthenticated {
		return nil
	}

	m.setLocked(Session{Status: StatusUnauthenticated})

	if err := m.store.Clear(); err != nil {
		return errors.Wrap(err, "[Manager.Logout] clear store")
	}
	m.logger.Info().Msg("Logged out")
	return nil
}

// Subscribe registers an observer of session mutations. Each snapshot sent
// on the channel is either the pre- or post-mutation session, never a
// partial one. The returned cancel function must be called to release the
// subscription.
func (m *Manager) Subscribe() (<-chan Session, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++

	ch := make(chan Session, subscriberBuffer)
	m.subscribers[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// setLocked replaces the session and notifies subscribers. Callers must
// hold the write lock.
func (m *Manager) setLocked(s Session) {
	m.session = s
	snapshot := m.snapshotLocked()
	for _, ch := range m.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Subscriber is not keeping up; it will observe the next mutation.
		}
	}
}

// snapshotLocked copies the session. Callers must hold at least the read
// lock.
func (m *Manager) snapshotLocked() Session {
	s := m.session
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	return s
}
