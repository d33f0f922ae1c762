package apifake

import (
	"context"
	"fmt"
	"sync"

	"github.com/mealpoint/portal/authapi"
	"github.com/mealpoint/portal/identity"
)

const fakeMinPasswordLength = 6

// Account is a backend account registered with the fake.
type Account struct {
	Username           string
	Password           string
	Email              string
	Role               identity.Role
	MustChangePassword bool
}

// FakeClient is an in-memory stand-in for the backend auth API. It behaves
// like the real contract (single-use reset codes, enumeration-safe forgot
// password, token rejection) so flow tests can drive full scenarios without
// a network.
type FakeClient struct {
	mu          sync.Mutex
	accounts    map[string]*Account // username -> account
	resetCodes  map[string]string   // email -> pending code
	current     *Account            // account behind the "session token"
	tokenSerial int

	// NextErr, when set, is returned by the next operation and then
	// cleared. Used to simulate a network failure.
	NextErr error

	// RejectToken makes every authenticated call fail with ErrTokenRejected.
	RejectToken bool

	// Block, when non-nil, is received from at the start of every
	// operation so tests can hold a call in flight. Entered, when also
	// non-nil, is signalled first so the test knows the call is in flight.
	Block   chan struct{}
	Entered chan struct{}

	// Calls records operation names in order.
	Calls []string
}

// NewFakeClient creates an empty fake backend.
func NewFakeClient(accounts ...Account) *FakeClient {
	f := &FakeClient{
		accounts:   make(map[string]*Account),
		resetCodes: make(map[string]string),
	}
	for i := range accounts {
		account := accounts[i]
		f.accounts[account.Username] = &account
	}
	return f
}

// IssueResetCode registers a pending recovery code for an email, as the
// real backend would after sending the recovery mail.
func (f *FakeClient) IssueResetCode(email, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCodes[email] = code
}

// PasswordOf returns the current password of a registered account.
func (f *FakeClient) PasswordOf(username string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if account, ok := f.accounts[username]; ok {
		return account.Password
	}
	return ""
}

// CallCount returns how many operations of the given name were issued.
func (f *FakeClient) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *FakeClient) begin(name string) error {
	if f.Block != nil {
		if f.Entered != nil {
			f.Entered <- struct{}{}
		}
		<-f.Block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, name)
	if f.NextErr != nil {
		err := f.NextErr
		f.NextErr = nil
		return err
	}
	return nil
}

// Login authenticates a username/password pair for a role.
func (f *FakeClient) Login(_ context.Context, role identity.Role, creds authapi.Credentials) (*authapi.LoginResult, error) {
	if err := f.begin("login"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[creds.Username]
	if !ok || account.Role != role || account.Password != creds.Password {
		return nil, authapi.ErrInvalidCredentials
	}

	f.current = account
	f.tokenSerial++
	return &authapi.LoginResult{
		Token: fmt.Sprintf("fake-token-%d", f.tokenSerial),
		Identity: identity.Identity{
			PrincipalName:      account.Username,
			Role:               account.Role,
			MustChangePassword: account.MustChangePassword,
		},
	}, nil
}

// ChangePassword changes the password of the account behind the session.
// An empty oldPassword is accepted only when the account still owes a
// forced change.
func (f *FakeClient) ChangePassword(_ context.Context, _ identity.Role, oldPassword, newPassword string) error {
	if err := f.begin("change-password"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RejectToken || f.current == nil {
		return authapi.ErrTokenRejected
	}
	if len(newPassword) < fakeMinPasswordLength {
		return authapi.ErrWeakPassword
	}
	if oldPassword == "" {
		if !f.current.MustChangePassword {
			return authapi.ErrWrongOldPassword
		}
	} else if oldPassword != f.current.Password {
		return authapi.ErrWrongOldPassword
	}

	f.current.Password = newPassword
	f.current.MustChangePassword = false
	return nil
}

// RequestPasswordReset reports success for registered and unregistered
// emails alike; a code is only actually issued for registered ones.
func (f *FakeClient) RequestPasswordReset(_ context.Context, _ identity.Role, email string) error {
	if err := f.begin("forgot-password"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, account := range f.accounts {
		if account.Email == email {
			f.resetCodes[email] = "123456"
			break
		}
	}
	return nil
}

// ResetPassword consumes a pending recovery code. Codes are single-use.
func (f *FakeClient) ResetPassword(_ context.Context, _ identity.Role, email, code, newPassword string) error {
	if err := f.begin("reset-password"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	pending, ok := f.resetCodes[email]
	if !ok || pending != code {
		return authapi.ErrInvalidOrExpiredCode
	}
	if len(newPassword) < fakeMinPasswordLength {
		return authapi.ErrWeakPassword
	}

	delete(f.resetCodes, email)
	for _, account := range f.accounts {
		if account.Email == email {
			account.Password = newPassword
			account.MustChangePassword = false
		}
	}
	return nil
}
