package flow

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealpoint/portal/authapi"
	"github.com/mealpoint/portal/identity"
	"github.com/mealpoint/portal/internal/utils"
	"github.com/mealpoint/portal/session"
)

// User-facing messages for failures that are not attributable to a single
// input.
const (
	msgNetworkFailure     = "Could not reach the server. Please try again."
	msgInvalidCredentials = "Invalid username or password"
	msgSessionExpired     = "Your session has expired. Please sign in again."
	msgResetDone          = "Password updated. Please sign in with your new password."
	msgCodeRejected       = "The recovery code is invalid or has expired. Please re-enter it."
)

// APIClient is the slice of the backend auth contract the flow machine
// drives. *authapi.Client satisfies it; tests use apifake.FakeClient.
type APIClient interface {
	Login(ctx context.Context, role identity.Role, creds authapi.Credentials) (*authapi.LoginResult, error)
	ChangePassword(ctx context.Context, role identity.Role, oldPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, role identity.Role, email string) error
	ResetPassword(ctx context.Context, role identity.Role, email, code, newPassword string) error
}

// Machine drives the credential-entry flow for one fixed role: login,
// optional forced password change, and the recovery chain. It owns the
// FlowState exclusively; event methods are the only mutators.
//
// Each event performs at most one network call. Dispatching another event
// while a call is outstanding fails with ErrSubmissionInFlight. A call
// whose flow was abandoned, or whose session token no longer matches the
// current session when it completes, is discarded: its result must not
// re-authenticate a session that has since been logged out.
type Machine struct {
	mu       sync.Mutex
	id       string
	role     identity.Role
	api      APIClient
	sessions *session.Manager

	state State
	busy  bool
	// gen is bumped on every applied transition; an in-flight call captured
	// under an older gen discards its result.
	gen int

	resume    string
	allowSkip bool
	logger    zerolog.Logger
}

// MachineOption defines a function type to modify the Machine instance.
type MachineOption func(*Machine)

// WithAllowSkip controls whether the forced password change offers a skip.
// Whether skipping should exist at all is product policy, so it is
// configurable rather than hardcoded.
func WithAllowSkip(allow bool) MachineOption {
	return func(m *Machine) {
		m.allowSkip = allow
	}
}

// WithResumeDestination records the destination the route guard captured
// before redirecting to login; a successful flow redirects there instead of
// the role home.
func WithResumeDestination(destination string) MachineOption {
	return func(m *Machine) {
		m.resume = destination
	}
}

// WithMachineLogger sets the logger used for flow transitions.
func WithMachineLogger(logger zerolog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

// NewMachine creates a flow machine in the LoginForm state for the given
// role. The role is fixed for the duration of the flow.
func NewMachine(role identity.Role, api APIClient, sessions *session.Manager, options ...MachineOption) (*Machine, error) {
	if !role.Valid() {
		return nil, errors.Errorf("[NewMachine] invalid role %q", role)
	}
	if api == nil {
		return nil, errors.New("[NewMachine] api client is required")
	}
	if sessions == nil {
		return nil, errors.New("[NewMachine] session manager is required")
	}

	m := &Machine{
		id:       uuid.New().String(),
		role:     role,
		api:      api,
		sessions: sessions,
		state:    LoginForm{Role: role},
		logger:   zerolog.Nop(),
	}

	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// State returns the active flow state. States are value types, so the
// caller gets a snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Role returns the role this flow authenticates.
func (m *Machine) Role() identity.Role {
	return m.role
}

// SubmitLogin handles the login form submission.
func (m *Machine) SubmitLogin(ctx context.Context, creds authapi.Credentials) (State, error) {
	_, gen, err := m.beginNetworkEvent(func(s State) bool { _, ok := s.(LoginForm); return ok })
	if err != nil {
		return m.State(), err
	}

	if verr := validateCredentials(creds.Username, creds.Password); verr != nil {
		return m.finish(gen, LoginForm{Role: m.role, Feedback: feedbackOf(verr)}), nil
	}

	result, apiErr := m.api.Login(ctx, m.role, creds)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false

	if m.gen != gen {
		// Flow was abandoned while the call was in flight; discard.
		return m.state, nil
	}

	switch {
	case apiErr == nil:
		if err := m.sessions.Authenticate(result.Token, result.Identity); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to persist authenticated session")
		}
		if result.Identity.MustChangePassword {
			m.setStateLocked(ForcedPasswordChange{Identity: result.Identity})
		} else {
			m.setStateLocked(Success{RedirectTarget: m.redirectTarget(result.Identity.Role)})
		}

	case errors.Is(apiErr, authapi.ErrInvalidCredentials):
		m.setStateLocked(LoginForm{Role: m.role, Feedback: Feedback{Message: msgInvalidCredentials, Field: FieldPassword}})

	default:
		m.setStateLocked(LoginForm{Role: m.role, Feedback: Feedback{Message: msgNetworkFailure}})
	}

	return m.state, nil
}

// ForgotPassword moves from the login form to the recovery email form.
func (m *Machine) ForgotPassword() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return m.state, ErrSubmissionInFlight
	}
	if _, ok := m.state.(LoginForm); !ok {
		return m.state, ErrInvalidTransition
	}

	m.setStateLocked(ForgotPasswordForm{Role: m.role})
	return m.state, nil
}

// SubmitEmail submits the recovery email. The outcome is deliberately the
// same for registered and unregistered addresses.
func (m *Machine) SubmitEmail(ctx context.Context, email string) (State, error) {
	_, gen, err := m.beginNetworkEvent(func(s State) bool { _, ok := s.(ForgotPasswordForm); return ok })
	if err != nil {
		return m.State(), err
	}

	email = strings.TrimSpace(email)
	if verr := validateEmail(email); verr != nil {
		return m.finish(gen, ForgotPasswordForm{Role: m.role, Feedback: feedbackOf(verr)}), nil
	}

	apiErr := m.api.RequestPasswordReset(ctx, m.role, email)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false

	if m.gen != gen {
		return m.state, nil
	}

	if apiErr != nil {
		m.setStateLocked(ForgotPasswordForm{Role: m.role, Feedback: Feedback{Message: msgNetworkFailure}})
		return m.state, nil
	}

	m.setStateLocked(AwaitingRecoveryCode{Email: email, Role: m.role})
	return m.state, nil
}

// SubmitRecoveryCode accepts the emailed code client-side. The code is not
// validated against the backend until the reset submission.
func (m *Machine) SubmitRecoveryCode(code string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return m.state, ErrSubmissionInFlight
	}
	waiting, ok := m.state.(AwaitingRecoveryCode)
	if !ok {
		return m.state, ErrInvalidTransition
	}

	code = strings.TrimSpace(code)
	if code == "" {
		m.setStateLocked(AwaitingRecoveryCode{
			Email:    waiting.Email,
			Role:     m.role,
			Feedback: Feedback{Message: "Recovery code is required", Field: FieldCode},
		})
		return m.state, nil
	}

	m.setStateLocked(PasswordResetForm{Email: waiting.Email, Code: code, Role: m.role})
	return m.state, nil
}

// SubmitPasswordReset completes the recovery flow. On success the user
// must re-authenticate; the session is never touched.
func (m *Machine) SubmitPasswordReset(ctx context.Context, newPassword, confirmation string) (State, error) {
	snapshot, gen, err := m.beginNetworkEvent(func(s State) bool { _, ok := s.(PasswordResetForm); return ok })
	if err != nil {
		return snapshot, err
	}
	form := snapshot.(PasswordResetForm)

	if verr := ValidateNewPassword(newPassword, confirmation); verr != nil {
		form.Feedback = feedbackOf(verr)
		return m.finish(gen, form), nil
	}

	apiErr := m.api.ResetPassword(ctx, m.role, form.Email, form.Code, newPassword)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false

	if m.gen != gen {
		return m.state, nil
	}

	switch {
	case apiErr == nil:
		m.setStateLocked(LoginForm{Role: m.role, Notice: msgResetDone})

	case errors.Is(apiErr, authapi.ErrInvalidOrExpiredCode):
		// Codes are single-use: drop the consumed one so it must be
		// re-entered.
		m.setStateLocked(PasswordResetForm{
			Email:    form.Email,
			Role:     m.role,
			Feedback: Feedback{Message: msgCodeRejected, Field: FieldCode},
		})

	case errors.Is(apiErr, authapi.ErrWeakPassword):
		form.Feedback = Feedback{Message: "The server rejected this password as too weak", Field: FieldNewPassword}
		m.setStateLocked(form)

	default:
		form.Feedback = Feedback{Message: msgNetworkFailure}
		m.setStateLocked(form)
	}

	return m.state, nil
}

// SubmitPasswordChange handles the forced first-login password change. The
// old password may be empty because the session carries the
// must-change-password flag; the backend contract permits the omission for
// exactly that case.
func (m *Machine) SubmitPasswordChange(ctx context.Context, oldPassword, newPassword, confirmation string) (State, error) {
	snapshot, gen, err := m.beginNetworkEvent(func(s State) bool { _, ok := s.(ForcedPasswordChange); return ok })
	if err != nil {
		return snapshot, err
	}
	forced := snapshot.(ForcedPasswordChange)

	if verr := ValidateNewPassword(newPassword, confirmation); verr != nil {
		forced.Feedback = feedbackOf(verr)
		return m.finish(gen, forced), nil
	}

	if oldPassword == "" && !forced.Identity.MustChangePassword {
		forced.Feedback = Feedback{Message: "Current password is required", Field: FieldOldPassword}
		return m.finish(gen, forced), nil
	}

	// Capture the token backing this call so a logout that lands while the
	// call is in flight invalidates the result.
	tokenAtDispatch := m.sessions.Current().Token

	apiErr := m.api.ChangePassword(ctx, m.role, oldPassword, newPassword)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false

	if m.gen != gen || m.sessions.Current().Token != tokenAtDispatch {
		return m.state, nil
	}

	switch {
	case apiErr == nil:
		if err := m.sessions.UpdateIdentity(session.IdentityPatch{MustChangePassword: utils.Ptr(false)}); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to clear password-change obligation")
		}
		m.setStateLocked(Success{RedirectTarget: m.redirectTarget(forced.Identity.Role)})

	case errors.Is(apiErr, authapi.ErrWrongOldPassword):
		forced.Feedback = Feedback{Message: "Current password is incorrect", Field: FieldOldPassword}
		m.setStateLocked(forced)

	case errors.Is(apiErr, authapi.ErrWeakPassword):
		forced.Feedback = Feedback{Message: "The server rejected this password as too weak", Field: FieldNewPassword}
		m.setStateLocked(forced)

	case errors.Is(apiErr, authapi.ErrTokenRejected):
		if err := m.sessions.Logout(); err != nil {
			m.logger.Warn().Err(err).Msg("Logout after token rejection failed")
		}
		m.setStateLocked(LoginForm{Role: m.role, Feedback: Feedback{Message: msgSessionExpired}})

	default:
		forced.Feedback = Feedback{Message: msgNetworkFailure}
		m.setStateLocked(forced)
	}

	return m.state, nil
}

// SkipPasswordChange leaves the forced change without changing the
// password. The session keeps its must-change flag, so the next sensitive
// action can re-prompt.
func (m *Machine) SkipPasswordChange() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return m.state, ErrSubmissionInFlight
	}
	forced, ok := m.state.(ForcedPasswordChange)
	if !ok {
		return m.state, ErrInvalidTransition
	}
	if !m.allowSkip {
		return m.state, ErrSkipNotAllowed
	}

	m.setStateLocked(Success{RedirectTarget: m.redirectTarget(forced.Identity.Role)})
	return m.state, nil
}

// Abandon resets the flow to the login form, as when the user navigates to
// /login directly. Any in-flight call's result is discarded; the session is
// not touched.
func (m *Machine) Abandon() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resume = ""
	m.setStateLocked(LoginForm{Role: m.role})
	return m.state
}

// beginNetworkEvent validates the current state and marks the machine
// busy. It returns a snapshot of the state at dispatch and the generation
// to validate against on completion.
func (m *Machine) beginNetworkEvent(accepts func(State) bool) (State, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return m.state, 0, ErrSubmissionInFlight
	}
	if !accepts(m.state) {
		return m.state, 0, ErrInvalidTransition
	}

	m.busy = true
	return m.state, m.gen, nil
}

// finish applies a locally computed state (no network call happened after
// all) and releases the busy flag.
func (m *Machine) finish(gen int, s State) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.busy = false
	if m.gen != gen {
		return m.state
	}
	m.setStateLocked(s)
	return m.state
}

// redirectTarget resolves where a finished flow lands: the destination the
// guard captured if any, otherwise the role home. This is the sole
// role-based branching point in the flow.
func (m *Machine) redirectTarget(role identity.Role) string {
	if m.resume != "" {
		return m.resume
	}
	return role.Home()
}

func (m *Machine) setStateLocked(s State) {
	m.gen++
	m.state = s
	m.logger.Debug().Str("flow_id", m.id).Str("state", stateName(s)).Msg("Flow transition")
}

func stateName(s State) string {
	switch s.(type) {
	case LoginForm:
		return "login_form"
	case ForcedPasswordChange:
		return "forced_password_change"
	case ForgotPasswordForm:
		return "forgot_password_form"
	case AwaitingRecoveryCode:
		return "awaiting_recovery_code"
	case PasswordResetForm:
		return "password_reset_form"
	case Success:
		return "success"
	}
	return "unknown"
}
