package flow

import "github.com/mealpoint/portal/identity"

// Feedback carries an inline message attached to a re-rendered state.
// Field names the input the message belongs to; it is empty when the
// message concerns the whole flow (e.g. a network failure banner).
type Feedback struct {
	Message string
	Field   string
}

// Form field names used in field-scoped feedback.
const (
	FieldUsername        = "username"
	FieldPassword        = "password"
	FieldOldPassword     = "old_password"
	FieldNewPassword     = "new_password"
	FieldConfirmPassword = "confirm_password"
	FieldEmail           = "email"
	FieldCode            = "code"
)

// State is the tagged variant describing which screen of the credential
// flow is active. Exactly one state is active at a time; the Machine is
// the only mutator.
type State interface {
	flowState()
}

// LoginForm is the initial screen: username and password for a fixed role.
type LoginForm struct {
	Role identity.Role
	// Notice is an informational banner, e.g. after a completed password
	// reset.
	Notice   string
	Feedback Feedback
}

// ForcedPasswordChange is interposed after a successful login whose
// identity still owes a first-login password change.
type ForcedPasswordChange struct {
	Identity identity.Identity
	Feedback Feedback
}

// ForgotPasswordForm collects the account email for recovery.
type ForgotPasswordForm struct {
	Role     identity.Role
	Feedback Feedback
}

// AwaitingRecoveryCode waits for the code the backend mailed out. The code
// is not validated here; only the final reset submission can reject it.
type AwaitingRecoveryCode struct {
	Email    string
	Role     identity.Role
	Feedback Feedback
}

// PasswordResetForm collects the replacement password for a recovery.
type PasswordResetForm struct {
	Email    string
	Code     string
	Role     identity.Role
	Feedback Feedback
}

// Success is the terminal state: the flow is done and the UI should
// navigate to RedirectTarget.
type Success struct {
	RedirectTarget string
}

func (LoginForm) flowState()            {}
func (ForcedPasswordChange) flowState() {}
func (ForgotPasswordForm) flowState()   {}
func (AwaitingRecoveryCode) flowState() {}
func (PasswordResetForm) flowState()    {}
func (Success) flowState()              {}
