package flow

import "strings"

// MinPasswordLength is the local floor for new passwords; the backend may
// apply a stricter policy on top.
const MinPasswordLength = 6

// ValidationError is a locally detected input problem, reported without a
// network round-trip.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateNewPassword applies the shared password policy used by both the
// forced change and the recovery reset: non-empty, minimum length, and —
// when a confirmation value is present — equal to its confirmation.
func ValidateNewPassword(password, confirmation string) *ValidationError {
	if password == "" {
		return &ValidationError{Field: FieldNewPassword, Message: "Password is required"}
	}
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: FieldNewPassword, Message: "Password must be at least 6 characters"}
	}
	if confirmation != "" && password != confirmation {
		return &ValidationError{Field: FieldConfirmPassword, Message: "Passwords do not match"}
	}
	return nil
}

// feedbackOf converts a validation error into inline form feedback.
func feedbackOf(err *ValidationError) Feedback {
	return Feedback{Message: err.Message, Field: err.Field}
}

// validateEmail is a light shape check; the backend is the authority on
// whether the address belongs to an account.
func validateEmail(email string) *ValidationError {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: FieldEmail, Message: "Email is required"}
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return &ValidationError{Field: FieldEmail, Message: "Invalid email format"}
	}
	return nil
}

// validateCredentials checks the login form inputs before any network call.
func validateCredentials(username, password string) *ValidationError {
	if strings.TrimSpace(username) == "" {
		return &ValidationError{Field: FieldUsername, Message: "Username is required"}
	}
	if password == "" {
		return &ValidationError{Field: FieldPassword, Message: "Password is required"}
	}
	return nil
}
