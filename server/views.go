package server

import (
	"encoding/json"
	"net/http"

	"github.com/mealpoint/portal/flow"
	"github.com/mealpoint/portal/session"
)

// feedbackView is inline feedback rendered next to a form field, or as a
// banner when Field is empty.
type feedbackView struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// flowStateView is the wire shape of a flow state. The UI switches on the
// State discriminator; only the fields relevant to the active screen are
// populated.
type flowStateView struct {
	State              string        `json:"state"`
	Role               string        `json:"role,omitempty"`
	Notice             string        `json:"notice,omitempty"`
	Email              string        `json:"email,omitempty"`
	Code               string        `json:"code,omitempty"`
	Username           string        `json:"username,omitempty"`
	MustChangePassword bool          `json:"mustChangePassword,omitempty"`
	RedirectTarget     string        `json:"redirectTarget,omitempty"`
	Feedback           *feedbackView `json:"feedback,omitempty"`
}

// State discriminators used in flowStateView.
const (
	stateLogin                = "login"
	stateForcedPasswordChange = "forcedPasswordChange"
	stateForgotPassword       = "forgotPassword"
	stateAwaitingRecoveryCode = "awaitingRecoveryCode"
	statePasswordReset        = "passwordReset"
	stateSuccess              = "success"
)

func viewOfState(s flow.State) flowStateView {
	switch v := s.(type) {
	case flow.LoginForm:
		return flowStateView{
			State:    stateLogin,
			Role:     string(v.Role),
			Notice:   v.Notice,
			Feedback: viewOfFeedback(v.Feedback),
		}
	case flow.ForcedPasswordChange:
		return flowStateView{
			State:              stateForcedPasswordChange,
			Role:               string(v.Identity.Role),
			Username:           v.Identity.PrincipalName,
			MustChangePassword: v.Identity.MustChangePassword,
			Feedback:           viewOfFeedback(v.Feedback),
		}
	case flow.ForgotPasswordForm:
		return flowStateView{
			State:    stateForgotPassword,
			Role:     string(v.Role),
			Feedback: viewOfFeedback(v.Feedback),
		}
	case flow.AwaitingRecoveryCode:
		return flowStateView{
			State:    stateAwaitingRecoveryCode,
			Role:     string(v.Role),
			Email:    v.Email,
			Feedback: viewOfFeedback(v.Feedback),
		}
	case flow.PasswordResetForm:
		return flowStateView{
			State:    statePasswordReset,
			Role:     string(v.Role),
			Email:    v.Email,
			Code:     v.Code,
			Feedback: viewOfFeedback(v.Feedback),
		}
	case flow.Success:
		return flowStateView{
			State:          stateSuccess,
			RedirectTarget: v.RedirectTarget,
		}
	default:
		return flowStateView{State: "unknown"}
	}
}

func viewOfFeedback(f flow.Feedback) *feedbackView {
	if f.Message == "" {
		return nil
	}
	return &feedbackView{Message: f.Message, Field: f.Field}
}

// sessionView is the wire shape of the session snapshot. The session token
// is deliberately absent; it never leaves the process.
type sessionView struct {
	Status             string `json:"status"`
	Username           string `json:"username,omitempty"`
	Role               string `json:"role,omitempty"`
	MustChangePassword bool   `json:"mustChangePassword,omitempty"`
}

func viewOfSession(s session.Session) sessionView {
	view := sessionView{Status: string(s.Status)}
	if s.Identity != nil {
		view.Username = s.Identity.PrincipalName
		view.Role = string(s.Identity.Role)
		view.MustChangePassword = s.Identity.MustChangePassword
	}
	return view
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
