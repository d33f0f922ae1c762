package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mealpoint/portal/authapi"
	"github.com/mealpoint/portal/flow"
	"github.com/mealpoint/portal/identity"
)

// loginSubmission is the POST body of a login attempt.
type loginSubmission struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type emailSubmission struct {
	Email string `json:"email"`
}

type codeSubmission struct {
	Code string `json:"code"`
}

type passwordResetSubmission struct {
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type passwordChangeSubmission struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginPageHandler starts a fresh credential flow for the requested role.
// Re-visiting the login page abandons whatever flow was in progress, so a
// half-finished recovery never leaks into the next attempt.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roleParam := r.URL.Query().Get("role")
		if roleParam == "" {
			roleParam = string(identity.RoleAdmin)
		}
		role, err := identity.ParseRole(roleParam)
		if err != nil {
			writeJSONError(w, "invalid_role", "unknown portal role", http.StatusBadRequest)
			return
		}

		if previous := s.currentMachine(); previous != nil {
			previous.Abandon()
		}

		machine, err := s.resetMachine(role, r.URL.Query().Get("resume"))
		if err != nil {
			log.Error().Err(err).Msg("LoginPageHandler failed to start flow")
			writeJSONError(w, "flow_start_failed", "could not start a login flow", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, viewOfState(machine.State()))
	}
}

// LoginSubmissionHandler submits credentials to the active flow.
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginSubmission
		if !decodeBody(w, r, &body) {
			return
		}
		s.dispatch(w, r, func(m *flow.Machine) (flow.State, error) {
			return m.SubmitLogin(r.Context(), authapi.Credentials{
				Username: body.Username,
				Password: body.Password,
			})
		})
	}
}

// ForgotPasswordHandler moves the flow from the login form into recovery.
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, func(m *flow.Machine) (flow.State, error) {
			return m.ForgotPassword()
		})
	}
}

// RecoveryEmailHandler submits the account email for recovery.
func (s *Server) RecoveryEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body emailSubmission
		if !decodeBody(w, r, &body) {
			return
		}
		s.dispatch(w, r, func(m *flow.Machine) (flow.State, error) {
			return m.SubmitEmail(r.Context(), body.Email)
		})
	}
}

// RecoveryCodeHandler records the emailed recovery code. The code is not
// checked against the backend here; a bad code surfaces on the final reset
// submission.
func (s *Server) RecoveryCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body codeSubmission
		if !decodeBody(w, r, &body) {
			return
		}
		s.dispatch(w, r, func(m *flow.Machine) (flow.State, error) {
			return m.SubmitRecoveryCode(body.Code)
		})
	}
}

// ResetPasswordHandler submits the replacement password for a recovery.
func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body passwordResetSubmission
		if !decodeBody(w, r, &body) {
			return
		}
		s.dispatch(w, r, func(m *flow.Machine) (flow.State, error) {
			return m.SubmitPasswordReset(r.Context(), body.NewPassword, body.ConfirmPassword)
		})
	}
}

// ChangePasswordHandler submits the forced first-login password change.
func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body passwordChangeSubmission
		if !decodeBody(w, r, &body) {
			return
		}
		s.dispatch(w, r, func(m *flow.Machine) (flow.State, error) {
			return m.SubmitPasswordChange(r.Context(), body.OldPassword, body.NewPassword, body.ConfirmPassword)
		})
	}
}

// SkipChangePasswordHandler defers the forced password change when policy
// allows it.
func (s *Server) SkipChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, func(m *flow.Machine) (flow.State, error) {
			return m.SkipPasswordChange()
		})
	}
}

// dispatch runs event against the active flow machine and renders the
// resulting state, translating flow errors into HTTP statuses.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, event func(*flow.Machine) (flow.State, error)) {
	machine := s.currentMachine()
	if machine == nil {
		writeJSONError(w, "no_active_flow", "visit the login page to start a flow", http.StatusConflict)
		return
	}

	state, err := event(machine)
	if err != nil {
		switch {
		case errors.Is(err, flow.ErrSubmissionInFlight):
			writeJSONError(w, "submission_in_flight", "a submission is already being processed", http.StatusConflict)
		case errors.Is(err, flow.ErrInvalidTransition):
			writeJSONError(w, "invalid_transition", "the flow does not accept this action right now", http.StatusConflict)
		case errors.Is(err, flow.ErrSkipNotAllowed):
			writeJSONError(w, "skip_not_allowed", "the password change cannot be skipped", http.StatusForbidden)
		default:
			log.Error().Err(err).Str("path", r.URL.Path).Msg("flow event failed")
			writeJSONError(w, "flow_error", "the action could not be processed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, viewOfState(state))
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSONError(w, "invalid_request", "request body must be valid JSON", http.StatusBadRequest)
		return false
	}
	return true
}
