package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// SessionHandler reports the current session snapshot. The session token
// never appears in the response.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, viewOfSession(s.sessions.Current()))
	}
}

// FlowStateHandler reports the state of the active credential flow, so a
// reloaded UI can re-render the right screen.
func (s *Server) FlowStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		machine := s.currentMachine()
		if machine == nil {
			writeJSONError(w, "no_active_flow", "no credential flow is in progress", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, viewOfState(machine.State()))
	}
}

// LogoutHandler ends the session and abandons any flow in progress. It is
// safe to call when already signed out.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if machine := s.currentMachine(); machine != nil {
			machine.Abandon()
		}

		if err := s.sessions.Logout(); err != nil {
			// The in-memory session is already cleared; a store failure only
			// means the persisted copy may linger until the next save.
			log.Warn().Err(err).Msg("LogoutHandler could not clear the persisted session")
		}

		writeJSON(w, http.StatusOK, viewOfSession(s.sessions.Current()))
	}
}
