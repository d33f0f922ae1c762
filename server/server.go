package server

import (
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/mealpoint/portal/flow"
	"github.com/mealpoint/portal/guard"
	"github.com/mealpoint/portal/identity"
	"github.com/mealpoint/portal/internal/config"
	"github.com/mealpoint/portal/session"
)

// Server is the portal's HTTP surface: the auth-flow endpoints the UI
// drives, the guarded dashboard routes, and the session state endpoint.
// Everything presentational lives in the SPA; the server only exposes the
// state machine.
type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	sessions *session.Manager
	api      flow.APIClient
	guard    *guard.Guard

	// machine is the active credential flow. Visiting /login replaces it,
	// which is the abandon transition.
	machineLock sync.Mutex
	machine     *flow.Machine
}

// New wires the server from its collaborators.
func New(cfg config.Config, sessions *session.Manager, api flow.APIClient, routeGuard *guard.Guard) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if sessions == nil {
		return nil, errors.New("[Server New] session manager is required")
	}
	if api == nil {
		return nil, errors.New("[Server New] api client is required")
	}
	if routeGuard == nil {
		routeGuard = guard.New(nil)
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		sessions: sessions,
		api:      api,
		guard:    routeGuard,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// RegisterRouteFunc registers a handler function with the standard
// middleware chain applied.
func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, ChainMiddleware(handler, s.StandardMiddleware()...))
}

// Routes lists the registered route patterns.
func (s *Server) Routes() []string {
	return s.routes
}

// currentMachine returns the active flow machine, or nil when no flow has
// been started.
func (s *Server) currentMachine() *flow.Machine {
	s.machineLock.Lock()
	defer s.machineLock.Unlock()
	return s.machine
}

// resetMachine starts a fresh flow for role, abandoning any previous one.
func (s *Server) resetMachine(role identity.Role, resume string) (*flow.Machine, error) {
	opts := []flow.MachineOption{
		flow.WithAllowSkip(s.config.GetAllowSkipPasswordChange()),
	}
	if resume != "" {
		opts = append(opts, flow.WithResumeDestination(resume))
	}

	machine, err := flow.NewMachine(role, s.api, s.sessions, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "[Server.resetMachine] create flow machine")
	}

	s.machineLock.Lock()
	defer s.machineLock.Unlock()
	s.machine = machine
	return machine, nil
}
