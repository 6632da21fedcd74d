// Package server is the HTTP transport over the grant engine and the
// account flows. It parses requests, calls the engines with the request
// context and maps their outcomes onto RFC 6749 responses.
package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-oauth2-framework/account"
	"github.com/jrsteele09/go-oauth2-framework/auth"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	mux            *http.ServeMux
	routes         []string
	auth           *auth.AuthorizationService
	account        *account.Service
	logger         zerolog.Logger
	allowedOrigins map[string]struct{}
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowedOrigins enables CORS for the given origins. "*" allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		for _, origin := range origins {
			if origin = strings.TrimSpace(origin); origin != "" {
				s.allowedOrigins[origin] = struct{}{}
			}
		}
	}
}

func New(authService *auth.AuthorizationService, accountService *account.Service, options ...Option) (*Server, error) {
	if authService == nil {
		return nil, errors.New("[server.New] authorization service is required")
	}
	if accountService == nil {
		return nil, errors.New("[server.New] account service is required")
	}

	s := &Server{
		mux:            http.NewServeMux(),
		auth:           authService,
		account:        accountService,
		logger:         log.Logger,
		allowedOrigins: map[string]struct{}{},
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered route patterns
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		s.logger.Debug().Str("method", method).Str("path", path).Msg("route")
	}
}
