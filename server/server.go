package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-org-server/auth"
	"github.com/jrsteele09/go-org-server/internal/config"
	"github.com/jrsteele09/go-org-server/organisations"
	"github.com/jrsteele09/go-org-server/token"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the domain services the HTTP layer delegates to.
type Services struct {
	Auth          *auth.Service
	Organisations *organisations.Directory
	Tokens        *token.Manager
	Health        Pinger
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	version   string
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	auth      *auth.Service
	directory *organisations.Directory
	tokens    *token.Manager
	health    Pinger
}

type Option func(*Server)

// WithVersion sets the build version reported by the index route
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

func New(config config.Config, services Services, options ...Option) (*Server, error) {
	if config == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if services.Auth == nil {
		return nil, errors.New("[Server New] auth service is required")
	}
	if services.Organisations == nil {
		return nil, errors.New("[Server New] organisation directory is required")
	}
	if services.Tokens == nil {
		return nil, errors.New("[Server New] token manager is required")
	}

	s := &Server{
		env:       config.GetEnv(),
		version:   "dev",
		mux:       http.NewServeMux(),
		config:    config,
		auth:      services.Auth,
		directory: services.Organisations,
		tokens:    services.Tokens,
		health:    services.Health,
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

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	log.Debug().Stringer("origins", s.config.GetAllowedOrigins()).Msg("CORS allowed origins")
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}
