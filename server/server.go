package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desert5047-spec/test-keper-sub000/internal/config"
	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"github.com/desert5047-spec/test-keper-sub000/server/authflowrepo"
	"github.com/desert5047-spec/test-keper-sub000/server/loginsession"
	"github.com/desert5047-spec/test-keper-sub000/supabase"
	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

// Backend is a per-request auth client, typically *supabase.Client.
type Backend interface {
	reconcile.Backend
	DetectSessionInURL(ctx context.Context, rawURL string) error
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	OAuthSignInURL(ctx context.Context, provider, redirectTo string, scopes ...string) (string, error)
	CodeVerifier(ctx context.Context) (string, error)
	SetCodeVerifier(ctx context.Context, verifier string) error
	UpdatePassword(ctx context.Context, newPassword string) error
	SignOut(ctx context.Context) error
}

// BackendFactory builds a fresh client with its own in-memory session, so
// browser sessions never share auth state inside the portal.
type BackendFactory func() (Backend, error)

// SupabaseFactory returns a BackendFactory for the configured project.
func SupabaseFactory(cfg config.BackendConfig, opts ...supabase.Option) BackendFactory {
	return func() (Backend, error) {
		return supabase.New(supabase.Config{
			URL:     cfg.GetSupabaseURL(),
			AnonKey: cfg.GetSupabaseAnonKey(),
			JWKSURL: cfg.GetSupabaseJWKSURL(),
		}, nil, opts...)
	}
}

type Server struct {
	env           string
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	newBackend    BackendFactory
	deadlines     reconcile.Deadlines
	loginSessions loginsession.Repo
	authFlows     authflowrepo.Repo
	nowTime       func() time.Time
}

type Option func(*Server)

// WithDeadlines overrides the configured reconciliation bounds (primarily for testing)
func WithDeadlines(d reconcile.Deadlines) Option {
	return func(s *Server) {
		s.deadlines = d
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(config config.Config, newBackend BackendFactory, loginSessionRepo loginsession.Repo, authFlowRepo authflowrepo.Repo, opts ...Option) (*Server, error) {
	if newBackend == nil {
		return nil, fmt.Errorf("[Server New] backend factory is required")
	}
	if loginSessionRepo == nil {
		loginSessionRepo = loginsession.NewInMemoryRepo()
	}
	if authFlowRepo == nil {
		authFlowRepo = authflowrepo.NewInMemoryRepo()
	}

	s := &Server{
		env:           config.GetEnv(),
		mux:           http.NewServeMux(),
		config:        config,
		newBackend:    newBackend,
		deadlines:     reconcile.DeadlinesFromConfig(config),
		loginSessions: loginSessionRepo,
		authFlows:     authFlowRepo,
		nowTime:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initRoutes(); err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}
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

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		logRoute(method, path)
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

// requestURL rebuilds the absolute URL of r as the browser sent it, minus any fragment.
func requestURL(r *http.Request) string {
	return getScheme(r) + "://" + r.Host + r.URL.RequestURI()
}
