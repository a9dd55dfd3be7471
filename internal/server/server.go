package server

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/inviteq/inviteq/internal/config"
	"github.com/inviteq/inviteq/internal/database"
	"github.com/inviteq/inviteq/internal/rsvp"
	"github.com/inviteq/inviteq/internal/server/handlers"
	"github.com/inviteq/inviteq/internal/sweep"
	"github.com/inviteq/inviteq/internal/token"
)

type Server struct {
	config       *config.Config
	db           *database.DB
	rsvp         *rsvp.Service
	sweeper      *sweep.Sweeper
	tokens       *token.Service
	sessionStore *sessions.CookieStore
	router       *http.ServeMux
}

// GetDB implements handlers.Server interface
func (s *Server) GetDB() *database.DB {
	return s.db
}

// GetConfig implements handlers.Server interface
func (s *Server) GetConfig() *config.Config {
	return s.config
}

// GetRSVP implements handlers.Server interface
func (s *Server) GetRSVP() *rsvp.Service {
	return s.rsvp
}

// GetSweeper implements handlers.Server interface
func (s *Server) GetSweeper() *sweep.Sweeper {
	return s.sweeper
}

// GetTokens implements handlers.Server interface
func (s *Server) GetTokens() *token.Service {
	return s.tokens
}

// GetCurrentUser implements handlers.AdminServer interface
func (s *Server) GetCurrentUser(r *http.Request) string {
	session, _ := s.sessionStore.Get(r, "auth-session")
	email, _ := session.Values["email"].(string)
	return email
}

func New(cfg *config.Config, db *database.DB, rsvpSvc *rsvp.Service, sweeper *sweep.Sweeper, tokens *token.Service) *Server {
	s := &Server{
		config:       cfg,
		db:           db,
		rsvp:         rsvpSvc,
		sweeper:      sweeper,
		tokens:       tokens,
		sessionStore: sessions.NewCookieStore([]byte(cfg.SessionSecret)),
		router:       http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Public RSVP link endpoints (authorized by the token itself)
	s.router.HandleFunc("/rsvp/", handlers.HandleRSVPLink(s))

	// Auth routes
	s.router.HandleFunc("/auth/login", s.handleLogin)
	s.router.HandleFunc("/auth/logout", s.handleLogout)

	// Admin routes (protected)
	s.router.HandleFunc("/admin/events", s.requireAuth(handlers.HandleAdminEvents(s)))
	s.router.HandleFunc("/admin/events/", s.requireAuth(handlers.HandleAdminEvent(s)))

	// Sweep trigger for periodic job invocations (protected by admin key)
	s.router.HandleFunc("/internal/sweep", s.requireKey(handlers.HandleSweep(s)))
}

func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

// requireAuth is a middleware that checks if user is authenticated
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := s.sessionStore.Get(r, "auth-session")

		email, ok := session.Values["email"].(string)
		if !ok || email == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		// Check if email is in whitelist
		if !s.isAdminEmail(email) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

func (s *Server) isAdminEmail(email string) bool {
	for _, adminEmail := range s.config.AdminEmails {
		if email == adminEmail {
			return true
		}
	}
	return false
}
