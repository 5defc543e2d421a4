// Package server provides the shopping-list HTTP API.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nhle/shared-lists/internal/auth"
	"github.com/nhle/shared-lists/internal/store"
)

// Verifier validates a bearer token and returns the caller's claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// StoreFactory returns the store to serve one request with. The id token
// lets implementations scope storage credentials to the caller.
type StoreFactory func(ctx context.Context, idToken string) (store.Store, error)

// SharedStore returns a StoreFactory that always serves st.
func SharedStore(st store.Store) StoreFactory {
	return func(context.Context, string) (store.Store, error) {
		return st, nil
	}
}

// Server wraps HTTP routes and dependencies.
type Server struct {
	stores    StoreFactory
	verifier  Verifier
	log       zerolog.Logger
	bodyLimit int64
	router    chi.Router
}

// Option configures server construction.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithBodyLimit caps request body size in bytes.
func WithBodyLimit(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.bodyLimit = n
		}
	}
}

// New constructs the API server.
func New(stores StoreFactory, verifier Verifier, opts ...Option) *Server {
	s := &Server{
		stores:    stores,
		verifier:  verifier,
		log:       zerolog.Nop(),
		bodyLimit: 1 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the configured router.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(s.bodyLimit))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/api/shopping/lists", func(r chi.Router) {
			r.Get("/", s.handleGetLists)
			r.Post("/", s.handleCreateList)
			r.Get("/{listId}", s.handleLoadList)
			r.Put("/{listId}", s.handleSaveList)
			r.Delete("/{listId}", s.handleDeleteList)
			r.Post("/{listId}/share", s.handleShareList)
			r.Post("/{listId}/leave", s.handleLeaveList)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
