package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nhle/shared-lists/internal/auth"
	"github.com/nhle/shared-lists/internal/store"
)

type contextKey int

const (
	claimsKey contextKey = iota
	storeKey
)

// authenticate verifies the bearer token and resolves the request's store.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := parseBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing or malformed Authorization bearer token")
			return
		}

		claims, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			s.log.Info().Err(err).Str("path", r.URL.Path).Msg("rejected token")
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		st, err := s.stores(r.Context(), token)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", claims.Subject).Msg("building store")
			respondError(w, http.StatusBadGateway, "storage unavailable")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, storeKey, st)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger writes one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

func storeFrom(ctx context.Context) store.Store {
	st, _ := ctx.Value(storeKey).(store.Store)
	return st
}

func parseBearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
