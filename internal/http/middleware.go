package http

import (
	"context"
	"net/http"

	"spendwise/internal/auth"
	"spendwise/internal/log"
)

// withTimeout bounds the handler's context by the server's request timeout.
func (s *Server) withTimeout(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

// authenticated requires a valid bearer token and puts its claims and the
// user ID into the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return s.withTimeout(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.Parse(bearerToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := auth.NewContext(r.Context(), claims)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, claims.Subject))
		next(w, r.WithContext(ctx))
	})
}
