package http

import (
	"errors"
	"net/http"
	"time"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
)

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      core.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tok, user, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, core.ErrAccess) {
		UnauthorizedError("invalid username or password").Write(w)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	NewJSONResponse().JSON(loginResponse{Token: tok.Token, ExpiresAt: tok.ExpiresAt, User: user}).Write(w)
}

// handleLogout revokes the token the request was made with.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		UnauthorizedError("authentication required").Write(w)
		return
	}
	s.auth.Revoke(r.Context(), claims)
	s.logger.InfoContext(r.Context(), "User logged out",
		log.FieldUserID, claims.Subject, log.FieldOperation, log.OpLogout)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
