package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/edudesk/campus-chat/internal/auth"
	apperr "github.com/edudesk/campus-chat/pkg/errors"
)

// context key type for storing auth claims in context
type authContextKey struct{}

// getClaimsFromContext extracts auth claims from the context, if present.
func getClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return nil, false
	}
	c, ok := v.(*auth.Claims)
	return c, ok
}

// bearerToken extracts the credential from the Authorization header, falling
// back to the token query parameter. The fallback exists for the WebSocket
// handshake, where browsers cannot set custom headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer"))
	}
	return r.URL.Query().Get("token")
}

// requireAuth verifies the bearer credential and stores the claims in the
// request context. Missing, malformed and expired tokens are all the same
// 401 to the client.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, apperr.ErrMissingToken)
			return
		}

		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			s.writeError(w, apperr.ErrMissingToken)
			return
		}

		ctx := context.WithValue(r.Context(), authContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
