package api

import (
	"context"
	"net/http"
	"strings"

	"orderbridge/internal/apperr"
	"orderbridge/internal/auth"
)

type ctxKeyPrincipal struct{}

// bearerToken reads the operator token from the Authorization header, or from
// access_token for websocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("Bearer "):])
	}
	return r.URL.Query().Get("access_token")
}

func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		p, err := s.Auth.Verify(bearerToken(r))
		if err != nil {
			s.logger(r).Info("operator auth failed", "err", err)
			s.writeError(w, r, apperr.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyPrincipal{}, p)))
	})
}

// principal returns the authenticated operator, if any.
func principal(r *http.Request) (auth.Principal, bool) {
	p, ok := r.Context().Value(ctxKeyPrincipal{}).(auth.Principal)
	return p, ok
}
