package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"accounts/internal/auth"
	"accounts/internal/constants"
)

type contextKey string

const principalKey contextKey = "principal"

type AuthMiddleware struct {
	tokens *auth.TokenService
}

func NewAuthMiddleware(tokens *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth verifies the bearer token and stores the resulting principal
// on the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, constants.ErrCodeAuthFailed, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
			unauthorized(w, constants.ErrCodeAuthFailed, "Invalid authorization header format")
			return
		}

		claims, err := m.tokens.Verify(strings.TrimSpace(parts[1]))
		if errors.Is(err, auth.ErrTokenExpired) {
			unauthorized(w, constants.ErrCodeAuthExpired, "Token has expired")
			return
		}
		if err != nil {
			unauthorized(w, constants.ErrCodeAuthFailed, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, claims.Principal())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireAuth.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorize(w, auth.AuthorizeAdmin(GetPrincipal(r))) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetPrincipal(r *http.Request) *auth.Principal {
	if v := r.Context().Value(principalKey); v != nil {
		if p, ok := v.(*auth.Principal); ok {
			return p
		}
	}
	return nil
}

func withPrincipal(r *http.Request, p *auth.Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalKey, p))
}

// authorize writes the failure response for a policy decision and reports
// whether the request may proceed.
func authorize(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, auth.ErrUnauthenticated):
		unauthorized(w, constants.ErrCodeAuthFailed, "Authentication required")
	default:
		forbidden(w, "You do not have permission to perform this action")
	}
	return false
}
