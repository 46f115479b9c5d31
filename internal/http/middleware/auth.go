package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fleetworks/fleet-api/internal/http/response"
	"github.com/fleetworks/fleet-api/internal/platform/auth"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// RequireAuth gates a subtree behind a valid Bearer token. It only checks
// the token; role checks happen in the handlers, which know which user the
// request is about.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				response.WriteError(w, http.StatusUnauthorized, "invalid authorization header", response.CodeUnauthorized)
				return
			}
			raw := strings.TrimPrefix(authz, "Bearer ")
			claims, err := auth.Parse(raw, secret)
			if err != nil {
				code := response.CodeInvalidToken
				if errors.Is(err, auth.ErrExpiredToken) {
					code = response.CodeExpiredToken
				}
				response.WriteError(w, http.StatusUnauthorized, "invalid authorization token", code)
				return
			}
			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Claims(r *http.Request) *auth.Claims {
	v := r.Context().Value(CtxClaims)
	if v == nil {
		return nil
	}
	return v.(*auth.Claims)
}
