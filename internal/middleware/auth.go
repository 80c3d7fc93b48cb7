package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/xelth-com/reg44go/internal/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// Principal is the authenticated caller of a request
type Principal struct {
	UserID         string
	OrganizationID string
	Name           string
	Role           string
}

// AuthMiddleware verifies JWT tokens. Browsers cannot set headers on a
// websocket upgrade, so a token query parameter is accepted as well.
func AuthMiddleware(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.URL.Query().Get("token")
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				// Bearer token
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
					return
				}
				tokenString = parts[1]
			}
			if tokenString == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(tokenString, secret)
			if err != nil || utils.ClaimString(claims, "type") == "refresh" {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			p := principalFrom(claims)
			if p.OrganizationID == "" {
				http.Error(w, "Token carries no organization", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func principalFrom(claims jwt.MapClaims) Principal {
	return Principal{
		UserID:         utils.ClaimString(claims, "id"),
		OrganizationID: utils.ClaimString(claims, "orgId"),
		Name:           utils.ClaimString(claims, "name"),
		Role:           utils.ClaimString(claims, "role"),
	}
}

// PrincipalFrom returns the caller stored by AuthMiddleware
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(UserContextKey).(Principal)
	return p, ok
}

// WithPrincipal stores a caller in ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, UserContextKey, p)
}
