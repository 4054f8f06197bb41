package middleware

import (
	"errors"
	"net/http"
	"strings"

	"storefront/pkg/utils"

	"go.uber.org/zap"
)

// TokenParser validates a bearer credential.
type TokenParser interface {
	Parse(token string) (*utils.Claims, error)
}

// Auth requires a valid bearer JWT and puts its claims on the request context.
func Auth(parser TokenParser, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			claims, err := parser.Parse(strings.TrimSpace(token))
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, utils.ErrExpiredToken) {
					msg = "Token has expired"
				}
				logger.Debug("Rejected bearer token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				utils.ResponseUnauthorized(w, msg)
				return
			}

			ctx := utils.SetUserContext(r.Context(), claims.UserID, claims.Role, claims.Scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Admin lets through only requests whose credential carries the admin role.
// It must run after Auth.
func Admin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			role, _ := utils.GetRoleFromContext(r.Context())
			if role != "admin" {
				logger.Warn("Admin check: non-admin access attempt",
					zap.String("user_id", userID.String()),
					zap.String("path", r.URL.Path),
				)
				utils.ResponseForbidden(w, "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
