package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-attendance/internal/apperr"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/utils"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	rolesKey  contextKey = "roles"
)

const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"
)

// Middleware authenticates the bearer token and stores the caller's id and
// roles in the request context.
func Middleware(verifier TokenVerifier, l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteError(w, apperr.Unauthorized(err.Error()))
				return
			}

			claims, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				l.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteError(w, apperr.Unauthorized("Invalid or expired token"))
				return
			}

			ctx := WithIdentity(r.Context(), claims.Subject, claims.Roles...)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers holding none of roles with 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := Claims{Subject: UserID(r.Context()), Roles: Roles(r.Context())}
			if claims.Subject == "" {
				utils.WriteError(w, apperr.Unauthorized("Authentication required"))
				return
			}
			if !claims.HasRole(roles...) {
				utils.WriteError(w, apperr.Forbidden("Insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithIdentity(ctx context.Context, userID string, roles ...string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, rolesKey, roles)
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

func Roles(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesKey).([]string)
	return roles
}

func HasRole(ctx context.Context, roles ...string) bool {
	c := Claims{Roles: Roles(ctx)}
	return c.HasRole(roles...)
}
