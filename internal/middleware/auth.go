package middleware

import (
	"context"
	"net/http"
	"strings"

	"device-tracker/internal/auth"
	"device-tracker/internal/ports"
)

type contextKey string

const UserIDKey contextKey = "user_id"
const EmailKey contextKey = "email"
const AccessLevelKey contextKey = "access_level"

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	users      ports.UserStore
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, users ports.UserStore) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		users:      users,
	}
}

// Authenticate is a middleware that validates JWT tokens
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtManager.ValidateToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		// Check database for current user status (for immediate permission updates)
		user, err := m.users.Get(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}
		if !user.IsActive {
			http.Error(w, "Account suspended. Please contact administrator.", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
		ctx = context.WithValue(ctx, EmailKey, user.Email)
		ctx = context.WithValue(ctx, AccessLevelKey, user.AccessLevel)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAccess authenticates and then checks the user's access level
func (m *AuthMiddleware) RequireAccess(levels ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			level, _ := GetAccessLevelFromContext(r.Context())
			for _, allowed := range levels {
				if level == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden: Insufficient permissions", http.StatusForbidden)
		}))
	}
}

// RequireAdmin is a middleware that ensures the user has admin access
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireAccess("admin")(next)
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(UserIDKey).(int)
	return userID, ok
}

// GetEmailFromContext extracts email from request context
func GetEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(EmailKey).(string)
	return email, ok
}

// GetAccessLevelFromContext extracts the access level from request context
func GetAccessLevelFromContext(ctx context.Context) (string, bool) {
	level, ok := ctx.Value(AccessLevelKey).(string)
	return level, ok
}
