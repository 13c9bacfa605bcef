package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/quarryhq/quarry/pkg/auth"
	"github.com/quarryhq/quarry/pkg/contextkeys"
	"github.com/quarryhq/quarry/pkg/httputil"
)

// UserLoader resolves a user ID from a verified token to a full account
type UserLoader interface {
	UserByID(ctx context.Context, id int64) (*auth.User, error)
}

// AuthMiddleware authenticates requests with Bearer JWT access tokens
type AuthMiddleware struct {
	jwt   *auth.JWTManager
	users UserLoader
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{
		jwt:   jwtManager,
		users: users,
	}
}

// Handler wraps an HTTP handler with authentication. The user is loaded
// fresh on every request so deactivated or erased accounts lose access the
// moment their current token is next used, not when it expires.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		userID, _, err := m.jwt.Verify(parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		user, err := m.users.UserByID(r.Context(), userID)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}
		if !user.IsActive {
			httputil.WriteUnauthorized(w, "account is deactivated")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), &auth.Context{User: user})
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(user.ID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts the authenticated caller from a request, or nil
func GetAuthContext(r *http.Request) *auth.Context {
	value := r.Context().Value(contextkeys.AuthKey)
	if value == nil {
		return nil
	}
	authCtx, ok := value.(*auth.Context)
	if !ok {
		return nil
	}
	return authCtx
}
