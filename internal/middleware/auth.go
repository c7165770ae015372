// Package middleware provides HTTP middleware for the review service.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/manishdait/book-review-api/internal/errors"
	"github.com/manishdait/book-review-api/internal/logging"
	"github.com/manishdait/book-review-api/internal/services/identity"
	"github.com/manishdait/book-review-api/internal/storage"
)

type contextKey string

// userIDKey carries the authenticated user's identifier through the request
// context.
const userIDKey contextKey = "user_id"

// UserID returns the authenticated user id attached by the auth middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// AuthMiddleware validates bearer tokens on protected routes and resolves them
// to an existing user identity.
type AuthMiddleware struct {
	secret []byte
	users  storage.UserStore
	logger *logging.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(secret string, users storage.UserStore, logger *logging.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logging.NewDefault("auth")
	}
	return &AuthMiddleware{
		secret: []byte(secret),
		users:  users,
		logger: logger,
	}
}

// Handler returns the middleware handler. On success the user id is attached
// to the request context; every failure mode rejects with 401 before the
// wrapped handler runs.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, apperrors.Unauthorized("missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.respondError(w, apperrors.Unauthorized("invalid Authorization header format"))
			return
		}

		claims, err := identity.VerifyToken(parts[1], m.secret)
		if err != nil {
			m.logger.WithError(err).Warn("token validation failed")
			m.respondError(w, apperrors.InvalidToken(err))
			return
		}

		// Identity existence is re-checked on every call so a still-valid
		// token of a deleted user is rejected.
		if _, err := m.users.GetUser(r.Context(), claims.UserID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				m.logger.WithField("user_id", claims.UserID).Warn("token references unknown user")
				m.respondError(w, apperrors.Unauthorized("unknown identity"))
				return
			}
			m.logger.WithError(err).Error("identity lookup failed")
			m.respondError(w, apperrors.Internal("failed to authorize request", err))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		m.logger.WithField("user_id", claims.UserID).Debug("request authenticated")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, err *apperrors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Message})
}
