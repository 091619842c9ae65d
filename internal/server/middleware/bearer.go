package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/session"
	"github.com/iudanet/trackmail/internal/server/storage"
)

// TrackMailTokenResolver resolves a tracking API token to its owner
type TrackMailTokenResolver interface {
	GetUserIDByTrackMailToken(ctx context.Context, token string) (int64, error)
}

// UserLoader loads a user by ID
type UserLoader interface {
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)
}

// Bearer authenticates the tracking API by "Authorization: Bearer <token>".
// Unlike Session it is fatal: any failure ends the request with 401.
func Bearer(logger *slog.Logger, tokens TrackMailTokenResolver, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				logger.WarnContext(ctx, "Invalid Authorization header format")
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			userID, err := tokens.GetUserIDByTrackMailToken(ctx, strings.TrimSpace(parts[1]))
			if err != nil {
				if !errors.Is(err, storage.ErrTokenNotFound) {
					logger.ErrorContext(ctx, "Failed to resolve bearer token", slog.Any("error", err))
				}
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			user, err := users.GetUserByID(ctx, userID)
			if err != nil {
				if !errors.Is(err, storage.ErrUserNotFound) {
					logger.ErrorContext(ctx, "Failed to load bearer token owner", slog.Any("error", err))
				}
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if !user.IsActive {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			logger.DebugContext(ctx, "Bearer authenticated", slog.Int64("user_id", user.ID))

			next.ServeHTTP(w, r.WithContext(session.WithIdentity(ctx, user.Identity())))
		})
	}
}
