package middleware

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/trackmail/internal/models"
	"github.com/iudanet/trackmail/internal/server/session"
)

// RequireRoles admits callers holding at least one of roles.
// Without an identity the request fails with 401, without a matching role with 403.
func RequireRoles(logger *slog.Logger, roles ...models.Role) func(http.Handler) http.Handler {
	return requireRoles(logger, "any", func(have models.Roles) bool {
		return have.HasAny(roles...)
	}, roles)
}

// RequireAllRoles admits callers holding every one of roles
func RequireAllRoles(logger *slog.Logger, roles ...models.Role) func(http.Handler) http.Handler {
	return requireRoles(logger, "all", func(have models.Roles) bool {
		return have.HasAll(roles...)
	}, roles)
}

func requireRoles(logger *slog.Logger, mode string, allowed func(models.Roles) bool, roles []models.Role) func(http.Handler) http.Handler {
	required := models.Roles(roles).String()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := session.IdentityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !allowed(identity.Roles) {
				logger.WarnContext(r.Context(), "Access denied",
					slog.Int64("user_id", identity.ID),
					slog.String("roles", identity.Roles.String()),
					slog.String("required", required),
					slog.String("mode", mode),
				)
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
