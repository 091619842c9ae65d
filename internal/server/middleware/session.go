package middleware

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/trackmail/internal/server/jwt"
	"github.com/iudanet/trackmail/internal/server/session"
)

// AccessVerifier verifies access tokens
type AccessVerifier interface {
	VerifyAccessToken(token string) (*jwt.AccessClaims, error)
}

// Session resolves the caller from the access token cookie.
// It never rejects a request: a valid cookie attaches the identity to the
// context, a bad one is cleared and the request continues unauthenticated.
func Session(logger *slog.Logger, verifier AccessVerifier, cookies *session.Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := session.Value(r, session.AccessCookie)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.VerifyAccessToken(token)
			if err == nil {
				identity, idErr := claims.Identity()
				if idErr == nil {
					ctx := session.WithIdentity(r.Context(), identity)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				err = idErr
			}

			// Протухший или подделанный cookie просто удаляем
			logger.DebugContext(r.Context(), "Dropping invalid access cookie", slog.Any("error", err))
			cookies.ClearAccess(w)
			next.ServeHTTP(w, r)
		})
	}
}
