// Package session owns the cookies that carry the access and refresh tokens
// and the request-scoped identity resolved from them.
package session

import (
	"context"
	"net/http"

	"github.com/iudanet/trackmail/internal/models"
)

// Cookie names and paths
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	AccessCookiePath = "/"
	// Refresh cookie is only sent to the auth routes
	RefreshCookiePath = "/auth"
)

// Cookies writes the session cookies.
// All cookies are httpOnly and SameSite=Strict; Secure is off only in development.
type Cookies struct {
	secure bool
}

// NewCookies creates a cookie writer
func NewCookies(secure bool) *Cookies {
	return &Cookies{secure: secure}
}

// SetAccess sets the access token cookie
func (c *Cookies) SetAccess(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, c.cookie(AccessCookie, AccessCookiePath, token, maxAge))
}

// SetRefresh sets the refresh token cookie
func (c *Cookies) SetRefresh(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, c.cookie(RefreshCookie, RefreshCookiePath, token, maxAge))
}

// ClearAccess expires the access token cookie
func (c *Cookies) ClearAccess(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessCookie, AccessCookiePath, "", -1))
}

// ClearRefresh expires the refresh token cookie
func (c *Cookies) ClearRefresh(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(RefreshCookie, RefreshCookiePath, "", -1))
}

// ClearAll expires both cookies
func (c *Cookies) ClearAll(w http.ResponseWriter) {
	c.ClearAccess(w)
	c.ClearRefresh(w)
}

func (c *Cookies) cookie(name, path, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Value returns the named cookie's value, or "" if the request has none
func Value(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity attaches the resolved caller to ctx
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the caller attached to ctx, if any
func IdentityFrom(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*models.Identity)
	return identity, ok && identity != nil
}
