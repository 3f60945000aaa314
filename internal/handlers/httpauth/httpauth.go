// Package httpauth moves credentials between HTTP messages and the auth service:
// access token in Authorization header, refresh token in cookie
package httpauth

import (
	"net/http"
	"strings"
	"time"
)

const (
	DefaultRefreshCookieName = "x_rt"
	DefaultRefreshCookiePath = "/auth"

	bearerScheme = "Bearer"
)

// Access token from "Authorization: Bearer <token>" header
// Empty string if header is missing or has another scheme
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// Refresh token side channel
type RefreshCookie struct {
	Name   string
	Path   string
	Secure bool

	// Cookie lifetime, should be the same as refresh token lifetime
	MaxAge time.Duration
}

func NewRefreshCookie(maxAge time.Duration, secure bool) RefreshCookie {
	return RefreshCookie{
		Name:   DefaultRefreshCookieName,
		Path:   DefaultRefreshCookiePath,
		Secure: secure,
		MaxAge: maxAge,
	}
}

func (c RefreshCookie) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		MaxAge:   maxAge,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (c RefreshCookie) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(token, int(c.MaxAge.Seconds())))
}

func (c RefreshCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

// Empty string if cookie is not sent
func (c RefreshCookie) Get(r *http.Request) string {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
