// Package session decodes the dashboard's session cookie into an identity
// claim. The session is passed around explicitly; nothing in the codebase
// reads it from ambient state.
package session

import (
	"net/http"
	"time"

	"shopadmin/pkg/auth"
	"shopadmin/pkg/domain"
)

// CookieName is the session cookie set at login.
const CookieName = "session"

// Session is the identity claim carried by a valid session token.
type Session struct {
	UserID string
	Role   domain.Role
}

// FromRequest reads the session cookie and decodes it. A missing cookie or
// an invalid/expired token yields nil: no session is a normal state, not an
// error.
func FromRequest(r *http.Request, issuer *auth.TokenIssuer) *Session {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	userID, role, err := issuer.ReadToken(cookie.Value)
	if err != nil {
		return nil
	}
	return &Session{UserID: userID, Role: role}
}

// SetCookie attaches a freshly minted session token to the response.
func SetCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie destroys the session by overwriting it with an already
// expired empty value.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
