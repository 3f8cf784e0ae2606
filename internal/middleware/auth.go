package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"firewatch/internal/config"
)

// CookieName holds the session token issued at login.
const CookieName = "authenticated"

// SessionToken derives the cookie value for a shared secret.
func SessionToken(password string) string {
	sum := sha256.Sum256([]byte("firewatch-session:" + password))
	return hex.EncodeToString(sum[:])
}

// CheckSecret compares a presented secret in constant time.
func CheckSecret(given, password string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(password)) == 1
}

// BasicAuthorized accepts HTTP Basic credentials whose password matches;
// the user name is ignored.
func BasicAuthorized(r *http.Request, password string) bool {
	_, pass, ok := r.BasicAuth()
	return ok && CheckSecret(pass, password)
}

// Authorized reports whether r carries the shared secret as a session
// cookie, HTTP Basic credentials, or an X-Auth header. An empty secret
// authorizes everything.
func Authorized(r *http.Request, password string) bool {
	if password == "" {
		return true
	}
	if c, err := r.Cookie(CookieName); err == nil && CheckSecret(c.Value, SessionToken(password)) {
		return true
	}
	if BasicAuthorized(r, password) {
		return true
	}
	if h := r.Header.Get("X-Auth"); h != "" && CheckSecret(h, password) {
		return true
	}
	return false
}

// exempt paths skip the check. /ws/stream authenticates in its handshake.
func exempt(path string) bool {
	return path == "/health" ||
		path == "/ws/stream" ||
		strings.HasPrefix(path, "/auth/") ||
		strings.HasPrefix(path, "/static/")
}

// AuthMiddleware rejects requests without the shared secret when one is configured.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.AuthEnabled() || exempt(r.URL.Path) || Authorized(r, cfg.Password) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("WWW-Authenticate", `Basic realm="firewatch"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Unauthorized"}`))
		})
	}
}
