// Package auth enforces static bearer-token authentication.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/jakifasty/orbiteye/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths are always public regardless of auth configuration.
var exemptPaths = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/catalog/metadata": true,
}

// exemptPrefixes are path prefixes that are always public.
var exemptPrefixes = []string{
	"/api/v1/satellites/",
}

// queryTokenPrefixes accept the token as ?access_token=, since browser
// EventSource clients cannot set request headers.
var queryTokenPrefixes = []string{
	"/api/v1/stream/",
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// isExempt returns true if the path is exempt from auth.
func isExempt(path string) bool {
	return exemptPaths[path] || hasAnyPrefix(path, exemptPrefixes)
}

// requestToken extracts the presented token, or "" when there is none.
func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
		return ""
	}
	if r.Method == http.MethodGet && hasAnyPrefix(r.URL.Path, queryTokenPrefixes) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := requestToken(r)
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="orbiteye"`)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
