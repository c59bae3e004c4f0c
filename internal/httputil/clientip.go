// Package httputil holds small HTTP helpers shared by the API and stream
// handlers.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client IP address from the request.
// When trustProxy is true, the first "for" of the RFC 7239 Forwarded header,
// then X-Forwarded-For (first entry), then X-Real-IP are checked before
// falling back to RemoteAddr. Only enable trustProxy when the server is
// behind a trusted reverse proxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("Forwarded"); fwd != "" {
			if ip := forwardedFor(fwd); ip != "" {
				return ip
			}
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// Take the first (leftmost) IP, the original client.
			if i := strings.IndexByte(xff, ','); i > 0 {
				xff = xff[:i]
			}
			if ip := strings.TrimSpace(xff); ip != "" {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	return stripPort(r.RemoteAddr)
}

// forwardedFor returns the node of the first for= parameter of the first
// Forwarded element, or "" when it is absent or obfuscated.
func forwardedFor(header string) string {
	first := header
	if i := strings.IndexByte(first, ','); i >= 0 {
		first = first[:i]
	}
	for _, pair := range strings.Split(first, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !strings.EqualFold(k, "for") {
			continue
		}
		v = strings.Trim(v, `"`)
		if v == "" || v == "unknown" || strings.HasPrefix(v, "_") {
			return ""
		}
		if strings.HasPrefix(v, "[") {
			if end := strings.IndexByte(v, ']'); end > 0 {
				return v[1:end]
			}
			return ""
		}
		return stripPort(v)
	}
	return ""
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
