package security

import (
	"net/http"
	"strconv"
)

const defaultHSTSMaxAge = 31536000

// Headers sets browser hardening headers on every response.
type Headers struct {
	Enable     bool
	EnableHSTS bool
	HSTSMaxAge int
	// FrameAncestors is emitted as a CSP frame-ancestors directive when set,
	// replacing the X-Frame-Options fallback.
	FrameAncestors string
}

// Middleware attaches the configured headers before calling next.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		if h.FrameAncestors != "" {
			headers.Set("Content-Security-Policy", "frame-ancestors "+h.FrameAncestors)
		} else {
			headers.Set("X-Frame-Options", "DENY")
		}
		if h.EnableHSTS && r.TLS != nil {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = defaultHSTSMaxAge
			}
			headers.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(maxAge)+"; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
