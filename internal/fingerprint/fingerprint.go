// Package fingerprint derives an opaque per-submitter key from request
// headers. It is a heuristic for admission-control fairness, not an
// authentication primitive, and must never be used for authorization.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Derive computes ownerId = "anon_" + first16hex(SHA-256(ip|ua|acceptLanguage)).
func Derive(r *http.Request) string {
	ip := resolveIP(r)
	ua := r.Header.Get("User-Agent")
	lang := r.Header.Get("Accept-Language")

	sum := sha256.Sum256([]byte(ip + "|" + ua + "|" + lang))
	return "anon_" + hex.EncodeToString(sum[:])[:16]
}

func resolveIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	return "unknown"
}
