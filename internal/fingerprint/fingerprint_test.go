package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDerive_SameRequestShapeYieldsSameFingerprint(t *testing.T) {
	r1 := httptest.NewRequest(http.MethodGet, "/", nil)
	r1.Header.Set("X-Forwarded-For", "203.0.113.5")
	r1.Header.Set("User-Agent", "test-agent")
	r1.Header.Set("Accept-Language", "en-US")

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("X-Forwarded-For", "203.0.113.5")
	r2.Header.Set("User-Agent", "test-agent")
	r2.Header.Set("Accept-Language", "en-US")

	if Derive(r1) != Derive(r2) {
		t.Fatal("expected identical request shapes to produce the same fingerprint")
	}
}

func TestDerive_DifferentIPYieldsDifferentFingerprint(t *testing.T) {
	r1 := httptest.NewRequest(http.MethodGet, "/", nil)
	r1.Header.Set("X-Forwarded-For", "203.0.113.5")

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("X-Forwarded-For", "198.51.100.9")

	if Derive(r1) == Derive(r2) {
		t.Fatal("expected different IPs to produce different fingerprints")
	}
}

func TestDerive_PrefersForwardedForOverRealIP(t *testing.T) {
	withBoth := httptest.NewRequest(http.MethodGet, "/", nil)
	withBoth.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	withBoth.Header.Set("X-Real-IP", "198.51.100.9")

	onlyForwarded := httptest.NewRequest(http.MethodGet, "/", nil)
	onlyForwarded.Header.Set("X-Forwarded-For", "203.0.113.5")

	if Derive(withBoth) != Derive(onlyForwarded) {
		t.Fatal("expected X-Forwarded-For's first entry to take precedence over X-Real-IP")
	}
}

func TestDerive_FallsBackToUnknown(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	got := Derive(r)
	if len(got) != len("anon_")+16 {
		t.Fatalf("expected a 16-hex-char fingerprint, got %q", got)
	}

	explicit := httptest.NewRequest(http.MethodGet, "/", nil)
	explicit.Header.Set("X-Forwarded-For", "unknown")
	if got != Derive(explicit) {
		t.Fatalf("expected a request with no IP headers to hash with ip %q, got %q", "unknown", got)
	}
}
