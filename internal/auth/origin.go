package auth

import (
	"net/http"
	"strings"
)

// UnknownAddress is returned when no forwarding header carries a client
// address.
const UnknownAddress = "unknown"

// forwardHeaders is checked in priority order; the first populated header
// wins.
var forwardHeaders = []string{
	"X-Forwarded-For",
	"X-Real-Ip",
	"Cf-Connecting-Ip",
}

// ClientAddress extracts the original client address from proxy forwarding
// headers. X-Forwarded-For may carry a comma-separated chain; the first
// entry is the original client.
func ClientAddress(h http.Header) string {
	for _, name := range forwardHeaders {
		value := h.Get(name)
		if value == "" {
			continue
		}

		if idx := strings.Index(value, ","); idx >= 0 {
			value = value[:idx]
		}

		value = strings.TrimSpace(value)
		if value != "" {
			return value
		}
	}

	return UnknownAddress
}

// OriginAllowed reports whether addr passes the allowlist. An empty
// allowlist allows every address; filtering is explicit opt-in. Matching is
// exact after stripping port suffixes from both sides.
func OriginAllowed(addr string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}

	addr = stripPort(addr)
	for _, allowed := range allowlist {
		if addr == stripPort(strings.TrimSpace(allowed)) {
			return true
		}
	}

	return false
}

// stripPort removes a trailing :port from IPv4 ("1.2.3.4:80") and bracketed
// IPv6 ("[::1]:80") addresses. Bare IPv6 addresses pass through untouched.
func stripPort(addr string) string {
	if strings.HasPrefix(addr, "[") {
		if end := strings.Index(addr, "]"); end >= 0 {
			return addr[1:end]
		}
		return addr
	}

	// More than one colon with no brackets means bare IPv6, not host:port.
	if strings.Count(addr, ":") == 1 {
		if idx := strings.LastIndex(addr, ":"); idx >= 0 {
			return addr[:idx]
		}
	}

	return addr
}
