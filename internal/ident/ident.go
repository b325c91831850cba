// Package ident derives the caller identity used to scope per-caller quota.
// The identity comes from the network address and is spoofable via headers;
// it is used only as a counter key and never stored beyond counts.
package ident

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is the sentinel identity when no address can be derived.
const Unknown = "unknown"

// FromRequest resolves the caller identity: the first forwarded-for entry,
// else the real-ip header, else the direct connection address.
func FromRequest(r *http.Request) string {
	if r == nil {
		return Unknown
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := forwarded
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			first = forwarded[:idx]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if r.RemoteAddr != "" {
		if host, _, errSplit := net.SplitHostPort(r.RemoteAddr); errSplit == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return Unknown
}
