package proxy

import (
	"net"
	"net/http"
	"strings"
)

// Headers that apply to a single connection and are never forwarded.
var hopHeaders = map[string]bool{
	"Te":                  true,
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Identity headers are set by the gateway only; inbound copies are dropped.
var identityHeaders = map[string]bool{
	HeaderUserID:   true,
	HeaderUserRole: true,
}

const (
	HeaderUserID         = "X-User-Id"
	HeaderUserRole       = "X-User-Role"
	headerForwardedFor   = "X-Forwarded-For"
	headerForwardedHost  = "X-Forwarded-Host"
	headerForwardedProto = "X-Forwarded-Proto"
	headerRequestID      = "X-Request-Id"
)

// copyHeaderExcluding copies from into to, skipping hop-by-hop headers,
// anything named in from's Connection header, and the exclude set.
func copyHeaderExcluding(to, from http.Header, exclude map[string]bool) {
	connection := connectionTokens(from)
	for k, v := range from {
		k = http.CanonicalHeaderKey(k)
		if hopHeaders[k] || connection[k] || exclude[k] {
			continue
		}
		to[k] = append([]string(nil), v...)
	}
}

func connectionTokens(h http.Header) map[string]bool {
	var tokens map[string]bool
	for _, v := range h.Values("Connection") {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				if tokens == nil {
					tokens = make(map[string]bool)
				}
				tokens[http.CanonicalHeaderKey(f)] = true
			}
		}
	}
	return tokens
}

// forwardedFor appends the direct peer of r to any existing X-Forwarded-For chain.
func forwardedFor(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if prior := r.Header.Values(headerForwardedFor); len(prior) > 0 {
		return strings.Join(prior, ", ") + ", " + peer
	}
	return peer
}

func forwardedProto(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
