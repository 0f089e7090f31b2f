// Package clientip resolves the caller address used for rate limiting and
// request logs.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the host part of r.RemoteAddr in canonical form.
// Proxy headers are not read here; behind a trusted proxy chi's RealIP
// middleware rewrites RemoteAddr before this runs.
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	host = strings.TrimSpace(host)
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}
