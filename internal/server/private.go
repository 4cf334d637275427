package server

import (
	"net"
	"net/http"

	"chansync/internal/domain/logger"
)

// isPrivateNetwork reports whether host (a host or host:port) is on a LAN.
func isPrivateNetwork(host string) bool {
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		h = host
	}

	if h == "localhost" {
		return true
	}

	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// privateOnly refuses requests from outside the local network.
func privateOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isPrivateNetwork(r.RemoteAddr) {
			logger.Pl.W("Refusing status request from public address %s", r.RemoteAddr)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
