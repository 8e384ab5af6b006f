package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/blogem/licitacoes/userctx"
)

// RequestIDHeader carries the request id in and out
const RequestIDHeader = "X-Request-ID"

// Provenance stores the caller's address, user agent and a request id in
// the request context so audit events can be stamped with them. An incoming
// X-Request-ID is kept, otherwise a new one is generated.
func Provenance(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := userctx.SetProvenance(r.Context(), userctx.Provenance{
			SourceIP:  getIPAddress(r),
			UserAgent: r.UserAgent(),
			RequestID: requestID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getIPAddress prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the peer address without its port.
func getIPAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}
