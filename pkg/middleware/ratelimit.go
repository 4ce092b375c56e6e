package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/ratelimit"
)

// RateLimit throttles search requests per client IP. Only requests to
// path that carry a non-blank q parameter count against the limit. m may
// be nil.
func RateLimit(limiter *ratelimit.Limiter, path string, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != path || strings.TrimSpace(r.URL.Query().Get("q")) == "" {
				next.ServeHTTP(w, r)
				return
			}
			ip := ClientIP(r)
			if limiter.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}
			if m != nil {
				m.RateLimitedTotal.Inc()
			}
			slog.Debug("search rate limited", "client_ip", ip, "request_id", GetRequestID(r.Context()))
			retry := int(limiter.RetryAfter().Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate_limited_search"})
		})
	}
}

// ClientIP is the first X-Forwarded-For entry, falling back to the remote
// address without its port.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
