package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/harun/voxrelay/internal/tracing"
	"github.com/harun/voxrelay/pkg/relayerr"
)

// withRequestID attaches a fresh request ID to the request context and
// echoes it back in the response headers.
func (s *Server) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = tracing.NewRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		next(w, r.WithContext(tracing.WithRequestID(r.Context(), requestID)))
	}
}

// withAuth rejects requests that do not carry the configured bearer token
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.options.AuthToken == "" {
			// No token configured means the operator runs the API open,
			// e.g. behind their own reverse proxy auth.
			next(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.options.AuthToken)) != 1 {
			s.writeError(w, r, relayerr.New(relayerr.KindUnauthorized, "invalid or missing bearer token"))
			return
		}

		next(w, r)
	}
}

// withRateLimit rejects requests over the per-IP budget
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.rateLimiter.CheckLimit(ip) {
			retryAfter := s.rateLimiter.GetRetryAfter(ip)
			s.logger.Warn().
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retry_after", retryAfter).
				Msg("Rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"success":false,"error":"rate_limited"}`))
			return
		}
		next(w, r)
	}
}

// withTracking refuses new work during shutdown and counts in-flight requests
func (s *Server) withTracking(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		s.inFlightReqs.Add(1)
		s.shutdownMu.RUnlock()
		defer s.inFlightReqs.Done()

		next(w, r)
	}
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
