package api

import (
	"crypto/subtle"
	"net/http"
)

// requireWrite guards endpoints that trigger deliveries.
func (s *Server) requireWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.ReadOnly {
			writeError(w, http.StatusForbidden, "read-only mode", "Set serve.read_only=false to enable manual runs")
			return
		}

		if s.runLimiter != nil && !s.runLimiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limited", "Too many manual run requests")
			return
		}

		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token", "Provide a valid Bearer token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
