package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"idea-portal/internal/config"
)

// CORSMiddleware handles CORS
type CORSMiddleware struct {
	config *config.CORSConfig
}

// NewCORSMiddleware creates a new CORS middleware
func NewCORSMiddleware(cfg *config.CORSConfig) *CORSMiddleware {
	return &CORSMiddleware{
		config: cfg,
	}
}

// Handler handles CORS headers
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowedOrigin := ""
		if origin != "" {
			if slices.Contains(m.config.AllowedOrigins, origin) {
				allowedOrigin = origin
			} else if slices.Contains(m.config.AllowedOrigins, "*") {
				allowedOrigin = "*"
			}
		}

		if allowedOrigin == "" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowedOrigin)
		h.Add("Vary", "Origin")

		// credentials are never combined with a wildcard origin
		if m.config.AllowCredentials && allowedOrigin != "*" {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if len(m.config.ExposedHeaders) > 0 {
			h.Set("Access-Control-Expose-Headers", strings.Join(m.config.ExposedHeaders, ", "))
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", strings.Join(m.config.AllowedMethods, ", "))
			h.Set("Access-Control-Allow-Headers", strings.Join(m.config.AllowedHeaders, ", "))
			if m.config.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(m.config.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
