package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"idea-portal/internal/models"
)

// AuditStore persists audit log entries
type AuditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditMiddleware records requests to sensitive routes
type AuditMiddleware struct {
	auditRepo AuditStore
}

// NewAuditMiddleware creates a new audit middleware
func NewAuditMiddleware(auditRepo AuditStore) *AuditMiddleware {
	return &AuditMiddleware{
		auditRepo: auditRepo,
	}
}

// Log records action against resource after the wrapped handler has run.
// Only requests that completed with a 2xx status are recorded.
func (m *AuditMiddleware) Log(action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			if wrapped.statusCode < 200 || wrapped.statusCode >= 300 {
				return
			}

			var userID *uint
			if id, ok := GetUserID(r); ok {
				userID = &id
			}

			entry := &models.AuditLog{
				UserID:    userID,
				Action:    action,
				Resource:  resource,
				Details:   r.Method + " " + r.URL.Path,
				IPAddress: getIP(r),
				UserAgent: r.UserAgent(),
			}

			// the response is already written, so failures are only logged
			if err := m.auditRepo.Create(context.WithoutCancel(r.Context()), entry); err != nil {
				slog.Warn("Failed to write audit log", "action", action, "resource", resource, "error", err)
			}
		})
	}
}
