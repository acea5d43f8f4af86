package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"idea-portal/internal/auth"
	"idea-portal/internal/config"
	"idea-portal/internal/models"
	"idea-portal/internal/testutil"
)

func principalEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("X-User", p.Email)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	helper := testutil.NewAuthHelper(t)
	m := NewAuthMiddleware(helper.Service)
	p := auth.Principal{UserID: 4, Email: "eve@example.com", Roles: []string{models.RoleEmployee}}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + helper.Token(t, p), http.StatusOK},
		{"lowercase scheme", "bearer " + helper.Token(t, p), http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			m.Authenticate(principalEcho(t)).ServeHTTP(rec, req)

			testutil.AssertStatus(t, rec, tt.wantStatus)
			if tt.wantStatus == http.StatusOK && rec.Header().Get("X-User") != p.Email {
				t.Errorf("principal email = %q, want %q", rec.Header().Get("X-User"), p.Email)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	helper := testutil.NewAuthHelper(t)
	m := NewAuthMiddleware(helper.Service)

	rec := httptest.NewRecorder()
	m.OptionalAuth(principalEcho(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertStatus(t, rec, http.StatusNoContent)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec = httptest.NewRecorder()
	m.OptionalAuth(principalEcho(t)).ServeHTTP(rec, req)
	testutil.AssertStatus(t, rec, http.StatusNoContent)
}

func TestRequireAnyRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		principal  *auth.Principal
		roles      []string
		wantStatus int
	}{
		{"unauthenticated", nil, []string{models.RoleManager}, http.StatusUnauthorized},
		{"missing role", &auth.Principal{UserID: 1, Roles: []string{models.RoleEmployee}}, []string{models.RoleManager}, http.StatusForbidden},
		{"matching role", &auth.Principal{UserID: 1, Roles: []string{models.RoleManager}}, []string{models.RoleManager}, http.StatusOK},
		{"any of several", &auth.Principal{UserID: 1, Roles: []string{models.RoleAdmin}}, []string{models.RoleManager, models.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.principal != nil {
				req = req.WithContext(auth.WithPrincipal(req.Context(), *tt.principal))
			}
			rec := httptest.NewRecorder()
			RequireAnyRole(tt.roles...)(ok).ServeHTTP(rec, req)
			testutil.AssertStatus(t, rec, tt.wantStatus)
		})
	}
}

type memAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditLog
	err     error
}

func (s *memAuditStore) Create(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, *log)
	return nil
}

func TestAuditMiddleware(t *testing.T) {
	store := &memAuditStore{}
	m := NewAuditMiddleware(store)

	handler := func(status int) http.Handler {
		return m.Log("template.manage", "templates")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/templates", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: 7}))
	req.RemoteAddr = "10.0.0.1:5555"
	handler(http.StatusCreated).ServeHTTP(httptest.NewRecorder(), req)
	handler(http.StatusBadRequest).ServeHTTP(httptest.NewRecorder(), req)

	if len(store.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(store.entries))
	}
	got := store.entries[0]
	if got.UserID == nil || *got.UserID != 7 {
		t.Errorf("UserID = %v, want 7", got.UserID)
	}
	if got.IPAddress != "10.0.0.1" || got.Details != "POST /api/v1/admin/templates" {
		t.Errorf("entry = %+v", got)
	}

	store.err = errors.New("db down")
	rec := httptest.NewRecorder()
	handler(http.StatusOK).ServeHTTP(rec, req)
	testutil.AssertStatus(t, rec, http.StatusOK)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{Enabled: true, Requests: 2, Duration: time.Minute})
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := do("10.0.0.1"); got != http.StatusOK {
		t.Fatalf("first request status = %d", got)
	}
	if got := do("10.0.0.1"); got != http.StatusOK {
		t.Fatalf("second request status = %d", got)
	}
	if got := do("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", got)
	}
	if got := do("10.0.0.2"); got != http.StatusOK {
		t.Errorf("other client status = %d, want 200", got)
	}

	now = now.Add(30 * time.Second)
	if got := do("10.0.0.1"); got != http.StatusOK {
		t.Errorf("status after refill = %d, want 200", got)
	}

	now = now.Add(10 * time.Minute)
	rl.cleanup(3 * time.Minute)
	if len(rl.visitors) != 0 {
		t.Errorf("expected idle visitors to be removed, %d left", len(rl.visitors))
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{Enabled: false, Requests: 1, Duration: time.Minute})
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		testutil.AssertStatus(t, rec, http.StatusOK)
	}
}

func TestGetIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"}, "10.0.0.3:80", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.3:80", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:4567", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getIP(req); got != tt.want {
				t.Errorf("getIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	m := NewCORSMiddleware(&config.CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/proposals", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		m.Handler(next).ServeHTTP(rec, req)

		testutil.AssertStatus(t, rec, http.StatusNoContent)
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
			t.Errorf("Allow-Methods = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Max-Age"); got != "300" {
			t.Errorf("Max-Age = %q", got)
		}
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		m.Handler(next).ServeHTTP(rec, req)

		testutil.AssertStatus(t, rec, http.StatusOK)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	rec := httptest.NewRecorder()
	SecurityHeaders(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("missing security headers: %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	SecurityHeaders(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "unsafe-inline") {
		t.Errorf("swagger CSP = %q", rec.Header().Get("Content-Security-Policy"))
	}
}

func TestLoggingMiddlewareRequestID(t *testing.T) {
	var seen string
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("request id %q not propagated (header %q)", seen, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" {
		t.Errorf("incoming request id not kept, got %q", seen)
	}
}

func TestRedactBody(t *testing.T) {
	got := redactBody([]byte(`{"email":"a@example.com","password":"hunter2"}`))
	if strings.Contains(got, "hunter2") || !strings.Contains(got, "a@example.com") {
		t.Errorf("redactBody() = %s", got)
	}
	if got := redactBody([]byte("plain")); got != "plain" {
		t.Errorf("non-JSON body changed: %s", got)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), mark("a"), mark("b"), mark("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, "") != "abc" {
		t.Errorf("order = %v", order)
	}
}
