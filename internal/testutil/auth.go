package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"idea-portal/internal/auth"
	"idea-portal/internal/config"
	"idea-portal/internal/models"
)

// AuthHelper issues real tokens for handler tests
type AuthHelper struct {
	Service *auth.Service
}

// NewAuthHelper creates an auth helper with an ephemeral signing key
func NewAuthHelper(t *testing.T) *AuthHelper {
	t.Helper()
	svc, err := auth.NewService(&config.JWTConfig{Expiration: time.Hour, Issuer: "idea-portal-test"})
	if err != nil {
		t.Fatalf("Failed to create auth service: %v", err)
	}
	return &AuthHelper{Service: svc}
}

// PrincipalFor builds a principal for a user with roles
func PrincipalFor(user *models.User, roles ...string) auth.Principal {
	return auth.Principal{UserID: user.ID, Email: user.Email, Name: user.FullName(), Roles: roles}
}

// Token returns a signed token for p
func (h *AuthHelper) Token(t *testing.T, p auth.Principal) string {
	t.Helper()
	token, _, err := h.Service.GenerateToken(p)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return token
}

// NewRequest builds a request with an optional JSON body and a bearer token for p
func (h *AuthHelper) NewRequest(t *testing.T, method, url string, body any, p *auth.Principal) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p != nil {
		req.Header.Set("Authorization", "Bearer "+h.Token(t, *p))
	}
	return req
}

// AssertStatus fails the test when rec has an unexpected status
func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rec.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, rec.Code, rec.Body.String())
	}
}

// DecodeJSON decodes the recorder body into v
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}
