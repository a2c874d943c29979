package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workforce/backend/internal/identity/service"
	"workforce/backend/internal/security"
)

func TestTrustedProxies_ClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)

	testCases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "198.51.100.1:5555", "198.51.100.1"},
		{"remote addr without port", nil, "198.51.100.1", "198.51.100.1"},
		{"untrusted peer cannot forward", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "198.51.100.1:1", "198.51.100.1"},
		{"untrusted peer cannot set real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "198.51.100.1:1", "198.51.100.1"},
		{"trusted proxy forwards client", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "10.0.0.1:1", "203.0.113.9"},
		{"spoofed leftmost hop ignored", map[string]string{"X-Forwarded-For": "6.6.6.6, 203.0.113.9, 10.0.0.2"}, "10.0.0.1:1", "203.0.113.9"},
		{"all hops trusted", map[string]string{"X-Forwarded-For": "10.1.1.1, 192.0.2.10"}, "10.0.0.1:1", "10.1.1.1"},
		{"garbage hop stops the walk", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.1:1", "10.0.0.1"},
		{"trusted proxy real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "192.0.2.10:1", "198.51.100.7"},
		{"trusted proxy bad real ip", map[string]string{"X-Real-IP": "bogus"}, "192.0.2.10:1", "192.0.2.10"},
		{"ipv4 mapped peer", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "[::ffff:10.0.0.1]:1", "203.0.113.9"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/login", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, proxies.ClientIP(r))
		})
	}
}

func TestTrustedProxies_NoneConfigured(t *testing.T) {
	var proxies TrustedProxies
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	r.RemoteAddr = "10.0.0.1:4000"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "10.0.0.1", proxies.ClientIP(r))
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{" 10.0.0.0/8 ", "", "192.0.2.10", "2001:db8::/32", "10.1.2.3/8"})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "10.0.0.0/8", got[0].String())
	assert.Equal(t, "192.0.2.10/32", got[1].String())
	assert.Equal(t, "2001:db8::/32", got[2].String())
	assert.Equal(t, "10.0.0.0/8", got[3].String())

	for _, bad := range []string{"10.0.0.0/33", "proxy.internal", "10.0.0"} {
		_, err := ParseTrustedProxies([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestWriteError(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, msgInvalidCredentials},
		{"current password", service.ErrCurrentPasswordIncorrect, http.StatusUnauthorized, msgCurrentIncorrect},
		{"inactive", service.ErrAccountInactive, http.StatusUnauthorized, msgAccountInactive},
		{"duplicate", service.ErrDuplicateSession, http.StatusConflict, service.ErrDuplicateSession.Error()},
		{"session invalid", fmt.Errorf("wrapped: %w", service.ErrSessionInvalid), http.StatusUnauthorized, msgSessionInvalid},
		{"policy", security.PolicyViolation("New password and confirm password do not match"), http.StatusBadRequest, "New password and confirm password do not match"},
		{"not found", service.ErrPrincipalNotFound, http.StatusNotFound, msgEmployeeNotFound},
		{"unknown", errors.New("db down"), http.StatusInternalServerError, msgInternal},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)

			assert.Equal(t, tc.status, rec.Code)
			var body struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}

func TestLogin_RejectsMalformedBody(t *testing.T) {
	s := NewServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", http.NoBody)
	s.Login(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/login", jsonBody(`{"email":"a@example.com","extra":1}`))
	s.Login(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func jsonBody(s string) *strings.Reader { return strings.NewReader(s) }
