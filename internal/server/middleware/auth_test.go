package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workforce/backend/internal/security"
	sessdomain "workforce/backend/internal/session/domain"
	"workforce/backend/internal/session/lifecycle"
)

type fakeValidator struct {
	tokens map[string]*security.Claims
	err    error
	calls  int
}

func (f *fakeValidator) Validate(_ context.Context, token string) (*security.Claims, *sessdomain.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	c, ok := f.tokens[token]
	if !ok {
		return nil, nil, lifecycle.ErrSessionInvalid
	}
	return c, &sessdomain.Session{ID: "sess-" + c.EmployeeID, EmployeeID: c.EmployeeID}, nil
}

// capture records the identity seen downstream.
func capture(seen **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := GetIdentity(r.Context()); ok {
			*seen = id
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerFilter(t *testing.T) {
	v := &fakeValidator{tokens: map[string]*security.Claims{
		"good": {EmployeeID: "emp-1", Email: "a@example.com", Department: "HR", Role: "MANAGER"},
	}}

	testCases := []struct {
		name      string
		header    string
		wantID    string
		wantCalls int
	}{
		{"no header", "", "", 0},
		{"wrong scheme", "Basic good", "", 0},
		{"invalid token", "Bearer bad", "", 1},
		{"valid token", "Bearer good", "emp-1", 1},
		{"lowercase scheme", "bearer   good ", "emp-1", 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v.calls = 0
			var seen *Identity
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			BearerFilter(v)(capture(&seen)).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code, "filter never rejects")
			assert.Equal(t, tc.wantCalls, v.calls)
			if tc.wantID == "" {
				assert.Nil(t, seen)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, tc.wantID, seen.EmployeeID)
			assert.Equal(t, "HR", seen.Department)
			assert.Equal(t, "sess-emp-1", seen.SessionID)
			assert.Equal(t, "good", seen.Token)
		})
	}
}

func TestBearerFilter_StoreErrorPassesThrough(t *testing.T) {
	v := &fakeValidator{err: errors.New("db down")}
	var seen *Identity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()

	BearerFilter(v)(capture(&seen)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	_, ok := GetEmployeeID(ctx)
	assert.False(t, ok)
	_, ok = GetSessionID(ctx)
	assert.False(t, ok)

	ctx = WithIdentity(ctx, &Identity{EmployeeID: "emp-1", SessionID: "s1"})
	id, ok := GetEmployeeID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "emp-1", id)
	sid, ok := GetSessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "s1", sid)
}
