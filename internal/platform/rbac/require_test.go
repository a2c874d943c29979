package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workforce/backend/internal/policy/engine"
	"workforce/backend/internal/server/middleware"
)

type stubAuthorizer struct {
	allow bool
	err   error
	got   engine.Subject
}

func (s *stubAuthorizer) Allow(_ context.Context, subject engine.Subject, _ engine.Action) (bool, error) {
	s.got = subject
	return s.allow, s.err
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func serve(h http.Handler, id *middleware.Identity) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), id))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthenticated(t *testing.T) {
	h := RequireAuthenticated(okHandler)

	assert.Equal(t, http.StatusUnauthorized, serve(h, nil).Code)
	assert.Equal(t, http.StatusNoContent, serve(h, &middleware.Identity{EmployeeID: "emp-1"}).Code)
}

func TestRequireAction(t *testing.T) {
	testCases := []struct {
		name  string
		id    *middleware.Identity
		authz *stubAuthorizer
		want  int
	}{
		{"anonymous", nil, &stubAuthorizer{allow: true}, http.StatusUnauthorized},
		{"denied", &middleware.Identity{EmployeeID: "emp-1", Department: "SALES"}, &stubAuthorizer{}, http.StatusForbidden},
		{"policy error", &middleware.Identity{EmployeeID: "emp-1"}, &stubAuthorizer{allow: true, err: errors.New("eval")}, http.StatusForbidden},
		{"allowed", &middleware.Identity{EmployeeID: "emp-1", Department: "HR"}, &stubAuthorizer{allow: true}, http.StatusNoContent},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := RequireAction(tc.authz, engine.ActionResetPassword)(okHandler)
			rec := serve(h, tc.id)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}

func TestRequireAction_WithDefaultPolicy(t *testing.T) {
	authz, err := engine.NewOPAEvaluator(context.Background())
	require.NoError(t, err)
	h := RequireAction(authz, engine.ActionViewLoginAttempts)(okHandler)

	assert.Equal(t, http.StatusNoContent, serve(h, &middleware.Identity{EmployeeID: "a", Department: "ADMIN"}).Code)
	assert.Equal(t, http.StatusForbidden, serve(h, &middleware.Identity{EmployeeID: "b", Department: "ENGINEERING"}).Code)
}
