package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background())
	require.NoError(t, err)
	assert.NoError(t, e.HealthCheck(context.Background()))
}

func TestOPAEvaluator_DefaultPolicy(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background())
	require.NoError(t, err)

	testCases := []struct {
		name       string
		department string
		action     Action
		want       bool
	}{
		{"admin resets password", "ADMIN", ActionResetPassword, true},
		{"hr reads audit", "HR", ActionViewLoginAttempts, true},
		{"lowercase department", "hr", ActionForceLogout, true},
		{"admin counts sessions", "ADMIN", ActionViewSessions, true},
		{"engineering denied", "ENGINEERING", ActionResetPassword, false},
		{"empty department denied", "", ActionForceLogout, false},
		{"unknown action denied", "ADMIN", Action("drop_tables"), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Allow(context.Background(), Subject{EmployeeID: "e1", Department: tc.department}, tc.action)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOPAEvaluator_CustomPolicy(t *testing.T) {
	const onlyAccounts = `package workforce.authz

default allow := false

allow if {
	input.subject.department == "ACCOUNTS"
	input.action == "view_login_attempts"
}
`
	e, err := NewOPAEvaluator(context.Background(), onlyAccounts)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := e.Allow(ctx, Subject{Department: "ACCOUNTS"}, ActionViewLoginAttempts)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Allow(ctx, Subject{Department: "ADMIN"}, ActionViewLoginAttempts)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOPAEvaluator_InvalidPolicy(t *testing.T) {
	_, err := NewOPAEvaluator(context.Background(), "package workforce.authz\n\nallow if {")
	assert.Error(t, err)
}

func TestNewOPAEvaluatorFromFile(t *testing.T) {
	ctx := context.Background()

	e, err := NewOPAEvaluatorFromFile(ctx, "")
	require.NoError(t, err)
	ok, err := e.Allow(ctx, Subject{Department: "HR"}, ActionResetPassword)
	require.NoError(t, err)
	assert.True(t, ok)

	path := filepath.Join(t.TempDir(), "authz.rego")
	require.NoError(t, os.WriteFile(path, []byte(DefaultPolicy), 0o600))
	_, err = NewOPAEvaluatorFromFile(ctx, path)
	require.NoError(t, err)

	_, err = NewOPAEvaluatorFromFile(ctx, filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)
}
