package migrate

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_EmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		_, err := Run(dsn, Up)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL is not set")
	}
}

func TestParseDirection(t *testing.T) {
	testCases := []struct {
		in   string
		want Direction
		err  bool
	}{
		{"up", Up, false},
		{"down", Down, false},
		{"", "", true},
		{"UP", "", true},
		{"Up", "", true},
		{"sideways", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDirection(tc.in)
			if tc.err {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "direction")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	_, err := Run("postgres://localhost/test", Direction("left"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "direction")
}

func TestRun_InvalidDSN(t *testing.T) {
	testCases := []struct {
		name string
		dsn  string
	}{
		{"invalid format", "invalid-dsn"},
		{"missing driver", "://localhost/test"},
		{"spaces", "postgres://localhost with spaces/test"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Run(tc.dsn, Up)
			require.Error(t, err)
			assert.False(t, errors.Is(err, ErrNoChange))
		})
	}
}

func TestRun_UpIsIdempotent(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	version, err := Run(dsn, Up)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, version, uint(4))

	// second run is a no-op
	again, err := Run(dsn, Up)
	require.NoError(t, err)
	assert.Equal(t, version, again)
}
