package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workforce/backend/internal/loginattempt"
	"workforce/backend/internal/loginattempt/domain"
	"workforce/backend/internal/store/memstore"
)

func TestParsePage(t *testing.T) {
	testCases := []struct {
		query string
		want  domain.Page
		ok    bool
	}{
		{"", domain.Page{Limit: domain.DefaultPageSize}, true},
		{"page=2&size=10", domain.Page{Limit: 10, Offset: 20}, true},
		{"size=1000", domain.Page{Limit: domain.MaxPageSize}, true},
		{"page=1&size=1000", domain.Page{Limit: domain.MaxPageSize, Offset: domain.MaxPageSize}, true},
		{"page=-1", domain.Page{}, false},
		{"size=0", domain.Page{}, false},
		{"page=x", domain.Page{}, false},
		{"page=" + strconv.Itoa(math.MaxInt/domain.MaxPageSize) + "&size=1000", domain.Page{Limit: domain.MaxPageSize, Offset: math.MaxInt / domain.MaxPageSize * domain.MaxPageSize}, true},
		{"page=" + strconv.Itoa(math.MaxInt/domain.MaxPageSize+1) + "&size=1000", domain.Page{}, false},
		{"page=" + strconv.Itoa(math.MaxInt), domain.Page{}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			got, ok := parsePage(rec, httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil))
			assert.Equal(t, tc.ok, ok)
			if !tc.ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestServer_Lists(t *testing.T) {
	mem := memstore.New()
	base := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	rec := loginattempt.NewRecorder(mem.LoginAttempts())
	ctx := context.Background()
	for i, st := range []domain.Status{domain.StatusSuccess, domain.StatusBlocked, domain.StatusFailed, domain.StatusBlocked} {
		rec.Record(ctx, mem.LoginAttempts(), &domain.Attempt{
			EmployeeID:  fmt.Sprintf("emp-%d", i%2),
			Email:       "jane@example.com",
			AttemptTime: base.Add(time.Duration(i) * time.Minute),
			Status:      st,
		})
	}

	s := NewServer(rec)
	r := chi.NewRouter()
	r.Get("/", s.List)
	r.Get("/blocked", s.Blocked)
	r.Get("/blocked/count", s.BlockedCount)
	r.Get("/employee/{employeeID}", s.ByEmployee)

	get := func(path string) []map[string]any {
		t.Helper()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data []map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body.Data
	}

	all := get("/")
	require.Len(t, all, 4)
	assert.Equal(t, "BLOCKED", all[0]["status"], "newest first")

	assert.Len(t, get("/blocked"), 2)
	assert.Len(t, get("/employee/emp-1"), 2)
	assert.Len(t, get("/?page=1&size=3"), 1)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blocked/count", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":2`)
}
