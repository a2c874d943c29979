package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workforce/backend/internal/security"
	"workforce/backend/internal/session/domain"
	"workforce/backend/internal/store/memstore"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	store  *memstore.Store
	clock  *testClock
	tokens *security.TokenCodec
	engine *Engine
}

func newFixture(t *testing.T, start time.Time, tokenTTL time.Duration) *fixture {
	t.Helper()
	clock := &testClock{t: start}
	tokens, err := security.NewHMACTokenCodec([]byte(security.TestSecret), "test-issuer", tokenTTL)
	require.NoError(t, err)
	tokens = tokens.WithClock(clock.Now)

	s := memstore.New()
	engine := NewEngine(s.Sessions(), tokens, Config{Location: time.UTC}, WithClock(clock.Now))
	return &fixture{store: s, clock: clock, tokens: tokens, engine: engine}
}

// login issues a token and stores its ACTIVE session at the current clock time.
func (f *fixture) login(t *testing.T, sessionID, employeeID string) string {
	t.Helper()
	token, _, err := f.tokens.Issue(security.TokenSubject{EmployeeID: employeeID, Email: employeeID + "@example.com"})
	require.NoError(t, err)
	now := f.clock.Now()
	f.store.PutSession(&domain.Session{
		ID:               sessionID,
		EmployeeID:       employeeID,
		TokenHash:        security.HashToken(token),
		DeviceID:         "d1",
		LoginTime:        now,
		LastActivityTime: now,
		Status:           domain.StatusActive,
	})
	return token
}

func (f *fixture) session(t *testing.T, id string) *domain.Session {
	t.Helper()
	s, err := f.store.Sessions().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func TestValidate_TouchesActiveSession(t *testing.T) {
	start := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start, 8*time.Hour)
	token := f.login(t, "s1", "emp-1")

	f.clock.Set(start.Add(2 * time.Hour))
	claims, sess, err := f.engine.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.EmployeeID)
	assert.Equal(t, "s1", sess.ID)
	assert.Equal(t, start.Add(2*time.Hour), f.session(t, "s1").LastActivityTime)
}

func TestValidate_RejectsUnknownOrMalformedTokens(t *testing.T) {
	start := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start, 8*time.Hour)
	ctx := context.Background()

	assert.False(t, f.engine.IsValid(ctx, ""))
	assert.False(t, f.engine.IsValid(ctx, "not-a-jwt"))

	orphan, _, err := f.tokens.Issue(security.TokenSubject{EmployeeID: "emp-1", Email: "a@example.com"})
	require.NoError(t, err)
	_, _, err = f.engine.Validate(ctx, orphan)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	foreign, err := security.NewHMACTokenCodec([]byte("another-secret-another-secret-xx"), "test-issuer", 8*time.Hour)
	require.NoError(t, err)
	forged, _, err := foreign.WithClock(f.clock.Now).Issue(security.TokenSubject{EmployeeID: "emp-1", Email: "a@example.com"})
	require.NoError(t, err)
	_, _, err = f.engine.Validate(ctx, forged)
	assert.ErrorIs(t, err, security.ErrTokenSignatureMismatch)
}

func TestValidate_RejectsTokenOfAnotherEmployee(t *testing.T) {
	start := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start, 8*time.Hour)
	token := f.login(t, "s1", "emp-1")

	sess := f.session(t, "s1")
	sess.EmployeeID = "emp-2"
	f.store.PutSession(sess)

	assert.False(t, f.engine.IsValid(context.Background(), token))
}

func TestValidate_InactivityExpiresSession(t *testing.T) {
	start := time.Date(2026, 4, 6, 1, 0, 0, 0, time.UTC)
	f := newFixture(t, start, 24*time.Hour)
	token := f.login(t, "s1", "emp-1")

	f.clock.Set(start.Add(8 * time.Hour))
	assert.True(t, f.engine.IsValid(context.Background(), token), "exactly at the timeout is still valid")

	f.clock.Set(start.Add(16*time.Hour + time.Minute))
	assert.False(t, f.engine.IsValid(context.Background(), token))

	sess := f.session(t, "s1")
	assert.Equal(t, domain.StatusExpired, sess.Status)
	require.NotNil(t, sess.LogoutTime)
}

func TestValidate_RolloverExpiresSession(t *testing.T) {
	start := time.Date(2026, 4, 6, 23, 0, 0, 0, time.UTC)
	f := newFixture(t, start, 8*time.Hour)
	token := f.login(t, "s1", "emp-1")

	f.clock.Set(start.Add(59 * time.Minute))
	require.True(t, f.engine.IsValid(context.Background(), token))

	f.clock.Set(start.Add(90 * time.Minute))
	assert.False(t, f.engine.IsValid(context.Background(), token))
	assert.Equal(t, domain.StatusExpired, f.session(t, "s1").Status)
}

func TestValidate_TerminalSessionStaysTerminal(t *testing.T) {
	start := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start, 8*time.Hour)
	token := f.login(t, "s1", "emp-1")
	ctx := context.Background()

	_, err := f.store.Sessions().Terminate(ctx, "s1", domain.StatusForceLogout, start.Add(time.Minute))
	require.NoError(t, err)

	assert.False(t, f.engine.IsValid(ctx, token))
	sess := f.session(t, "s1")
	assert.Equal(t, domain.StatusForceLogout, sess.Status)
	assert.Equal(t, start, sess.LastActivityTime)
}

func TestReconcile_AppliesBothGuards(t *testing.T) {
	day1 := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, day1, 8*time.Hour)
	f.login(t, "idle", "emp-1")
	f.clock.Set(day1.Add(11 * time.Hour))
	f.login(t, "yesterday", "emp-2")
	f.login(t, "logged-out", "emp-3")
	_, err := f.store.Sessions().Terminate(context.Background(), "logged-out", domain.StatusLoggedOut, day1.Add(11*time.Hour))
	require.NoError(t, err)

	f.clock.Set(day1.Add(16*time.Hour + time.Minute)) // 01:01 next day
	f.login(t, "fresh", "emp-4")

	res, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Inactive)
	assert.Equal(t, int64(1), res.RolledOver)

	assert.Equal(t, domain.StatusExpired, f.session(t, "idle").Status)
	assert.Equal(t, domain.StatusExpired, f.session(t, "yesterday").Status)
	assert.Equal(t, domain.StatusLoggedOut, f.session(t, "logged-out").Status)
	assert.Equal(t, domain.StatusActive, f.session(t, "fresh").Status)

	res, err = f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Inactive+res.RolledOver)
}

func TestPurgeOldSessions_KeepsRecentAndActive(t *testing.T) {
	start := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start, 8*time.Hour)
	ctx := context.Background()
	f.login(t, "old", "emp-1")
	f.login(t, "recent", "emp-2")
	f.login(t, "active", "emp-3")

	_, err := f.store.Sessions().Terminate(ctx, "old", domain.StatusLoggedOut, start)
	require.NoError(t, err)
	_, err = f.store.Sessions().Terminate(ctx, "recent", domain.StatusLoggedOut, start.Add(20*24*time.Hour))
	require.NoError(t, err)

	f.clock.Set(start.Add(31 * 24 * time.Hour))
	n, err := f.engine.PurgeOldSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ids := make([]string, 0)
	for _, s := range f.store.AllSessions() {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{"recent", "active"}, ids)
}
