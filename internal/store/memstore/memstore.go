// Package memstore is an in-memory store.Store for tests. Transactions are serialized
// and roll back to a snapshot when fn fails.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	empdomain "workforce/backend/internal/employee/domain"
	employeerepo "workforce/backend/internal/employee/repository"
	attdomain "workforce/backend/internal/loginattempt/domain"
	attemptrepo "workforce/backend/internal/loginattempt/repository"
	sessdomain "workforce/backend/internal/session/domain"
	sessionrepo "workforce/backend/internal/session/repository"
	"workforce/backend/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps employees, sessions and login attempts in maps guarded by one mutex.
type Store struct {
	lock  sync.Mutex
	state *state

	faults faults
}

type faults struct {
	attemptWriteErr error
	pingErr         error
}

type state struct {
	employees map[string]*empdomain.Employee
	sessions  map[string]*sessdomain.Session
	attempts  []*attdomain.Attempt
}

// New returns an empty Store.
func New() *Store {
	return &Store{state: &state{
		employees: make(map[string]*empdomain.Employee),
		sessions:  make(map[string]*sessdomain.Session),
	}}
}

// InTx runs fn with exclusive access. State is restored if fn returns an error.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Repos) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, repos{s: s, inTx: true}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Ping returns the error set by FailPing, if any.
func (s *Store) Ping(context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.faults.pingErr
}

func (s *Store) Employees() employeerepo.Repository { return employees{s: s} }

func (s *Store) Sessions() sessionrepo.Repository { return sessions{s: s} }

func (s *Store) LoginAttempts() attemptrepo.Repository { return attempts{s: s} }

// FailAttemptWrites makes every login attempt insert return err. nil restores normal writes.
func (s *Store) FailAttemptWrites(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.faults.attemptWriteErr = err
}

// FailPing makes Ping return err.
func (s *Store) FailPing(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.faults.pingErr = err
}

// PutEmployee inserts or replaces e.
func (s *Store) PutEmployee(e *empdomain.Employee) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.employees[e.ID] = copyEmployee(e)
}

// PutSession inserts or replaces sess without any constraint check.
func (s *Store) PutSession(sess *sessdomain.Session) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.sessions[sess.ID] = copySession(sess)
}

// AllSessions returns copies of every session ordered by login time.
func (s *Store) AllSessions() []*sessdomain.Session {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]*sessdomain.Session, 0, len(s.state.sessions))
	for _, sess := range s.state.sessions {
		out = append(out, copySession(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoginTime.Equal(out[j].LoginTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].LoginTime.Before(out[j].LoginTime)
	})
	return out
}

// AllAttempts returns copies of every login attempt in insertion order.
func (s *Store) AllAttempts() []*attdomain.Attempt {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]*attdomain.Attempt, len(s.state.attempts))
	for i, a := range s.state.attempts {
		out[i] = copyAttempt(a)
	}
	return out
}

// Employee returns a copy of the employee with id, or nil.
func (s *Store) Employee(id string) *empdomain.Employee {
	s.lock.Lock()
	defer s.lock.Unlock()
	if e, ok := s.state.employees[id]; ok {
		return copyEmployee(e)
	}
	return nil
}

// with runs fn against the state, taking the lock unless already inside InTx.
func (s *Store) with(inTx bool, fn func(st *state) error) error {
	if !inTx {
		s.lock.Lock()
		defer s.lock.Unlock()
	}
	return fn(s.state)
}

type repos struct {
	s    *Store
	inTx bool
}

func (r repos) Employees() employeerepo.Repository { return employees(r) }

func (r repos) Sessions() sessionrepo.Repository { return sessions(r) }

func (r repos) LoginAttempts() attemptrepo.Repository { return attempts(r) }

type employees struct {
	s    *Store
	inTx bool
}

func (r employees) GetByID(_ context.Context, id string) (*empdomain.Employee, error) {
	var out *empdomain.Employee
	err := r.s.with(r.inTx, func(st *state) error {
		if e, ok := st.employees[id]; ok {
			out = copyEmployee(e)
		}
		return nil
	})
	return out, err
}

func (r employees) GetByEmail(_ context.Context, email string) (*empdomain.Employee, error) {
	var out *empdomain.Employee
	err := r.s.with(r.inTx, func(st *state) error {
		for _, e := range st.employees {
			if strings.EqualFold(e.Email, strings.TrimSpace(email)) {
				out = copyEmployee(e)
				return nil
			}
		}
		return nil
	})
	return out, err
}

// LockByID is GetByID; InTx already serializes every transaction.
func (r employees) LockByID(ctx context.Context, id string) (*empdomain.Employee, error) {
	return r.GetByID(ctx, id)
}

func (r employees) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return r.s.with(r.inTx, func(st *state) error {
		e, ok := st.employees[id]
		if !ok {
			return employeerepo.ErrNoRows
		}
		at := at
		e.LastLoginAt = &at
		return nil
	})
}

func (r employees) UpdatePassword(_ context.Context, id, passwordHash string, changedOn time.Time) error {
	return r.s.with(r.inTx, func(st *state) error {
		e, ok := st.employees[id]
		if !ok {
			return employeerepo.ErrNoRows
		}
		day := empdomain.DateOf(changedOn)
		e.PasswordHash = passwordHash
		e.LastPasswordChange = &day
		return nil
	})
}

type sessions struct {
	s    *Store
	inTx bool
}

func (r sessions) find(match func(*sessdomain.Session) bool) (*sessdomain.Session, error) {
	var out *sessdomain.Session
	err := r.s.with(r.inTx, func(st *state) error {
		for _, sess := range st.sessions {
			if match(sess) {
				out = copySession(sess)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r sessions) GetByID(_ context.Context, id string) (*sessdomain.Session, error) {
	return r.find(func(s *sessdomain.Session) bool { return s.ID == id })
}

func (r sessions) FindActive(_ context.Context, employeeID string) (*sessdomain.Session, error) {
	return r.find(func(s *sessdomain.Session) bool { return s.EmployeeID == employeeID && s.Active() })
}

func (r sessions) FindByTokenHash(_ context.Context, tokenHash string) (*sessdomain.Session, error) {
	return r.find(func(s *sessdomain.Session) bool { return s.TokenHash == tokenHash })
}

// Create enforces the same constraints as the Postgres schema: unique id, unique token
// hash and at most one ACTIVE session per employee.
func (r sessions) Create(_ context.Context, sess *sessdomain.Session) error {
	return r.s.with(r.inTx, func(st *state) error {
		for _, existing := range st.sessions {
			if existing.ID == sess.ID || existing.TokenHash == sess.TokenHash {
				return errDuplicateKey
			}
			if sess.Active() && existing.Active() && existing.EmployeeID == sess.EmployeeID {
				return sessionrepo.ErrActiveSessionExists
			}
		}
		st.sessions[sess.ID] = copySession(sess)
		return nil
	})
}

func (r sessions) Touch(_ context.Context, tokenHash string, at time.Time) (bool, error) {
	var touched bool
	err := r.s.with(r.inTx, func(st *state) error {
		for _, sess := range st.sessions {
			if sess.TokenHash == tokenHash && sess.Active() {
				if at.After(sess.LastActivityTime) {
					sess.LastActivityTime = at
				}
				touched = true
			}
		}
		return nil
	})
	return touched, err
}

func (r sessions) terminateWhere(status sessdomain.Status, at time.Time, match func(*sessdomain.Session) bool) (int64, error) {
	if !status.Terminal() || !status.Valid() {
		return 0, errNotTerminal
	}
	var n int64
	err := r.s.with(r.inTx, func(st *state) error {
		for _, sess := range st.sessions {
			if sess.Active() && match(sess) {
				at := at
				sess.Status = status
				sess.LogoutTime = &at
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r sessions) Terminate(_ context.Context, id string, status sessdomain.Status, at time.Time) (bool, error) {
	n, err := r.terminateWhere(status, at, func(s *sessdomain.Session) bool { return s.ID == id })
	return n > 0, err
}

func (r sessions) TerminateByEmployee(_ context.Context, employeeID string, status sessdomain.Status, at time.Time) (int64, error) {
	return r.terminateWhere(status, at, func(s *sessdomain.Session) bool { return s.EmployeeID == employeeID })
}

func (r sessions) ExpireIdleSince(_ context.Context, cutoff, at time.Time) (int64, error) {
	return r.terminateWhere(sessdomain.StatusExpired, at, func(s *sessdomain.Session) bool {
		return s.LastActivityTime.Before(cutoff)
	})
}

func (r sessions) ExpireLoggedInBefore(_ context.Context, dayStart, at time.Time) (int64, error) {
	return r.terminateWhere(sessdomain.StatusExpired, at, func(s *sessdomain.Session) bool {
		return s.LoginTime.Before(dayStart)
	})
}

func (r sessions) CountActive(context.Context) (int64, error) {
	var n int64
	err := r.s.with(r.inTx, func(st *state) error {
		for _, sess := range st.sessions {
			if sess.Active() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r sessions) PurgeTerminalOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.s.with(r.inTx, func(st *state) error {
		for id, sess := range st.sessions {
			if !sess.Active() && sess.LogoutTime != nil && sess.LogoutTime.Before(cutoff) {
				delete(st.sessions, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type attempts struct {
	s    *Store
	inTx bool
}

func (r attempts) Create(_ context.Context, a *attdomain.Attempt) error {
	return r.s.with(r.inTx, func(st *state) error {
		if err := r.s.faults.attemptWriteErr; err != nil {
			return err
		}
		st.attempts = append(st.attempts, copyAttempt(a))
		return nil
	})
}

func (r attempts) CountFailuresSince(_ context.Context, email string, since time.Time) (int64, error) {
	var n int64
	err := r.s.with(r.inTx, func(st *state) error {
		for _, a := range st.attempts {
			if a.Status == attdomain.StatusFailed && strings.EqualFold(a.Email, email) && !a.AttemptTime.Before(since) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r attempts) list(page attdomain.Page, match func(*attdomain.Attempt) bool) ([]*attdomain.Attempt, error) {
	page = page.Normalize()
	var out []*attdomain.Attempt
	err := r.s.with(r.inTx, func(st *state) error {
		var matched []*attdomain.Attempt
		for _, a := range st.attempts {
			if match(a) {
				matched = append(matched, a)
			}
		}
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].AttemptTime.After(matched[j].AttemptTime) })
		for i := page.Offset; i < len(matched) && len(out) < page.Limit; i++ {
			out = append(out, copyAttempt(matched[i]))
		}
		return nil
	})
	return out, err
}

func (r attempts) List(_ context.Context, page attdomain.Page) ([]*attdomain.Attempt, error) {
	return r.list(page, func(*attdomain.Attempt) bool { return true })
}

func (r attempts) ListByStatus(_ context.Context, status attdomain.Status, page attdomain.Page) ([]*attdomain.Attempt, error) {
	return r.list(page, func(a *attdomain.Attempt) bool { return a.Status == status })
}

func (r attempts) ListByEmployee(_ context.Context, employeeID string, page attdomain.Page) ([]*attdomain.Attempt, error) {
	return r.list(page, func(a *attdomain.Attempt) bool { return a.EmployeeID == employeeID })
}

func (r attempts) CountByStatus(_ context.Context, status attdomain.Status) (int64, error) {
	var n int64
	err := r.s.with(r.inTx, func(st *state) error {
		for _, a := range st.attempts {
			if a.Status == status {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r attempts) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.s.with(r.inTx, func(st *state) error {
		kept := st.attempts[:0]
		for _, a := range st.attempts {
			if a.AttemptTime.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, a)
		}
		st.attempts = kept
		return nil
	})
	return n, err
}
