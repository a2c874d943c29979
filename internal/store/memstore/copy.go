package memstore

import (
	"errors"

	empdomain "workforce/backend/internal/employee/domain"
	attdomain "workforce/backend/internal/loginattempt/domain"
	sessdomain "workforce/backend/internal/session/domain"
)

var (
	errDuplicateKey = errors.New("memstore: duplicate key")
	errNotTerminal  = errors.New("memstore: status is not terminal")
)

func (st *state) clone() *state {
	out := &state{
		employees: make(map[string]*empdomain.Employee, len(st.employees)),
		sessions:  make(map[string]*sessdomain.Session, len(st.sessions)),
		attempts:  make([]*attdomain.Attempt, len(st.attempts)),
	}
	for id, e := range st.employees {
		out.employees[id] = copyEmployee(e)
	}
	for id, s := range st.sessions {
		out.sessions[id] = copySession(s)
	}
	for i, a := range st.attempts {
		out.attempts[i] = copyAttempt(a)
	}
	return out
}

func copyEmployee(e *empdomain.Employee) *empdomain.Employee {
	cp := *e
	if e.LastPasswordChange != nil {
		t := *e.LastPasswordChange
		cp.LastPasswordChange = &t
	}
	if e.LastLoginAt != nil {
		t := *e.LastLoginAt
		cp.LastLoginAt = &t
	}
	return &cp
}

func copySession(s *sessdomain.Session) *sessdomain.Session {
	cp := *s
	if s.LogoutTime != nil {
		t := *s.LogoutTime
		cp.LogoutTime = &t
	}
	return &cp
}

func copyAttempt(a *attdomain.Attempt) *attdomain.Attempt {
	cp := *a
	return &cp
}
