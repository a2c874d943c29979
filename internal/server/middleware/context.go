package middleware

import "context"

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// Identity is the authenticated caller, taken from a token that maps to a live session.
type Identity struct {
	EmployeeID string
	Email      string
	Department string
	Role       string
	FullName   string
	SessionID  string
	Token      string
}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the caller identity and true if the bearer filter set one.
func GetIdentity(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// GetEmployeeID returns the caller's employee id and true if set; otherwise "", false.
func GetEmployeeID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok {
		return "", false
	}
	return id.EmployeeID, id.EmployeeID != ""
}

// GetSessionID returns the caller's session id and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok {
		return "", false
	}
	return id.SessionID, id.SessionID != ""
}
