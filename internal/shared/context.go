package shared

import (
	"context"
	"strconv"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Identity carries the requesting user's ids as stamped by the auth
// collaborator. Zero fields mean "not set".
type Identity struct {
	UserID       int64
	BranchID     int64
	DepartmentID int64
}

// IdentityFromContext reads the caller identity from the session.
func IdentityFromContext(ctx context.Context) Identity {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return Identity{}
	}
	userID, _ := strconv.ParseInt(sess.User(), 10, 64)
	branchID, _ := strconv.ParseInt(sess.Get(SessionKeyBranch), 10, 64)
	departmentID, _ := strconv.ParseInt(sess.Get(SessionKeyDepartment), 10, 64)
	return Identity{UserID: userID, BranchID: branchID, DepartmentID: departmentID}
}
