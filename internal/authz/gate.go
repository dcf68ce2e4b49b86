// Package authz enforces role requirements for dashboard operations. The
// gate takes the session as an explicit argument so it can be exercised
// without a simulated request.
package authz

import (
	"errors"

	"shopadmin/internal/session"
	"shopadmin/pkg/domain"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// RequireAuth fails when there is no valid session.
func RequireAuth(sess *session.Session) (*session.Session, error) {
	if sess == nil {
		return nil, ErrUnauthorized
	}
	return sess, nil
}

// RequireRole fails with ErrForbidden unless the session's role is in the
// allowed set.
func RequireRole(sess *session.Session, allowed ...domain.Role) (*session.Session, error) {
	sess, err := RequireAuth(sess)
	if err != nil {
		return nil, err
	}
	for _, role := range allowed {
		if sess.Role == role {
			return sess, nil
		}
	}
	return nil, ErrForbidden
}

// RequireAdmin gates every state-mutating operation.
func RequireAdmin(sess *session.Session) (*session.Session, error) {
	return RequireRole(sess, domain.RoleAdmin)
}

// RequireSalesOrAdmin gates read-heavy listing operations.
func RequireSalesOrAdmin(sess *session.Session) (*session.Session, error) {
	return RequireRole(sess, domain.RoleAdmin, domain.RoleSalesExecutive)
}
