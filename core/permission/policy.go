// Package permission decides whether a principal may run a protected operation.
// A Policy is a pure predicate over the caller and, for object-scoped operations, the target.
package permission

import (
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core/user"
)

var (
	ErrUnauthenticated = errors.New("authentication credentials were not provided")
	ErrForbidden       = errors.New("you do not have permission to perform this action")
)

// Principal is the caller of a request. The zero value is the anonymous caller.
type Principal struct {
	UserID        string
	Roles         user.Roles
	Authenticated bool
}

// NewPrincipal returns the authenticated Principal of usr.
func NewPrincipal(usr user.User) Principal {
	return Principal{UserID: usr.ID, Roles: usr.Roles, Authenticated: usr.ID != ""}
}

// Owned is implemented by objects that belong to a User.
type Owned interface {
	OwnerID() string
}

// Policy allows or denies p. target is nil for operations that are not object-scoped.
type Policy func(p Principal, target Owned) bool

// All passes when every policy passes.
func All(policies ...Policy) Policy {
	return func(p Principal, target Owned) bool {
		for _, policy := range policies {
			if !policy(p, target) {
				return false
			}
		}
		return true
	}
}

// Any passes when at least one policy passes.
func Any(policies ...Policy) Policy {
	return func(p Principal, target Owned) bool {
		for _, policy := range policies {
			if policy(p, target) {
				return true
			}
		}
		return false
	}
}

func Authenticated(p Principal, _ Owned) bool {
	return p.Authenticated && p.UserID != ""
}

func HasRole(role user.Role) Policy {
	return func(p Principal, _ Owned) bool {
		return p.Roles.Has(role)
	}
}

// IsOwner passes when target belongs to p. It never passes without a target.
func IsOwner(p Principal, target Owned) bool {
	if target == nil || p.UserID == "" {
		return false
	}
	return target.OwnerID() == p.UserID
}

// Role gates. The authenticated check wraps every term so role flags alone never admit an anonymous caller.
var (
	AdminUser      = All(Authenticated, Any(HasRole(user.RoleAdmin), HasRole(user.RoleStaff)))
	AdminOrTeacher = All(Authenticated, Any(HasRole(user.RoleTeacher), HasRole(user.RoleStaff), HasRole(user.RoleAdmin)))
	AdminOrStudent = All(Authenticated, Any(HasRole(user.RoleStudent), HasRole(user.RoleStaff), HasRole(user.RoleAdmin)))
	AdminOrOwner   = All(Authenticated, Any(IsOwner, HasRole(user.RoleStaff), HasRole(user.RoleAdmin)))
)

// Check evaluates policy. It returns ErrUnauthenticated for anonymous callers and ErrForbidden
// for authenticated callers the policy denies.
func Check(policy Policy, p Principal, target Owned) error {
	if policy(p, target) {
		return nil
	}
	if !Authenticated(p, target) {
		return ErrUnauthenticated
	}
	return ErrForbidden
}
