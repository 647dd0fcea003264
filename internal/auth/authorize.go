package auth

import (
	"fmt"

	"ventas.io/internal/apperr"
)

// SecurityContext is the identity and authorization state resolved for one
// request. It is built by Resolver and never stored.
type SecurityContext struct {
	User        User
	Company     Company
	Roles       []Role
	Permissions []Permission

	granted map[Grant]struct{}
}

// NewSecurityContext constructs a context with a de-duplicated permission set.
func NewSecurityContext(user User, company Company, roles []Role, perms []Permission) SecurityContext {
	granted := make(map[Grant]struct{}, len(perms))
	uniq := make([]Permission, 0, len(perms))
	for _, p := range perms {
		g := p.Grant()
		if _, ok := granted[g]; ok {
			continue
		}
		granted[g] = struct{}{}
		uniq = append(uniq, p)
	}
	return SecurityContext{
		User:        user,
		Company:     company,
		Roles:       roles,
		Permissions: uniq,
		granted:     granted,
	}
}

// Allows reports whether the context may perform action on resource. Owners
// are allowed everything; everyone else needs the exact pair.
func (sc SecurityContext) Allows(action, resource string) bool {
	if sc.User.IsOwner {
		return true
	}
	want := Grant{Action: action, Resource: resource}
	if sc.granted != nil {
		_, ok := sc.granted[want]
		return ok
	}
	for _, p := range sc.Permissions {
		if p.Grant() == want {
			return true
		}
	}
	return false
}

// Allows is the guard as a plain function.
func Allows(sc SecurityContext, action, resource string) bool {
	return sc.Allows(action, resource)
}

// Require returns apperr.ErrForbidden when the guard denies the pair.
func (sc SecurityContext) Require(action, resource string) error {
	if sc.Allows(action, resource) {
		return nil
	}
	return fmt.Errorf("%w: %s on %s", apperr.ErrForbidden, action, resource)
}

// CompanyID is the tenant every scoped query must filter on.
func (sc SecurityContext) CompanyID() int64 {
	return sc.Company.ID
}

// Grants returns the effective grant set; owners get the whole catalog.
func (sc SecurityContext) Grants() []Grant {
	if sc.User.IsOwner {
		return Catalog()
	}
	out := make([]Grant, 0, len(sc.Permissions))
	for _, p := range sc.Permissions {
		out = append(out, p.Grant())
	}
	return out
}
