package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ventas.io/internal/apperr"
	"ventas.io/internal/obs"
)

// TokenValidator exchanges an opaque session token for the identity
// provider's subject id. Every failure must wrap apperr.ErrUnauthenticated.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (uuid.UUID, error)
}

// Directory is the read side of the relational store used during resolution.
type Directory interface {
	// LookupSubject returns the user with the given external subject and its
	// owning company, or apperr.ErrSubjectNotProvisioned.
	LookupSubject(ctx context.Context, subject uuid.UUID) (User, Company, error)
	// RolesForUser returns the roles assigned to userID whose company is companyID.
	RolesForUser(ctx context.Context, userID, companyID int64) ([]Role, error)
	// PermissionsForRoles returns the permissions granted to any of roleIDs.
	PermissionsForRoles(ctx context.Context, roleIDs []int64) ([]Permission, error)
}

// Resolver turns a session token into a SecurityContext.
type Resolver struct {
	tokens TokenValidator
	dir    Directory
}

// NewResolver wires a resolver from its two collaborators.
func NewResolver(tokens TokenValidator, dir Directory) (*Resolver, error) {
	if tokens == nil {
		return nil, errors.New("auth: token validator is required")
	}
	if dir == nil {
		return nil, errors.New("auth: directory is required")
	}
	return &Resolver{tokens: tokens, dir: dir}, nil
}

// Resolve validates token and loads the caller's user, company, roles and
// permissions. Existence is checked before either active flag so disabled
// status is never reported for unknown subjects.
func (r *Resolver) Resolve(ctx context.Context, token string) (SecurityContext, error) {
	sc, err := r.resolve(ctx, token)
	if err != nil {
		obs.ObserveResolution(apperr.KindOf(err))
		return SecurityContext{}, err
	}
	obs.ObserveResolution("ok")
	return sc, nil
}

func (r *Resolver) resolve(ctx context.Context, token string) (SecurityContext, error) {
	if strings.TrimSpace(token) == "" {
		return SecurityContext{}, fmt.Errorf("%w: missing session token", apperr.ErrUnauthenticated)
	}
	subject, err := r.tokens.Validate(ctx, token)
	if err != nil {
		obs.Logger().Debug().Err(err).Msg("token rejected")
		return SecurityContext{}, fmt.Errorf("%w: invalid session token", apperr.ErrUnauthenticated)
	}

	user, company, err := r.dir.LookupSubject(ctx, subject)
	if err != nil {
		return SecurityContext{}, apperr.Store(err)
	}
	if !user.Active {
		return SecurityContext{}, fmt.Errorf("%w: user %d is inactive", apperr.ErrUserDisabled, user.ID)
	}
	if !company.Active {
		return SecurityContext{}, fmt.Errorf("%w: company %d is inactive", apperr.ErrCompanyDisabled, company.ID)
	}

	roles, err := r.dir.RolesForUser(ctx, user.ID, company.ID)
	if err != nil {
		return SecurityContext{}, apperr.Store(err)
	}
	var perms []Permission
	if len(roles) > 0 {
		roleIDs := make([]int64, len(roles))
		for i, role := range roles {
			roleIDs[i] = role.ID
		}
		perms, err = r.dir.PermissionsForRoles(ctx, roleIDs)
		if err != nil {
			return SecurityContext{}, apperr.Store(err)
		}
	}
	return NewSecurityContext(user, company, roles, perms), nil
}
