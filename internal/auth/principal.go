package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/bankcore/banking-api/internal/domain"
)

// Principal represents the authenticated caller for one request.
type Principal struct {
	Subject string
	Role    domain.Role
	Active  bool
}

// HasRole reports whether the principal carries any of the roles.
func (p *Principal) HasRole(roles ...domain.Role) bool {
	if p == nil {
		return false
	}
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// IdentityLookup loads identity records by token subject.
// Unknown subjects yield domain.ErrIdentityNotFound.
type IdentityLookup interface {
	FindBySubject(ctx context.Context, subject string) (*domain.Identity, error)
}

// RolePolicy decides which role an identity is granted.
type RolePolicy interface {
	RoleFor(ctx context.Context, identity domain.Identity) (domain.Role, error)
}

// AdminIdentifierPolicy grants ROLE_ADMIN to the one identity whose admin
// identifier matches the configured value.
type AdminIdentifierPolicy struct {
	AdminIdentifier string
}

// RoleFor satisfies RolePolicy.
func (p AdminIdentifierPolicy) RoleFor(_ context.Context, identity domain.Identity) (domain.Role, error) {
	if p.AdminIdentifier == "" || identity.AdminIdentifier == "" {
		return domain.RoleUser, nil
	}
	if subtle.ConstantTimeCompare([]byte(p.AdminIdentifier), []byte(identity.AdminIdentifier)) == 1 {
		return domain.RoleAdmin, nil
	}
	return domain.RoleUser, nil
}

// PrincipalResolver builds principals from live identity records.
type PrincipalResolver struct {
	identities IdentityLookup
	roles      RolePolicy
}

// NewPrincipalResolver constructs a resolver.
func NewPrincipalResolver(identities IdentityLookup, roles RolePolicy) *PrincipalResolver {
	return &PrincipalResolver{identities: identities, roles: roles}
}

// Resolve loads subject and derives its role. Inactive accounts are rejected
// even when the caller holds a structurally valid token.
func (r *PrincipalResolver) Resolve(ctx context.Context, subject string) (*Principal, error) {
	identity, err := r.identities.FindBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if identity == nil {
		return nil, ErrAccountNotFound
	}
	if !identity.Active {
		return nil, ErrAccountInactive
	}

	role, err := r.roles.RoleFor(ctx, *identity)
	if err != nil {
		return nil, fmt.Errorf("derive role: %w", err)
	}
	return &Principal{Subject: identity.Subject, Role: role, Active: true}, nil
}
