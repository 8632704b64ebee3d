// Package policy evaluates role assignment rules written in Rego.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/bankcore/banking-api/internal/domain"
)

const roleQuery = "data.banking.roles.role"

// DefaultRolePolicy grants ROLE_ADMIN to the identity whose admin identifier
// matches the configured one and ROLE_USER to everyone else.
const DefaultRolePolicy = `package banking.roles

default role := "ROLE_USER"

role := "ROLE_ADMIN" if {
	input.config.admin_identifier != ""
	input.identity.admin_identifier == input.config.admin_identifier
}
`

// RegoRolePolicy derives roles with a prepared OPA query.
type RegoRolePolicy struct {
	query           rego.PreparedEvalQuery
	adminIdentifier string
}

// NewRegoRolePolicy compiles module (DefaultRolePolicy when empty). The module
// must define data.banking.roles.role.
func NewRegoRolePolicy(ctx context.Context, module, adminIdentifier string) (*RegoRolePolicy, error) {
	if module == "" {
		module = DefaultRolePolicy
	}
	query, err := rego.New(
		rego.Query(roleQuery),
		rego.Module("roles.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile role policy: %w", err)
	}
	return &RegoRolePolicy{query: query, adminIdentifier: adminIdentifier}, nil
}

// LoadRegoRolePolicy reads the module from path, or uses the default when path is empty.
func LoadRegoRolePolicy(ctx context.Context, path, adminIdentifier string) (*RegoRolePolicy, error) {
	if path == "" {
		return NewRegoRolePolicy(ctx, "", adminIdentifier)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role policy %s: %w", path, err)
	}
	return NewRegoRolePolicy(ctx, string(content), adminIdentifier)
}

// RoleFor evaluates the policy for one identity.
func (p *RegoRolePolicy) RoleFor(ctx context.Context, identity domain.Identity) (domain.Role, error) {
	input := map[string]interface{}{
		"identity": map[string]interface{}{
			"subject":          identity.Subject,
			"active":           identity.Active,
			"admin_identifier": identity.AdminIdentifier,
		},
		"config": map[string]interface{}{
			"admin_identifier": p.adminIdentifier,
		},
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("evaluate role policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", fmt.Errorf("role policy returned no result")
	}
	role, ok := rs[0].Expressions[0].Value.(string)
	if !ok || role == "" {
		return "", fmt.Errorf("role policy returned %T, want string", rs[0].Expressions[0].Value)
	}
	return domain.Role(role), nil
}
