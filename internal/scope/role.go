// Package scope classifies caller roles and narrows analytics
// queries to the records a caller may see.
package scope

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role is a normalized caller role.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
	// RoleUnknown means no role could be found for the caller.
	RoleUnknown Role = "unknown"
	// RoleOther is a role name that exists but matches nothing
	// known. It sees the whole organization.
	RoleOther Role = "other"
)

// DefaultAgentAliases are the role-name fragments that mark a caller
// as an agent, including the localized forms used by tenants.
var DefaultAgentAliases = []string{"agent", "agente", "atendente"}

// OrgWide reports whether the role sees organization-wide data.
func (r Role) OrgWide() bool {
	switch r {
	case RoleManager, RoleAdmin, RoleSuperAdmin, RoleOther:
		return true
	}
	return false
}

// Classify maps a free-text role name to a Role. Matching is
// case-insensitive and by substring. Agent aliases are checked
// first so "agent admin" style names stay restricted.
func Classify(name string, agentAliases []string) Role {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return RoleUnknown
	}
	if len(agentAliases) == 0 {
		agentAliases = DefaultAgentAliases
	}
	for _, a := range agentAliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && strings.Contains(n, a) {
			return RoleAgent
		}
	}
	compact := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(n)
	switch {
	case strings.Contains(compact, "superadmin"):
		return RoleSuperAdmin
	case strings.Contains(n, "admin"):
		return RoleAdmin
	case strings.Contains(n, "manager"),
		strings.Contains(n, "gerente"),
		strings.Contains(n, "gestor"),
		strings.Contains(n, "supervisor"):
		return RoleManager
	}
	return RoleOther
}

// RoleResolver returns the normalized role of a user.
type RoleResolver interface {
	ResolveRole(ctx context.Context, orgID, userID string) (Role, error)
}

// ErrRoleNotFound is returned by a RoleNameLookup when no table
// holds a role for the user.
var ErrRoleNotFound = errors.New("role not found")

// RoleNameLookup reads raw role names from the backing store.
type RoleNameLookup interface {
	RoleName(ctx context.Context, orgID, userID string) (string, error)
}

// Resolver adapts a RoleNameLookup into a RoleResolver.
type Resolver struct {
	lookup  RoleNameLookup
	aliases func() []string
}

// NewResolver builds a Resolver. aliases is consulted on every
// call so alias lists can be reloaded at runtime; nil uses
// DefaultAgentAliases.
func NewResolver(
	lookup RoleNameLookup, aliases func() []string,
) *Resolver {
	if aliases == nil {
		aliases = func() []string { return DefaultAgentAliases }
	}
	return &Resolver{lookup: lookup, aliases: aliases}
}

// ResolveRole looks up and classifies the user's role. A missing
// role is not an error: it resolves to RoleUnknown, which is the
// most restrictive scope.
func (r *Resolver) ResolveRole(
	ctx context.Context, orgID, userID string,
) (Role, error) {
	name, err := r.lookup.RoleName(ctx, orgID, userID)
	if errors.Is(err, ErrRoleNotFound) {
		return RoleUnknown, nil
	}
	if err != nil {
		return RoleUnknown, fmt.Errorf("resolving role: %w", err)
	}
	return Classify(name, r.aliases()), nil
}
