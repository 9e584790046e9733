package privacy

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/invql"
)

// Viewer represents the authenticated user making a request.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier for multi-tenancy.
	// Returns empty string if not applicable.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context.
// Returns nil if no viewer is present.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string {
	return v.UserID
}

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string {
	return v.Roles
}

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string {
	return v.TenantID
}

// DenyIfNoViewer returns a rule that denies access if no viewer is present
// in the context. It is typically the first rule of a policy:
//
//	privacy.ReadPolicy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.IsOwner("owner_id"),
//	    privacy.AlwaysDenyRule(),
//	}
func DenyIfNoViewer() ReadRule {
	return ContextReadRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows access if the viewer has the role.
func HasRole(role string) ReadRule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows access if the viewer has any of
// the roles.
func HasAnyRole(roles ...string) ReadRule {
	return ContextReadRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		viewerRoles := viewer.GetRoles()
		for _, role := range roles {
			if slices.Contains(viewerRoles, role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner returns a rule that allows access if the field of the row holds
// the viewer's ID.
func IsOwner(field string) ReadRule {
	return ReadRuleFunc(func(ctx context.Context, r *Read) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		value, ok := r.Field(field)
		if !ok || value == nil {
			return Skip
		}
		if invql.KeyString(value) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// TenantRule returns a rule that denies rows of other tenants. Rows of the
// viewer's tenant are left to the next rule.
func TenantRule(field string) ReadRule {
	return ReadRuleFunc(func(ctx context.Context, r *Read) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Denyf("privacy: tenant required")
		}
		value, ok := r.Field(field)
		if !ok {
			return Skip
		}
		if invql.KeyString(value) != viewer.GetTenantID() {
			return Denyf("privacy: tenant mismatch")
		}
		return Skip
	})
}

// ParseRule parses the textual form of a rule used in configuration files:
//
//	allow
//	deny
//	deny_if_no_viewer
//	has_role:admin
//	has_any_role:admin,editor
//	owner:owner_id
//	tenant:tenant_id
func ParseRule(s string) (ReadRule, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(s), ":")
	needArg := func() error {
		if arg == "" {
			return invql.NewConfigError("privacy", s, fmt.Sprintf("rule %q requires an argument", name))
		}
		return nil
	}
	switch name {
	case "allow":
		return AlwaysAllowRule(), nil
	case "deny":
		return AlwaysDenyRule(), nil
	case "deny_if_no_viewer":
		return DenyIfNoViewer(), nil
	case "has_role":
		if err := needArg(); err != nil {
			return nil, err
		}
		return HasRole(arg), nil
	case "has_any_role":
		if err := needArg(); err != nil {
			return nil, err
		}
		return HasAnyRole(strings.Split(arg, ",")...), nil
	case "owner":
		if err := needArg(); err != nil {
			return nil, err
		}
		return IsOwner(arg), nil
	case "tenant":
		if err := needArg(); err != nil {
			return nil, err
		}
		return TenantRule(arg), nil
	}
	return nil, invql.NewConfigError("privacy", s, "unknown rule")
}

// ParsePolicy parses a list of rules.
func ParsePolicy(rules []string) (ReadPolicy, error) {
	policy := make(ReadPolicy, 0, len(rules))
	for _, s := range rules {
		rule, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		policy = append(policy, rule)
	}
	return policy, nil
}
