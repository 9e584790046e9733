package privacy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/invql"
	"github.com/syssam/invql/privacy"
)

func viewerCtx(id, tenant string, roles ...string) context.Context {
	return privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: id, TenantID: tenant, Roles: roles})
}

func TestViewerContext(t *testing.T) {
	t.Parallel()
	assert.Nil(t, privacy.ViewerFromContext(context.Background()))
	v := privacy.ViewerFromContext(viewerCtx("u1", "t1", "admin"))
	require.NotNil(t, v)
	assert.Equal(t, "u1", v.GetID())
	assert.Equal(t, "t1", v.GetTenantID())
	assert.Equal(t, []string{"admin"}, v.GetRoles())
}

func TestRules(t *testing.T) {
	t.Parallel()
	row := &privacy.Read{Value: invql.Row{"owner_id": int64(42), "tenant_id": "t1"}}
	anon := context.Background()

	tests := []struct {
		name string
		rule privacy.ReadRule
		ctx  context.Context
		want error
	}{
		{"deny if no viewer: anonymous", privacy.DenyIfNoViewer(), anon, privacy.Deny},
		{"deny if no viewer: viewer", privacy.DenyIfNoViewer(), viewerCtx("1", ""), privacy.Skip},
		{"has role", privacy.HasRole("admin"), viewerCtx("1", "", "admin"), privacy.Allow},
		{"has role: missing", privacy.HasRole("admin"), viewerCtx("1", "", "user"), privacy.Skip},
		{"has role: anonymous", privacy.HasRole("admin"), anon, privacy.Skip},
		{"has any role", privacy.HasAnyRole("editor", "admin"), viewerCtx("1", "", "admin"), privacy.Allow},
		{"owner", privacy.IsOwner("owner_id"), viewerCtx("42", ""), privacy.Allow},
		{"owner: other", privacy.IsOwner("owner_id"), viewerCtx("7", ""), privacy.Skip},
		{"owner: missing field", privacy.IsOwner("nope"), viewerCtx("42", ""), privacy.Skip},
		{"tenant", privacy.TenantRule("tenant_id"), viewerCtx("1", "t1"), privacy.Skip},
		{"tenant: mismatch", privacy.TenantRule("tenant_id"), viewerCtx("1", "t2"), privacy.Deny},
		{"tenant: no tenant", privacy.TenantRule("tenant_id"), viewerCtx("1", ""), privacy.Deny},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.rule.EvalRead(tt.ctx, row), tt.want)
		})
	}
}

func TestParseRule(t *testing.T) {
	t.Parallel()
	admin := viewerCtx("42", "t1", "admin")
	row := &privacy.Read{Value: invql.Row{"owner_id": "42", "tenant_id": "t1"}}

	tests := []struct {
		in   string
		want error
	}{
		{"allow", privacy.Allow},
		{"deny", privacy.Deny},
		{"deny_if_no_viewer", privacy.Skip},
		{"has_role:admin", privacy.Allow},
		{" has_any_role:editor,admin ", privacy.Allow},
		{"owner:owner_id", privacy.Allow},
		{"tenant:tenant_id", privacy.Skip},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			rule, err := privacy.ParseRule(tt.in)
			require.NoError(t, err)
			assert.ErrorIs(t, rule.EvalRead(admin, row), tt.want)
		})
	}

	for _, bad := range []string{"has_role", "owner:", "sometimes"} {
		_, err := privacy.ParseRule(bad)
		assert.True(t, invql.IsConfigError(err), bad)
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()
	policy, err := privacy.ParsePolicy([]string{"deny_if_no_viewer", "has_role:admin", "deny"})
	require.NoError(t, err)
	require.Len(t, policy, 3)
	assert.ErrorIs(t, policy.EvalRead(context.Background(), &privacy.Read{}), privacy.Deny)
	assert.NoError(t, policy.EvalRead(viewerCtx("1", "", "admin"), &privacy.Read{}))

	_, err = privacy.ParsePolicy([]string{"allow", "bogus"})
	assert.Error(t, err)
}
