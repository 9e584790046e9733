// Package privacy provides read policies for collection keys.
//
// A policy is a list of rules evaluated in order until one returns a final
// decision:
//
//   - Allow: grants access and stops evaluation
//   - Deny: denies access and stops evaluation
//   - Skip: continues to the next rule
//
// A policy whose rules all skip allows the read. End a policy with
// AlwaysDenyRule to deny by default.
//
// # Guarding reads
//
// Guard wraps the Read function of a key. Rules are evaluated against the
// row that was read; absent rows are not evaluated. A denied row is
// reported as absent, so a relation or node lookup resolves to null rather
// than failing the request:
//
//	people.PrimaryKey.Read = privacy.Guard(people, privacy.ReadPolicy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.IsOwner("id"),
//	    privacy.AlwaysDenyRule(),
//	}, people.PrimaryKey.Read)
//
// WithStrict turns denials into *invql.PrivacyError instead.
//
// GuardInventory applies policies to every collection of an inventory and
// returns a guarded copy that a schema can be built from:
//
//	inv := privacy.GuardInventory(store, func(c *invql.Collection) privacy.ReadPolicy {
//	    return policies[c.Name]
//	})
//	s, err := schema.CreateSchema(inv)
//
// # Viewer
//
// The viewer is stored in the request context:
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID: "user-123",
//	    Roles:  []string{"user"},
//	})
//
// # Configuration
//
// ParseRule and ParsePolicy read the textual rule forms used in
// configuration files, such as "has_role:admin" or "owner:owner_id".
package privacy
