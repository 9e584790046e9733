package privacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/invql"
)

// Policy decision sentinel errors. Use errors.Is to check for them:
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("invql/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("invql/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule in the chain.
	Skip = errors.New("invql/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Read describes a row read by key. Value is the row that was read; rules
// are only evaluated for rows that exist.
type Read struct {
	Collection *invql.Collection
	Key        any
	Value      invql.Value
}

// Field returns a field of the read row.
func (r *Read) Field(name string) (any, bool) {
	if invql.IsAbsent(r.Value) {
		return nil, false
	}
	return r.Value.Get(name)
}

type (
	// ReadRule decides whether a row may be returned to the caller.
	ReadRule interface {
		EvalRead(context.Context, *Read) error
	}

	// ReadPolicy combines multiple read rules into a single policy.
	ReadPolicy []ReadRule
)

// ReadRuleFunc type is an adapter which allows the use of ordinary
// functions as read rules.
type ReadRuleFunc func(context.Context, *Read) error

// EvalRead returns f(ctx, r).
func (f ReadRuleFunc) EvalRead(ctx context.Context, r *Read) error {
	return f(ctx, r)
}

// ContextReadRule creates a read rule from a context evaluation function.
// Returning nil is equivalent to returning Skip.
func ContextReadRule(eval func(context.Context) error) ReadRule {
	return ReadRuleFunc(func(ctx context.Context, _ *Read) error {
		return eval(ctx)
	})
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() ReadRule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() ReadRule {
	return fixedDecision{Deny}
}

// EvalRead evaluates the rules in order. The first decision other than
// Skip ends the evaluation; Allow and an exhausted policy yield nil.
func (policy ReadPolicy) EvalRead(ctx context.Context, r *Read) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range policy {
		switch decision := rule.EvalRead(ctx, r); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it. Internal callers use it to bypass
// policies:
//
//	ctx = privacy.DecisionContext(ctx, privacy.Allow)
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalRead(context.Context, *Read) error {
	return f.decision
}

// GuardOption configures Guard and GuardInventory.
type GuardOption func(*guardConfig)

type guardConfig struct {
	strict bool
}

// WithStrict makes denied reads fail with an *invql.PrivacyError instead
// of reporting the row as absent.
func WithStrict() GuardOption {
	return func(c *guardConfig) {
		c.strict = true
	}
}

func newGuardConfig(opts []GuardOption) guardConfig {
	var cfg guardConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Guard wraps read with policy. A denied row is reported as absent, so a
// relation to a row the viewer may not see resolves to null. Errors other
// than Deny propagate.
func Guard(c *invql.Collection, policy ReadPolicy, read invql.ReadFunc, opts ...GuardOption) invql.ReadFunc {
	if read == nil {
		return nil
	}
	cfg := newGuardConfig(opts)
	return func(ctx context.Context, key any) (invql.Value, error) {
		v, err := read(ctx, key)
		if err != nil {
			return nil, err
		}
		if invql.IsAbsent(v) {
			return nil, nil
		}
		return cfg.filter(ctx, c, policy, key, v)
	}
}

// GuardMany is Guard for batch reads. Denied rows are nil.
func GuardMany(c *invql.Collection, policy ReadPolicy, readMany invql.ReadManyFunc, opts ...GuardOption) invql.ReadManyFunc {
	if readMany == nil {
		return nil
	}
	cfg := newGuardConfig(opts)
	return func(ctx context.Context, keys []any) ([]invql.Value, error) {
		values, err := readMany(ctx, keys)
		if err != nil {
			return nil, err
		}
		out := make([]invql.Value, len(values))
		for i, v := range values {
			if invql.IsAbsent(v) {
				continue
			}
			var key any
			if i < len(keys) {
				key = keys[i]
			}
			if out[i], err = cfg.filter(ctx, c, policy, key, v); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

func (cfg guardConfig) filter(ctx context.Context, c *invql.Collection, policy ReadPolicy, key any, v invql.Value) (invql.Value, error) {
	err := policy.EvalRead(ctx, &Read{Collection: c, Key: key, Value: v})
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, Deny):
		if cfg.strict {
			return nil, invql.NewPrivacyError(c.Name, "read", err.Error())
		}
		return nil, nil
	default:
		return nil, err
	}
}

// guarded is an inventory whose readable keys are wrapped with policies.
type guarded struct {
	collections []*invql.Collection
	relations   []*invql.Relation
}

func (g *guarded) Collections() []*invql.Collection { return g.collections }
func (g *guarded) Relations() []*invql.Relation     { return g.relations }

// GuardInventory returns a copy of inv whose keys read through the policy
// returned by policyOf for their collection. A nil policy leaves the
// collection unguarded. inv itself is not modified.
func GuardInventory(inv invql.Inventory, policyOf func(*invql.Collection) ReadPolicy, opts ...GuardOption) invql.Inventory {
	g := &guarded{}
	clones := make(map[*invql.Collection]*invql.Collection)
	keys := make(map[*invql.CollectionKey]*invql.CollectionKey)
	guardKey := func(k *invql.CollectionKey, owner *invql.Collection, policy ReadPolicy) *invql.CollectionKey {
		if k == nil {
			return nil
		}
		if nk, ok := keys[k]; ok {
			return nk
		}
		nk := *k
		nk.Collection = owner
		if policy != nil {
			nk.Read = Guard(owner, policy, k.Read, opts...)
			nk.ReadMany = GuardMany(owner, policy, k.ReadMany, opts...)
		}
		keys[k] = &nk
		return &nk
	}
	policies := make(map[*invql.Collection]ReadPolicy)
	for _, c := range inv.Collections() {
		nc := *c
		policies[c] = policyOf(c)
		nc.PrimaryKey = guardKey(c.PrimaryKey, &nc, policies[c])
		clones[c] = &nc
		g.collections = append(g.collections, &nc)
	}
	for _, r := range inv.Relations() {
		nr := *r
		if nt, ok := clones[r.TailCollection]; ok {
			nr.TailCollection = nt
		}
		if head := r.HeadCollection(); head != nil {
			if nh, ok := clones[head]; ok {
				nr.HeadCollectionKey = guardKey(r.HeadCollectionKey, nh, policies[head])
			}
		}
		g.relations = append(g.relations, &nr)
	}
	return g
}
