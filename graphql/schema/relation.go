package schema

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/syssam/invql"
	"github.com/syssam/invql/graphql/naming"
	"github.com/syssam/invql/internal/ctxlog"
)

// RelationFieldName returns the name of the many-to-one field of r.
func RelationFieldName(r *invql.Relation) string {
	return naming.Field(r.HeadCollection().Type.Name + "-by-" + r.Name)
}

// relationField returns the many-to-one field for r on its tail type. The
// head type is requested through the memoizer, so cycles between
// collections resolve to the shells already cached.
//
// The read starts when the field is resolved and the resolver returns a
// thunk waiting for it, so sibling reads of one operation overlap.
func relationField(bc *BuildContext, tailTypeName string, r *invql.Relation) FieldEntry {
	key := r.HeadCollectionKey
	head := CollectionType(bc, key.Collection)
	return FieldEntry{
		Name: RelationFieldName(r),
		Field: &graphql.Field{
			Description: fmt.Sprintf("Reads a single `%s` that is related to this `%s`.", head.Name(), tailTypeName),
			Type:        head.Object(),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				v, ok := valueOf(p.Source)
				if !ok {
					return nil, nil
				}
				ctx := p.Context
				if ctx == nil {
					ctx = context.Background()
				}
				type result struct {
					v   any
					err error
				}
				ch := make(chan result, 1)
				go func() {
					head, err := readHead(ctx, r, v)
					ch <- result{head, err}
				}()
				return func() (any, error) {
					res := <-ch
					return res.v, res.err
				}, nil
			},
		},
	}
}

// readHead reads the head row of tail. A missing key or a missing row is
// absence, not an error.
func readHead(ctx context.Context, r *invql.Relation, tail invql.Value) (any, error) {
	if r.HeadKeyFromTailValue == nil {
		return nil, nil
	}
	key := r.HeadKeyFromTailValue(tail)
	if key == nil {
		return nil, nil
	}
	head, err := r.HeadCollectionKey.Read(ctx, key)
	if err != nil {
		ctxlog.FromContext(ctx).WarnContext(ctx, "invql: relation read failed",
			"relation", r.Name, "collection", r.HeadCollection().Name, "error", err)
		return nil, invql.NewQueryError(r.HeadCollection().Name, "read", err)
	}
	if invql.IsAbsent(head) {
		return nil, nil
	}
	return head, nil
}
