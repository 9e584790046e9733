package schema

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/syssam/invql"
	"github.com/syssam/invql/graphql/globalid"
	"github.com/syssam/invql/graphql/naming"
	"github.com/syssam/invql/internal/memo"
)

const nodeIDDescription = "A globally unique identifier. Can be used in various places throughout the system to identify this single value."

// collectionType is set in init: its constructor reaches it again through
// relation fields.
var collectionType func(*BuildContext, *invql.Collection) *ObjectType

func init() {
	collectionType = memo.Memoize2Named("collection type", newCollectionType)
}

// CollectionType returns the output type of collection c. Within one build
// context every call for the same collection returns the same instance.
func CollectionType(bc *BuildContext, c *invql.Collection) *ObjectType {
	return collectionType(bc, c)
}

// newCollectionType returns a shell whose fields are built on first read.
// It must not request other collection types eagerly.
func newCollectionType(bc *BuildContext, c *invql.Collection) *ObjectType {
	src := c.Type
	cfg := graphql.ObjectConfig{
		Name:        naming.Type(src.Name),
		Description: c.Description,
		IsTypeOf: func(p graphql.IsTypeOfParams) bool {
			return src.Is(p.Value)
		},
	}
	if c.PrimaryKey != nil {
		cfg.Interfaces = []*graphql.Interface{bc.Node()}
	}
	t := newObjectType(cfg, src, func() ([]FieldEntry, error) {
		return collectionFields(bc, c)
	})
	t.collection = c
	t.node = c.PrimaryKey != nil
	return t
}

// collectionFields builds the fields of a collection type in order: the
// identity field, the intrinsic fields, the hook fields and the many-to-one
// relation fields.
func collectionFields(bc *BuildContext, c *invql.Collection) ([]FieldEntry, error) {
	typeName := naming.Type(c.Type.Name)
	var entries []FieldEntry
	if c.PrimaryKey != nil {
		entries = append(entries, FieldEntry{
			Name: bc.NodeIDFieldName(),
			Field: &graphql.Field{
				Description: nodeIDDescription,
				Type:        graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					v, ok := valueOf(p.Source)
					if !ok {
						return nil, fmt.Errorf("invql: %s: unexpected source %T", typeName, p.Source)
					}
					return globalid.Serialize(c, v)
				},
			},
		})
	}
	intrinsic, err := intrinsicFields(bc, c.Type)
	if err != nil {
		return nil, err
	}
	if entries, err = appendEntries(typeName, entries, intrinsic...); err != nil {
		return nil, err
	}
	if entries, err = appendEntries(typeName, entries, bc.config.ObjectTypeFieldEntries(c.Type)...); err != nil {
		return nil, err
	}
	for _, r := range invql.TailRelations(bc.inventory, c) {
		if !r.HeadCollectionKey.Readable() {
			continue
		}
		if entries, err = appendEntries(typeName, entries, relationField(bc, typeName, r)); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// intrinsicFields returns one field per declared field of t, in order.
func intrinsicFields(bc *BuildContext, t *invql.ObjectType) ([]FieldEntry, error) {
	entries := make([]FieldEntry, 0, len(t.Fields))
	for _, f := range t.Fields {
		typ, err := OutputType(bc, f.Type, true)
		if err != nil {
			return nil, invql.NewSchemaError(naming.Type(t.Name), f.Name, "cannot resolve output type", err)
		}
		entries = append(entries, FieldEntry{
			Name: naming.Field(f.Name),
			Field: &graphql.Field{
				Description: f.Description,
				Type:        typ,
				Resolve:     valueResolver(f.Name),
			},
		})
	}
	return entries, nil
}

func valueResolver(name string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		v, ok := valueOf(p.Source)
		if !ok {
			return nil, nil
		}
		x, _ := v.Get(name)
		return x, nil
	}
}

// valueOf returns the row value container of a resolver source.
func valueOf(src any) (invql.Value, bool) {
	switch v := src.(type) {
	case *invql.Object:
		return v, v != nil
	case invql.Value:
		return v, v != nil
	case map[string]any:
		return invql.Row(v), true
	}
	return nil, false
}
