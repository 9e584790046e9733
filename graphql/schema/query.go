package schema

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/syssam/invql"
	"github.com/syssam/invql/graphql/naming"
)

// newQueryType returns the root query type. Its fields are, in order: the
// query field re-exposing the root, node, nodes, one lookup field per
// collection with a readable primary key, then the query hook fields.
func newQueryType(bc *BuildContext) *ObjectType {
	var q *ObjectType
	q = newObjectType(graphql.ObjectConfig{
		Name:        "Query",
		Description: "The root query type which gives access points into the data universe.",
	}, nil, func() ([]FieldEntry, error) {
		return queryFields(bc, q)
	})
	return q
}

func queryFields(bc *BuildContext, q *ObjectType) ([]FieldEntry, error) {
	idArg := bc.NodeIDFieldName()
	entries := []FieldEntry{
		{
			Name: "query",
			Field: &graphql.Field{
				Description: "Exposes the root query type nested one level down. This is helpful for Relay 1 which can only query top level fields if they are in a particular form.",
				Type:        graphql.NewNonNull(q.Object()),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if p.Info.RootValue != nil {
						return p.Info.RootValue, nil
					}
					return map[string]any{}, nil
				},
			},
		},
		{
			Name: "node",
			Field: &graphql.Field{
				Description: "Fetches an object given its globally unique identifier.",
				Type:        bc.Node(),
				Args: graphql.FieldConfigArgument{
					idArg: &graphql.ArgumentConfig{
						Description: "The globally unique identifier.",
						Type:        graphql.NewNonNull(graphql.ID),
					},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args[idArg].(string)
					return readNode(p.Context, bc.inventory, id)
				},
			},
		},
		{
			Name: "nodes",
			Field: &graphql.Field{
				Description: "Fetches several objects given their globally unique identifiers. Absent objects are null.",
				Type:        graphql.NewNonNull(graphql.NewList(bc.Node())),
				Args: graphql.FieldConfigArgument{
					"ids": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.ID))),
					},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					raw, _ := p.Args["ids"].([]any)
					ids := make([]string, len(raw))
					for i, v := range raw {
						ids[i], _ = v.(string)
					}
					return readNodes(p.Context, bc.inventory, ids)
				},
			},
		},
	}
	var err error
	for _, c := range bc.inventory.Collections() {
		if !c.PrimaryKey.Readable() {
			continue
		}
		e, kerr := keyLookupField(bc, c)
		if kerr != nil {
			return nil, kerr
		}
		if entries, err = appendEntries(q.Name(), entries, e); err != nil {
			return nil, err
		}
	}
	return appendEntries(q.Name(), entries, bc.config.QueryFieldEntries()...)
}

// keyLookupField returns the root field reading one row of c by primary key.
func keyLookupField(bc *BuildContext, c *invql.Collection) (FieldEntry, error) {
	key := c.PrimaryKey
	t := CollectionType(bc, c)
	argType, err := InputType(bc, key.Type)
	if err != nil {
		return FieldEntry{}, invql.NewSchemaError("Query", key.Name, "cannot resolve key type", err)
	}
	arg := naming.Field(key.Name)
	return FieldEntry{
		Name: naming.Field(c.Type.Name + "-by-" + key.Name),
		Field: &graphql.Field{
			Description: fmt.Sprintf("Reads a single `%s` using its `%s`.", t.Name(), arg),
			Type:        t.Object(),
			Args: graphql.FieldConfigArgument{
				arg: &graphql.ArgumentConfig{Type: graphql.NewNonNull(argType)},
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				v, err := key.Read(p.Context, p.Args[arg])
				if err != nil {
					return nil, invql.NewQueryError(c.Name, "read", err)
				}
				if invql.IsAbsent(v) {
					return nil, nil
				}
				return v, nil
			},
		},
	}, nil
}
