package schema

import (
	"context"
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/syssam/invql"
	"github.com/syssam/invql/contrib/dataloader"
	"github.com/syssam/invql/graphql/globalid"
	"github.com/syssam/invql/internal/ctxlog"
)

func newNodeInterface(bc *BuildContext) *graphql.Interface {
	return graphql.NewInterface(graphql.InterfaceConfig{
		Name:        "Node",
		Description: "An object with a globally unique identifier.",
		Fields: graphql.Fields{
			bc.NodeIDFieldName(): &graphql.Field{
				Description: nodeIDDescription,
				Type:        graphql.NewNonNull(graphql.ID),
			},
		},
	})
}

// logUnresolved records why id resolved to absence.
func logUnresolved(ctx context.Context, id string, err error) {
	logger := ctxlog.FromContext(ctx)
	var nf *invql.NotFoundError
	if errors.As(err, &nf) {
		logger.DebugContext(ctx, "invql: node id names an unknown "+nf.Label(), "id", id, "name", nf.ID())
		return
	}
	logger.DebugContext(ctx, "invql: malformed node id", "id", id, "error", err)
}

// readNode reads the row identified by id. Malformed and unknown ids, and
// collections whose primary key cannot be read, resolve to absence.
func readNode(ctx context.Context, inv invql.Inventory, id string) (any, error) {
	c, key, err := globalid.Deserialize(inv, id)
	if err != nil {
		logUnresolved(ctx, id, err)
		return nil, nil
	}
	if !c.PrimaryKey.Readable() {
		return nil, nil
	}
	v, err := c.PrimaryKey.Read(ctx, key)
	if err != nil {
		return nil, invql.NewQueryError(c.Name, "read", err)
	}
	if invql.IsAbsent(v) {
		return nil, nil
	}
	return v, nil
}

// readNodes reads the rows of ids, batching the keys of each collection.
// The result has one element per id, nil where the row is absent.
func readNodes(ctx context.Context, inv invql.Inventory, ids []string) ([]any, error) {
	type ref struct {
		index      int
		collection *invql.Collection
		key        any
	}
	var refs []ref
	for i, id := range ids {
		c, key, err := globalid.Deserialize(inv, id)
		if err != nil {
			logUnresolved(ctx, id, err)
			continue
		}
		if !c.PrimaryKey.Readable() {
			continue
		}
		refs = append(refs, ref{index: i, collection: c, key: key})
	}
	results := make([]any, len(ids))
	groups := dataloader.GroupByKey(refs, func(r ref) *invql.Collection { return r.collection })
	for c, group := range groups {
		keys := make([]any, len(group))
		for i, r := range group {
			keys[i] = r.key
		}
		values, err := dataloader.LoadMany(ctx, c.PrimaryKey, keys)
		if err != nil {
			return nil, invql.NewQueryError(c.Name, "read many", err)
		}
		for i, r := range group {
			if !invql.IsAbsent(values[i]) {
				results[r.index] = values[i]
			}
		}
	}
	return results, nil
}
