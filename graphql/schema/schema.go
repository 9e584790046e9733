// Package schema builds a GraphQL schema from an inventory.
//
// Every collection maps to exactly one output type per build. Types are
// created as shells whose fields are computed on first read, so collections
// can reference each other through relations, cyclically included:
//
//	s, err := schema.CreateSchema(inv,
//	    schema.WithNodeIDFieldName("id"),
//	)
//	if err != nil {
//	    return err
//	}
//	res := s.Do(ctx, `{ personById(id: 7) { name } }`, nil)
package schema

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/syssam/invql"
)

// Schema is a built schema. It is read-only and safe for concurrent use.
type Schema struct {
	graphql.Schema

	// Query is the root query type.
	Query *ObjectType
	// Mutation is the root mutation type, nil when there are no mutations.
	Mutation *ObjectType
	// Types holds the type of every collection, in inventory order.
	Types []*ObjectType
	// Embedded holds the embedded object types, in creation order.
	Embedded []*ObjectType
	// Context is the build context the schema was built with.
	Context *BuildContext
}

// CreateSchema builds a schema for inv. Every collection gets a type, even
// when no root field references it. The build fails, and no schema is
// returned, if any field type cannot be resolved.
func CreateSchema(inv invql.Inventory, opts ...Option) (*Schema, error) {
	bc, err := NewBuildContext(inv, opts...)
	if err != nil {
		return nil, err
	}
	s := &Schema{Context: bc, Query: newQueryType(bc)}
	if s.Mutation, err = newMutationType(bc); err != nil {
		return nil, err
	}
	for _, c := range inv.Collections() {
		if c.Type == nil {
			return nil, invql.NewSchemaError(c.Name, "", "collection has no type", nil)
		}
		s.Types = append(s.Types, CollectionType(bc, c))
	}
	if err := bc.force(s.Query, s.Mutation); err != nil {
		return nil, err
	}
	s.Embedded = bc.embedded

	types := make([]graphql.Type, 0, len(s.Types)+len(s.Embedded))
	for _, t := range s.Types {
		types = append(types, t.Object())
	}
	for _, t := range s.Embedded {
		types = append(types, t.Object())
	}
	cfg := graphql.SchemaConfig{
		Query: s.Query.Object(),
		Types: types,
	}
	if s.Mutation != nil {
		cfg.Mutation = s.Mutation.Object()
	}
	if s.Schema, err = graphql.NewSchema(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", invql.ErrInvalidSchema, err)
	}
	bc.config.Logger.Debug("invql: schema built",
		"collections", len(s.Types),
		"embedded", len(s.Embedded),
		"memoized", bc.cache.Len(),
		"mutation", s.Mutation != nil,
	)
	return s, nil
}

// force computes the fields of the root types and of every generated type,
// including embedded types created while computing fields, and returns the
// first failure.
func (bc *BuildContext) force(roots ...*ObjectType) error {
	for _, t := range roots {
		if t == nil {
			continue
		}
		if _, err := t.Fields(); err != nil {
			return err
		}
	}
	for _, c := range bc.inventory.Collections() {
		if _, err := CollectionType(bc, c).Fields(); err != nil {
			return err
		}
	}
	for i := 0; i < len(bc.embedded); i++ {
		if _, err := bc.embedded[i].Fields(); err != nil {
			return err
		}
	}
	return nil
}

// Request is a GraphQL request as sent over HTTP.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Execute runs req against the schema.
func (s *Schema) Execute(ctx context.Context, req Request) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         s.Schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})
}

// Do executes a GraphQL query against the schema.
func (s *Schema) Do(ctx context.Context, query string, variables map[string]any) *graphql.Result {
	return s.Execute(ctx, Request{Query: query, Variables: variables})
}

// TypeOf returns the output type of collection c.
func (s *Schema) TypeOf(c *invql.Collection) (*ObjectType, bool) {
	for _, t := range s.Types {
		if t.Collection() == c {
			return t, true
		}
	}
	return nil, false
}

// TypeByName returns the generated type with the given GraphQL name.
func (s *Schema) TypeByName(name string) (*ObjectType, bool) {
	for _, t := range s.Types {
		if t.Name() == name {
			return t, true
		}
	}
	for _, t := range s.Embedded {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}
