// Package invql describes a data inventory from which a GraphQL schema is
// derived: collections of typed rows, their optional primary keys, and the
// directed relations between them.
//
// # Inventory
//
// An Inventory exposes collections and relations:
//
//	type Inventory interface {
//	    Collections() []*Collection
//	    Relations() []*Relation
//	}
//
// A Collection pairs an ObjectType (the shape of its rows) with an optional
// primary key. A Relation points from a tail collection to a head
// collection's key:
//
//	person := &invql.ObjectType{
//	    Name: "person",
//	    Fields: []*invql.Field{
//	        {Name: "id", Type: invql.NonNull(invql.TypeInt)},
//	        {Name: "name", Type: invql.TypeString},
//	    },
//	}
//
// # Rows
//
// Rows are Values. Row is a plain map; Object is a row tagged with its
// ObjectType, which the default membership predicate of ObjectType checks:
//
//	row := person.NewObject(invql.Row{"id": 7, "name": "Alice"})
//	person.Is(row) // true
//
// # Reads
//
// A CollectionKey with a Read function can load single rows. A nil Value
// with a nil error is an absent row, never an error.
//
// # Implementations
//
// The memory package provides an in-process inventory, and dialect/sql
// provides key readers backed by database/sql. The graphql/schema package
// builds the GraphQL schema.
package invql
