package schema

import (
	"sync"

	"github.com/graphql-go/graphql"

	"github.com/syssam/invql"
)

// ObjectType is a generated output type. It wraps a *graphql.Object and
// keeps the fields in construction order, which the runtime does not.
//
// Fields are computed at most once, on first read, so types can reference
// each other before either is complete.
type ObjectType struct {
	object     *graphql.Object
	source     *invql.ObjectType
	collection *invql.Collection
	node       bool
	fields     func() ([]FieldEntry, error)
}

func newObjectType(cfg graphql.ObjectConfig, source *invql.ObjectType, fields func() ([]FieldEntry, error)) *ObjectType {
	t := &ObjectType{source: source, fields: sync.OnceValues(fields)}
	cfg.Fields = graphql.FieldsThunk(t.fieldMap)
	t.object = graphql.NewObject(cfg)
	return t
}

// Name returns the GraphQL type name.
func (t *ObjectType) Name() string { return t.object.Name() }

// Object returns the runtime object type.
func (t *ObjectType) Object() *graphql.Object { return t.object }

// Source returns the object type the output type was generated from.
func (t *ObjectType) Source() *invql.ObjectType { return t.source }

// Collection returns the collection of the type, or nil for embedded object
// types that belong to no collection.
func (t *ObjectType) Collection() *invql.Collection { return t.collection }

// IsNode reports whether the type has an identity field and implements the
// Node interface.
func (t *ObjectType) IsNode() bool { return t.node }

// Fields returns the fields in construction order.
func (t *ObjectType) Fields() ([]FieldEntry, error) { return t.fields() }

// FieldNames returns the field names in construction order. It returns nil
// if the fields failed to build.
func (t *ObjectType) FieldNames() []string {
	entries, err := t.fields()
	if err != nil {
		return nil
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Field returns the field with the given GraphQL name.
func (t *ObjectType) Field(name string) (*graphql.Field, bool) {
	entries, err := t.fields()
	if err != nil {
		return nil, false
	}
	for _, e := range entries {
		if e.Name == name {
			return e.Field, true
		}
	}
	return nil, false
}

// fieldMap is the runtime fields thunk. Build errors are reported by
// CreateSchema before the runtime reads the fields.
func (t *ObjectType) fieldMap() graphql.Fields {
	entries, err := t.fields()
	if err != nil {
		return graphql.Fields{}
	}
	return fieldsOf(entries)
}

func fieldsOf(entries []FieldEntry) graphql.Fields {
	fields := make(graphql.Fields, len(entries))
	for _, e := range entries {
		f := *e.Field
		f.Name = e.Name
		fields[e.Name] = &f
	}
	return fields
}

// appendEntries appends entries to dst. An entry whose name is already
// present replaces the earlier one in place.
func appendEntries(typeName string, dst []FieldEntry, entries ...FieldEntry) ([]FieldEntry, error) {
next:
	for _, e := range entries {
		if e.Field == nil {
			return nil, invql.NewSchemaError(typeName, e.Name, "field has no definition", nil)
		}
		for i, d := range dst {
			if d.Name == e.Name {
				dst[i] = e
				continue next
			}
		}
		dst = append(dst, e)
	}
	return dst, nil
}
