package invql

import "reflect"

type (
	// ObjectType describes the shape of a row value.
	ObjectType struct {
		// Name is the raw type name.
		Name string
		// Description is copied to generated output types.
		Description string
		// Fields in declaration order. The order fixes the output field order.
		Fields []*Field
		// IsTypeOf reports whether a value belongs to this type. When nil,
		// a value belongs to the type iff it is an *Object of this type.
		IsTypeOf func(value any) bool
	}

	// Field is a single named, typed member of an object type.
	Field struct {
		Name        string
		Description string
		Type        Type
	}

	// Value is a row value container. Field values are looked up by their
	// raw field name.
	Value interface {
		Get(field string) (any, bool)
	}

	// Row is a Value backed by a plain map.
	Row map[string]any

	// Object is a Value that knows its object type.
	Object struct {
		Type   *ObjectType
		Values Row
	}
)

// TypeName returns the object type name.
func (t *ObjectType) TypeName() string { return t.Name }

func (*ObjectType) isType() {}

// Is evaluates the membership predicate of the type.
func (t *ObjectType) Is(value any) bool {
	if t.IsTypeOf != nil {
		return t.IsTypeOf(value)
	}
	o, ok := value.(*Object)
	return ok && o != nil && o.Type == t
}

// Field returns the field with the given raw name.
func (t *ObjectType) Field(name string) (*Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// NewObject returns a typed row of t holding values.
func (t *ObjectType) NewObject(values Row) *Object {
	if values == nil {
		values = Row{}
	}
	return &Object{Type: t, Values: values}
}

// Get returns the value of the named field.
func (r Row) Get(field string) (any, bool) {
	v, ok := r[field]
	return v, ok
}

// Get returns the value of the named field.
func (o *Object) Get(field string) (any, bool) {
	if o == nil {
		return nil, false
	}
	return o.Values.Get(field)
}

// IsAbsent reports whether v holds no row: a nil interface, or a nil
// pointer or map stored in a non-nil interface.
func IsAbsent(v Value) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map:
		return rv.IsNil()
	}
	return false
}

var (
	_ Type  = (*ObjectType)(nil)
	_ Value = Row(nil)
	_ Value = (*Object)(nil)
)
