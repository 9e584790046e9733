package invql

import "slices"

// Type is the abstract type of a field value. It is implemented by Scalar,
// *EnumType, *ListType, *NonNullType and *ObjectType.
type Type interface {
	// TypeName returns a readable name used in error messages.
	TypeName() string
	isType()
}

// Scalar is a primitive field type.
type Scalar uint8

// Scalar types.
const (
	TypeInvalid Scalar = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeUUID
	TypeJSON
)

var scalarNames = [...]string{
	TypeInvalid: "invalid",
	TypeString:  "string",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeBool:    "bool",
	TypeTime:    "time",
	TypeUUID:    "uuid",
	TypeJSON:    "json",
}

// TypeName returns the scalar name.
func (s Scalar) TypeName() string {
	if int(s) < len(scalarNames) {
		return scalarNames[s]
	}
	return "invalid"
}

// String implements fmt.Stringer.
func (s Scalar) String() string { return s.TypeName() }

// ScalarByName returns the scalar with the given name, as written in
// configuration files.
func ScalarByName(name string) (Scalar, bool) {
	switch name {
	case "string", "text":
		return TypeString, true
	case "int", "int64", "integer":
		return TypeInt, true
	case "float", "float64", "number":
		return TypeFloat, true
	case "bool", "boolean":
		return TypeBool, true
	case "time", "datetime":
		return TypeTime, true
	case "uuid":
		return TypeUUID, true
	case "json":
		return TypeJSON, true
	}
	return TypeInvalid, false
}

func (Scalar) isType() {}

// EnumType is a closed set of string values.
type EnumType struct {
	Name   string
	Values []string
}

// TypeName returns the enum name.
func (e *EnumType) TypeName() string { return e.Name }

// Has reports whether v is one of the enum values.
func (e *EnumType) Has(v string) bool { return slices.Contains(e.Values, v) }

func (*EnumType) isType() {}

// ListType is a list of values of the element type.
type ListType struct {
	Elem Type
}

// TypeName returns "[elem]".
func (l *ListType) TypeName() string { return "[" + typeName(l.Elem) + "]" }

func (*ListType) isType() {}

// NonNullType marks a value that is always present.
type NonNullType struct {
	Base Type
}

// TypeName returns "base!".
func (n *NonNullType) TypeName() string { return typeName(n.Base) + "!" }

func (*NonNullType) isType() {}

// ListOf returns a list type of elem.
func ListOf(elem Type) *ListType { return &ListType{Elem: elem} }

// NonNull returns a non-null type of base.
func NonNull(base Type) *NonNullType { return &NonNullType{Base: base} }

func typeName(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.TypeName()
}
