package schema

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/syssam/invql"
	"github.com/syssam/invql/graphql/naming"
	"github.com/syssam/invql/internal/memo"
)

// OutputType resolves an abstract field type to a runtime output type.
//
// Declared non-null types always resolve to non-null output types. When
// nullable is false, other types are wrapped as non-null too. List elements
// keep their declared nullability. Object types resolve to the type of the
// collection holding them, or to an embedded object type when no collection
// does.
func OutputType(bc *BuildContext, t invql.Type, nullable bool) (graphql.Output, error) {
	if nn, ok := t.(*invql.NonNullType); ok {
		base, err := OutputType(bc, nn.Base, true)
		if err != nil {
			return nil, err
		}
		return graphql.NewNonNull(base), nil
	}
	typ, err := outputType(bc, t)
	if err != nil {
		return nil, err
	}
	if !nullable {
		return graphql.NewNonNull(typ), nil
	}
	return typ, nil
}

func outputType(bc *BuildContext, t invql.Type) (graphql.Output, error) {
	switch t := t.(type) {
	case invql.Scalar:
		s, err := scalarType(bc, t)
		if err != nil {
			return nil, err
		}
		return s, nil
	case *invql.EnumType:
		if len(t.Values) == 0 {
			return nil, fmt.Errorf("enum %q has no values", t.Name)
		}
		return enumType(bc, t), nil
	case *invql.ListType:
		elem, err := OutputType(bc, t.Elem, true)
		if err != nil {
			return nil, err
		}
		return graphql.NewList(elem), nil
	case *invql.ObjectType:
		if c, ok := invql.CollectionOf(bc.inventory, t); ok {
			return CollectionType(bc, c).Object(), nil
		}
		return EmbeddedType(bc, t).Object(), nil
	case nil:
		return nil, fmt.Errorf("missing field type")
	default:
		return nil, fmt.Errorf("unsupported field type %s", t.TypeName())
	}
}

func scalarType(bc *BuildContext, s invql.Scalar) (*graphql.Scalar, error) {
	switch s {
	case invql.TypeString:
		return graphql.String, nil
	case invql.TypeInt:
		return graphql.Int, nil
	case invql.TypeFloat:
		return graphql.Float, nil
	case invql.TypeBool:
		return graphql.Boolean, nil
	case invql.TypeTime:
		return graphql.DateTime, nil
	case invql.TypeUUID:
		return bc.uuid, nil
	case invql.TypeJSON:
		return bc.json, nil
	default:
		return nil, fmt.Errorf("unsupported scalar %s", s)
	}
}

// InputType resolves a key type to a runtime input type. Only scalars and
// enums can be used as arguments.
func InputType(bc *BuildContext, t invql.Type) (graphql.Input, error) {
	switch t := t.(type) {
	case *invql.NonNullType:
		return InputType(bc, t.Base)
	case invql.Scalar:
		s, err := scalarType(bc, t)
		if err != nil {
			return nil, err
		}
		return s, nil
	case *invql.EnumType:
		if len(t.Values) == 0 {
			return nil, fmt.Errorf("enum %q has no values", t.Name)
		}
		return enumType(bc, t), nil
	case nil:
		return nil, fmt.Errorf("missing key type")
	default:
		return nil, fmt.Errorf("unsupported key type %s", t.TypeName())
	}
}

var enumType = memo.Memoize2Named("enum type", func(_ *BuildContext, t *invql.EnumType) *graphql.Enum {
	values := make(graphql.EnumValueConfigMap, len(t.Values))
	for _, v := range t.Values {
		values[naming.EnumValue(v)] = &graphql.EnumValueConfig{Value: v}
	}
	return graphql.NewEnum(graphql.EnumConfig{
		Name:   naming.Type(t.Name),
		Values: values,
	})
})

var embeddedType func(*BuildContext, *invql.ObjectType) *ObjectType

func init() {
	embeddedType = memo.Memoize2Named("embedded type", newEmbeddedType)
}

func newEmbeddedType(bc *BuildContext, t *invql.ObjectType) *ObjectType {
	typeName := naming.Type(t.Name)
	et := newObjectType(graphql.ObjectConfig{
		Name:        typeName,
		Description: t.Description,
	}, t, func() ([]FieldEntry, error) {
		if len(t.Fields) == 0 {
			return nil, invql.NewSchemaError(typeName, "", "object type has no fields", nil)
		}
		intrinsic, err := intrinsicFields(bc, t)
		if err != nil {
			return nil, err
		}
		return appendEntries(typeName, nil, intrinsic...)
	})
	bc.embedded = append(bc.embedded, et)
	return et
}

// EmbeddedType returns the output type of an object type that belongs to no
// collection. Embedded types have intrinsic fields only.
func EmbeddedType(bc *BuildContext, t *invql.ObjectType) *ObjectType {
	return embeddedType(bc, t)
}

func newUUIDScalar() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "UUID",
		Description: "A universally unique identifier as defined by RFC 4122.",
		Serialize: func(value any) any {
			switch v := value.(type) {
			case uuid.UUID:
				return v.String()
			case *uuid.UUID:
				if v == nil {
					return nil
				}
				return v.String()
			case [16]byte:
				return uuid.UUID(v).String()
			case []byte:
				u, err := uuid.FromBytes(v)
				if err != nil {
					return nil
				}
				return u.String()
			case string:
				u, err := uuid.Parse(v)
				if err != nil {
					return nil
				}
				return u.String()
			}
			return nil
		},
		ParseValue: func(value any) any {
			s, ok := value.(string)
			if !ok {
				return nil
			}
			u, err := uuid.Parse(s)
			if err != nil {
				return nil
			}
			return u
		},
		ParseLiteral: func(valueAST ast.Value) any {
			s, ok := valueAST.(*ast.StringValue)
			if !ok {
				return nil
			}
			u, err := uuid.Parse(s.Value)
			if err != nil {
				return nil
			}
			return u
		},
	})
}

func newJSONScalar() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "JSON",
		Description: "An arbitrary JSON value.",
		Serialize:   func(value any) any { return value },
		ParseValue:  func(value any) any { return value },
		ParseLiteral: func(valueAST ast.Value) any {
			return literalValue(valueAST)
		},
	})
}

// literalValue converts a GraphQL literal to a plain Go value.
func literalValue(v ast.Value) any {
	switch v := v.(type) {
	case *ast.StringValue:
		return v.Value
	case *ast.EnumValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.IntValue:
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return n
		}
		return nil
	case *ast.FloatValue:
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return f
		}
		return nil
	case *ast.ListValue:
		list := make([]any, len(v.Values))
		for i, e := range v.Values {
			list[i] = literalValue(e)
		}
		return list
	case *ast.ObjectValue:
		obj := make(map[string]any, len(v.Fields))
		for _, f := range v.Fields {
			obj[f.Name.Value] = literalValue(f.Value)
		}
		return obj
	}
	return nil
}
