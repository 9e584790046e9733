// Package sdl renders a built schema as GraphQL schema definition language.
//
// Root types come first, then collection types in inventory order, embedded
// object types in creation order, and every other named type sorted by name.
// Fields of generated types keep their construction order.
package sdl

import (
	"bytes"
	"io"
	"slices"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/syssam/invql/graphql/schema"
)

// builtins are declared by every GraphQL implementation.
var builtins = map[string]bool{
	"String":  true,
	"Int":     true,
	"Float":   true,
	"Boolean": true,
	"ID":      true,
}

// Print writes the SDL of s to w.
func Print(w io.Writer, s *schema.Schema) error {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf, formatter.WithIndent("  ")).FormatSchemaDocument(Document(s))
	_, err := w.Write(buf.Bytes())
	return err
}

// String returns the SDL of s.
func String(s *schema.Schema) string {
	var b strings.Builder
	_ = Print(&b, s)
	return b.String()
}

// Document converts s to a schema document.
func Document(s *schema.Schema) *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}
	def := &ast.SchemaDefinition{
		OperationTypes: ast.OperationTypeDefinitionList{
			{Operation: ast.Query, Type: s.Query.Name()},
		},
	}
	generated := []*schema.ObjectType{s.Query}
	if s.Mutation != nil {
		def.OperationTypes = append(def.OperationTypes, &ast.OperationTypeDefinition{
			Operation: ast.Mutation,
			Type:      s.Mutation.Name(),
		})
		generated = append(generated, s.Mutation)
	}
	doc.Schema = ast.SchemaDefinitionList{def}
	generated = append(generated, s.Types...)
	generated = append(generated, s.Embedded...)

	done := make(map[string]bool, len(generated))
	for _, t := range generated {
		doc.Definitions = append(doc.Definitions, generatedDefinition(t))
		done[t.Name()] = true
	}

	typeMap := s.TypeMap()
	names := make([]string, 0, len(typeMap))
	for name := range typeMap {
		if done[name] || builtins[name] || strings.HasPrefix(name, "__") {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if d := definition(typeMap[name]); d != nil {
			doc.Definitions = append(doc.Definitions, d)
		}
	}
	return doc
}

func generatedDefinition(t *schema.ObjectType) *ast.Definition {
	d := &ast.Definition{
		Kind:        ast.Object,
		Name:        t.Name(),
		Description: t.Object().Description(),
	}
	for _, iface := range t.Object().Interfaces() {
		d.Interfaces = append(d.Interfaces, iface.Name())
	}
	entries, _ := t.Fields()
	defs := t.Object().Fields()
	for _, e := range entries {
		if f, ok := defs[e.Name]; ok {
			d.Fields = append(d.Fields, fieldDefinition(f))
		}
	}
	return d
}

func definition(t graphql.Type) *ast.Definition {
	switch t := t.(type) {
	case *graphql.Scalar:
		return &ast.Definition{Kind: ast.Scalar, Name: t.Name(), Description: t.Description()}
	case *graphql.Enum:
		d := &ast.Definition{Kind: ast.Enum, Name: t.Name(), Description: t.Description()}
		for _, v := range t.Values() {
			d.EnumValues = append(d.EnumValues, &ast.EnumValueDefinition{Name: v.Name, Description: v.Description})
		}
		slices.SortFunc(d.EnumValues, func(a, b *ast.EnumValueDefinition) int {
			return strings.Compare(a.Name, b.Name)
		})
		return d
	case *graphql.Interface:
		return &ast.Definition{
			Kind:        ast.Interface,
			Name:        t.Name(),
			Description: t.Description(),
			Fields:      sortedFields(t.Fields()),
		}
	case *graphql.Object:
		d := &ast.Definition{
			Kind:        ast.Object,
			Name:        t.Name(),
			Description: t.Description(),
			Fields:      sortedFields(t.Fields()),
		}
		for _, iface := range t.Interfaces() {
			d.Interfaces = append(d.Interfaces, iface.Name())
		}
		return d
	}
	return nil
}

func sortedFields(defs graphql.FieldDefinitionMap) ast.FieldList {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)
	fields := make(ast.FieldList, 0, len(names))
	for _, name := range names {
		fields = append(fields, fieldDefinition(defs[name]))
	}
	return fields
}

func fieldDefinition(f *graphql.FieldDefinition) *ast.FieldDefinition {
	fd := &ast.FieldDefinition{
		Name:        f.Name,
		Description: f.Description,
		Type:        typeRef(f.Type),
	}
	args := slices.Clone(f.Args)
	slices.SortFunc(args, func(a, b *graphql.Argument) int {
		return strings.Compare(a.Name(), b.Name())
	})
	for _, a := range args {
		fd.Arguments = append(fd.Arguments, &ast.ArgumentDefinition{
			Name:        a.Name(),
			Description: a.Description(),
			Type:        typeRef(a.Type),
		})
	}
	return fd
}

func typeRef(t graphql.Type) *ast.Type {
	switch t := t.(type) {
	case *graphql.NonNull:
		inner := typeRef(t.OfType)
		inner.NonNull = true
		return inner
	case *graphql.List:
		return ast.ListType(typeRef(t.OfType), nil)
	}
	return ast.NamedType(t.Name(), nil)
}
