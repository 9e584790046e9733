// Package naming formats raw inventory names into GraphQL names.
//
// All functions are pure and deterministic. Collisions after formatting are
// not detected here; the GraphQL runtime rejects duplicate type names.
package naming

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// Type formats a raw name as a GraphQL type name.
//
//	naming.Type("person")        // "Person"
//	naming.Type("blog_post")     // "BlogPost"
func Type(raw string) string {
	return inflect.Camelize(raw)
}

// Field formats a raw name as a GraphQL field or argument name.
//
//	naming.Field("author_id")             // "authorId"
//	naming.Field("person-by-author")      // "personByAuthor"
func Field(raw string) string {
	if raw == "" {
		return ""
	}
	return inflect.CamelizeDownFirst(raw)
}

// EnumValue formats a raw enum value as a GraphQL enum value name.
//
//	naming.EnumValue("in-review") // "IN_REVIEW"
func EnumValue(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if i == 0 && unicode.IsDigit(r) {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return upper.String(b.String())
}
