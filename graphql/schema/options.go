package schema

import (
	"log/slog"
	"regexp"

	"github.com/graphql-go/graphql"

	"github.com/syssam/invql"
)

// DefaultNodeIDFieldName is the name of the identity field when none is
// configured.
const DefaultNodeIDFieldName = "__id"

var nameRegexp = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)

type (
	// FieldEntry is a named output field contributed to a generated type.
	FieldEntry struct {
		Name  string
		Field *graphql.Field
	}

	// Config holds the resolved options of one schema build.
	Config struct {
		// NodeIDFieldName names the identity field of identifiable types and
		// the id argument of the node root field.
		NodeIDFieldName string
		// QueryFieldEntries returns extra fields appended to the root query type.
		QueryFieldEntries func() []FieldEntry
		// MutationFieldEntries returns the fields of the root mutation type.
		MutationFieldEntries func() []FieldEntry
		// ObjectTypeFieldEntries returns extra fields for the output type of
		// an object type, placed after its intrinsic fields.
		ObjectTypeFieldEntries func(*invql.ObjectType) []FieldEntry
		// Logger receives build diagnostics.
		Logger *slog.Logger
	}

	// Option configures a schema build.
	Option func(*Config) error
)

// WithNodeIDFieldName sets the identity field name. The name must be a valid
// GraphQL name.
func WithNodeIDFieldName(name string) Option {
	return func(c *Config) error {
		if name == "" {
			return invql.NewConfigError("NodeIDFieldName", name, "node id field name cannot be empty")
		}
		if !nameRegexp.MatchString(name) {
			return invql.NewConfigError("NodeIDFieldName", name, "not a valid GraphQL name")
		}
		c.NodeIDFieldName = name
		return nil
	}
}

// WithQueryFieldEntries sets the hook that contributes extra root query fields.
func WithQueryFieldEntries(f func() []FieldEntry) Option {
	return func(c *Config) error {
		c.QueryFieldEntries = f
		return nil
	}
}

// WithMutationFieldEntries sets the hook that contributes root mutation fields.
func WithMutationFieldEntries(f func() []FieldEntry) Option {
	return func(c *Config) error {
		c.MutationFieldEntries = f
		return nil
	}
}

// WithObjectTypeFieldEntries sets the hook that contributes extra fields to
// generated object types.
func WithObjectTypeFieldEntries(f func(*invql.ObjectType) []FieldEntry) Option {
	return func(c *Config) error {
		c.ObjectTypeFieldEntries = f
		return nil
	}
}

// WithLogger sets the build logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return invql.NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.Logger = l
		return nil
	}
}

// defaults fills unset options. Hooks default to contributing nothing.
func (c *Config) defaults() {
	if c.NodeIDFieldName == "" {
		c.NodeIDFieldName = DefaultNodeIDFieldName
	}
	if c.QueryFieldEntries == nil {
		c.QueryFieldEntries = func() []FieldEntry { return nil }
	}
	if c.MutationFieldEntries == nil {
		c.MutationFieldEntries = func() []FieldEntry { return nil }
	}
	if c.ObjectTypeFieldEntries == nil {
		c.ObjectTypeFieldEntries = func(*invql.ObjectType) []FieldEntry { return nil }
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
