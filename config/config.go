// Package config loads an inventory description from YAML and opens it
// as an in-memory store or a database catalog.
//
//	addr: ":8080"
//	node_id_field: nodeId
//	database:
//	  driver: postgres
//	  dsn: postgres://localhost/blog?sslmode=disable
//	enums:
//	  post_status: [draft, published]
//	collections:
//	  - name: person
//	    primary_key: id
//	    fields:
//	      - {name: id, type: "int!"}
//	      - {name: name, type: string}
//	    privacy: [deny_if_no_viewer, "owner:id", deny]
//	  - name: post
//	    primary_key: id
//	    fields:
//	      - {name: id, type: "int!"}
//	      - {name: status, type: post_status}
//	      - {name: author_id, type: int}
//	relations:
//	  - {name: author, tail: post, head: person, field: author_id}
//
// Without a database driver, collections are held in memory and seeded
// with their rows.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/invql"
	"github.com/syssam/invql/graphql/schema"
)

// Environment variables overriding file settings.
const (
	EnvAddr        = "INVQL_ADDR"
	EnvNodeIDField = "INVQL_NODE_ID_FIELD"
	EnvDriver      = "INVQL_DRIVER"
	EnvDSN         = "INVQL_DSN"
	EnvLogLevel    = "INVQL_LOG_LEVEL"
)

type (
	// Config is the root of a configuration file.
	Config struct {
		Addr        string              `yaml:"addr,omitempty"`
		NodeIDField string              `yaml:"node_id_field,omitempty"`
		LogLevel    string              `yaml:"log_level,omitempty"`
		Database    Database            `yaml:"database,omitempty"`
		Privacy     Privacy             `yaml:"privacy,omitempty"`
		Enums       map[string][]string `yaml:"enums,omitempty"`
		Types       []Type              `yaml:"types,omitempty"`
		Collections []Collection        `yaml:"collections"`
		Relations   []Relation          `yaml:"relations,omitempty"`
	}

	// Database selects the storage of the collections. An empty driver
	// keeps them in memory.
	Database struct {
		Driver        string        `yaml:"driver,omitempty"`
		DSN           string        `yaml:"dsn,omitempty"`
		SlowThreshold time.Duration `yaml:"slow_threshold,omitempty"`
		Debug         bool          `yaml:"debug,omitempty"`
		// ViewerVar is a session variable set to the viewer's ID before
		// every read.
		ViewerVar string `yaml:"viewer_var,omitempty"`
	}

	// Privacy configures how policies treat denied rows and where the
	// viewer comes from.
	Privacy struct {
		Strict bool `yaml:"strict,omitempty"`
		// ViewerHeaders trusts the viewer headers of incoming requests.
		// Set it only behind an authenticating proxy.
		ViewerHeaders bool `yaml:"viewer_headers,omitempty"`
	}

	// Type is a named object type that is not a collection.
	Type struct {
		Name        string  `yaml:"name"`
		Description string  `yaml:"description,omitempty"`
		Fields      []Field `yaml:"fields"`
	}

	// Collection is a collection and, for databases, the table behind it.
	Collection struct {
		Name        string           `yaml:"name"`
		Description string           `yaml:"description,omitempty"`
		PrimaryKey  string           `yaml:"primary_key,omitempty"`
		Fields      []Field          `yaml:"fields"`
		Privacy     []string         `yaml:"privacy,omitempty"`
		Rows        []map[string]any `yaml:"rows,omitempty"`
	}

	// Field is a typed field. Types are written as scalar, enum or object
	// type names with GraphQL list and non-null markers, like "[string!]!".
	Field struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description,omitempty"`
		Type        string `yaml:"type"`
	}

	// Relation links the field of a tail collection to the primary key of
	// a head collection.
	Relation struct {
		Name  string `yaml:"name"`
		Tail  string `yaml:"tail"`
		Head  string `yaml:"head"`
		Field string `yaml:"field"`
	}
)

// Default returns the configuration used for missing settings.
func Default() *Config {
	return &Config{
		Addr:        ":8080",
		NodeIDField: schema.DefaultNodeIDFieldName,
		LogLevel:    "info",
		Database: Database{
			SlowThreshold: 200 * time.Millisecond,
		},
	}
}

// Load reads the file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	c.ApplyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML document on top of Default. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("%w: %w", invql.ErrInvalidConfig, err)
	}
	return c, nil
}

// ApplyEnv overrides settings from environment variables looked up with
// lookup. Blank values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	get(EnvAddr, &c.Addr)
	get(EnvNodeIDField, &c.NodeIDField)
	get(EnvDriver, &c.Database.Driver)
	get(EnvDSN, &c.Database.DSN)
	get(EnvLogLevel, &c.LogLevel)
}

// Validate checks the settings that can be checked without building the
// inventory. All failures are reported together.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Driver != "" && c.Database.DSN == "" {
		errs = append(errs, invql.NewConfigError("database.dsn", "", fmt.Sprintf("driver %q requires a dsn", c.Database.Driver)))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Collections) == 0 {
		errs = append(errs, invql.NewConfigError("collections", nil, "at least one collection is required"))
	}
	for _, col := range c.Collections {
		if c.Database.Driver != "" && len(col.Rows) > 0 {
			errs = append(errs, invql.NewConfigError("rows", col.Name, "rows can only seed in-memory collections"))
		}
	}
	return invql.NewAggregateError(errs...)
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, invql.NewConfigError("log_level", c.LogLevel, err.Error())
	}
	return l, nil
}

// SchemaOptions returns the schema options of the configuration.
func (c *Config) SchemaOptions(logger *slog.Logger) []schema.Option {
	opts := []schema.Option{schema.WithNodeIDFieldName(c.NodeIDField)}
	if logger != nil {
		opts = append(opts, schema.WithLogger(logger))
	}
	return opts
}
