package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/syssam/invql"
	"github.com/syssam/invql/dialect"
	"github.com/syssam/invql/dialect/sql"
	"github.com/syssam/invql/memory"
	"github.com/syssam/invql/privacy"
)

// Inventory is an opened inventory. Exactly one of Store and Catalog is set.
type Inventory struct {
	invql.Inventory
	Store   *memory.Store
	Catalog *sql.Catalog
	Stats   *sql.StatsDriver
	close   func() error
	ping    func(context.Context) error
}

// Ping checks the database connection. In-memory inventories are always
// reachable.
func (i *Inventory) Ping(ctx context.Context) error {
	if i.ping == nil {
		return nil
	}
	return i.ping(ctx)
}

// Close releases the database connection, if any.
func (i *Inventory) Close() error {
	if i.close == nil {
		return nil
	}
	return i.close()
}

// Open builds the inventory described by c. Collections are read from the
// configured database, or held in memory and seeded with their rows.
func (c *Config) Open(logger *slog.Logger) (*Inventory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	types, err := c.objectTypes()
	if err != nil {
		return nil, err
	}
	var inv *Inventory
	if c.Database.Driver == "" {
		inv, err = c.openMemory(types)
	} else {
		inv, err = c.openSQL(types, logger)
	}
	if err != nil {
		return nil, err
	}
	guarded, err := c.guard(inv.Inventory)
	if err != nil {
		_ = inv.Close()
		return nil, err
	}
	inv.Inventory = guarded
	logger.Debug("invql: inventory opened",
		"driver", c.Database.Driver,
		"collections", len(inv.Collections()),
		"relations", len(inv.Relations()),
	)
	return inv, nil
}

// objectTypes returns the object types of the collections, by name.
func (c *Config) objectTypes() (map[string]*invql.ObjectType, error) {
	named := make(map[string]invql.Type)
	declare := func(name string, t invql.Type) error {
		if name == "" {
			return invql.NewConfigError("name", name, "type name cannot be empty")
		}
		if _, ok := invql.ScalarByName(name); ok {
			return invql.NewConfigError("name", name, "type name shadows a scalar")
		}
		if _, ok := named[name]; ok {
			return invql.NewConfigError("name", name, "duplicate type name")
		}
		named[name] = t
		return nil
	}
	for name, values := range c.Enums {
		if len(values) == 0 {
			return nil, invql.NewConfigError("enums", name, "enum has no values")
		}
		if err := declare(name, &invql.EnumType{Name: name, Values: values}); err != nil {
			return nil, err
		}
	}
	pending := make([]struct {
		typ    *invql.ObjectType
		fields []Field
	}, 0, len(c.Types)+len(c.Collections))
	for _, t := range c.Types {
		ot := &invql.ObjectType{Name: t.Name, Description: t.Description}
		if err := declare(t.Name, ot); err != nil {
			return nil, err
		}
		pending = append(pending, struct {
			typ    *invql.ObjectType
			fields []Field
		}{ot, t.Fields})
	}
	collections := make(map[string]*invql.ObjectType, len(c.Collections))
	for _, col := range c.Collections {
		ot := &invql.ObjectType{Name: col.Name, Description: col.Description}
		if err := declare(col.Name, ot); err != nil {
			return nil, err
		}
		collections[col.Name] = ot
		pending = append(pending, struct {
			typ    *invql.ObjectType
			fields []Field
		}{ot, col.Fields})
	}
	for _, p := range pending {
		for _, f := range p.fields {
			ft, err := ParseType(f.Type, named)
			if err != nil {
				return nil, fmt.Errorf("type %s: field %s: %w", p.typ.Name, f.Name, err)
			}
			p.typ.Fields = append(p.typ.Fields, &invql.Field{Name: f.Name, Description: f.Description, Type: ft})
		}
	}
	return collections, nil
}

func (c *Config) openMemory(types map[string]*invql.ObjectType) (*Inventory, error) {
	store := memory.NewStore()
	cols := make(map[string]*invql.Collection, len(c.Collections))
	for _, col := range c.Collections {
		added, err := store.AddCollection(col.Name, types[col.Name], col.PrimaryKey)
		if err != nil {
			return nil, err
		}
		cols[col.Name] = added
	}
	for _, r := range c.Relations {
		tail, head, err := relationEnds(r, cols)
		if err != nil {
			return nil, err
		}
		if _, err := store.AddRelation(r.Name, tail, head, r.Field); err != nil {
			return nil, err
		}
	}
	for _, col := range c.Collections {
		added := cols[col.Name]
		for i, raw := range col.Rows {
			row, err := coerceRow(added.Type, raw)
			if err != nil {
				return nil, fmt.Errorf("collection %s: row %d: %w", col.Name, i, err)
			}
			if _, err := store.Insert(added, row); err != nil {
				return nil, fmt.Errorf("collection %s: row %d: %w", col.Name, i, err)
			}
		}
	}
	return &Inventory{Inventory: store, Store: store}, nil
}

func (c *Config) openSQL(types map[string]*invql.ObjectType, logger *slog.Logger) (*Inventory, error) {
	drv, err := sql.Open(c.Database.Driver, c.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", c.Database.Driver, err)
	}
	stats := sql.NewStatsDriver(drv,
		sql.WithSlowThreshold(c.Database.SlowThreshold),
		sql.WithSlowQueryLog(logger),
	)
	var d dialect.Driver = stats
	if c.Database.Debug {
		d = sql.NewDebugDriver(stats, logger)
	}
	var opts []sql.CatalogOption
	if name := c.Database.ViewerVar; name != "" {
		opts = append(opts, sql.WithSessionVars(func(ctx context.Context) []sql.Var {
			if v := privacy.ViewerFromContext(ctx); v != nil {
				return []sql.Var{{Name: name, Value: v.GetID()}}
			}
			return nil
		}))
	}
	cat := sql.NewCatalog(d, opts...)
	inv := &Inventory{
		Inventory: cat,
		Catalog:   cat,
		Stats:     stats,
		ping:      drv.Ping,
		close: func() error {
			logger.Info("invql: closing database", "driver", c.Database.Driver, "stats", stats.QueryStats().Snapshot())
			return drv.Close()
		},
	}
	cols := make(map[string]*invql.Collection, len(c.Collections))
	for _, col := range c.Collections {
		added, err := cat.AddTable(col.Name, types[col.Name], col.PrimaryKey)
		if err != nil {
			_ = inv.Close()
			return nil, err
		}
		cols[col.Name] = added
	}
	for _, r := range c.Relations {
		tail, head, err := relationEnds(r, cols)
		if err == nil {
			_, err = cat.AddRelation(r.Name, tail, head, r.Field)
		}
		if err != nil {
			_ = inv.Close()
			return nil, err
		}
	}
	return inv, nil
}

func relationEnds(r Relation, cols map[string]*invql.Collection) (*invql.Collection, *invql.Collection, error) {
	tail, ok := cols[r.Tail]
	if !ok {
		return nil, nil, invql.NewConfigError("relation.tail", r.Tail, fmt.Sprintf("relation %q: unknown collection", r.Name))
	}
	head, ok := cols[r.Head]
	if !ok {
		return nil, nil, invql.NewConfigError("relation.head", r.Head, fmt.Sprintf("relation %q: unknown collection", r.Name))
	}
	return tail, head, nil
}

// guard wraps the collections that declare privacy rules.
func (c *Config) guard(inv invql.Inventory) (invql.Inventory, error) {
	policies := make(map[string]privacy.ReadPolicy)
	for _, col := range c.Collections {
		if len(col.Privacy) == 0 {
			continue
		}
		policy, err := privacy.ParsePolicy(col.Privacy)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", col.Name, err)
		}
		policies[col.Name] = policy
	}
	if len(policies) == 0 {
		return inv, nil
	}
	var opts []privacy.GuardOption
	if c.Privacy.Strict {
		opts = append(opts, privacy.WithStrict())
	}
	return privacy.GuardInventory(inv, func(col *invql.Collection) privacy.ReadPolicy {
		return policies[col.Name]
	}, opts...), nil
}

// ParseType parses a field type. Names are looked up as scalars first,
// then in named.
//
//	ParseType("[string!]!", nil) // NonNull(ListOf(NonNull(TypeString)))
func ParseType(s string, named map[string]invql.Type) (invql.Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, invql.NewConfigError("type", s, "type cannot be empty")
	case strings.HasSuffix(s, "!"):
		base, err := ParseType(strings.TrimSuffix(s, "!"), named)
		if err != nil {
			return nil, err
		}
		if _, ok := base.(*invql.NonNullType); ok {
			return nil, invql.NewConfigError("type", s, "duplicate non-null marker")
		}
		return invql.NonNull(base), nil
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		elem, err := ParseType(s[1:len(s)-1], named)
		if err != nil {
			return nil, err
		}
		return invql.ListOf(elem), nil
	}
	if sc, ok := invql.ScalarByName(s); ok {
		return sc, nil
	}
	if t, ok := named[s]; ok {
		return t, nil
	}
	return nil, invql.NewConfigError("type", s, "unknown type")
}

func coerceRow(t *invql.ObjectType, raw map[string]any) (invql.Row, error) {
	row := make(invql.Row, len(raw))
	for name, v := range raw {
		f, ok := t.Field(name)
		if !ok {
			return nil, invql.NewConfigError("rows", name, fmt.Sprintf("type %q has no such field", t.Name))
		}
		cv, err := coerce(f.Type, v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		row[name] = cv
	}
	return row, nil
}

// coerce converts a YAML value to the value representation of t.
func coerce(t invql.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := t.(type) {
	case *invql.NonNullType:
		return coerce(t.Base, v)
	case invql.Scalar:
		if t == invql.TypeTime {
			if s, ok := v.(string); ok {
				return time.Parse(time.RFC3339, s)
			}
		}
	case *invql.EnumType:
		s, ok := v.(string)
		if !ok || !t.Has(s) {
			return nil, invql.NewConfigError("rows", v, fmt.Sprintf("not a value of enum %q", t.Name))
		}
	case *invql.ListType:
		items, ok := v.([]any)
		if !ok {
			return nil, invql.NewConfigError("rows", v, "expected a list")
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := coerce(t.Elem, item)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	case *invql.ObjectType:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, invql.NewConfigError("rows", v, fmt.Sprintf("expected an object of type %q", t.Name))
		}
		row, err := coerceRow(t, m)
		if err != nil {
			return nil, err
		}
		return map[string]any(row), nil
	}
	return v, nil
}
