package sql

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/syssam/invql"
	"github.com/syssam/invql/contrib/dataloader"
	"github.com/syssam/invql/dialect"
)

// Catalog is an inventory of database tables. Every table added with a key
// column is readable by key through the catalog's driver.
type Catalog struct {
	drv         dialect.Driver
	vars        func(context.Context) []Var
	mu          sync.RWMutex
	collections []*invql.Collection
	relations   []*invql.Relation
	tables      map[*invql.Collection]*Table
}

// Table describes the table behind a collection. Column names are the raw
// field names of the collection type.
type Table struct {
	Name    string
	Key     string
	Columns []string
	Type    *invql.ObjectType
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithSessionVars sets the function returning the session variables of a
// read. See Driver.Query for how each dialect applies them.
func WithSessionVars(f func(context.Context) []Var) CatalogOption {
	return func(c *Catalog) {
		c.vars = f
	}
}

// NewCatalog returns an empty catalog reading through drv.
func NewCatalog(drv dialect.Driver, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		drv:    drv,
		tables: make(map[*invql.Collection]*Table),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collections implements invql.Inventory.
func (c *Catalog) Collections() []*invql.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*invql.Collection(nil), c.collections...)
}

// Relations implements invql.Inventory.
func (c *Catalog) Relations() []*invql.Relation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*invql.Relation(nil), c.relations...)
}

// Table returns the table behind col.
func (c *Catalog) Table(col *invql.Collection) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[col]
	return t, ok
}

// AddTable adds the table name as a collection of rows of typ. When
// keyColumn is not empty, it becomes the primary key of the collection.
func (c *Catalog) AddTable(name string, typ *invql.ObjectType, keyColumn string) (*invql.Collection, error) {
	if !isValidIdentifier(name) {
		return nil, invql.NewConfigError("table", name, "invalid table name")
	}
	if typ == nil || len(typ.Fields) == 0 {
		return nil, invql.NewConfigError("table", name, "table has no columns")
	}
	t := &Table{Name: name, Key: keyColumn, Type: typ}
	for _, f := range typ.Fields {
		if !isValidIdentifier(f.Name) {
			return nil, invql.NewConfigError("column", f.Name, fmt.Sprintf("invalid column name in table %q", name))
		}
		t.Columns = append(t.Columns, f.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, col := range c.collections {
		if col.Name == name {
			return nil, invql.NewConfigError("table", name, "duplicate table name")
		}
	}
	col := &invql.Collection{Name: name, Description: typ.Description, Type: typ}
	if keyColumn != "" {
		f, ok := typ.Field(keyColumn)
		if !ok {
			return nil, invql.NewConfigError("primary_key", keyColumn, fmt.Sprintf("table %q has no such column", name))
		}
		key := &invql.CollectionKey{
			Collection:   col,
			Name:         keyColumn,
			Type:         baseType(f.Type),
			KeyFromValue: columnKey(keyColumn),
		}
		key.Read = func(ctx context.Context, k any) (invql.Value, error) {
			values, err := c.selectByKeys(ctx, t, []any{k})
			if err != nil || len(values) == 0 {
				return nil, err
			}
			return values[0], nil
		}
		key.ReadMany = func(ctx context.Context, keys []any) ([]invql.Value, error) {
			if len(keys) == 0 {
				return []invql.Value{}, nil
			}
			values, err := c.selectByKeys(ctx, t, keys)
			if err != nil {
				return nil, err
			}
			return dataloader.OrderValues(keys, values, key.KeyFromValue), nil
		}
		col.PrimaryKey = key
	}
	c.collections = append(c.collections, col)
	c.tables[col] = t
	return col, nil
}

// AddRelation adds a relation from tail to head: the tailColumn of a tail
// row holds the primary key of its head row.
func (c *Catalog) AddRelation(name string, tail, head *invql.Collection, tailColumn string) (*invql.Relation, error) {
	if head.PrimaryKey == nil {
		return nil, invql.NewConfigError("relation", name, fmt.Sprintf("head table %q has no primary key", head.Name))
	}
	if _, ok := tail.Type.Field(tailColumn); !ok {
		return nil, invql.NewConfigError("relation", name, fmt.Sprintf("table %q has no column %q", tail.Name, tailColumn))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tables[tail] == nil || c.tables[head] == nil {
		return nil, invql.NewConfigError("relation", name, "table does not belong to the catalog")
	}
	r := &invql.Relation{
		Name:              name,
		TailCollection:    tail,
		HeadCollectionKey: head.PrimaryKey,
		HeadKeyFromTailValue: func(v invql.Value) any {
			k, _ := v.Get(tailColumn)
			return k
		},
	}
	c.relations = append(c.relations, r)
	return r, nil
}

// selectByKeys loads the rows of t whose key is one of keys, in storage order.
func (c *Catalog) selectByKeys(ctx context.Context, t *Table, keys []any) ([]invql.Value, error) {
	if c.vars != nil {
		for _, v := range c.vars(ctx) {
			ctx = WithVar(ctx, v.Name, v.Value)
		}
	}
	query, args := SelectByKeys(c.drv.Dialect(), t, keys)
	var rows Rows
	if err := c.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("dialect/sql: select from %s: %w", t.Name, err)
	}
	defer rows.Close()
	var values []invql.Value
	for rows.Next() {
		row, err := scanRow(&rows, t)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: scan %s: %w", t.Name, err)
		}
		values = append(values, t.Type.NewObject(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: select from %s: %w", t.Name, err)
	}
	return values, nil
}

// SelectByKeys returns the statement and arguments selecting the rows of t
// with the given keys.
//
//	SELECT "id", "name" FROM "person" WHERE "id" IN ($1, $2)
func SelectByKeys(d string, t *Table, keys []any) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, col := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Quote(d, col))
	}
	b.WriteString(" FROM ")
	b.WriteString(Quote(d, t.Name))
	b.WriteString(" WHERE ")
	b.WriteString(Quote(d, t.Key))
	if len(keys) == 1 {
		b.WriteString(" = ")
		b.WriteString(Placeholder(d, 1))
	} else {
		b.WriteString(" IN (")
		for i := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(Placeholder(d, i+1))
		}
		b.WriteString(")")
	}
	return b.String(), append([]any(nil), keys...)
}

// Quote quotes a possibly schema-qualified identifier for dialect d.
func Quote(d, ident string) string {
	q := `"`
	if d == dialect.MySQL {
		q = "`"
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = q + p + q
	}
	return strings.Join(parts, ".")
}

// Placeholder returns the n-th (1-based) bind parameter for dialect d.
func Placeholder(d string, n int) string {
	if d == dialect.Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func scanRow(rows *Rows, t *Table) (invql.Row, error) {
	raw := make([]any, len(t.Columns))
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	row := make(invql.Row, len(raw))
	for i, f := range t.Type.Fields {
		v, err := convertColumn(f.Type, raw[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
		row[f.Name] = v
	}
	return row, nil
}

// convertColumn converts a scanned column to the value representation of t.
// Drivers differ in what they return: MySQL returns text columns as bytes,
// SQLite returns booleans as integers and PostgreSQL returns arrays as text.
func convertColumn(t invql.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := t.(type) {
	case *invql.NonNullType:
		return convertColumn(t.Base, v)
	case invql.Scalar:
		return convertScalar(t, v)
	case *invql.EnumType:
		return text(v), nil
	case *invql.ListType:
		return convertList(t, v)
	case *invql.ObjectType:
		var m map[string]any
		if err := json.Unmarshal(bytesOf(v), &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	return v, nil
}

func convertScalar(s invql.Scalar, v any) (any, error) {
	switch s {
	case invql.TypeString:
		return text(v), nil
	case invql.TypeInt:
		switch v := v.(type) {
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		}
		return strconv.ParseInt(text(v), 10, 64)
	case invql.TypeFloat:
		switch v := v.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		}
		return strconv.ParseFloat(text(v), 64)
	case invql.TypeBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		}
		return strconv.ParseBool(text(v))
	case invql.TypeTime:
		if tm, ok := v.(time.Time); ok {
			return tm, nil
		}
		return parseTime(text(v))
	case invql.TypeUUID:
		if b, ok := v.([]byte); ok && len(b) == 16 {
			id, err := uuid.FromBytes(b)
			if err != nil {
				return nil, err
			}
			return id.String(), nil
		}
		id, err := uuid.Parse(text(v))
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	case invql.TypeJSON:
		var out any
		if err := json.Unmarshal(bytesOf(v), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return v, nil
}

func convertList(t *invql.ListType, v any) (any, error) {
	b := bytesOf(v)
	var elems []any
	if len(b) > 0 && b[0] == '{' {
		var arr pq.StringArray
		if err := arr.Scan(b); err != nil {
			return nil, err
		}
		elems = make([]any, len(arr))
		for i, s := range arr {
			elems[i] = s
		}
	} else if err := json.Unmarshal(b, &elems); err != nil {
		return nil, err
	}
	for i, e := range elems {
		if s, ok := e.(string); ok {
			conv, err := convertColumn(t.Elem, s)
			if err != nil {
				return nil, err
			}
			elems[i] = conv
		}
	}
	return elems, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var tm time.Time
		if tm, err = time.Parse(layout, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, err
}

func text(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return fmt.Sprint(v)
}

func bytesOf(v any) []byte {
	switch v := v.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return []byte(fmt.Sprint(v))
}

func columnKey(column string) func(invql.Value) (any, bool) {
	return func(v invql.Value) (any, bool) {
		k, ok := v.Get(column)
		return k, ok && k != nil
	}
}

func baseType(t invql.Type) invql.Type {
	if nn, ok := t.(*invql.NonNullType); ok {
		return baseType(nn.Base)
	}
	return t
}

var _ invql.Inventory = (*Catalog)(nil)
