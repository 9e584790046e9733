// Package memory provides an in-memory inventory. Every collection with a
// primary key gets Read and ReadMany implementations backed by the store, so
// a schema built from the store can be queried right away.
//
//	s := memory.NewStore()
//	people, _ := s.AddCollection("person", personType, "id")
//	posts, _ := s.AddCollection("post", postType, "id")
//	s.AddRelation("author", posts, people, "author_id")
//	s.Insert(people, invql.Row{"id": 7, "name": "Alice"})
package memory

import (
	"context"
	"fmt"
	"io"
	"maps"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/syssam/invql"
)

// Store is an in-memory inventory holding rows. It is safe for concurrent
// use; collections and relations must be added before a schema is built.
type Store struct {
	mu          sync.RWMutex
	collections []*invql.Collection
	relations   []*invql.Relation
	tables      map[*invql.Collection]*table
	entropy     io.Reader
}

// table holds the rows of one collection in insertion order.
type table struct {
	keyField string
	rows     map[string]*invql.Object
	order    []string
}

// Option configures a Store.
type Option func(*Store)

// WithEntropy sets the entropy source of generated ids.
func WithEntropy(r io.Reader) Option {
	return func(s *Store) {
		s.entropy = r
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &Store{
		tables:  make(map[*invql.Collection]*table),
		entropy: ulid.Monotonic(src, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Collections implements invql.Inventory.
func (s *Store) Collections() []*invql.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*invql.Collection(nil), s.collections...)
}

// Relations implements invql.Inventory.
func (s *Store) Relations() []*invql.Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*invql.Relation(nil), s.relations...)
}

// AddCollection adds a collection of rows of typ. When keyField is not
// empty, the field becomes the primary key of the collection.
func (s *Store) AddCollection(name string, typ *invql.ObjectType, keyField string) (*invql.Collection, error) {
	if name == "" {
		return nil, invql.NewConfigError("collection", name, "collection name cannot be empty")
	}
	if typ == nil {
		return nil, invql.NewConfigError("collection", name, "collection has no type")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.collections {
		if c.Name == name {
			return nil, invql.NewConfigError("collection", name, "duplicate collection name")
		}
	}
	c := &invql.Collection{Name: name, Description: typ.Description, Type: typ}
	t := &table{keyField: keyField, rows: make(map[string]*invql.Object)}
	if keyField != "" {
		f, ok := typ.Field(keyField)
		if !ok {
			return nil, invql.NewConfigError("primary_key", keyField, fmt.Sprintf("collection %q has no such field", name))
		}
		c.PrimaryKey = &invql.CollectionKey{
			Collection:   c,
			Name:         keyField,
			Type:         baseType(f.Type),
			KeyFromValue: fieldKey(keyField),
			Read: func(_ context.Context, key any) (invql.Value, error) {
				if o, ok := s.Get(c, key); ok {
					return o, nil
				}
				return nil, nil
			},
			ReadMany: func(_ context.Context, keys []any) ([]invql.Value, error) {
				return s.getMany(c, keys), nil
			},
		}
	}
	s.collections = append(s.collections, c)
	s.tables[c] = t
	return c, nil
}

// AddRelation adds a relation from tail to head: the tailField of a tail row
// holds the primary key of its head row.
func (s *Store) AddRelation(name string, tail, head *invql.Collection, tailField string) (*invql.Relation, error) {
	if head.PrimaryKey == nil {
		return nil, invql.NewConfigError("relation", name, fmt.Sprintf("head collection %q has no primary key", head.Name))
	}
	if _, ok := tail.Type.Field(tailField); !ok {
		return nil, invql.NewConfigError("relation", name, fmt.Sprintf("collection %q has no field %q", tail.Name, tailField))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[tail] == nil || s.tables[head] == nil {
		return nil, invql.NewConfigError("relation", name, "collection does not belong to the store")
	}
	r := &invql.Relation{
		Name:              name,
		TailCollection:    tail,
		HeadCollectionKey: head.PrimaryKey,
		HeadKeyFromTailValue: func(v invql.Value) any {
			key, _ := v.Get(tailField)
			return key
		},
	}
	s.relations = append(s.relations, r)
	return r, nil
}

// Insert adds a row to c and returns it as a typed object. A missing string
// primary key is generated.
func (s *Store) Insert(c *invql.Collection, row invql.Row) (*invql.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[c]
	if t == nil {
		return nil, invql.NewNotFoundErrorWithID("collection", c.Name)
	}
	values := maps.Clone(row)
	if values == nil {
		values = invql.Row{}
	}
	var id string
	switch {
	case t.keyField == "":
		id = s.newID()
	default:
		key, ok := values[t.keyField]
		if !ok || key == nil {
			if c.PrimaryKey.Type != invql.TypeString {
				return nil, fmt.Errorf("memory: insert into %s: missing primary key %q", c.Name, t.keyField)
			}
			key = s.newID()
			values[t.keyField] = key
		}
		id = invql.KeyString(key)
		if _, exists := t.rows[id]; exists {
			return nil, fmt.Errorf("memory: insert into %s: duplicate primary key %v", c.Name, key)
		}
	}
	o := c.Type.NewObject(values)
	t.rows[id] = o
	t.order = append(t.order, id)
	return o, nil
}

// Get returns the row of c with the given primary key.
func (s *Store) Get(c *invql.Collection, key any) (*invql.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.tables[c]
	if t == nil || t.keyField == "" {
		return nil, false
	}
	o, ok := t.rows[invql.KeyString(key)]
	return o, ok
}

func (s *Store) getMany(c *invql.Collection, keys []any) []invql.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make([]invql.Value, len(keys))
	t := s.tables[c]
	if t == nil {
		return values
	}
	for i, key := range keys {
		if o, ok := t.rows[invql.KeyString(key)]; ok {
			values[i] = o
		}
	}
	return values
}

// All returns the rows of c in insertion order.
func (s *Store) All(c *invql.Collection) []*invql.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.tables[c]
	if t == nil {
		return nil
	}
	rows := make([]*invql.Object, len(t.order))
	for i, id := range t.order {
		rows[i] = t.rows[id]
	}
	return rows
}

// Len returns the number of rows of c.
func (s *Store) Len(c *invql.Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.tables[c]; t != nil {
		return len(t.order)
	}
	return 0
}

func fieldKey(field string) func(invql.Value) (any, bool) {
	return func(v invql.Value) (any, bool) {
		key, ok := v.Get(field)
		return key, ok && key != nil
	}
}

func baseType(t invql.Type) invql.Type {
	if nn, ok := t.(*invql.NonNullType); ok {
		return baseType(nn.Base)
	}
	return t
}

var _ invql.Inventory = (*Store)(nil)
