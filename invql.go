package invql

import (
	"context"
	"fmt"
	"math"
	"strconv"
)

type (
	// Inventory exposes every collection and relation known to the system.
	// An Inventory must not change while a schema is being built from it.
	Inventory interface {
		Collections() []*Collection
		Relations() []*Relation
	}

	// Collection is a named set of uniformly typed rows.
	Collection struct {
		// Name is the raw collection name. It must be unique after formatting.
		Name string
		// Description is copied to the generated output type.
		Description string
		// Type describes the shape of every row of the collection.
		Type *ObjectType
		// PrimaryKey is optional. Collections without one get no identity field.
		PrimaryKey *CollectionKey
	}

	// CollectionKey is a key that uniquely identifies one row of a collection.
	CollectionKey struct {
		// Collection is the collection the key belongs to.
		Collection *Collection
		// Name is the raw key name, usually the name of the key field.
		Name string
		// Type is the abstract type of key values.
		Type Type
		// KeyFromValue extracts the key from a row of the collection.
		KeyFromValue func(Value) (any, bool)
		// Read loads the row with the given key. A nil Read means the key
		// cannot be used for lookups.
		Read ReadFunc
		// ReadMany optionally loads several rows at once.
		ReadMany ReadManyFunc
	}

	// ReadFunc loads a single row by key. A nil Value with a nil error means
	// the row is absent; a typed nil such as (*Object)(nil) counts as absent
	// too (see IsAbsent).
	ReadFunc func(ctx context.Context, key any) (Value, error)

	// ReadManyFunc loads rows for several keys. The result has the same length
	// and order as keys; absent rows are nil.
	ReadManyFunc func(ctx context.Context, keys []any) ([]Value, error)

	// Relation is a directed reference from a tail collection to a head
	// collection: every tail row "has a" head row.
	Relation struct {
		// Name is the raw relation name.
		Name string
		// TailCollection holds the referencing rows.
		TailCollection *Collection
		// HeadCollectionKey is the key of the referenced collection used to
		// look the head row up.
		HeadCollectionKey *CollectionKey
		// HeadKeyFromTailValue derives the head key from a tail row.
		HeadKeyFromTailValue func(Value) any
	}
)

// Readable reports whether the key supports lookups.
func (k *CollectionKey) Readable() bool {
	return k != nil && k.Read != nil
}

// HeadCollection returns the collection the relation points to.
func (r *Relation) HeadCollection() *Collection {
	if r.HeadCollectionKey == nil {
		return nil
	}
	return r.HeadCollectionKey.Collection
}

// CollectionByName returns the collection with the given raw name.
func CollectionByName(inv Inventory, name string) (*Collection, bool) {
	for _, c := range inv.Collections() {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// CollectionOf returns the collection whose rows have the given object type.
func CollectionOf(inv Inventory, t *ObjectType) (*Collection, bool) {
	for _, c := range inv.Collections() {
		if c.Type == t {
			return c, true
		}
	}
	return nil, false
}

// TailRelations returns the relations whose tail is the given collection,
// in inventory order.
func TailRelations(inv Inventory, c *Collection) []*Relation {
	var rels []*Relation
	for _, r := range inv.Relations() {
		if r.TailCollection == c {
			rels = append(rels, r)
		}
	}
	return rels
}

// KeyString returns a canonical string form of a key. Integer keys of
// different widths and integral floats map to the same string, so a key
// decoded from an identifier matches the key it was encoded from.
func KeyString(key any) string {
	switch k := key.(type) {
	case nil:
		return ""
	case string:
		return k
	case []byte:
		return string(k)
	case int:
		return strconv.FormatInt(int64(k), 10)
	case int8:
		return strconv.FormatInt(int64(k), 10)
	case int16:
		return strconv.FormatInt(int64(k), 10)
	case int32:
		return strconv.FormatInt(int64(k), 10)
	case int64:
		return strconv.FormatInt(k, 10)
	case uint:
		return strconv.FormatUint(uint64(k), 10)
	case uint8:
		return strconv.FormatUint(uint64(k), 10)
	case uint16:
		return strconv.FormatUint(uint64(k), 10)
	case uint32:
		return strconv.FormatUint(uint64(k), 10)
	case uint64:
		return strconv.FormatUint(k, 10)
	case float32:
		return floatKey(float64(k))
	case float64:
		return floatKey(k)
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprintf("%v", k)
	}
}

func floatKey(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
