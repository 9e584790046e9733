// Package memo provides identity-stable memoization scoped to an owner value,
// typically a schema build context.
//
// A memoized function returns the same value instance for every call with
// the same owner and key:
//
//	var objectType = memo.Memoize2(func(bc *BuildContext, c *invql.Collection) *ObjectType {
//	    return newObjectType(bc, c)
//	})
//
// Each owner carries its own Cache, so values never leak between owners.
// The cache is not safe for concurrent writers: fill it from one goroutine,
// then share the owner read-only.
package memo

import "fmt"

// Cache holds memoized values. The zero value is not usable; use New.
type Cache struct {
	values   map[entry]any
	building map[entry]struct{}
}

// entry identifies one key of one memoized function.
type entry struct {
	fn  *fnID
	key any
}

// fnID gives every memoized function its own key space.
type fnID struct{ name string }

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		values:   make(map[entry]any),
		building: make(map[entry]struct{}),
	}
}

// Len returns the number of memoized values.
func (c *Cache) Len() int {
	return len(c.values)
}

// Owner is implemented by values that own a memo cache.
type Owner interface {
	MemoCache() *Cache
}

// Memoize2 wraps f so that it runs at most once per (owner, key) pair.
//
// The value returned by f is stored before it is returned, and every later
// call with the same owner and key returns that very value. f must not call
// the memoized function with the same key before returning: constructors of
// self-referencing values return a shell and defer the work that may recurse.
// Such a re-entrant call panics instead of recursing forever.
func Memoize2[C Owner, K comparable, V any](f func(C, K) V) func(C, K) V {
	return Memoize2Named("", f)
}

// Memoize2Named is like Memoize2 with a name used in panic messages.
func Memoize2Named[C Owner, K comparable, V any](name string, f func(C, K) V) func(C, K) V {
	id := &fnID{name: name}
	return func(owner C, key K) V {
		c := owner.MemoCache()
		e := entry{fn: id, key: key}
		if v, ok := c.values[e]; ok {
			return v.(V)
		}
		if _, ok := c.building[e]; ok {
			panic(fmt.Sprintf("memo: recursive construction of %s for key %v", id, key))
		}
		c.building[e] = struct{}{}
		v := f(owner, key)
		delete(c.building, e)
		c.values[e] = v
		return v
	}
}

// String returns the function name.
func (f *fnID) String() string {
	if f.name == "" {
		return "memoized value"
	}
	return f.name
}
