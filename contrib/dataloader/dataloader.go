// Package dataloader provides batch loading helpers for collection keys.
//
// Readers that fetch a batch of rows in one round trip return them in
// storage order; OrderByKeys puts them back in the order of the requested
// keys:
//
//	rows, err := db.QueryContext(ctx, "SELECT ... WHERE id IN (...)", keys...)
//	// ...
//	return dataloader.OrderValues(keys, values, key.KeyFromValue), nil
//
// LoadMany reads several keys through ReadMany when the key provides it,
// falling back to one Read per key.
package dataloader

import (
	"context"
	"errors"

	"github.com/syssam/invql"
)

// ErrNotFound is returned when a row is not found in a batch result.
var ErrNotFound = errors.New("dataloader: row not found")

// KeyFunc extracts a key from a value.
type KeyFunc[K comparable, V any] func(V) K

// OrderByKeys reorders values to match the order of the requested keys.
// Missing values are zero values with ErrNotFound in the matching error slot.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// OrderByKeysNoError is like OrderByKeys but drops the errors. Missing
// values are zero values.
func OrderByKeysNoError[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) []V {
	result, _ := OrderByKeys(keys, values, keyFn)
	return result
}

// GroupByKey groups values by a key function.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderValues reorders rows to match keys, comparing keys by their
// invql.KeyString form. Rows without a key are dropped; missing rows are nil.
func OrderValues(keys []any, rows []invql.Value, keyFromValue func(invql.Value) (any, bool)) []invql.Value {
	strKeys := make([]string, len(keys))
	for i, k := range keys {
		strKeys[i] = invql.KeyString(k)
	}
	keyed := make([]invql.Value, 0, len(rows))
	for _, row := range rows {
		if _, ok := keyFromValue(row); ok {
			keyed = append(keyed, row)
		}
	}
	return OrderByKeysNoError(strKeys, keyed, func(v invql.Value) string {
		k, _ := keyFromValue(v)
		return invql.KeyString(k)
	})
}

// LoadMany reads the rows of keys through key. The result has one element
// per key, nil where the row is absent.
func LoadMany(ctx context.Context, key *invql.CollectionKey, keys []any) ([]invql.Value, error) {
	if key.ReadMany != nil {
		values, err := key.ReadMany(ctx, keys)
		if err != nil {
			return nil, err
		}
		if len(values) != len(keys) {
			return nil, errors.New("dataloader: read many returned a result of the wrong length")
		}
		return values, nil
	}
	if key.Read == nil {
		return nil, errors.New("dataloader: key is not readable")
	}
	values := make([]invql.Value, len(keys))
	for i, k := range keys {
		v, err := key.Read(ctx, k)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
