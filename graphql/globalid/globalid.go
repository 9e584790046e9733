// Package globalid serializes row identities into opaque, globally unique
// identifiers and back.
//
// An identifier encodes the collection name and the primary key of a row as
// a msgpack array, wrapped in unpadded URL-safe base64:
//
//	id, err := globalid.Serialize(people, row)
//	c, key, err := globalid.Deserialize(inv, id)
package globalid

import (
	"encoding/base64"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/invql"
)

var encoding = base64.RawURLEncoding

// Serialize returns the opaque identifier of row, a row of collection c.
// The collection must have a primary key.
func Serialize(c *invql.Collection, row invql.Value) (string, error) {
	if c.PrimaryKey == nil || c.PrimaryKey.KeyFromValue == nil {
		return "", fmt.Errorf("globalid: collection %q has no primary key", c.Name)
	}
	key, ok := c.PrimaryKey.KeyFromValue(row)
	if !ok {
		return "", fmt.Errorf("globalid: row of %q has no value for key %q", c.Name, c.PrimaryKey.Name)
	}
	return Encode(c.Name, key)
}

// Encode returns the identifier for a collection name and key.
func Encode(collection string, key any) (string, error) {
	b, err := msgpack.Marshal([]any{collection, key})
	if err != nil {
		return "", fmt.Errorf("globalid: encode key of %q: %w", collection, err)
	}
	return encoding.EncodeToString(b), nil
}

// Decode splits an identifier into its collection name and key.
func Decode(id string) (string, any, error) {
	b, err := encoding.DecodeString(id)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", invql.ErrInvalidID, err)
	}
	var parts []any
	if err := msgpack.Unmarshal(b, &parts); err != nil {
		return "", nil, fmt.Errorf("%w: %v", invql.ErrInvalidID, err)
	}
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("%w: expected 2 parts, got %d", invql.ErrInvalidID, len(parts))
	}
	name, ok := parts[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("%w: collection name is %T", invql.ErrInvalidID, parts[0])
	}
	return name, parts[1], nil
}

// Deserialize decodes an identifier and resolves its collection in inv.
func Deserialize(inv invql.Inventory, id string) (*invql.Collection, any, error) {
	name, key, err := Decode(id)
	if err != nil {
		return nil, nil, err
	}
	c, ok := invql.CollectionByName(inv, name)
	if !ok || c.PrimaryKey == nil {
		return nil, nil, invql.NewNotFoundErrorWithID("collection", name)
	}
	return c, key, nil
}
