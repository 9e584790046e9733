package globalid_test

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/invql"
	"github.com/syssam/invql/graphql/globalid"
	"github.com/syssam/invql/memory"
)

func newInventory(t *testing.T) (*memory.Store, *invql.Collection, *invql.Collection) {
	t.Helper()
	s := memory.NewStore()
	people, err := s.AddCollection("person", &invql.ObjectType{
		Name: "person",
		Fields: []*invql.Field{
			{Name: "id", Type: invql.TypeInt},
			{Name: "name", Type: invql.TypeString},
		},
	}, "id")
	require.NoError(t, err)
	notes, err := s.AddCollection("note", &invql.ObjectType{
		Name:   "note",
		Fields: []*invql.Field{{Name: "body", Type: invql.TypeString}},
	}, "")
	require.NoError(t, err)
	return s, people, notes
}

func TestSerializeRoundTrip(t *testing.T) {
	t.Parallel()
	s, people, _ := newInventory(t)
	row := people.Type.NewObject(invql.Row{"id": 7, "name": "Alice"})

	id, err := globalid.Serialize(people, row)
	require.NoError(t, err)
	assert.NotContains(t, id, "=")

	c, key, err := globalid.Deserialize(s, id)
	require.NoError(t, err)
	assert.Same(t, people, c)
	assert.Equal(t, "7", invql.KeyString(key))
}

func TestSerializeDeterministic(t *testing.T) {
	t.Parallel()
	_, people, _ := newInventory(t)
	row := invql.Row{"id": 7}

	a, err := globalid.Serialize(people, row)
	require.NoError(t, err)
	b, err := globalid.Serialize(people, row)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := globalid.Serialize(people, invql.Row{"id": 8})
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestSerializeErrors(t *testing.T) {
	t.Parallel()
	_, people, notes := newInventory(t)

	_, err := globalid.Serialize(notes, invql.Row{"body": "x"})
	assert.Error(t, err)

	_, err = globalid.Serialize(people, invql.Row{"name": "no key"})
	assert.Error(t, err)
}

func TestDeserializeErrors(t *testing.T) {
	t.Parallel()
	s, _, _ := newInventory(t)

	tests := []struct {
		name string
		id   string
		want error
	}{
		{name: "not base64", id: "!!!", want: invql.ErrInvalidID},
		{name: "not msgpack array", id: mustEncodeRaw(t, "plain"), want: invql.ErrInvalidID},
		{name: "three parts", id: mustEncodeRaw(t, []any{"person", 1, 2}), want: invql.ErrInvalidID},
		{name: "name not string", id: mustEncodeRaw(t, []any{1, 2}), want: invql.ErrInvalidID},
		{name: "unknown collection", id: mustEncode(t, "ghost", 1), want: invql.ErrNotFound},
		{name: "collection without key", id: mustEncode(t, "note", 1), want: invql.ErrNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := globalid.Deserialize(s, tt.id)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, _, err := globalid.Deserialize(s, mustEncode(t, "ghost", 1))
	var nf *invql.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ghost", nf.ID())
}

func mustEncode(t *testing.T, collection string, key any) string {
	t.Helper()
	id, err := globalid.Encode(collection, key)
	require.NoError(t, err)
	return id
}

// mustEncodeRaw encodes v without the [collection, key] framing.
func mustEncodeRaw(t *testing.T, v any) string {
	t.Helper()
	b, err := msgpack.Marshal(v)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(b)
}
