package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/invql"
	"github.com/syssam/invql/dialect"
)

func personType() *invql.ObjectType {
	return &invql.ObjectType{
		Name: "person",
		Fields: []*invql.Field{
			{Name: "id", Type: invql.NonNull(invql.TypeInt)},
			{Name: "name", Type: invql.TypeString},
		},
	}
}

func newMock(t *testing.T, d string) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return OpenDB(d, db), mock
}

func TestSelectByKeys(t *testing.T) {
	t.Parallel()
	tbl := &Table{Name: "app.person", Key: "id", Columns: []string{"id", "name"}}

	query, args := SelectByKeys(dialect.Postgres, tbl, []any{1})
	assert.Equal(t, `SELECT "id", "name" FROM "app"."person" WHERE "id" = $1`, query)
	assert.Equal(t, []any{1}, args)

	query, _ = SelectByKeys(dialect.Postgres, tbl, []any{1, 2})
	assert.Equal(t, `SELECT "id", "name" FROM "app"."person" WHERE "id" IN ($1, $2)`, query)

	query, _ = SelectByKeys(dialect.MySQL, tbl, []any{1, 2})
	assert.Equal(t, "SELECT `id`, `name` FROM `app`.`person` WHERE `id` IN (?, ?)", query)

	query, _ = SelectByKeys(dialect.SQLite, tbl, []any{1})
	assert.Equal(t, `SELECT "id", "name" FROM "app"."person" WHERE "id" = ?`, query)
}

func TestCatalogRead(t *testing.T) {
	t.Parallel()
	drv, mock := newMock(t, dialect.Postgres)
	cat := NewCatalog(drv)
	people, err := cat.AddTable("person", personType(), "id")
	require.NoError(t, err)
	require.True(t, people.PrimaryKey.Readable())
	assert.Equal(t, invql.TypeInt, people.PrimaryKey.Type)

	mock.ExpectQuery(`SELECT "id", "name" FROM "person" WHERE "id" = $1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), []byte("Alice")))
	v, err := people.PrimaryKey.Read(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, people.Type.Is(v))
	name, _ := v.Get("name")
	assert.Equal(t, "Alice", name)
	id, _ := v.Get("id")
	assert.Equal(t, int64(7), id)

	mock.ExpectQuery(`SELECT "id", "name" FROM "person" WHERE "id" = $1`).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	v, err = people.PrimaryKey.Read(context.Background(), 8)
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogReadMany(t *testing.T) {
	t.Parallel()
	drv, mock := newMock(t, dialect.MySQL)
	cat := NewCatalog(drv)
	people, err := cat.AddTable("person", personType(), "id")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT `id`, `name` FROM `person` WHERE `id` IN (?, ?, ?)").
		WithArgs(3, 9, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "Ann").
			AddRow(int64(3), "Cid"))
	values, err := people.PrimaryKey.ReadMany(context.Background(), []any{3, 9, 1})
	require.NoError(t, err)
	require.Len(t, values, 3)
	name, _ := values[0].Get("name")
	assert.Equal(t, "Cid", name)
	assert.Nil(t, values[1])
	name, _ = values[2].Get("name")
	assert.Equal(t, "Ann", name)

	empty, err := people.PrimaryKey.ReadMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogReadError(t *testing.T) {
	t.Parallel()
	drv, mock := newMock(t, dialect.Postgres)
	cat := NewCatalog(drv)
	people, err := cat.AddTable("person", personType(), "id")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT "id", "name" FROM "person" WHERE "id" = $1`).WillReturnError(boom)
	_, err = people.PrimaryKey.Read(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogSessionVars(t *testing.T) {
	t.Parallel()
	drv, mock := newMock(t, dialect.Postgres)
	cat := NewCatalog(drv, WithSessionVars(func(context.Context) []Var {
		return []Var{{Name: "invql.viewer", Value: "o'neil"}}
	}))
	people, err := cat.AddTable("person", personType(), "id")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT set_config($1, $2, true)`).
		WithArgs("invql.viewer", "o'neil").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "id", "name" FROM "person" WHERE "id" = $1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Ann"))
	mock.ExpectCommit()
	_, err = people.PrimaryKey.Read(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRelation(t *testing.T) {
	t.Parallel()
	drv, _ := newMock(t, dialect.SQLite)
	cat := NewCatalog(drv)
	people, err := cat.AddTable("person", personType(), "id")
	require.NoError(t, err)
	posts, err := cat.AddTable("post", &invql.ObjectType{
		Name: "post",
		Fields: []*invql.Field{
			{Name: "id", Type: invql.TypeInt},
			{Name: "author_id", Type: invql.TypeInt},
		},
	}, "id")
	require.NoError(t, err)

	r, err := cat.AddRelation("author", posts, people, "author_id")
	require.NoError(t, err)
	assert.Same(t, people, r.HeadCollection())
	assert.Equal(t, int64(4), r.HeadKeyFromTailValue(invql.Row{"author_id": int64(4)}))
	assert.Len(t, cat.Relations(), 1)
	assert.Len(t, cat.Collections(), 2)

	tbl, ok := cat.Table(posts)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "author_id"}, tbl.Columns)

	_, err = cat.AddRelation("bad", posts, people, "missing")
	assert.True(t, invql.IsConfigError(err))
}

func TestCatalogAddTableErrors(t *testing.T) {
	t.Parallel()
	drv, _ := newMock(t, dialect.Postgres)
	cat := NewCatalog(drv)

	_, err := cat.AddTable("person; DROP TABLE x", personType(), "id")
	assert.True(t, invql.IsConfigError(err))
	_, err = cat.AddTable("person", &invql.ObjectType{Name: "person"}, "")
	assert.True(t, invql.IsConfigError(err))
	_, err = cat.AddTable("person", personType(), "missing")
	assert.True(t, invql.IsConfigError(err))
	_, err = cat.AddTable("person", &invql.ObjectType{
		Name:   "person",
		Fields: []*invql.Field{{Name: "bad column", Type: invql.TypeString}},
	}, "")
	assert.True(t, invql.IsConfigError(err))

	_, err = cat.AddTable("person", personType(), "id")
	require.NoError(t, err)
	_, err = cat.AddTable("person", personType(), "id")
	assert.True(t, invql.IsConfigError(err))
}

func TestConvertColumn(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		typ  invql.Type
		in   any
		want any
	}{
		{"nil", invql.TypeString, nil, nil},
		{"bytes to string", invql.TypeString, []byte("x"), "x"},
		{"int from text", invql.NonNull(invql.TypeInt), []byte("42"), int64(42)},
		{"float from int", invql.TypeFloat, int64(2), float64(2)},
		{"bool from int", invql.TypeBool, int64(1), true},
		{"bool from text", invql.TypeBool, "false", false},
		{"time", invql.TypeTime, ts, ts},
		{"time from text", invql.TypeTime, "2024-05-01T10:00:00Z", ts},
		{"uuid from bytes", invql.TypeUUID, []byte{0x6b, 0xa7, 0xb8, 0x10, 0x9d, 0xad, 0x11, 0xd1, 0x80, 0xb4, 0x00, 0xc0, 0x4f, 0xd4, 0x30, 0xc8}, "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"json", invql.TypeJSON, []byte(`{"a":1}`), map[string]any{"a": float64(1)}},
		{"enum", &invql.EnumType{Name: "s", Values: []string{"a"}}, []byte("a"), "a"},
		{"postgres array", invql.ListOf(invql.TypeInt), []byte("{1,2}"), []any{int64(1), int64(2)}},
		{"json array", invql.ListOf(invql.TypeString), `["a","b"]`, []any{"a", "b"}},
		{"embedded object", &invql.ObjectType{Name: "o"}, `{"k":"v"}`, map[string]any{"k": "v"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := convertColumn(tt.typ, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := convertColumn(invql.TypeInt, "nope")
	assert.Error(t, err)
}
