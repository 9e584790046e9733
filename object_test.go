package invql_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/invql"
)

func TestIsAbsent(t *testing.T) {
	t.Parallel()
	var (
		obj *invql.Object
		row invql.Row
	)
	assert.True(t, invql.IsAbsent(nil))
	assert.True(t, invql.IsAbsent(obj), "typed nil object")
	assert.True(t, invql.IsAbsent(row), "nil row")

	typ := &invql.ObjectType{Name: "person"}
	assert.False(t, invql.IsAbsent(typ.NewObject(invql.Row{"id": 1})))
	assert.False(t, invql.IsAbsent(invql.Row{}))
}
