package invql_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/invql"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := invql.NewNotFoundError("person")
		assert.Equal(t, "invql: person not found", err.Error())
	})

	t.Run("WithID", func(t *testing.T) {
		err := invql.NewNotFoundErrorWithID("person", 7)
		assert.Equal(t, "invql: person not found (key=7)", err.Error())
		assert.Equal(t, "person", err.Label())
		assert.Equal(t, 7, err.ID())
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := invql.NewNotFoundError("post")
		assert.True(t, errors.Is(err, invql.ErrNotFound))
		assert.True(t, invql.IsNotFound(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, invql.IsNotFound(nil))
		assert.False(t, invql.IsNotFound(errors.New("other")))
	})
}

func TestSchemaError(t *testing.T) {
	cause := errors.New("unknown type")
	err := invql.NewSchemaError("person", "address", "field type cannot be resolved", cause)
	assert.Equal(t, "invql: schema error on type person field address: field type cannot be resolved: unknown type", err.Error())
	assert.ErrorIs(t, err, invql.ErrInvalidSchema)
	assert.ErrorIs(t, err, cause)
	assert.True(t, invql.IsSchemaError(fmt.Errorf("build: %w", err)))
	assert.False(t, invql.IsSchemaError(cause))

	assert.Equal(t, "invql: schema error", (&invql.SchemaError{}).Error())
}

func TestConfigError(t *testing.T) {
	err := invql.NewConfigError("node_id_field", "", "name cannot be empty")
	assert.Equal(t, `invql: config error for "node_id_field" (value: ): name cannot be empty`, err.Error())
	assert.ErrorIs(t, err, invql.ErrInvalidConfig)
	assert.True(t, invql.IsConfigError(err))

	err = invql.NewConfigError("collections", nil, "at least one collection is required")
	assert.Equal(t, `invql: config error for "collections": at least one collection is required`, err.Error())
}

func TestQueryError(t *testing.T) {
	cause := errors.New("connection refused")
	err := invql.NewQueryError("person", "read", cause)
	assert.Equal(t, "invql: querying person (read): connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, invql.IsQueryError(fmt.Errorf("resolve: %w", err)))
	assert.False(t, invql.IsQueryError(nil))

	err = invql.NewQueryError("person", "", cause)
	assert.Equal(t, "invql: querying person: connection refused", err.Error())
}

func TestPrivacyError(t *testing.T) {
	err := invql.NewPrivacyError("person", "read", "owner")
	assert.Equal(t, "invql: privacy denied read on person (rule: owner)", err.Error())
	assert.True(t, invql.IsPrivacyError(err))
	assert.False(t, invql.IsPrivacyError(nil))
	assert.Equal(t, "invql: privacy denied read on person", invql.NewPrivacyError("person", "read", "").Error())
}

func TestAggregateError(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		assert.Nil(t, invql.NewAggregateError())
		assert.Nil(t, invql.NewAggregateError(nil, nil))
	})

	t.Run("SingleError", func(t *testing.T) {
		single := errors.New("single error")
		assert.Equal(t, single, invql.NewAggregateError(nil, single, nil))
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err2 := errors.New("error 2")
		err := invql.NewAggregateError(err1, err2)

		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.Contains(t, err.Error(), "error 1")
		assert.Contains(t, err.Error(), "error 2")
		assert.ErrorIs(t, err, err2)
	})
}

func TestSentinelErrors(t *testing.T) {
	for _, err := range []error{invql.ErrNotFound, invql.ErrInvalidSchema, invql.ErrInvalidConfig, invql.ErrInvalidID} {
		assert.Contains(t, err.Error(), "invql: ")
	}
}
