package schema

import "github.com/graphql-go/graphql"

// newMutationType returns the root mutation type holding the mutation hook
// fields, or nil when the hook contributes none: the runtime rejects object
// types without fields.
func newMutationType(bc *BuildContext) (*ObjectType, error) {
	entries, err := appendEntries("Mutation", nil, bc.config.MutationFieldEntries()...)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return newObjectType(graphql.ObjectConfig{
		Name:        "Mutation",
		Description: "The root mutation type which contains root level fields which mutate data.",
	}, nil, func() ([]FieldEntry, error) {
		return entries, nil
	}), nil
}
