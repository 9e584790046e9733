package schema

import (
	"github.com/graphql-go/graphql"

	"github.com/syssam/invql"
	"github.com/syssam/invql/internal/memo"
)

// BuildContext is the state of one schema build: the inventory, the resolved
// options and the memo cache that makes every collection map to exactly one
// output type. A BuildContext is created by CreateSchema and is never shared
// between builds.
type BuildContext struct {
	inventory invql.Inventory
	config    Config
	cache     *memo.Cache

	node *graphql.Interface
	uuid *graphql.Scalar
	json *graphql.Scalar

	// embedded collects embedded object types in creation order.
	embedded []*ObjectType
}

// NewBuildContext resolves opts and returns a fresh build context for inv.
func NewBuildContext(inv invql.Inventory, opts ...Option) (*BuildContext, error) {
	var cfg Config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	cfg.defaults()
	bc := &BuildContext{
		inventory: inv,
		config:    cfg,
		cache:     memo.New(),
		uuid:      newUUIDScalar(),
		json:      newJSONScalar(),
	}
	bc.node = newNodeInterface(bc)
	return bc, nil
}

// MemoCache implements memo.Owner.
func (bc *BuildContext) MemoCache() *memo.Cache { return bc.cache }

// Inventory returns the inventory the schema is built from.
func (bc *BuildContext) Inventory() invql.Inventory { return bc.inventory }

// Config returns the resolved options.
func (bc *BuildContext) Config() Config { return bc.config }

// NodeIDFieldName returns the configured identity field name.
func (bc *BuildContext) NodeIDFieldName() string { return bc.config.NodeIDFieldName }

// Node returns the identifiable-object interface of this build.
func (bc *BuildContext) Node() *graphql.Interface { return bc.node }
