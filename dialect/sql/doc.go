// Package sql provides a database/sql backed driver and an inventory of
// database tables.
//
// A Catalog maps each table to a collection whose rows have the table's
// columns as fields. Tables with a key column are readable by key, and
// batch reads issue a single IN query:
//
//	drv, err := sql.Open("postgres", dsn)
//	if err != nil {
//	    return err
//	}
//	cat := sql.NewCatalog(sql.NewStatsDriver(drv, sql.WithSlowQueryLog(logger)))
//	people, err := cat.AddTable("person", personType, "id")
//	posts, err := cat.AddTable("post", postType, "id")
//	_, err = cat.AddRelation("author", posts, people, "author_id")
//	s, err := schema.CreateSchema(cat)
//
// # Dialects
//
// Identifiers are quoted and bind parameters numbered per dialect:
//
//	postgres  SELECT "id" FROM "person" WHERE "id" = $1
//	mysql     SELECT `id` FROM `person` WHERE `id` = ?
//	sqlite3   SELECT "id" FROM "person" WHERE "id" = ?
//
// # Session variables
//
// WithVar attaches session variables to a context. On PostgreSQL the read
// runs in a read-only transaction after set_config(name, value, true), so
// row level security policies see request settings through
// current_setting(name). On MySQL they become user variables (@name) of a
// dedicated connection, cleared before it is released:
//
//	cat := sql.NewCatalog(drv, sql.WithSessionVars(func(ctx context.Context) []sql.Var {
//	    return []sql.Var{{Name: "invql.viewer", Value: viewerID(ctx)}}
//	}))
//
// # Statistics
//
// StatsDriver counts queries and reports slow ones. DebugDriver logs
// every query at debug level.
package sql
