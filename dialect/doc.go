// Package dialect defines the database driver abstraction used by
// SQL-backed inventories.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite3"
//
// # Driver Interface
//
// Inventories only read, so a driver only queries:
//
//	type Driver interface {
//	    Query(ctx context.Context, query string, args, v any) error
//	    Close() error
//	    Dialect() string
//	}
//
// # Usage
//
//	drv, err := sql.Open("postgres", "postgres://...")
//	if err != nil {
//	    return err
//	}
//	defer drv.Close()
//
//	cat := sql.NewCatalog(drv)
//	people, err := cat.AddTable("person", personType, "id")
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver, statistics and table-backed inventory
package dialect
