package dialect

import "context"

// Dialect names for external usage.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite3"
	Postgres = "postgres"
)

// Querier runs statements that return rows.
type Querier interface {
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the connection inventory readers read through. Inventories are
// read-only, so drivers expose no statements that write.
type Driver interface {
	Querier
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Normalize maps a database/sql driver name to its dialect.
//
//	dialect.Normalize("pgx")    // "postgres"
//	dialect.Normalize("sqlite") // "sqlite3"
func Normalize(driverName string) string {
	switch driverName {
	case "postgres", "pgx", "postgresql":
		return Postgres
	case "mysql":
		return MySQL
	case "sqlite", "sqlite3":
		return SQLite
	}
	return driverName
}
