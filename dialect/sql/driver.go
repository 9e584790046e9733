package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/syssam/invql/dialect"
)

// varNameRe matches session variable names, optionally namespaced like
// "invql.viewer".
var varNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// identRe matches table and column names, optionally schema-qualified.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && identRe.MatchString(s)
}

// resetTimeout bounds the statements that clear session variables after a
// read. They run on a fresh context so they complete when the request
// context is canceled.
const resetTimeout = 5 * time.Second

// Driver is a read-only dialect.Driver over a database/sql pool.
type Driver struct {
	db      *sql.DB
	dialect string
}

// Open opens a database/sql pool with the registered driver name.
// The dialect of the returned driver is derived from the driver name, so
// "sqlite" (modernc.org/sqlite) and "sqlite3" both map to dialect.SQLite.
func Open(driverName, source string) (*Driver, error) {
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(driverName, db), nil
}

// OpenDB wraps db with a Driver of the given dialect or driver name.
func OpenDB(dialectName string, db *sql.DB) *Driver {
	return &Driver{db: db, dialect: dialect.Normalize(dialectName)}
}

// DB returns the underlying pool.
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect implements dialect.Driver.
func (d *Driver) Dialect() string { return d.dialect }

// Close closes the pool.
func (d *Driver) Close() error { return d.db.Close() }

// Ping verifies the connection is alive.
func (d *Driver) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Query implements dialect.Querier. args must be a []any and v a *Rows.
//
// When ctx holds session variables, PostgreSQL reads run in a read-only
// transaction with the variables set locally, and MySQL reads run on a
// dedicated connection whose user variables are cleared when the rows are
// closed. Other dialects ignore session variables.
func (d *Driver) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	vars := varsFromContext(ctx)
	var (
		rows *sql.Rows
		done func() error
		err  error
	)
	switch {
	case len(vars) == 0:
		rows, err = d.db.QueryContext(ctx, query, argv...)
	case d.dialect == dialect.Postgres:
		rows, done, err = d.queryLocal(ctx, vars, query, argv)
	case d.dialect == dialect.MySQL:
		rows, done, err = d.queryUserVars(ctx, vars, query, argv)
	default:
		rows, err = d.db.QueryContext(ctx, query, argv...)
	}
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	vr.ColumnScanner = rows
	if done != nil {
		vr.ColumnScanner = rowsWithCloser{rows, done}
	}
	return nil
}

// queryLocal runs query in a read-only transaction after setting vars with
// set_config. The transaction is committed when the rows are closed.
func (d *Driver) queryLocal(ctx context.Context, vars []Var, query string, args []any) (*sql.Rows, func() error, error) {
	if err := checkVars(vars); err != nil {
		return nil, nil, err
	}
	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	for _, v := range vars {
		if _, err := tx.ExecContext(ctx, "SELECT set_config($1, $2, true)", v.Name, v.Value); err != nil {
			return nil, nil, errors.Join(fmt.Errorf("set %s: %w", v.Name, err), tx.Rollback())
		}
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, errors.Join(err, tx.Rollback())
	}
	return rows, tx.Commit, nil
}

// queryUserVars runs query on a dedicated connection after setting vars as
// user variables. The variables are cleared and the connection released
// when the rows are closed.
func (d *Driver) queryUserVars(ctx context.Context, vars []Var, query string, args []any) (*sql.Rows, func() error, error) {
	if err := checkVars(vars); err != nil {
		return nil, nil, err
	}
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, nil, err
	}
	reset := func() error {
		rctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
		defer cancel()
		var errs []error
		for _, v := range vars {
			if _, err := conn.ExecContext(rctx, "SET @"+v.Name+" = NULL"); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(append(errs, conn.Close())...)
	}
	for _, v := range vars {
		if _, err := conn.ExecContext(ctx, "SET @"+v.Name+" = ?", v.Value); err != nil {
			return nil, nil, errors.Join(fmt.Errorf("set %s: %w", v.Name, err), reset())
		}
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, errors.Join(err, reset())
	}
	return rows, reset, nil
}

func checkVars(vars []Var) error {
	for _, v := range vars {
		if len(v.Name) > 64 || !varNameRe.MatchString(v.Name) {
			return fmt.Errorf("invalid session variable name: %q", v.Name)
		}
	}
	return nil
}

// Var is a session variable set before a read.
type Var struct {
	Name  string
	Value string
}

type ctxVarsKey struct{}

// WithVar returns a new context holding a session variable set before every
// read made with it. Readers use it to pass request settings, such as the
// current viewer, to row level security policies. A later value for the
// same name replaces the earlier one.
func WithVar(ctx context.Context, name, value string) context.Context {
	prev := varsFromContext(ctx)
	vars := make([]Var, 0, len(prev)+1)
	for _, v := range prev {
		if v.Name != name {
			vars = append(vars, v)
		}
	}
	vars = append(vars, Var{Name: name, Value: value})
	return context.WithValue(ctx, ctxVarsKey{}, vars)
}

// VarFromContext returns the value of a session variable held by ctx.
func VarFromContext(ctx context.Context, name string) (string, bool) {
	for _, v := range varsFromContext(ctx) {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

func varsFromContext(ctx context.Context) []Var {
	vars, _ := ctx.Value(ctxVarsKey{}).([]Var)
	return vars
}

var _ dialect.Driver = (*Driver)(nil)

// Rows wraps the rows of a read.
type Rows struct{ ColumnScanner }

// ColumnScanner is the subset of *sql.Rows used to scan a read.
type ColumnScanner interface {
	Close() error
	Columns() ([]string, error)
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// rowsWithCloser runs done after the rows are closed.
type rowsWithCloser struct {
	ColumnScanner
	done func() error
}

func (r rowsWithCloser) Close() error {
	return errors.Join(r.ColumnScanner.Close(), r.done())
}
