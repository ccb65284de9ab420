// Package duckdb implements the frame contract on top of DuckDB.
//
// Every frame is an immutable query node. Define and Filter wrap the parent
// query in a sub-select, so old frames remain valid views and nothing is
// executed until an aggregation, a report or a materialisation is requested.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/cutflow/pkg/frame"

	goduckdb "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Name is the engine name registered with frame.Register.
const Name = "duckdb"

// Runtime holds one DuckDB connection. Macros and UDFs are connection
// scoped, so every query of every frame runs on it.
type Runtime struct {
	db       *sql.DB
	conn     *sql.Conn
	cfg      frame.EngineConfig
	logger   *slog.Logger
	attached int
}

// Open connects to DuckDB. An empty cfg.Path opens an in-memory database.
func Open(ctx context.Context, cfg frame.EngineConfig, logger *slog.Logger) (*Runtime, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	rt, err := NewFromDB(ctx, db, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return rt, nil
}

// NewFromDB builds a runtime on an already opened database handle.
func NewFromDB(ctx context.Context, db *sql.DB, cfg frame.EngineConfig, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire duckdb connection: %w", err)
	}

	rt := &Runtime{db: db, conn: conn, cfg: cfg, logger: logger.With("component", "duckdb")}
	if err := rt.configure(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return rt, nil
}

func (r *Runtime) configure(ctx context.Context) error {
	for _, ext := range r.cfg.Extensions {
		if !identRe.MatchString(ext) {
			return fmt.Errorf("invalid extension name %q", ext)
		}
		if err := r.exec(ctx, "INSTALL "+ext); err != nil {
			return fmt.Errorf("failed to install extension %s: %w", ext, err)
		}
		if err := r.exec(ctx, "LOAD "+ext); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	keys := make([]string, 0, len(r.cfg.Settings))
	for k := range r.cfg.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !identRe.MatchString(k) {
			return fmt.Errorf("invalid setting name %q", k)
		}
		stmt := fmt.Sprintf("SET %s = %s", k, quoteString(r.cfg.Settings[k]))
		if err := r.exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}
	return nil
}

// Open returns the base frame of a dataset.
func (r *Runtime) Open(ctx context.Context, src frame.Source) (frame.Frame, error) {
	from, err := r.sourceSQL(ctx, src)
	if err != nil {
		return nil, err
	}

	n := &node{rt: r, kind: kindBase, query: "SELECT * FROM " + from}
	cols, err := r.describe(ctx, n.query)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src.Path, err)
	}
	n.columns = cols

	r.logger.Info("dataset opened", "path", src.Path, "format", string(src.Format()), "columns", len(cols))
	return n, nil
}

func (r *Runtime) sourceSQL(ctx context.Context, src frame.Source) (string, error) {
	format := src.Format()
	if src.Table != "" && format != frame.FormatDatabase {
		r.logger.Debug("table name ignored for single-table source", "path", src.Path, "table", src.Table)
	}

	switch format {
	case frame.FormatParquet:
		return "read_parquet(" + quoteString(src.Path) + ")", nil
	case frame.FormatCSV:
		return "read_csv_auto(" + quoteString(src.Path) + ")", nil
	case frame.FormatJSON:
		return "read_json_auto(" + quoteString(src.Path) + ")", nil
	case frame.FormatDatabase:
		if src.Table == "" {
			return "", fmt.Errorf("source %s needs a table name", src.Path)
		}
		r.attached++
		alias := fmt.Sprintf("src_%d", r.attached)
		stmt := fmt.Sprintf("ATTACH %s AS %s (READ_ONLY)", quoteString(src.Path), alias)
		if err := r.exec(ctx, stmt); err != nil {
			return "", fmt.Errorf("failed to attach %s: %w", src.Path, err)
		}
		return alias + "." + quoteIdent(src.Table), nil
	}
	return "", fmt.Errorf("unsupported source format for %s", src.Path)
}

// Declare executes code on the session connection.
func (r *Runtime) Declare(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("empty declaration")
	}
	if err := r.exec(ctx, code); err != nil {
		return fmt.Errorf("failed to declare: %w", err)
	}
	return nil
}

// RegisterManaged exposes fn as a scalar UDF taking arity DOUBLE arguments.
func (r *Runtime) RegisterManaged(ctx context.Context, name string, arity int, fn frame.ManagedFunc) error {
	if r.conn == nil {
		return fmt.Errorf("database connection not established")
	}
	udf, err := newManagedUDF(arity, fn)
	if err != nil {
		return err
	}
	if err := goduckdb.RegisterScalarUDF(r.conn, name, udf); err != nil {
		return fmt.Errorf("failed to register function %s: %w", name, err)
	}
	r.logger.Debug("managed function registered", "name", name, "arity", arity)
	return nil
}

// Close closes the connection and the database.
func (r *Runtime) Close() error {
	if r.conn != nil {
		r.logger.Debug("closing database connection")
		_ = r.conn.Close()
		r.conn = nil
	}
	if r.db != nil {
		err := r.db.Close()
		r.db = nil
		return err
	}
	return nil
}

func (r *Runtime) exec(ctx context.Context, query string) error {
	if r.conn == nil {
		return fmt.Errorf("database connection not established")
	}
	r.logger.Debug("exec", "sql", query)
	if _, err := r.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

func (r *Runtime) query(ctx context.Context, query string) (*sql.Rows, error) {
	if r.conn == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	r.logger.Debug("query", "sql", query)
	//nolint:rowserrcheck // rows.Err() is checked by callers after iteration
	rows, err := r.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

func (r *Runtime) count(ctx context.Context, from string) (int64, error) {
	if r.conn == nil {
		return 0, fmt.Errorf("database connection not established")
	}
	q := countQuery(from)
	r.logger.Debug("query", "sql", q)
	var n int64
	if err := r.conn.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// describe returns the output columns of query without running it.
func (r *Runtime) describe(ctx context.Context, query string) ([]column, error) {
	rows, err := r.query(ctx, "DESCRIBE "+query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read describe columns: %w", err)
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("unexpected describe output: %v", names)
	}

	var cols []column
	for rows.Next() {
		vals := make([]sql.NullString, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		cols = append(cols, column{Name: vals[0].String, Type: vals[1].String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return cols, nil
}

var _ frame.Runtime = (*Runtime)(nil)
