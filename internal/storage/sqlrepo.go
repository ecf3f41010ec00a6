package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"eduetl/internal/record"
)

// Dialect is the per-driver SQL surface SQLRepo needs.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Quote quotes an identifier; dotted names are quoted per part.
	Quote func(ident string) string
}

func QuestionPlaceholder(int) string { return "?" }

func DoubleQuote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// SQLRepo is a CourseRepository over database/sql, shared by the mysql,
// mssql and sqlite backends.
type SQLRepo struct {
	db      *sql.DB
	dialect Dialect
	table   string
	cols    string
}

// NewSQLRepo wraps an open *sql.DB. It takes ownership of db.
func NewSQLRepo(db *sql.DB, table string, d Dialect) *SQLRepo {
	return &SQLRepo{
		db:      db,
		dialect: d,
		table:   quoteQualified(table, d.Quote),
		cols:    columnList(CourseColumns, d.Quote),
	}
}

// OpenSQL opens driverName and pings it.
func OpenSQL(ctx context.Context, driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	return db, nil
}

// DB exposes the handle for tests and fixtures.
func (r *SQLRepo) DB() *sql.DB { return r.db }

func (r *SQLRepo) Close() { _ = r.db.Close() }

func (r *SQLRepo) TopLevel(ctx context.Context, nameLike string) ([]record.Record, error) {
	id, pid := r.dialect.Quote(ColID), r.dialect.Quote(ColParentID)
	q := fmt.Sprintf("SELECT %s FROM %s c WHERE (c.%s IS NULL OR NOT EXISTS (SELECT 1 FROM %s p WHERE p.%s = c.%s)) AND LOWER(c.%s) LIKE %s ORDER BY c.%s",
		r.cols, r.table, pid, r.table, id, pid, r.dialect.Quote(ColCourseName),
		r.dialect.Placeholder(1), id)
	return r.query(ctx, q, LikeContains(nameLike))
}

func (r *SQLRepo) ChildrenOf(ctx context.Context, parentID any) ([]record.Record, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
		r.cols, r.table, r.dialect.Quote(ColParentID), r.dialect.Placeholder(1), r.dialect.Quote(ColID))
	return r.query(ctx, q, parentID)
}

func (r *SQLRepo) ListAll(ctx context.Context) ([]record.Record, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", r.cols, r.table, r.dialect.Quote(ColID))
	return r.query(ctx, q)
}

func (r *SQLRepo) query(ctx context.Context, q string, args ...any) ([]record.Record, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		vals := make([]any, len(CourseColumns))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}
		out = append(out, MakeRecord(vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", r.table, err)
	}
	return out, nil
}

// MakeRecord zips a CourseColumns-ordered row into a record.
func MakeRecord(vals []any) record.Record {
	rec := make(record.Record, len(CourseColumns))
	for i, c := range CourseColumns {
		var v any
		if i < len(vals) {
			v = vals[i]
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		rec[c] = v
	}
	return rec
}

// LikeContains lower-cases s and wraps it in % wildcards.
func LikeContains(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

func quoteQualified(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

func columnList(cols []string, quote func(string) string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = quote(c)
	}
	return strings.Join(q, ", ")
}
