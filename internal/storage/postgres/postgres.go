// Package postgres registers the Postgres course backend (pgx pool).
package postgres

import (
	"context"
	"fmt"
	"strings"

	"eduetl/internal/record"
	"eduetl/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func init() {
	storage.Register("postgres", New)
}

// Repo reads courses through a pgx pool.
type Repo struct {
	pool  *pgxpool.Pool
	table string
	cols  string
}

func New(ctx context.Context, cfg storage.Config) (storage.CourseRepository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	parts := strings.Split(cfg.Table, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	cols := make([]string, len(storage.CourseColumns))
	for i, c := range storage.CourseColumns {
		cols[i] = pgIdent(c)
	}
	return &Repo{pool: pool, table: strings.Join(parts, "."), cols: strings.Join(cols, ", ")}, nil
}

func (r *Repo) Close() { r.pool.Close() }

func (r *Repo) TopLevel(ctx context.Context, nameLike string) ([]record.Record, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s c
		WHERE (c.parent_id IS NULL OR NOT EXISTS (SELECT 1 FROM %s p WHERE p.id = c.parent_id))
		AND LOWER(c.course_name) LIKE $1 ORDER BY c.id`, r.cols, r.table, r.table)
	return r.query(ctx, q, storage.LikeContains(nameLike))
}

func (r *Repo) ChildrenOf(ctx context.Context, parentID any) ([]record.Record, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE parent_id = $1 ORDER BY id`, r.cols, r.table)
	return r.query(ctx, q, parentID)
}

func (r *Repo) ListAll(ctx context.Context) ([]record.Record, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, r.cols, r.table)
	return r.query(ctx, q)
}

func (r *Repo) query(ctx context.Context, q string, args ...any) ([]record.Record, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record.Record, error) {
		vals, err := row.Values()
		if err != nil {
			return nil, err
		}
		return storage.MakeRecord(vals), nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.table, err)
	}
	return recs, nil
}

// pgIdent quotes a single identifier.
func pgIdent(id string) string {
	return pgx.Identifier{id}.Sanitize()
}
