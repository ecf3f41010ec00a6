// Package sqlite registers the SQLite course backend (pure Go driver).
package sqlite

import (
	"context"

	"eduetl/internal/storage"

	_ "modernc.org/sqlite"
)

func init() {
	storage.Register("sqlite", New)
}

var Dialect = storage.Dialect{
	Placeholder: storage.QuestionPlaceholder,
	Quote:       storage.DoubleQuote,
}

// New opens cfg.DSN ("file:courses.db", ":memory:", ...). The pool is held
// to one connection so in-memory databases stay visible to every query.
func New(ctx context.Context, cfg storage.Config) (storage.CourseRepository, error) {
	db, err := storage.OpenSQL(ctx, "sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return storage.NewSQLRepo(db, cfg.Table, Dialect), nil
}
