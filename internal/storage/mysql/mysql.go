// Package mysql registers the MySQL/MariaDB course backend.
package mysql

import (
	"context"
	"strings"

	"eduetl/internal/storage"

	"github.com/go-sql-driver/mysql"
)

func init() {
	storage.Register("mysql", New)
}

// Dialect uses ? placeholders and backtick identifiers.
var Dialect = storage.Dialect{
	Placeholder: storage.QuestionPlaceholder,
	Quote: func(id string) string {
		return "`" + strings.ReplaceAll(id, "`", "``") + "`"
	},
}

// New opens cfg.DSN (go-sql-driver format, e.g. user:pass@tcp(host:3306)/db).
// parseTime is forced on so created_at arrives as time.Time.
func New(ctx context.Context, cfg storage.Config) (storage.CourseRepository, error) {
	dsn := cfg.DSN
	if c, err := mysql.ParseDSN(dsn); err == nil {
		c.ParseTime = true
		dsn = c.FormatDSN()
	}
	db, err := storage.OpenSQL(ctx, "mysql", dsn)
	if err != nil {
		return nil, err
	}
	return storage.NewSQLRepo(db, cfg.Table, Dialect), nil
}
