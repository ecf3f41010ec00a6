package main

import (
	"errors"
	"fmt"

	"eduetl/internal/jobs"
	"eduetl/internal/storage"

	"github.com/spf13/cobra"
)

func (a *app) courseExportCmd() *cobra.Command {
	var opt jobs.CourseExportOptions
	var kind, dsn, tbl string
	cmd := &cobra.Command{
		Use:   "course-export",
		Short: "Export every matching top-level course and its descendants as one CSV each",
		Long: `course-export selects courses with no parent whose name contains --filter
(case-insensitive), walks their subtrees through parent_id and writes
<output-dir>/<course_name>.csv with the root first, then every descendant in
depth-first order.

The connection comes from database.kind / database.dsn, or from DB_HOST,
DB_PORT, DB_USER, DB_PASSWORD, DB_NAME and DB_PARAMS when no DSN is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dc := a.cfg.Database
			if kind != "" {
				dc.Kind = kind
			}
			if dsn != "" {
				dc.DSN = dsn
			}
			if tbl != "" {
				dc.Table = tbl
			}
			resolved, ok, err := storage.ResolveDSN(storage.NormalizeKind(dc.Kind), dc.DSN, a.getenv)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("course-export: no database.dsn and no DB_* environment set")
			}

			repo, err := storage.New(cmd.Context(), storage.Config{Kind: dc.Kind, DSN: resolved, Table: dc.Table})
			if err != nil {
				return fmt.Errorf("open %s database: %w", dc.Kind, err)
			}
			defer repo.Close()

			res, err := jobs.CourseExport(cmd.Context(), a.env(), repo, opt)
			if err != nil {
				return err
			}
			a.report(cmd, res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opt.Filter, "filter", "grade", "substring of the top-level course name")
	f.StringVar(&opt.OutputDir, "output-dir", "exports", "directory for the CSV files")
	f.BoolVar(&opt.Preload, "preload", false, "load the whole table once instead of querying per level")
	f.StringVar(&kind, "db-kind", "", "mysql, postgres, mssql or sqlite (overrides config)")
	f.StringVar(&dsn, "dsn", "", "connection string (overrides config)")
	f.StringVar(&tbl, "table", "", "course table (overrides config)")
	return cmd
}
