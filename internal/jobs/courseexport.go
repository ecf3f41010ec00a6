package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"eduetl/internal/audit"
	"eduetl/internal/batch"
	"eduetl/internal/classify"
	"eduetl/internal/hierarchy"
	"eduetl/internal/metrics"
	"eduetl/internal/record"
	"eduetl/internal/storage"
	"eduetl/internal/tabular"

	"go.uber.org/zap"
)

// CourseExportOptions configures CourseExport.
type CourseExportOptions struct {
	OutputDir string
	Filter    string // substring of the root course name, default "grade"

	// Preload reads the whole table once and flattens in memory instead of
	// issuing one children query per course.
	Preload bool
}

// CourseExport writes one CSV per top-level course whose name contains
// Filter: the root row first, then every descendant in pre-order. Columns are
// storage.CourseColumns; the file is named after the course with whitespace
// runs turned into '_'.
//
// A cycle in parent_id aborts only the affected subtree; each offending id is
// audited. Database errors are fatal.
func CourseExport(ctx context.Context, env Env, repo storage.CourseRepository, opt CourseExportOptions) (Result, error) {
	log := env.logger().With(zap.String("job", "course-export"))
	done := metrics.Step("course-export")
	var res Result

	filter := opt.Filter
	if filter == "" {
		filter = "grade"
	}

	var (
		roots []record.Record
		full  *hierarchy.Index
		err   error
	)
	if opt.Preload {
		all, lerr := repo.ListAll(ctx)
		if lerr != nil {
			done(lerr)
			return res, fmt.Errorf("list courses: %w", lerr)
		}
		full = hierarchy.NewIndex(all)
		needle := strings.ToLower(strings.TrimSpace(filter))
		for _, r := range full.Roots() {
			if strings.Contains(strings.ToLower(r.String(storage.ColCourseName)), needle) {
				roots = append(roots, r)
			}
		}
	} else {
		roots, err = repo.TopLevel(ctx, filter)
		if err != nil {
			done(err)
			return res, fmt.Errorf("top-level courses: %w", err)
		}
	}
	if len(roots) == 0 {
		log.Warn("no top-level courses match", zap.String("filter", filter))
	}

	g := classify.NewGroup[record.Record]()
	used := map[string]bool{}
	for _, root := range roots {
		idx := full
		if idx == nil {
			idx, err = hierarchy.IndexFrom(ctx, repo, root.ID())
			if err != nil && !errors.Is(err, hierarchy.ErrCycleDetected) {
				done(err)
				return res, err
			}
			res.Skipped += auditCycles(env, log, root, err)
		}
		desc, ferr := idx.Flatten(root.ID())
		res.Skipped += auditCycles(env, log, root, ferr)

		key := classify.Key{Label: exportFileName(root, used)}
		g.Add(key, root)
		for _, d := range desc {
			g.Add(key, d)
		}
		res.Read += 1 + len(desc)
	}
	metrics.RecordRecords("read", res.Read)

	sink := batch.SinkFunc[record.Record](func(_ context.Context, k classify.Key, rows []record.Record) error {
		return writeCourseCSV(filepath.Join(opt.OutputDir, k.Label), rows)
	})
	sum, err := batch.WriteGroups[record.Record](ctx, g, sink, batch.Options[record.Record]{
		Source: "course",
		Audit:  env.Audit,
		Logger: log,
	})
	res.Written, res.Failed = sum.Written, sum.Failed
	done(err)
	return res, err
}

func auditCycles(env Env, log *zap.Logger, root record.Record, err error) int {
	ids := hierarchy.CycleIDs(err)
	for _, id := range ids {
		env.Audit.Append(audit.Entry{
			Kind:     audit.KindCycleDetected,
			Source:   root.String(storage.ColCourseName),
			RecordID: id,
			Err:      hierarchy.ErrCycleDetected,
		})
		log.Warn("cycle in course tree", zap.Any("root", root.ID()), zap.String("id", id))
	}
	metrics.RecordRecords("cycle", len(ids))
	return len(ids)
}

// exportFileName is "<name with whitespace runs as _>.csv"; a name already
// used in this run gets the course id appended.
func exportFileName(root record.Record, used map[string]bool) string {
	base := tabular.SanitizeName(tabular.UnderscoreName(root.String(storage.ColCourseName)))
	if base == "" {
		base = "course_" + record.Key(root.ID())
	}
	name := base + ".csv"
	if used[name] {
		name = base + "_" + record.Key(root.ID()) + ".csv"
	}
	used[name] = true
	return name
}

func writeCourseCSV(path string, rows []record.Record) error {
	out := make([][]string, 0, len(rows)+1)
	out = append(out, storage.CourseColumns)
	for _, r := range rows {
		line := make([]string, len(storage.CourseColumns))
		for i, v := range r.Values(storage.CourseColumns) {
			line[i] = cell(v)
		}
		out = append(out, line)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tabular.WriteCSV(f, out); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return record.Key(v)
	}
}
