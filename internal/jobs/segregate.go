package jobs

import (
	"context"
	"path/filepath"

	"eduetl/internal/audit"
	"eduetl/internal/batch"
	"eduetl/internal/classify"
	"eduetl/internal/config"
	"eduetl/internal/metrics"
	"eduetl/internal/record"
	"eduetl/internal/tabular"

	"go.uber.org/zap"
)

const (
	fieldVideoURL = "video_url"
	videosSheet   = "Videos"
)

var videoColumns = []string{"type", "qrCodeId", "filePath"}

// SegregateOptions configures SegregateURLs.
type SegregateOptions struct {
	Input     string // xlsx, csv or html listing; local path or URL
	OutputDir string
	Type      string // value of the "type" column, default "video"

	// Review, when set, receives the rows that could not be classified as a
	// workbook with columns id, video_url, row.
	Review string

	Reader config.Options
}

// SegregateURLs groups input rows by the folder structure of their video_url
// and writes one workbook per group to
// <OutputDir>/<label folders>/<sub>.xlsx (sheet "Videos").
//
// Rows with an empty or malformed URL are audited with their spreadsheet row
// number and id, and left out of every group.
func SegregateURLs(ctx context.Context, env Env, opt SegregateOptions) (Result, error) {
	log := env.logger().With(zap.String("job", "segregate-urls"), zap.String("source", opt.Input))
	done := metrics.Step("segregate-urls")
	var res Result

	typ := opt.Type
	if typ == "" {
		typ = "video"
	}

	rows, err := tabular.ReadRecords(ctx, env.Opener, opt.Input, opt.Reader, func(line int, perr error) {
		env.Audit.Append(audit.Entry{Kind: audit.KindMalformedRecord, Source: opt.Input, Row: line, Err: perr})
		log.Warn("unparseable line skipped", zap.Int("line", line), zap.Error(perr))
	})
	if err != nil {
		err = inputErr(opt.Input, err)
		done(err)
		return res, err
	}
	res.Read = len(rows)
	metrics.RecordRecords("read", res.Read)

	c := classify.New(classify.URLFoldersRule())
	g := classify.GroupBy(rows, func(r record.Record) (classify.Key, error) {
		return c.Classify(r.String(fieldVideoURL))
	}, func(_ int, r record.Record, cerr error) {
		res.Skipped++
		env.Audit.Append(audit.Entry{
			Kind:     audit.KindMalformedRecord,
			Source:   opt.Input,
			RecordID: r.ID(),
			Row:      rowOf(r),
			Err:      cerr,
		})
		log.Warn("row skipped", zap.Int("row", rowOf(r)), zap.Any("id", r.ID()), zap.Error(cerr))
	})
	classified, review := g.Split()

	sink := batch.SinkFunc[record.Record](func(_ context.Context, k classify.Key, members []record.Record) error {
		out := [][]string{videoColumns}
		for _, r := range members {
			out = append(out, []string{typ, r.String(record.FieldID), r.String(fieldVideoURL)})
		}
		path := groupPath(opt.OutputDir, k)
		if err := tabular.WriteWorkbook(path, []tabular.Sheet{{Name: videosSheet, Rows: out}}); err != nil {
			return err
		}
		log.Info("saved", zap.String("output", path), zap.Int("rows", len(members)))
		return nil
	})

	sum, err := batch.WriteGroups[record.Record](ctx, classified, sink, batch.Options[record.Record]{
		Source: opt.Input,
		Audit:  env.Audit,
		Logger: log,
	})
	res.Written, res.Failed = sum.Written, sum.Failed
	if err != nil {
		done(err)
		return res, err
	}

	if opt.Review != "" && review.Total() > 0 {
		if err := writeReview(opt.Review, review.Get(classify.Unclassified)); err != nil {
			res.Failed++
			env.Audit.Append(audit.Entry{Kind: audit.KindSinkWrite, Source: opt.Input, Key: opt.Review, Err: err})
			log.Warn("review workbook write failed", zap.String("output", opt.Review), zap.Error(err))
		}
	}
	done(nil)
	return res, nil
}

// groupPath is <dir>/<sanitized label segments...>/<sanitized sub>.xlsx.
func groupPath(dir string, k classify.Key) string {
	parts := append([]string{dir}, tabular.SanitizePath(k.Label)...)
	name := tabular.SanitizeName(k.Sub)
	if name == "" {
		name = classify.MiscSub
	}
	return filepath.Join(append(parts, name+".xlsx")...)
}

func writeReview(path string, rows []record.Record) error {
	out := [][]string{{record.FieldID, fieldVideoURL, "row"}}
	for _, r := range rows {
		out = append(out, []string{r.String(record.FieldID), r.String(fieldVideoURL), record.Key(r[tabular.FieldRow])})
	}
	return tabular.WriteWorkbook(path, []tabular.Sheet{{Name: "Review", Rows: out}})
}

func rowOf(r record.Record) int {
	if n, ok := r[tabular.FieldRow].(int); ok {
		return n
	}
	return 0
}
