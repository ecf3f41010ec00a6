package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"eduetl/internal/audit"
	"eduetl/internal/batch"
	"eduetl/internal/classify"
	"eduetl/internal/config"
	"eduetl/internal/metrics"
	"eduetl/internal/tabular"

	"go.uber.org/zap"
)

// chapterColumn is the zero-based column holding the asset URL.
const chapterColumn = 2

var errIncompleteRow = errors.New("row has fewer than 3 cells")

// ChapterRule maps a "...C<n>Q..." asset code to label "Chapter-<n>".
var ChapterRule = classify.MustRegex(`c(\d+)q`, classify.Key{Label: "Chapter-$1"})

// SplitChaptersOptions configures SplitChapters.
type SplitChaptersOptions struct {
	Input     string
	OutputDir string
	Prefix    string // output file prefix, default the input base name
	Rules     []classify.Rule
	Reader    config.Options
}

// SplitChapters groups the raw rows of Input by the chapter code found in the
// third cell and writes <OutputDir>/<Prefix>_<chapter>.xlsx per chapter with
// the rows unchanged. Rows with fewer than three cells are skipped; rows
// without a chapter code are audited as unclassified.
func SplitChapters(ctx context.Context, env Env, opt SplitChaptersOptions) (Result, error) {
	log := env.logger().With(zap.String("job", "split-chapters"), zap.String("source", opt.Input))
	done := metrics.Step("split-chapters")
	var res Result

	rules := opt.Rules
	if len(rules) == 0 {
		rules = []classify.Rule{ChapterRule}
	}
	prefix := opt.Prefix
	if prefix == "" {
		base := filepath.Base(opt.Input)
		prefix = strings.TrimSuffix(base, filepath.Ext(base))
	}

	rows, lines, err := tabular.ReadRowLines(ctx, env.Opener, opt.Input, opt.Reader, func(line int, perr error) {
		env.Audit.Append(audit.Entry{Kind: audit.KindMalformedRecord, Source: opt.Input, Row: line, Err: perr})
	})
	if err != nil {
		err = inputErr(opt.Input, err)
		done(err)
		return res, err
	}
	res.Read = len(rows)
	metrics.RecordRecords("read", res.Read)

	var complete [][]string
	for i, row := range rows {
		if len(row) <= chapterColumn {
			res.Skipped++
			env.Audit.Append(audit.Entry{Kind: audit.KindSkipped, Source: opt.Input, Row: lineAt(lines, i), Err: errIncompleteRow})
			continue
		}
		complete = append(complete, row)
	}

	c := classify.New(rules...)
	g := classify.GroupBy(complete, func(row []string) (classify.Key, error) {
		return c.Classify(row[chapterColumn])
	}, nil)

	sink := batch.SinkFunc[[]string](func(_ context.Context, k classify.Key, members [][]string) error {
		path := filepath.Join(opt.OutputDir, tabular.SanitizeName(prefix+"_"+k.Label)+".xlsx")
		if err := tabular.WriteWorkbook(path, []tabular.Sheet{{Name: "Sheet1", Rows: members}}); err != nil {
			return err
		}
		log.Info("saved", zap.String("output", path), zap.Int("rows", len(members)))
		return nil
	})

	sum, err := batch.WriteGroups[[]string](ctx, g, sink, batch.Options[[]string]{
		Source:   opt.Input,
		RecordID: func(row []string) any { return row[chapterColumn] },
		Audit:    env.Audit,
		Logger:   log,
	})
	res.Written, res.Failed = sum.Written, sum.Failed
	res.Skipped += sum.Review
	done(err)
	return res, err
}

// lineAt returns the source line of rows[i]; nil lines mean row i is line i+1.
func lineAt(lines []int, i int) int {
	if i < len(lines) {
		return lines[i]
	}
	return i + 1
}
