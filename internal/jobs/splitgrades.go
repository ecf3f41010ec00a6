package jobs

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"eduetl/internal/audit"
	"eduetl/internal/batch"
	"eduetl/internal/classify"
	"eduetl/internal/metrics"
	"eduetl/internal/tabular"

	"go.uber.org/zap"
)

//go:embed rules/grades.yaml
var gradeRulesYAML []byte

var errLegacyXLS = errors.New("legacy .xls workbooks are not supported, convert to .xlsx")

// sampleRows is how many leading rows feed the second classification attempt.
const sampleRows = 5

// GradeRules returns the built-in grade rule list.
func GradeRules() ([]classify.Rule, error) {
	return classify.ParseRules(bytes.NewReader(gradeRulesYAML))
}

// SplitGradesOptions configures SplitGrades.
type SplitGradesOptions struct {
	InputDir  string
	OutputDir string

	// Rules are evaluated before the built-in grade rules.
	Rules []classify.Rule
}

// SplitGrades classifies every sheet of every .xlsx workbook directly in InputDir
// and writes, per input file <f>:
//
//	<OutputDir>/Grade_<g>/<f>_Grade<g>.xlsx   sheets classified as grade g
//	<OutputDir>/<f>_Undetermined.xlsx        sheets no rule matched
//
// A sheet is classified from (file name, sheet name, first row). If that
// fails and the sheet has more than one row, it is retried with the file name
// and the first five rows flattened. Empty sheets are ignored. A file that
// cannot be read is audited and the rest continue. Legacy .xls files are
// audited as skipped.
func SplitGrades(ctx context.Context, env Env, opt SplitGradesOptions) (Result, error) {
	log := env.logger().With(zap.String("job", "split-grades"))
	done := metrics.Step("split-grades")
	var res Result

	if err := requireDir(opt.InputDir); err != nil {
		done(err)
		return res, err
	}
	builtin, err := GradeRules()
	if err != nil {
		done(err)
		return res, fmt.Errorf("built-in grade rules: %w", err)
	}
	c := classify.New(append(append([]classify.Rule(nil), opt.Rules...), builtin...)...)

	files, legacy, err := workbookFiles(opt.InputDir)
	if err != nil {
		done(err)
		return res, err
	}
	for _, path := range legacy {
		res.Skipped++
		env.Audit.Append(audit.Entry{Kind: audit.KindSkipped, Source: path, Err: errLegacyXLS})
		log.Warn("workbook skipped", zap.String("source", path), zap.Error(errLegacyXLS))
	}
	if len(files) == 0 {
		log.Info("no excel files found", zap.String("dir", opt.InputDir))
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			done(err)
			return res, err
		}
		res.Read++
		sum, err := splitWorkbook(ctx, env, log, c, path, opt.OutputDir)
		if err != nil {
			if ctx.Err() != nil {
				done(err)
				return res, err
			}
			res.Failed++
			env.Audit.Append(audit.Entry{Kind: audit.KindMalformedRecord, Source: path, Err: err})
			log.Warn("cannot process workbook", zap.String("source", path), zap.Error(err))
			continue
		}
		res.Written += sum.Written
		res.Failed += sum.Failed
		res.Skipped += sum.Review
	}
	done(nil)
	return res, nil
}

func splitWorkbook(ctx context.Context, env Env, log *zap.Logger, c *classify.Classifier, path, outDir string) (batch.Summary, error) {
	sheets, err := tabular.ReadWorkbook(path)
	if err != nil {
		return batch.Summary{}, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	g := classify.NewGroup[tabular.Sheet]()
	for _, s := range sheets {
		if len(s.Rows) == 0 {
			continue
		}
		g.Add(gradeOf(c, name, s), s)
	}

	write := func(path string) batch.SinkFunc[tabular.Sheet] {
		return func(_ context.Context, _ classify.Key, members []tabular.Sheet) error {
			if err := tabular.WriteWorkbook(path, members); err != nil {
				return err
			}
			log.Info("saved", zap.String("output", path), zap.Int("sheets", len(members)))
			return nil
		}
	}
	sink := batch.SinkFunc[tabular.Sheet](func(ctx context.Context, k classify.Key, members []tabular.Sheet) error {
		label := tabular.SanitizeName(k.Label)
		out := filepath.Join(outDir, "Grade_"+label, fmt.Sprintf("%s_Grade%s.xlsx", name, label))
		return write(out)(ctx, k, members)
	})

	return batch.WriteGroups[tabular.Sheet](ctx, g, sink, batch.Options[tabular.Sheet]{
		Source:   path,
		Review:   write(filepath.Join(outDir, name+"_Undetermined.xlsx")),
		RecordID: func(s tabular.Sheet) any { return s.Name },
		Audit:    env.Audit,
		Logger:   log,
	})
}

func gradeOf(c *classify.Classifier, file string, s tabular.Sheet) classify.Key {
	k, _ := c.Classify(file, s.Name, strings.Join(s.Rows[0], " "))
	if !k.IsUnclassified() || len(s.Rows) < 2 {
		return k
	}
	var sample []string
	for _, row := range s.Rows[:min(sampleRows, len(s.Rows))] {
		sample = append(sample, row...)
	}
	k, _ = c.Classify(file, "", strings.Join(sample, " "))
	return k
}

// workbookFiles lists the .xlsx files directly in dir and, separately, the
// legacy .xls ones. Both are sorted.
func workbookFiles(dir string) (files, legacy []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".xlsx":
			files = append(files, filepath.Join(dir, e.Name()))
		case ".xls":
			legacy = append(legacy, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	sort.Strings(legacy)
	return files, legacy, nil
}
