package jobs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"eduetl/internal/audit"
	"eduetl/internal/config"
	"eduetl/internal/metrics"
	"eduetl/internal/tabular"

	"go.uber.org/zap"
)

// CSVToXLSXOptions configures CSVToXLSX.
type CSVToXLSXOptions struct {
	InputDir  string
	OutputDir string
	Reader    config.Options // passed to tabular.ReadCSV
}

// CSVToXLSX converts every .csv file below InputDir (any depth, extension
// matched case-insensitively) into an .xlsx file at the same relative path
// below OutputDir. Blank rows are dropped and the single sheet is "Sheet1".
// A file that fails to convert is audited and the rest continue.
func CSVToXLSX(ctx context.Context, env Env, opt CSVToXLSXOptions) (Result, error) {
	log := env.logger().With(zap.String("job", "csv2xlsx"))
	done := metrics.Step("csv2xlsx")
	var res Result

	if err := requireDir(opt.InputDir); err != nil {
		done(err)
		return res, err
	}
	files, err := findFiles(opt.InputDir, ".csv")
	if err != nil {
		done(err)
		return res, err
	}
	if len(files) == 0 {
		log.Info("no csv files found", zap.String("dir", opt.InputDir))
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			done(err)
			return res, err
		}
		res.Read++
		rel, _ := filepath.Rel(opt.InputDir, path)
		out := filepath.Join(opt.OutputDir, strings.TrimSuffix(rel, filepath.Ext(rel))+".xlsx")

		if err := convertCSV(ctx, env, path, out, opt.Reader); err != nil {
			res.Failed++
			env.Audit.Append(audit.Entry{Kind: audit.KindSinkWrite, Source: path, Err: err})
			log.Warn("convert failed", zap.String("source", path), zap.Error(err))
			continue
		}
		res.Written++
		log.Info("converted", zap.String("source", path), zap.String("output", out))
	}
	done(nil)
	return res, nil
}

func convertCSV(ctx context.Context, env Env, src, dst string, opt config.Options) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := tabular.ReadCSV(ctx, f, opt, func(line int, err error) {
		env.Audit.Append(audit.Entry{Kind: audit.KindMalformedRecord, Source: src, Row: line, Err: err})
	})
	if err != nil {
		return err
	}
	rows = tabular.DropBlankRows(rows)
	return tabular.WriteWorkbook(dst, []tabular.Sheet{{Name: "Sheet1", Rows: rows}})
}

// findFiles walks root and returns files whose extension (case-insensitive)
// is one of exts, sorted.
func findFiles(root string, exts ...string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		for _, e := range exts {
			if ext == e {
				out = append(out, p)
				break
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}
