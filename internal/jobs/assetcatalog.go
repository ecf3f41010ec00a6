package jobs

import (
	"context"
	"fmt"
	"path/filepath"

	"eduetl/internal/audit"
	"eduetl/internal/batch"
	"eduetl/internal/classify"
	"eduetl/internal/metrics"
	"eduetl/internal/objectstore"
	"eduetl/internal/record"
	"eduetl/internal/tabular"

	"go.uber.org/zap"
)

// AssetCatalogOptions configures AssetCatalog.
type AssetCatalogOptions struct {
	Prefix    string // base prefix holding one folder per chapter
	OutputDir string
	XLSX      string // optional workbook path, one sheet per chapter
}

// AssetCatalog lists every chapter folder under Prefix and writes
// <OutputDir>/<chapter>.json holding [{name, url}] for each object in it.
// Folder placeholders are skipped; chapters without objects are logged and
// produce no file.
func AssetCatalog(ctx context.Context, env Env, cat objectstore.Catalog, opt AssetCatalogOptions) (Result, error) {
	log := env.logger().With(zap.String("job", "asset-catalog"))
	done := metrics.Step("asset-catalog")
	var res Result

	prefixes, names, err := cat.Chapters(ctx, opt.Prefix)
	if err != nil {
		done(err)
		return res, err
	}
	if len(prefixes) == 0 {
		err := fmt.Errorf("%w: no folders under %q", ErrInputNotFound, opt.Prefix)
		done(err)
		return res, err
	}

	g := classify.NewGroup[record.Record]()
	for i, p := range prefixes {
		assets, err := cat.ListAll(ctx, p)
		if err != nil {
			done(err)
			return res, err
		}
		if len(assets) == 0 {
			res.Skipped++
			env.Audit.Append(audit.Entry{Kind: audit.KindSkipped, Source: p, Err: fmt.Errorf("no files in chapter")})
			log.Info("no files in chapter", zap.String("chapter", names[i]))
			continue
		}
		key := classify.Key{Label: names[i]}
		for _, a := range assets {
			g.Add(key, a)
		}
		res.Read += len(assets)
	}
	metrics.RecordRecords("read", res.Read)

	var sheets []tabular.Sheet
	sink := batch.SinkFunc[record.Record](func(_ context.Context, k classify.Key, assets []record.Record) error {
		entries := make([]map[string]string, len(assets))
		rows := [][]string{{objectstore.FieldName, objectstore.FieldURL}}
		for i, a := range assets {
			entries[i] = map[string]string{
				objectstore.FieldName: a.String(objectstore.FieldName),
				objectstore.FieldURL:  a.String(objectstore.FieldURL),
			}
			rows = append(rows, []string{entries[i][objectstore.FieldName], entries[i][objectstore.FieldURL]})
		}
		out := filepath.Join(opt.OutputDir, tabular.SanitizeName(k.Label)+".json")
		if err := writeJSON(out, entries); err != nil {
			return err
		}
		sheets = append(sheets, tabular.Sheet{Name: k.Label, Rows: rows})
		log.Info("chapter written", zap.String("chapter", k.Label), zap.Int("files", len(assets)))
		return nil
	})

	sum, err := batch.WriteGroups[record.Record](ctx, g, sink, batch.Options[record.Record]{
		Source: opt.Prefix,
		Audit:  env.Audit,
		Logger: log,
	})
	res.Written, res.Failed = sum.Written, sum.Failed
	if err != nil {
		done(err)
		return res, err
	}

	if opt.XLSX != "" && len(sheets) > 0 {
		if err := tabular.WriteWorkbook(opt.XLSX, sheets); err != nil {
			res.Failed++
			env.Audit.Append(audit.Entry{Kind: audit.KindSinkWrite, Source: opt.Prefix, Key: opt.XLSX, Err: err})
			log.Warn("workbook write failed", zap.String("output", opt.XLSX), zap.Error(err))
		}
	}
	done(nil)
	return res, nil
}
