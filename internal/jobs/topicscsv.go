package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"eduetl/internal/metrics"
	"eduetl/internal/tabular"

	"go.uber.org/zap"
)

// TopicsCSVOptions configures TopicsCSV.
type TopicsCSVOptions struct {
	BaseDir string
	Output  string
	Ext     string // default ".mp4"
}

// TopicsCSV writes one "subject,topic" row per video file found directly in
// each subject directory under BaseDir. Subjects and topics come out in
// directory order (lexical).
func TopicsCSV(ctx context.Context, env Env, opt TopicsCSVOptions) (Result, error) {
	log := env.logger().With(zap.String("job", "topics-csv"))
	done := metrics.Step("topics-csv")
	var res Result

	ext := strings.ToLower(opt.Ext)
	if ext == "" {
		ext = ".mp4"
	}
	if err := requireDir(opt.BaseDir); err != nil {
		done(err)
		return res, err
	}
	subjects, err := os.ReadDir(opt.BaseDir)
	if err != nil {
		done(err)
		return res, fmt.Errorf("read %s: %w", opt.BaseDir, err)
	}

	rows := [][]string{{"subject", "topic"}}
	for _, s := range subjects {
		if err := ctx.Err(); err != nil {
			done(err)
			return res, err
		}
		if !s.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(opt.BaseDir, s.Name()))
		if err != nil {
			res.Skipped++
			log.Warn("unreadable subject directory", zap.String("subject", s.Name()), zap.Error(err))
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), ext) {
				continue
			}
			rows = append(rows, []string{s.Name(), f.Name()})
			res.Read++
		}
	}

	if err := os.MkdirAll(filepath.Dir(opt.Output), 0o755); err != nil {
		done(err)
		return res, fmt.Errorf("mkdir for %s: %w", opt.Output, err)
	}
	out, err := os.Create(opt.Output)
	if err != nil {
		done(err)
		return res, fmt.Errorf("create %s: %w", opt.Output, err)
	}
	if err := tabular.WriteCSV(out, rows); err != nil {
		_ = out.Close()
		done(err)
		return res, err
	}
	if err := out.Close(); err != nil {
		done(err)
		return res, fmt.Errorf("close %s: %w", opt.Output, err)
	}
	res.Written = 1
	metrics.RecordRecords("read", res.Read)
	log.Info("topics written", zap.String("output", opt.Output), zap.Int("rows", res.Read))
	done(nil)
	return res, nil
}
