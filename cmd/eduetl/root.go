package main

import (
	"fmt"
	"strings"

	"eduetl/internal/audit"
	"eduetl/internal/config"
	"eduetl/internal/jobs"
	"eduetl/internal/metrics"
	"eduetl/internal/metrics/datadog"
	"eduetl/internal/tabular"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	cfgPath        string
	verbose        bool
	metricsBackend string
	auditPath      string

	getenv func(string) string

	cfg     config.Config
	log     *zap.Logger
	audit   *audit.Log
	closers []func() error
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eduetl",
		Short: "Batch migration jobs for course, asset and spreadsheet data",
		Long: `eduetl reads course trees, object-store listings and spreadsheets,
groups or flattens them, and writes the results as XLSX, CSV or JSON files.

Rows that cannot be processed are skipped and written to the audit log
(--audit, JSON lines, appended across runs).`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file, YAML or JSON (default $"+config.EnvConfigPath+")")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logs")
	pf.StringVar(&a.metricsBackend, "metrics-backend", "", "metrics backend: none, datadog (overrides config)")
	pf.StringVar(&a.auditPath, "audit", "", "audit log path, empty to disable (overrides config)")

	root.AddCommand(
		a.patchUsersCmd(),
		a.csv2xlsxCmd(),
		a.topicsCSVCmd(),
		a.assetCatalogCmd(),
		a.courseExportCmd(),
		a.segregateCmd(),
		a.splitChaptersCmd(),
		a.splitGradesCmd(),
	)
	return root
}

// setup loads the config and builds the logger, audit log and metrics
// backend. Flags win over the config file.
func (a *app) setup(cmd *cobra.Command) error {
	path := a.cfgPath
	if path == "" {
		path = a.getenv(config.EnvConfigPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.metricsBackend != "" {
		cfg.Metrics.Backend = a.metricsBackend
	}
	if cmd.Flags().Changed("audit") {
		cfg.Audit.Path = a.auditPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	zcfg := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if a.verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if a.log, err = zcfg.Build(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.log = a.log.With(zap.String("command", cmd.Name()))

	if a.audit, err = audit.Open(cfg.Audit.Path); err != nil {
		return err
	}
	a.closers = append(a.closers, a.audit.Close)
	a.log = a.log.With(zap.String("run_id", a.audit.RunID()))

	a.setupMetrics(cmd)
	return nil
}

func (a *app) setupMetrics(cmd *cobra.Command) {
	switch name := strings.ToLower(a.cfg.Metrics.Backend); name {
	case "datadog":
		tags := append(append([]string(nil), a.cfg.Metrics.Tags...), datadog.ParseTagsCSV(a.getenv("METRICS_TAGS"))...)
		b, err := datadog.NewBackend(cmd.Context(), datadog.Options{JobName: a.cfg.Metrics.Job, Tags: tags})
		if err != nil {
			a.log.Warn("metrics: datadog backend unavailable, using nop", zap.Error(err))
			return
		}
		metrics.SetBackend(b)
		a.closers = append(a.closers, func() error {
			defer metrics.SetBackend(nil)
			return b.Close()
		})
		a.log.Debug("metrics enabled", zap.String("backend", name), zap.Strings("tags", tags))
	default:
		a.log.Debug("metrics disabled", zap.String("backend", name))
	}
}

// close releases what setup opened, newest first.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.Warn("shutdown", zap.Error(err))
		}
	}
	a.closers = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) env() jobs.Env {
	return jobs.Env{Logger: a.log, Audit: a.audit, Opener: tabular.Opener{}}
}

// report prints the job result and the audit count for the run.
func (a *app) report(cmd *cobra.Command, res jobs.Result) {
	a.log.Info("job finished",
		zap.Int("read", res.Read), zap.Int("written", res.Written),
		zap.Int("failed", res.Failed), zap.Int("skipped", res.Skipped),
		zap.Int("audited", a.audit.Total()))
	if err := metrics.Flush(); err != nil {
		a.log.Warn("metrics flush", zap.Error(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.String())
}

// readerOptions returns the configured tabular reader options with format
// forced when non-empty.
func (a *app) readerOptions(format string) config.Options {
	opt := config.Options{}
	for k, v := range a.cfg.Reader {
		opt[k] = v
	}
	if format != "" {
		opt["format"] = format
	}
	return opt
}
