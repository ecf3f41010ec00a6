package main

import (
	"eduetl/internal/classify"
	"eduetl/internal/jobs"

	"github.com/spf13/cobra"
)

func (a *app) segregateCmd() *cobra.Command {
	var (
		opt    jobs.SegregateOptions
		format string
	)
	cmd := &cobra.Command{
		Use:   "segregate-urls",
		Short: "Group rows by the folder structure of their video_url, one workbook per folder",
		Long: `segregate-urls reads rows with id and video_url columns from an XLSX, CSV or
HTML listing (a local path or an http(s) URL) and writes
<output-dir>/<folders...>/<last folder>.xlsx for every folder found.

Rows with a missing or malformed URL are written to the audit log with their
spreadsheet row number.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opt.Reader = a.readerOptions(format)
			res, err := jobs.SegregateURLs(cmd.Context(), a.env(), opt)
			if err != nil {
				return err
			}
			a.report(cmd, res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opt.Input, "input", "", "input file or URL (required)")
	f.StringVar(&opt.OutputDir, "output-dir", "qrCodes", "output root")
	f.StringVar(&opt.Type, "type", "video", "value written to the type column")
	f.StringVar(&opt.Review, "review", "", "workbook receiving the rows that could not be grouped")
	f.StringVar(&format, "format", "", "csv, xlsx or html (default from the extension)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) splitChaptersCmd() *cobra.Command {
	var (
		opt   jobs.SplitChaptersOptions
		rules string
	)
	cmd := &cobra.Command{
		Use:   "split-chapters",
		Short: "Split rows into one workbook per chapter code (C<n>Q) found in the third column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rules != "" {
				rs, err := classify.LoadRules(rules)
				if err != nil {
					return err
				}
				opt.Rules = rs
			}
			opt.Reader = a.readerOptions("")
			res, err := jobs.SplitChapters(cmd.Context(), a.env(), opt)
			if err != nil {
				return err
			}
			a.report(cmd, res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opt.Input, "input", "", "XLSX or CSV input (required)")
	f.StringVar(&opt.OutputDir, "output-dir", ".", "output directory")
	f.StringVar(&opt.Prefix, "prefix", "", "output file prefix (default the input file name)")
	f.StringVar(&rules, "rules", "", "YAML rule file replacing the chapter-code rule")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) splitGradesCmd() *cobra.Command {
	var (
		opt   jobs.SplitGradesOptions
		rules string
	)
	cmd := &cobra.Command{
		Use:   "split-grades",
		Short: "Sort workbook sheets into Grade 11, Grade 12 and Undetermined workbooks",
		Long: `split-grades classifies every sheet of every .xlsx file in --input-dir by
syllabus topic, looking at the file name, the sheet name and the first row
(then the first five rows), and writes
  <output-dir>/Grade_11/<file>_Grade11.xlsx
  <output-dir>/Grade_12/<file>_Grade12.xlsx
  <output-dir>/<file>_Undetermined.xlsx

Rules from --rules are tried before the built-in topic list. Legacy .xls
files are not read; they are counted as skipped and audited.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rules != "" {
				rs, err := classify.LoadRules(rules)
				if err != nil {
					return err
				}
				opt.Rules = rs
			}
			res, err := jobs.SplitGrades(cmd.Context(), a.env(), opt)
			if err != nil {
				return err
			}
			a.report(cmd, res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opt.InputDir, "input-dir", "", "directory of workbooks (required)")
	f.StringVar(&opt.OutputDir, "output-dir", "output_files", "output root")
	f.StringVar(&rules, "rules", "", "YAML rule file evaluated before the built-in rules")
	_ = cmd.MarkFlagRequired("input-dir")
	return cmd
}
