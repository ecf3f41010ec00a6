package main

import (
	"eduetl/internal/jobs"

	"github.com/spf13/cobra"
)

func (a *app) patchUsersCmd() *cobra.Command {
	var opt jobs.PatchUsersOptions
	cmd := &cobra.Command{
		Use:   "patch-users",
		Short: "Copy a reference student's first course onto every student of another batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := jobs.PatchUsers(cmd.Context(), a.env(), opt)
			if err != nil {
				return err
			}
			a.report(cmd, res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opt.Input, "input", "", "JSON array of login responses (required)")
	f.StringVar(&opt.Output, "output", "updated_users.json", "output JSON path")
	f.StringVar(&opt.SourceBatch, "source-batch", "Class 11", "batch the reference student belongs to")
	f.StringVar(&opt.TargetBatch, "target-batch", "Class 12", "batch whose students are patched")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) csv2xlsxCmd() *cobra.Command {
	var opt jobs.CSVToXLSXOptions
	cmd := &cobra.Command{
		Use:   "csv2xlsx",
		Short: "Convert every CSV file below a directory into an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opt.Reader = a.readerOptions("")
			res, err := jobs.CSVToXLSX(cmd.Context(), a.env(), opt)
			if err != nil {
				return err
			}
			a.report(cmd, res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opt.InputDir, "input-dir", "", "directory searched recursively for .csv files (required)")
	f.StringVar(&opt.OutputDir, "output-dir", "output_excel", "output root; relative paths are mirrored")
	_ = cmd.MarkFlagRequired("input-dir")
	return cmd
}

func (a *app) topicsCSVCmd() *cobra.Command {
	var opt jobs.TopicsCSVOptions
	cmd := &cobra.Command{
		Use:   "topics-csv",
		Short: "List <subject>/<video> files as a subject,topic CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := jobs.TopicsCSV(cmd.Context(), a.env(), opt)
			if err != nil {
				return err
			}
			a.report(cmd, res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opt.BaseDir, "base-dir", "", "directory holding one folder per subject (required)")
	f.StringVar(&opt.Output, "output", "all_videos.csv", "output CSV path")
	f.StringVar(&opt.Ext, "ext", ".mp4", "video file extension, case-insensitive")
	_ = cmd.MarkFlagRequired("base-dir")
	return cmd
}
