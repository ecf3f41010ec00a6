package main

import (
	"eduetl/internal/jobs"
	"eduetl/internal/objectstore"

	"github.com/spf13/cobra"
)

func (a *app) assetCatalogCmd() *cobra.Command {
	var (
		opt                       jobs.AssetCatalogOptions
		bucket, endpoint, baseURL string
	)
	cmd := &cobra.Command{
		Use:   "asset-catalog",
		Short: "Write a {name, url} JSON catalog per chapter folder of an object-store prefix",
		Long: `asset-catalog lists the folders directly under --prefix (one per chapter),
lists every object in each of them and writes <output-dir>/<chapter>.json.

Endpoint, bucket, credentials and public base URL come from the objectstore
section of the config; an endpoint of the form file:///dir reads a local
directory laid out like the bucket instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := a.cfg.ObjectStore
			if bucket != "" {
				sc.Bucket = bucket
			}
			if endpoint != "" {
				sc.Endpoint = endpoint
			}
			if baseURL != "" {
				sc.PublicBaseURL = baseURL
			}
			if opt.Prefix == "" {
				opt.Prefix = sc.Prefix
			}

			lister, err := objectstore.New(sc)
			if err != nil {
				return err
			}
			cat := objectstore.Catalog{Lister: lister, PublicBaseURL: sc.PublicBaseURL}
			res, err := jobs.AssetCatalog(cmd.Context(), a.env(), cat, opt)
			if err != nil {
				return err
			}
			a.report(cmd, res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opt.Prefix, "prefix", "", "base prefix holding the chapter folders (default objectstore.prefix)")
	f.StringVar(&opt.OutputDir, "output-dir", "output", "directory for the per-chapter JSON files")
	f.StringVar(&opt.XLSX, "xlsx", "", "also write a workbook with one sheet per chapter")
	f.StringVar(&bucket, "bucket", "", "bucket (overrides config)")
	f.StringVar(&endpoint, "endpoint", "", "endpoint URL (overrides config)")
	f.StringVar(&baseURL, "public-base-url", "", "URL prefix for object links (overrides config)")
	return cmd
}
