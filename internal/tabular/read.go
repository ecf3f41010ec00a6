package tabular

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"eduetl/internal/config"
	"eduetl/internal/record"
)

// Format is the input format inferred from a file name.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
)

// DetectFormat maps a path or URL extension to a Format. An explicit
// "format" option wins.
func DetectFormat(src string, opt config.Options) (Format, error) {
	if f := opt.String("format", ""); f != "" {
		return Format(strings.ToLower(f)), nil
	}
	name := src
	if IsURL(src) {
		if u, err := url.Parse(src); err == nil {
			name = path.Base(u.Path)
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".html", ".htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("cannot infer format of %q", src)
}

// ReadRows reads src as raw rows (header included). HTML listings have no
// raw form and are rejected.
func ReadRows(ctx context.Context, o Opener, src string, opt config.Options, onErr func(line int, err error)) ([][]string, error) {
	rows, _, err := ReadRowLines(ctx, o, src, opt, onErr)
	return rows, err
}

// ReadRowLines is ReadRows plus the source line of each row. Lines are nil
// for workbooks, where row i sits on line i+1.
func ReadRowLines(ctx context.Context, o Opener, src string, opt config.Options, onErr func(line int, err error)) ([][]string, []int, error) {
	format, err := DetectFormat(src, opt)
	if err != nil {
		return nil, nil, err
	}
	switch format {
	case FormatXLSX:
		if IsURL(src) {
			return nil, nil, fmt.Errorf("xlsx input must be a local file: %s", src)
		}
		s, err := ReadFirstSheet(src)
		if err != nil {
			return nil, nil, err
		}
		return s.Rows, nil, nil
	case FormatCSV:
		rc, err := o.Open(ctx, src)
		if err != nil {
			return nil, nil, err
		}
		defer rc.Close()
		return ReadCSVLines(ctx, rc, opt, onErr)
	}
	return nil, nil, fmt.Errorf("format %s has no row form", format)
}

// ReadRecords reads src as header-keyed records, whatever its format.
func ReadRecords(ctx context.Context, o Opener, src string, opt config.Options, onErr func(line int, err error)) ([]record.Record, error) {
	format, err := DetectFormat(src, opt)
	if err != nil {
		return nil, err
	}
	if format == FormatHTML {
		rc, err := o.Open(ctx, src)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return ReadHTML(rc, HTMLListingFromOptions(opt))
	}
	rows, lines, err := ReadRowLines(ctx, o, src, opt, onErr)
	if err != nil {
		return nil, err
	}
	return RecordsAt(rows, lines, opt), nil
}
