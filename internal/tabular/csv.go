// Package tabular reads and writes the row-oriented files the jobs consume
// and produce: CSV, XLSX workbooks and HTML link listings.
//
// Readers return raw rows ([][]string) or, via Records, header-keyed
// record.Record values carrying their spreadsheet row number.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"eduetl/internal/config"
	"eduetl/internal/record"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// FieldRow holds the 1-based spreadsheet row a record came from (the header
// is row 1).
const FieldRow = "_row"

// ReadCSV reads every CSV row from src.
//
// Options:
//   - comma (rune, default ',')
//   - lazy_quotes (bool, default false)
//   - charset (string, default "utf-8"; any WHATWG label such as
//     "windows-1252" or "iso-8859-2")
//
// A leading UTF-8 BOM is stripped. Rows that fail to parse are reported to
// onErr with the physical line they start on and skipped; only I/O failures
// and cancellation abort the read.
func ReadCSV(ctx context.Context, src io.Reader, opt config.Options, onErr func(line int, err error)) ([][]string, error) {
	rows, _, err := ReadCSVLines(ctx, src, opt, onErr)
	return rows, err
}

// ReadCSVLines is ReadCSV that also returns, for each row, the physical line
// it starts on. Quoted fields spanning several lines and skipped bad rows
// keep later line numbers aligned with the file.
func ReadCSVLines(ctx context.Context, src io.Reader, opt config.Options, onErr func(line int, err error)) ([][]string, []int, error) {
	r, err := decodeCharset(src, opt.String("charset", "utf-8"))
	if err != nil {
		return nil, nil, err
	}

	cr := csv.NewReader(r)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1

	var (
		rows  [][]string
		lines []int
	)
	for {
		if err := ctx.Err(); err != nil {
			return rows, lines, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				if onErr != nil {
					onErr(perr.StartLine, fmt.Errorf("csv read: %w", err))
				}
				continue
			}
			return rows, lines, fmt.Errorf("csv read: %w", err)
		}
		if len(rows) == 0 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\uFEFF")
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}
	return rows, lines, nil
}

func decodeCharset(r io.Reader, name string) (io.Reader, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "utf-8" || name == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", name, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// WriteCSV writes rows to w.
func WriteCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	return nil
}

// Records turns rows (header first) into records keyed by normalized header
// names. Header cells are trimmed, looked up in header_map, and otherwise
// lower-cased with spaces replaced by '_'. Values are trimmed when trim_space
// is set (default true); empty cells are kept as "".
func Records(rows [][]string, opt config.Options) []record.Record {
	return RecordsAt(rows, nil, opt)
}

// RecordsAt is Records with explicit source line numbers: lines[i] is the
// line rows[i] was read from. With nil lines, row i is numbered i+1.
func RecordsAt(rows [][]string, lines []int, opt config.Options) []record.Record {
	if len(rows) == 0 {
		return nil
	}
	hm := opt.StringMap("header_map")
	trim := opt.Bool("trim_space", true)

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if mapped, ok := hm[h]; ok {
			header[i] = mapped
			continue
		}
		header[i] = strings.ReplaceAll(strings.ToLower(h), " ", "_")
	}

	out := make([]record.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec := make(record.Record, len(header)+1)
		for c, name := range header {
			if name == "" {
				continue
			}
			v := ""
			if c < len(row) {
				v = row[c]
			}
			if trim {
				v = strings.TrimSpace(v)
			}
			rec[name] = v
		}
		rec[FieldRow] = i + 2
		if i+1 < len(lines) {
			rec[FieldRow] = lines[i+1]
		}
		out = append(out, rec)
	}
	return out
}

// DropBlankRows removes rows whose cells are all empty or whitespace.
func DropBlankRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, r := range rows {
		if !isBlank(r) {
			out = append(out, r)
		}
	}
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
