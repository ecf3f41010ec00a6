package tabular

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet worth of rows.
type Sheet struct {
	Name string
	Rows [][]string
}

// ReadWorkbook returns every sheet of the workbook at path, in tab order.
// Trailing empty rows are not returned by excelize; blank rows in the middle
// are kept.
func ReadWorkbook(path string) ([]Sheet, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	names := f.GetSheetList()
	out := make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q of %s: %w", name, path, err)
		}
		out = append(out, Sheet{Name: name, Rows: rows})
	}
	return out, nil
}

// ReadFirstSheet returns the rows of the first sheet.
func ReadFirstSheet(path string) (Sheet, error) {
	sheets, err := ReadWorkbook(path)
	if err != nil {
		return Sheet{}, err
	}
	if len(sheets) == 0 {
		return Sheet{}, fmt.Errorf("workbook %s has no sheets", path)
	}
	return sheets[0], nil
}

// WriteWorkbook writes sheets to path, creating parent directories. An empty
// sheet list produces a workbook with one empty "Sheet1". Sheet names are
// made valid and unique with SheetName.
func WriteWorkbook(path string, sheets []Sheet) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	used := make(map[string]bool, len(sheets))
	for i, s := range sheets {
		name := uniqueSheetName(SheetName(s.Name), used)
		if i == 0 {
			if name != defaultSheet {
				if err := f.SetSheetName(defaultSheet, name); err != nil {
					return fmt.Errorf("rename sheet: %w", err)
				}
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %q: %w", name, err)
		}
		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			vals := make([]any, len(row))
			for c, v := range row {
				vals[c] = v
			}
			if err := f.SetSheetRow(name, cell, &vals); err != nil {
				return fmt.Errorf("write row %d of sheet %q: %w", r+1, name, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// SheetName makes s a legal worksheet name: the characters []:*?/\ are
// dropped, the result is cut to 31 runes, and "Sheet1" stands in for an
// empty name.
func SheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if rs := []rune(s); len(rs) > 31 {
		s = string(rs[:31])
	}
	if s == "" {
		return "Sheet1"
	}
	return s
}

func uniqueSheetName(name string, used map[string]bool) string {
	cand := name
	for n := 2; used[strings.ToLower(cand)]; n++ {
		suffix := fmt.Sprintf("_%d", n)
		base := []rune(name)
		if len(base)+len(suffix) > 31 {
			base = base[:31-len(suffix)]
		}
		cand = string(base) + suffix
	}
	used[strings.ToLower(cand)] = true
	return cand
}
