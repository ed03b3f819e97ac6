package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
)

const defaultXLSXSheet = "Ledger"

// XLSXTable stores the ledger in a local workbook, saving after every change.
type XLSXTable struct {
	path  string
	sheet string
	mu    sync.Mutex
}

// OpenXLSX creates the workbook and sheet when they do not exist yet.
func OpenXLSX(path, sheet string) (*XLSXTable, error) {
	if sheet == "" {
		sheet = defaultXLSXSheet
	}
	t := &XLSXTable{path: path, sheet: sheet}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		f := excelize.NewFile()
		defer f.Close()
		if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
			return nil, err
		}
		if err := f.SaveAs(path); err != nil {
			return nil, fmt.Errorf("create workbook: %w", err)
		}
		return t, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, err
	}
	if idx == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		if err := f.Save(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *XLSXTable) Rows(_ context.Context) ([][]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := excelize.OpenFile(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(t.sheet)
	if err != nil {
		return nil, err
	}
	for r, row := range rows {
		for c := range row {
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			formula, err := f.GetCellFormula(t.sheet, name)
			if err == nil && formula != "" {
				row[c] = "=" + formula
			}
		}
	}
	return rows, nil
}

func (t *XLSXTable) InsertRow(_ context.Context, index int, values []any) error {
	return t.update(func(f *excelize.File) error {
		if err := f.InsertRows(t.sheet, index, 1); err != nil {
			return err
		}
		start, err := excelize.CoordinatesToCellName(1, index)
		if err != nil {
			return err
		}
		cells := make([]any, len(values))
		for i, v := range values {
			if text, ok := v.(Text); ok {
				v = string(text)
			}
			cells[i] = v
		}
		return f.SetSheetRow(t.sheet, start, &cells)
	})
}

func (t *XLSXTable) DeleteRow(_ context.Context, index int) error {
	return t.update(func(f *excelize.File) error {
		return f.RemoveRow(t.sheet, index)
	})
}

func (t *XLSXTable) update(fn func(*excelize.File) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := excelize.OpenFile(t.path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}
	return f.Save()
}
