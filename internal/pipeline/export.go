package pipeline

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"receiptbook/internal"
	"receiptbook/internal/ledger"
)

// ExportLedgerToXLSX writes a ledger snapshot, header row included, into a
// fresh workbook at outputPath. Amount columns are written as numbers; every
// other cell, receipt numbers included, stays text.
func ExportLedgerToXLSX(rows [][]string, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	var amounts map[int]bool
	if len(rows) > 0 {
		amounts = amountColumns(rows[0])
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
			if i == 0 || !amounts[j] {
				continue
			}
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				values[j] = n
			}
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func amountColumns(header []string) map[int]bool {
	names := map[string]bool{ledger.ColCost: true}
	for _, c := range internal.Categories {
		names[string(c)] = true
	}
	out := make(map[int]bool)
	for i, h := range header {
		if names[h] {
			out[i] = true
		}
	}
	return out
}
