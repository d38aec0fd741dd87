package syncer

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"toursync/internal"
)

// ExportResultToXLSX writes a sync run report for the operations staff: a
// summary sheet, one row per error, and the orphaned keys awaiting a human
// deletion decision.
func ExportResultToXLSX(req Request, result internal.SyncResult, outputPath string) error {
	f := excelize.NewFile()
	summary := f.GetSheetName(0)

	set := func(sheet string, col, row int, value any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, value)
	}

	summaryRows := [][]any{
		{"target_table", req.TargetTable},
		{"spreadsheet_id", req.SpreadsheetID},
		{"sheet_name", req.SheetName},
		{"mode", string(req.Mode)},
		{"success", result.Success},
		{"aborted", result.Aborted},
		{"processed", result.Processed},
		{"inserted", result.Inserted},
		{"updated", result.Updated},
		{"skipped", result.Skipped},
		{"errors", result.Errors},
		{"message", result.Message},
	}
	for i, row := range summaryRows {
		set(summary, 1, i+1, row[0])
		set(summary, 2, i+1, row[1])
	}

	if len(result.ErrorDetails) > 0 {
		sheet := "errors"
		_, _ = f.NewSheet(sheet)
		headers := []string{"row_index", "external_key", "field", "message"}
		for i, h := range headers {
			set(sheet, i+1, 1, h)
		}
		for i, e := range result.ErrorDetails {
			set(sheet, 1, i+2, e.RowIndex)
			set(sheet, 2, i+2, e.ExternalKey)
			set(sheet, 3, i+2, e.Field)
			set(sheet, 4, i+2, e.Message)
		}
	}

	if len(result.OrphanedKeys) > 0 {
		sheet := "orphaned"
		_, _ = f.NewSheet(sheet)
		set(sheet, 1, 1, "external_key")
		for i, key := range result.OrphanedKeys {
			set(sheet, 1, i+2, key)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
