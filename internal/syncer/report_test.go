package syncer

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"toursync/internal"
)

func TestExportResultToXLSX(t *testing.T) {
	req := Request{
		SpreadsheetID: "sheet-1",
		SheetName:     "Reservas",
		TargetTable:   "reservations",
		Mode:          internal.ModeFull,
	}
	result := internal.SyncResult{
		Success:   true,
		Processed: 3,
		Inserted:  2,
		Skipped:   1,
		Errors:    1,
		Message:   "synced reservations",
		ErrorDetails: []internal.RowError{
			{RowIndex: 4, ExternalKey: "BK-4", Field: "reservation_date", Message: "cannot parse date"},
		},
		OrphanedKeys: []string{"BK-9"},
	}

	path := filepath.Join(t.TempDir(), "reports", "run.xlsx")
	if err := ExportResultToXLSX(req, result, path); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue(f.GetSheetName(0), "B1"); got != "reservations" {
		t.Errorf("summary target = %q", got)
	}

	if got, _ := f.GetCellValue("errors", "B2"); got != "BK-4" {
		t.Errorf("errors sheet key = %q", got)
	}
	if got, _ := f.GetCellValue("errors", "C2"); got != "reservation_date" {
		t.Errorf("errors sheet field = %q", got)
	}

	if got, _ := f.GetCellValue("orphaned", "A2"); got != "BK-9" {
		t.Errorf("orphaned sheet key = %q", got)
	}
}
