package htmltable

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"toursync/internal/source"
)

const page = `<html><body>
<table>
  <caption>Reservas</caption>
  <tr><th>Reservation Number</th><th>Customer Name</th></tr>
  <tr><td>BK-1</td><td>Maria&nbsp;Lopez</td></tr>
  <tr><td>BK-2</td><td>John Smith</td></tr>
</table>
<table>
  <tr><th>Code</th><th>Name</th></tr>
  <tr><td>T-1</td><td>City Walk</td></tr>
</table>
</body></html>`

func writePage(t *testing.T, html string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestListSheets(t *testing.T) {
	path := writePage(t, page)

	sheets, err := New().ListSheets(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sheets) != 2 || sheets[0] != "Reservas" || sheets[1] != "table-2" {
		t.Fatalf("sheets: %+v", sheets)
	}
}

func TestReadRows(t *testing.T) {
	path := writePage(t, page)

	rows, err := New().ReadRows(context.Background(), path, "Reservas")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: %d", len(rows))
	}
	if rows[0].Cells["Customer Name"] != "Maria Lopez" {
		t.Fatalf("nbsp not collapsed: %q", rows[0].Cells["Customer Name"])
	}

	rows, err = New().ReadRows(context.Background(), path, "table-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Cells["Code"] != "T-1" {
		t.Fatalf("anonymous table: %+v", rows)
	}
}

func TestMissingTableAndFile(t *testing.T) {
	path := writePage(t, page)

	var srcErr *source.Error
	_, err := New().ReadRows(context.Background(), path, "NoSuchTable")
	if !errors.As(err, &srcErr) || srcErr.Kind != source.KindNotFound {
		t.Fatalf("missing table: %v", err)
	}

	_, err = New().ReadRows(context.Background(), filepath.Join(t.TempDir(), "nope.html"), "Reservas")
	if !errors.As(err, &srcErr) || srcErr.Kind != source.KindNotFound {
		t.Fatalf("missing file: %v", err)
	}
}
