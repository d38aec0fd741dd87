package syncer

import (
	"testing"

	"toursync/internal"
)

var reservationMapping = internal.ColumnMapping{
	"reservation_number": "Booking Ref",
	"customer_name":      "Guest",
	"reservation_date":   "Date",
	"pax":                "Pax",
	"total_amount":       "Total",
	"paid":               "Paid",
}

func reservationRow(index int, cells map[string]string) internal.ExternalRow {
	return internal.ExternalRow{Index: index, Cells: cells}
}

func TestNormalizeRowsHappyPath(t *testing.T) {
	target := mustTarget(t, "reservations")
	rows := []internal.ExternalRow{
		reservationRow(1, map[string]string{
			"Booking Ref": " bk-1001 ",
			"Guest":       "Alice Moreno",
			"Date":        "15/03/2026",
			"Pax":         "4",
			"Total":       "$1,200",
			"Paid":        "sí",
		}),
	}

	records, errs := NormalizeRows(rows, reservationMapping, target)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if len(records) != 1 {
		t.Fatalf("records=%d", len(records))
	}

	rec := records[0]
	if rec.ExternalKey != "BK-1001" {
		t.Fatalf("external key %q", rec.ExternalKey)
	}
	checks := map[string]string{
		"reservation_date": "2026-03-15",
		"pax":              "4",
		"total_amount":     "1200",
		"paid":             "true",
		"customer_name":    "Alice Moreno",
	}
	for field, want := range checks {
		if got := rec.Fields[field].Canonical; got != want {
			t.Fatalf("field %s = %q, want %q", field, got, want)
		}
	}
}

func TestNormalizeRowsMalformedRowIsIsolated(t *testing.T) {
	target := mustTarget(t, "reservations")
	rows := []internal.ExternalRow{
		reservationRow(1, map[string]string{
			"Booking Ref": "BK-1", "Guest": "A", "Date": "2026-01-10",
		}),
		reservationRow(2, map[string]string{
			"Booking Ref": "BK-2", "Guest": "B", "Date": "not a date",
		}),
		reservationRow(3, map[string]string{
			"Booking Ref": "BK-3", "Guest": "C", "Date": "2026-01-12",
		}),
	}

	records, errs := NormalizeRows(rows, reservationMapping, target)
	if len(records) != 2 {
		t.Fatalf("records=%d, want bad row excluded", len(records))
	}
	if len(errs) != 1 {
		t.Fatalf("errs=%+v", errs)
	}
	if errs[0].RowIndex != 2 || errs[0].Field != "reservation_date" {
		t.Fatalf("error should reference row 2 / reservation_date: %+v", errs[0])
	}
}

func TestNormalizeRowsRequiredFieldEmpty(t *testing.T) {
	target := mustTarget(t, "reservations")
	rows := []internal.ExternalRow{
		reservationRow(1, map[string]string{
			"Booking Ref": "BK-1", "Guest": "", "Date": "2026-01-10",
		}),
	}

	records, errs := NormalizeRows(rows, reservationMapping, target)
	if len(records) != 0 {
		t.Fatal("row with empty required field must be excluded")
	}
	if len(errs) != 1 || errs[0].Field != "customer_name" {
		t.Fatalf("errs=%+v", errs)
	}
}

func TestNormalizeRowsEmptyKey(t *testing.T) {
	target := mustTarget(t, "reservations")
	rows := []internal.ExternalRow{
		reservationRow(7, map[string]string{
			"Booking Ref": "   ", "Guest": "A", "Date": "2026-01-10",
		}),
	}

	records, errs := NormalizeRows(rows, reservationMapping, target)
	if len(records) != 0 {
		t.Fatal("row with empty key must be excluded")
	}
	if len(errs) == 0 || errs[0].RowIndex != 7 {
		t.Fatalf("errs=%+v", errs)
	}
}

func TestNormalizeRowsOptionalFieldStaysEmpty(t *testing.T) {
	target := mustTarget(t, "reservations")
	rows := []internal.ExternalRow{
		reservationRow(1, map[string]string{
			"Booking Ref": "BK-1", "Guest": "A", "Date": "2026-01-10", "Total": "",
		}),
	}

	records, errs := NormalizeRows(rows, reservationMapping, target)
	if len(errs) != 0 || len(records) != 1 {
		t.Fatalf("records=%d errs=%+v", len(records), errs)
	}
	if records[0].Fields["total_amount"].Canonical != "" {
		t.Fatal("empty optional field should stay empty")
	}
}
