package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"toursync/internal"
	"toursync/internal/schema"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "toursync.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func record(key string, fields map[string]string) internal.NormalizedRecord {
	rec := internal.NormalizedRecord{ExternalKey: key, Fields: map[string]internal.Value{}}
	for name, canonical := range fields {
		rec.Fields[name] = internal.Value{Raw: canonical, Canonical: canonical}
	}
	return rec
}

func TestUpsertBatchRoundTrip(t *testing.T) {
	db := openTestDB(t)
	target, err := schema.Find("reservations")
	if err != nil {
		t.Fatal(err)
	}

	batch := []internal.NormalizedRecord{
		record("BK-1", map[string]string{"customer_name": "Maria Lopez", "total_amount": "1200", "paid": "true"}),
		record("BK-2", map[string]string{"customer_name": "John Smith"}),
	}
	if err := db.UpsertBatch(context.Background(), target, batch); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	records, err := db.ListRecords(target)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 records, got %d", len(records))
	}

	byKey := map[string]internal.StoredRecord{}
	for _, rec := range records {
		byKey[rec.ExternalKey] = rec
	}
	bk1 := byKey["BK-1"]
	if bk1.Fields["customer_name"] != "Maria Lopez" || bk1.Fields["total_amount"] != "1200" {
		t.Fatalf("BK-1 fields: %+v", bk1.Fields)
	}
	if bk1.Source != internal.RecordSourceSync {
		t.Errorf("source = %q", bk1.Source)
	}
	// Empty canonicals are stored as NULL and come back absent.
	if _, ok := byKey["BK-2"].Fields["total_amount"]; ok {
		t.Error("unset field must not round-trip as empty string")
	}

	// Re-upserting the same key updates in place instead of duplicating.
	err = db.UpsertBatch(context.Background(), target, []internal.NormalizedRecord{
		record("BK-1", map[string]string{"customer_name": "Maria L. Lopez"}),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	records, _ = db.ListRecords(target)
	if len(records) != 2 {
		t.Fatalf("upsert duplicated a key, have %d records", len(records))
	}
	for _, rec := range records {
		if rec.ExternalKey == "BK-1" && rec.Fields["customer_name"] != "Maria L. Lopez" {
			t.Fatalf("update not applied: %+v", rec.Fields)
		}
	}
}

func TestOverrideField(t *testing.T) {
	db := openTestDB(t)
	target, _ := schema.Find("reservations")

	err := db.UpsertRecord(context.Background(), target,
		record("BK-1", map[string]string{"customer_name": "Maria Lopez"}))
	if err != nil {
		t.Fatal(err)
	}

	if err := db.OverrideField(target, "BK-1", "notes", "VIP pickup"); err != nil {
		t.Fatalf("override: %v", err)
	}

	records, _ := db.ListRecords(target)
	rec := records[0]
	if rec.Fields["notes"] != "VIP pickup" {
		t.Fatalf("notes = %q", rec.Fields["notes"])
	}
	if !rec.IsManualField("notes") {
		t.Fatal("notes must be flagged manual")
	}
	if rec.Source != internal.RecordSourceManual {
		t.Errorf("source = %q", rec.Source)
	}

	// Flagging the same field twice must not duplicate the marker.
	if err := db.OverrideField(target, "BK-1", "notes", "Hotel pickup"); err != nil {
		t.Fatal(err)
	}
	records, _ = db.ListRecords(target)
	if n := len(records[0].ManualFields); n != 1 {
		t.Fatalf("manualFields grew to %d entries", n)
	}

	if err := db.OverrideField(target, "BK-1", "nope", "x"); err == nil {
		t.Fatal("unknown field must be rejected")
	}
	if err := db.OverrideField(target, "BK-404", "notes", "x"); err == nil {
		t.Fatal("missing record must be rejected")
	}
}

func TestMappingStore(t *testing.T) {
	db := openTestDB(t)

	missing, err := db.GetMapping("Reservas", "reservations")
	if err != nil || missing != nil {
		t.Fatalf("absent mapping: %v %v", missing, err)
	}

	mapping := internal.ColumnMapping{"reservation_number": "Reserva", "customer_name": "Cliente"}
	if err := db.SaveMapping("Reservas", "reservations", mapping); err != nil {
		t.Fatal(err)
	}

	// Saving again replaces rather than conflicting.
	mapping["customer_name"] = "Nombre"
	if err := db.SaveMapping("Reservas", "reservations", mapping); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMapping("Reservas", "reservations")
	if err != nil {
		t.Fatal(err)
	}
	if got["customer_name"] != "Nombre" || got["reservation_number"] != "Reserva" {
		t.Fatalf("mapping round-trip: %+v", got)
	}
}

func TestHistoryStore(t *testing.T) {
	db := openTestDB(t)

	missing, err := db.GetHistory("reservations", "sheet-1")
	if err != nil || missing != nil {
		t.Fatalf("absent history: %v %v", missing, err)
	}

	at := time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)
	err = db.SetHistory(internal.SyncHistory{
		TargetTable: "reservations", SpreadsheetID: "sheet-1", LastSyncTime: at, RecordCount: 42,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := db.GetHistory("reservations", "sheet-1")
	if err != nil || got == nil {
		t.Fatalf("history: %v %v", got, err)
	}
	if !got.LastSyncTime.Equal(at) || got.RecordCount != 42 {
		t.Fatalf("round-trip: %+v", got)
	}

	// Updating the same pair keeps a single row per (table, spreadsheet).
	err = db.SetHistory(internal.SyncHistory{
		TargetTable: "reservations", SpreadsheetID: "sheet-1", LastSyncTime: at.Add(time.Hour), RecordCount: 43,
	})
	if err != nil {
		t.Fatal(err)
	}
	all, err := db.ListHistory("reservations")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].RecordCount != 43 {
		t.Fatalf("listHistory: %+v", all)
	}
}

func TestInsertRun(t *testing.T) {
	db := openTestDB(t)

	run := &internal.SyncRun{
		TargetTable:   "reservations",
		SpreadsheetID: "sheet-1",
		SheetName:     "Reservas",
		Mode:          internal.ModeFull,
		StartedAt:     time.Now().UTC(),
	}
	result := internal.SyncResult{
		Processed: 10, Inserted: 7, Updated: 2, Skipped: 1,
		ErrorDetails: []internal.RowError{{RowIndex: 3, ExternalKey: "BK-3", Message: "bad date"}},
	}
	if err := db.InsertRun(run, result); err != nil {
		t.Fatalf("insertRun: %v", err)
	}

	runs, err := db.ListRuns("reservations")
	if err != nil {
		t.Fatalf("listRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs: %+v", runs)
	}
	got := runs[0]
	if got.SheetName != "Reservas" || got.Mode != "full" {
		t.Fatalf("run: %+v", got)
	}
	if got.Counts["inserted"] != 7 || got.Counts["errors"] != 0 {
		t.Fatalf("counts: %+v", got.Counts)
	}
	if !got.StartedAt.Equal(run.StartedAt.Truncate(time.Second)) {
		t.Fatalf("startedAt: %v vs %v", got.StartedAt, run.StartedAt)
	}

	if other, err := db.ListRuns("tours"); err != nil || len(other) != 0 {
		t.Fatalf("filter: %v %v", other, err)
	}
}
