package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"toursync/internal"
	"toursync/internal/schema"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schemaSQL := `
CREATE TABLE IF NOT EXISTS column_mappings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sheetName TEXT NOT NULL,
  targetTable TEXT NOT NULL,
  mappingJson TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(sheetName, targetTable)
);

CREATE TABLE IF NOT EXISTS sync_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  targetTable TEXT NOT NULL,
  spreadsheetId TEXT NOT NULL,
  lastSyncTime TEXT NOT NULL,
  recordCount INTEGER NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(targetTable, spreadsheetId)
);

CREATE TABLE IF NOT EXISTS sync_runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  targetTable TEXT NOT NULL,
  spreadsheetId TEXT NOT NULL,
  sheetName TEXT NOT NULL,
  mode TEXT NOT NULL,
  startedAt TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  errorsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := d.conn.Exec(schemaSQL); err != nil {
		return err
	}

	for _, target := range schema.Targets() {
		if _, err := d.conn.Exec(targetTableSQL(target)); err != nil {
			return err
		}
	}
	return nil
}

// Target tables are generated from the schema registry: a surrogate primary
// key, the reconciliation key, the sync/manual source marker, and one TEXT
// column per schema field holding the canonical encoding.
func targetTableSQL(target schema.Target) string {
	cols := []string{
		"id INTEGER PRIMARY KEY AUTOINCREMENT",
		"externalKey TEXT NOT NULL UNIQUE",
		"source TEXT NOT NULL DEFAULT 'sync'",
		"manualFields TEXT NOT NULL DEFAULT '[]'",
	}
	for _, f := range target.Fields {
		cols = append(cols, f.Name+" TEXT")
	}
	cols = append(cols, "updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", target.Table, strings.Join(cols, ",\n  "))
}

func (d *DB) ListRecords(target schema.Target) ([]internal.StoredRecord, error) {
	fieldNames := make([]string, 0, len(target.Fields))
	for _, f := range target.Fields {
		fieldNames = append(fieldNames, f.Name)
	}

	query := fmt.Sprintf(
		"SELECT id, externalKey, source, manualFields, updatedAt, %s FROM %s",
		strings.Join(fieldNames, ", "), target.Table,
	)
	rows, err := d.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StoredRecord
	for rows.Next() {
		var rec internal.StoredRecord
		var manualJSON string
		values := make([]sql.NullString, len(fieldNames))

		dest := []any{&rec.ID, &rec.ExternalKey, &rec.Source, &manualJSON, &rec.UpdatedAt}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		_ = json.Unmarshal([]byte(manualJSON), &rec.ManualFields)
		rec.Fields = map[string]string{}
		for i, name := range fieldNames {
			if values[i].Valid {
				rec.Fields[name] = values[i].String
			}
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

// UpsertBatch writes records keyed by externalKey in one transaction.
// Field values arrive pre-merged, so the conflict clause overwrites every
// schema column while leaving source and manualFields untouched.
func (d *DB) UpsertBatch(ctx context.Context, target schema.Target, records []internal.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertSQL(target))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, upsertArgs(target, rec)...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) UpsertRecord(ctx context.Context, target schema.Target, rec internal.NormalizedRecord) error {
	_, err := d.conn.ExecContext(ctx, upsertSQL(target), upsertArgs(target, rec)...)
	return err
}

func upsertSQL(target schema.Target) string {
	insertCols := []string{"externalKey", "source"}
	placeholders := []string{"?", "?"}
	updateSets := []string{}
	for _, f := range target.Fields {
		insertCols = append(insertCols, f.Name)
		placeholders = append(placeholders, "?")
		updateSets = append(updateSets, fmt.Sprintf("%s=excluded.%s", f.Name, f.Name))
	}
	updateSets = append(updateSets, "updatedAt=CURRENT_TIMESTAMP")

	return fmt.Sprintf(`
INSERT INTO %s (%s) VALUES (%s)
ON CONFLICT(externalKey) DO UPDATE SET
  %s
`, target.Table, strings.Join(insertCols, ", "), strings.Join(placeholders, ", "), strings.Join(updateSets, ",\n  "))
}

func upsertArgs(target schema.Target, rec internal.NormalizedRecord) []any {
	args := []any{rec.ExternalKey, internal.RecordSourceSync}
	for _, f := range target.Fields {
		v, ok := rec.Fields[f.Name]
		if !ok || v.Canonical == "" {
			args = append(args, nil)
			continue
		}
		args = append(args, v.Canonical)
	}
	return args
}

// OverrideField records a manual edit: the value is written and the field is
// added to manualFields so later syncs cannot silently clear it.
func (d *DB) OverrideField(target schema.Target, externalKey, field, canonical string) error {
	if _, ok := target.Field(field); !ok {
		return fmt.Errorf("unknown field %s for table %s", field, target.Table)
	}

	var manualJSON string
	err := d.conn.QueryRow(
		fmt.Sprintf("SELECT manualFields FROM %s WHERE externalKey = ?", target.Table), externalKey,
	).Scan(&manualJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no record with key %s in %s", externalKey, target.Table)
	}
	if err != nil {
		return err
	}

	var manual []string
	_ = json.Unmarshal([]byte(manualJSON), &manual)
	found := false
	for _, m := range manual {
		if m == field {
			found = true
			break
		}
	}
	if !found {
		manual = append(manual, field)
	}
	blob, _ := json.Marshal(manual)

	_, err = d.conn.Exec(
		fmt.Sprintf("UPDATE %s SET %s = ?, manualFields = ?, source = ?, updatedAt = CURRENT_TIMESTAMP WHERE externalKey = ?", target.Table, field),
		nullable(canonical), string(blob), internal.RecordSourceManual, externalKey,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (d *DB) SaveMapping(sheetName, targetTable string, mapping internal.ColumnMapping) error {
	blob, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO column_mappings (sheetName, targetTable, mappingJson) VALUES (?, ?, ?)
ON CONFLICT(sheetName, targetTable) DO UPDATE SET
  mappingJson = excluded.mappingJson,
  updatedAt = CURRENT_TIMESTAMP
`, sheetName, targetTable, string(blob))
	return err
}

func (d *DB) GetMapping(sheetName, targetTable string) (internal.ColumnMapping, error) {
	var blob string
	err := d.conn.QueryRow(
		`SELECT mappingJson FROM column_mappings WHERE sheetName = ? AND targetTable = ?`,
		sheetName, targetTable,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	mapping := internal.ColumnMapping{}
	if err := json.Unmarshal([]byte(blob), &mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

func (d *DB) GetHistory(targetTable, spreadsheetID string) (*internal.SyncHistory, error) {
	var h internal.SyncHistory
	var last string
	err := d.conn.QueryRow(`
SELECT targetTable, spreadsheetId, lastSyncTime, recordCount
FROM sync_history WHERE targetTable = ? AND spreadsheetId = ?
`, targetTable, spreadsheetID).Scan(&h.TargetTable, &h.SpreadsheetID, &last, &h.RecordCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	h.LastSyncTime, err = time.Parse(time.RFC3339, last)
	if err != nil {
		return nil, fmt.Errorf("corrupt lastSyncTime for %s/%s: %w", targetTable, spreadsheetID, err)
	}
	return &h, nil
}

func (d *DB) SetHistory(h internal.SyncHistory) error {
	_, err := d.conn.Exec(`
INSERT INTO sync_history (targetTable, spreadsheetId, lastSyncTime, recordCount) VALUES (?, ?, ?, ?)
ON CONFLICT(targetTable, spreadsheetId) DO UPDATE SET
  lastSyncTime = excluded.lastSyncTime,
  recordCount = excluded.recordCount,
  updatedAt = CURRENT_TIMESTAMP
`, h.TargetTable, h.SpreadsheetID, h.LastSyncTime.UTC().Format(time.RFC3339), h.RecordCount)
	return err
}

func (d *DB) ListHistory(targetTable string) ([]internal.SyncHistory, error) {
	query := `SELECT targetTable, spreadsheetId, lastSyncTime, recordCount FROM sync_history`
	args := []any{}
	if targetTable != "" {
		query += ` WHERE targetTable = ?`
		args = append(args, targetTable)
	}
	query += ` ORDER BY targetTable, spreadsheetId`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SyncHistory
	for rows.Next() {
		var h internal.SyncHistory
		var last string
		if err := rows.Scan(&h.TargetTable, &h.SpreadsheetID, &last, &h.RecordCount); err != nil {
			return nil, err
		}
		if parsed, err := time.Parse(time.RFC3339, last); err == nil {
			h.LastSyncTime = parsed
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// RunLogEntry is one finalized run as recorded in sync_runs.
type RunLogEntry struct {
	ID            int64
	TargetTable   string
	SpreadsheetID string
	SheetName     string
	Mode          string
	StartedAt     time.Time
	Counts        map[string]int
}

func (d *DB) ListRuns(targetTable string) ([]RunLogEntry, error) {
	query := `SELECT id, targetTable, spreadsheetId, sheetName, mode, startedAt, countsJson FROM sync_runs`
	args := []any{}
	if targetTable != "" {
		query += ` WHERE targetTable = ?`
		args = append(args, targetTable)
	}
	query += ` ORDER BY id`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunLogEntry
	for rows.Next() {
		var e RunLogEntry
		var started, countsJSON string
		if err := rows.Scan(&e.ID, &e.TargetTable, &e.SpreadsheetID, &e.SheetName, &e.Mode, &started, &countsJSON); err != nil {
			return nil, err
		}
		if parsed, err := time.Parse(time.RFC3339, started); err == nil {
			e.StartedAt = parsed
		}
		e.Counts = map[string]int{}
		_ = json.Unmarshal([]byte(countsJSON), &e.Counts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(run *internal.SyncRun, result internal.SyncResult) error {
	counts := map[string]int{
		"processed": result.Processed,
		"inserted":  result.Inserted,
		"updated":   result.Updated,
		"skipped":   result.Skipped,
		"errors":    result.Errors,
	}
	countsJSON, _ := json.Marshal(counts)
	errorsJSON, _ := json.Marshal(result.ErrorDetails)

	_, err := d.conn.Exec(`
INSERT INTO sync_runs (targetTable, spreadsheetId, sheetName, mode, startedAt, countsJson, errorsJson)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, run.TargetTable, run.SpreadsheetID, run.SheetName, string(run.Mode),
		run.StartedAt.UTC().Format(time.RFC3339), string(countsJSON), string(errorsJSON))
	return err
}
