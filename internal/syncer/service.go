package syncer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"toursync/internal"
	"toursync/internal/config"
	"toursync/internal/schema"
	"toursync/internal/source"
	"toursync/internal/storage"
	"toursync/internal/util"
)

// Request is the sync surface exposed to callers: which sheet feeds which
// table, under which mapping, in which mode.
type Request struct {
	SpreadsheetID string                 `json:"spreadsheetId"`
	SheetName     string                 `json:"sheetName"`
	TargetTable   string                 `json:"targetTable"`
	Mapping       internal.ColumnMapping `json:"columnMapping,omitempty"`
	Mode          internal.SyncMode      `json:"mode"`
}

type Service struct {
	db     *storage.DB
	reader source.Reader
	exec   *Executor
}

func New(db *storage.DB, reader source.Reader, cfg config.Config) *Service {
	return &Service{
		db:     db,
		reader: reader,
		exec:   NewExecutor(db, cfg.SyncBatchSize, cfg.SyncRetryCount, cfg.SyncRetryBaseMs),
	}
}

// ChannelEmitter adapts a progress channel to the emit callback. The send is
// non-blocking so a slow consumer cannot stall the run.
func ChannelEmitter(ch chan<- internal.Event) func(internal.Event) {
	return func(e internal.Event) {
		select {
		case ch <- e:
		default:
		}
	}
}

// Suggest reads the sheet and proposes a column mapping for the target table.
func (s *Service) Suggest(ctx context.Context, spreadsheetID, sheetName, targetTable string) (map[string]internal.MappingSuggestion, []string, error) {
	target, err := schema.Find(targetTable)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.reader.ReadRows(ctx, spreadsheetID, sheetName)
	if err != nil {
		return nil, nil, err
	}
	columns := Columns(rows)
	return SuggestMapping(columns, target), columns, nil
}

// Sync runs the full pipeline: read, map, normalize, reconcile, execute,
// record history. Run-level fatal conditions return an error before any
// write; row-level failures come back inside the SyncResult.
func (s *Service) Sync(ctx context.Context, req Request, emit func(internal.Event)) (internal.SyncResult, error) {
	target, err := schema.Find(req.TargetTable)
	if err != nil {
		return internal.SyncResult{}, err
	}
	mode := req.Mode
	if mode == "" {
		mode = internal.ModeFull
	}
	if mode != internal.ModeFull && mode != internal.ModeIncremental {
		return internal.SyncResult{}, fmt.Errorf("unknown sync mode: %s", mode)
	}

	rows, err := s.reader.ReadRows(ctx, req.SpreadsheetID, req.SheetName)
	if err != nil {
		return internal.SyncResult{}, fmt.Errorf("read sheet %s!%s: %w", req.SpreadsheetID, req.SheetName, err)
	}
	columns := Columns(rows)

	mapping, err := s.resolveMapping(req, columns, target)
	if err != nil {
		return internal.SyncResult{}, err
	}

	records, rowErrors := NormalizeRows(rows, mapping, target)

	var history *internal.SyncHistory
	if mode == internal.ModeIncremental {
		history, err = s.db.GetHistory(target.Table, req.SpreadsheetID)
		if err != nil {
			return internal.SyncResult{}, err
		}
		records = filterIncremental(records, target, history)
	}

	existing, err := s.db.ListRecords(target)
	if err != nil {
		return internal.SyncResult{}, err
	}

	part := Reconcile(records, existing, target, mode)

	run := &internal.SyncRun{
		TargetTable:   target.Table,
		SpreadsheetID: req.SpreadsheetID,
		SheetName:     req.SheetName,
		Mode:          mode,
		Mapping:       mapping,
		StartedAt:     time.Now().UTC(),
	}
	// Counters track rows. NormalizeRows reports one entry per bad field, so
	// a row with several malformed cells still counts once in processed and
	// errors; every field entry stays in the details.
	failedRows := map[int]struct{}{}
	for _, e := range rowErrors {
		failedRows[e.RowIndex] = struct{}{}
	}
	run.ErrorDetails = append(run.ErrorDetails, rowErrors...)
	run.ErrorDetails = append(run.ErrorDetails, part.DupErrors...)
	run.Errors += len(failedRows) + len(part.DupErrors)
	run.Processed += len(failedRows) + len(part.DupErrors)
	run.Warnings = part.Warnings

	result := s.exec.Execute(ctx, run, part, target, emit)

	if !result.Aborted {
		// lastSyncTime is the run start, not completion, so rows edited
		// during a long run fall into the next incremental window.
		if target.HistoryTracked && result.Success {
			historyErr := s.db.SetHistory(internal.SyncHistory{
				TargetTable:   target.Table,
				SpreadsheetID: req.SpreadsheetID,
				LastSyncTime:  run.StartedAt,
				RecordCount:   result.Processed,
			})
			if historyErr != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("history write failed: %v", historyErr))
			}
		}
		if err := s.db.InsertRun(run, result); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("run log write failed: %v", err))
		}
	}

	return result, nil
}

// resolveMapping picks, in order: the request's explicit mapping, the stored
// mapping for (sheet, table), then an automatic suggestion, which is only
// accepted when every required field matched at exact or synonym confidence.
func (s *Service) resolveMapping(req Request, columns []string, target schema.Target) (internal.ColumnMapping, error) {
	mapping := req.Mapping
	if mapping == nil {
		stored, err := s.db.GetMapping(req.SheetName, target.Table)
		if err != nil {
			return nil, err
		}
		mapping = stored
	}
	if mapping == nil {
		auto, err := AutoMapping(SuggestMapping(columns, target), target)
		if err != nil {
			return nil, err
		}
		mapping = auto
	}

	if err := ValidateMapping(mapping, columns, target); err != nil {
		return nil, err
	}
	return mapping, nil
}

// filterIncremental keeps rows whose modified indicator is newer than the
// last sync. Rows without an indicator value stay in: absence is no proof the
// row is unchanged.
func filterIncremental(records []internal.NormalizedRecord, target schema.Target, history *internal.SyncHistory) []internal.NormalizedRecord {
	if history == nil || target.ModifiedField == "" {
		return records
	}

	cutoff := history.LastSyncTime
	out := make([]internal.NormalizedRecord, 0, len(records))
	for _, rec := range records {
		canonical := rec.Fields[target.ModifiedField].Canonical
		if canonical == "" {
			out = append(out, rec)
			continue
		}
		modified, err := util.ParseDate(canonical)
		if err != nil || !modified.Before(cutoff.Truncate(24*time.Hour)) {
			out = append(out, rec)
		}
	}
	return out
}

// Columns returns the sheet's column headers in deterministic order.
func Columns(rows []internal.ExternalRow) []string {
	set := map[string]struct{}{}
	for _, row := range rows {
		for col := range row.Cells {
			set[col] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for col := range set {
		out = append(out, col)
	}
	sort.Strings(out)
	return out
}
