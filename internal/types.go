package internal

import "time"

type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
	FieldBool   FieldType = "bool"
)

type FieldDescriptor struct {
	Name     string
	Type     FieldType
	Required bool
	Synonyms []string
}

// ExternalRow is one raw sheet row keyed by column header. Index is the
// 1-based data row number in the sheet (header row excluded).
type ExternalRow struct {
	Index int
	Cells map[string]string
}

// ColumnMapping maps internal field name -> external column header.
type ColumnMapping map[string]string

type MatchConfidence string

const (
	ConfidenceExact   MatchConfidence = "exact"
	ConfidenceSynonym MatchConfidence = "synonym"
	ConfidenceFuzzy   MatchConfidence = "fuzzy"
	ConfidenceNone    MatchConfidence = "none"
)

type MappingSuggestion struct {
	Column     string          `json:"column"`
	Confidence MatchConfidence `json:"confidence"`
}

// Value is a coerced cell. Canonical holds the normalized encoding used for
// storage and diffing (dates as 2006-01-02, numbers via strconv, bools as
// true/false); empty Canonical means the cell carried no value.
type Value struct {
	Raw       string
	Canonical string
}

type NormalizedRecord struct {
	ExternalKey string
	RowIndex    int
	Fields      map[string]Value
}

const (
	RecordSourceSync   = "sync"
	RecordSourceManual = "manual"
)

type StoredRecord struct {
	ID          int64
	ExternalKey string
	Source      string
	// ManualFields lists field names edited by hand after the record was
	// synced; stale sheet data must not clear them.
	ManualFields []string
	Fields       map[string]string
	UpdatedAt    string
}

// IsManualField reports whether the field carries a manual edit the sync must
// not clear. A record created by hand without per-field markers protects
// every field.
func (r StoredRecord) IsManualField(name string) bool {
	if r.Source == RecordSourceManual && len(r.ManualFields) == 0 {
		return true
	}
	for _, f := range r.ManualFields {
		if f == name {
			return true
		}
	}
	return false
}

type SyncMode string

const (
	ModeFull        SyncMode = "full"
	ModeIncremental SyncMode = "incremental"
)

type RowError struct {
	RowIndex    int    `json:"rowIndex"`
	ExternalKey string `json:"externalKey,omitempty"`
	Field       string `json:"field,omitempty"`
	Message     string `json:"message"`
}

// SyncRun is the mutable execution context of one run. It is owned by the
// sync service/executor for the duration of the run.
type SyncRun struct {
	TargetTable   string
	SpreadsheetID string
	SheetName     string
	Mode          SyncMode
	Mapping       ColumnMapping
	StartedAt     time.Time

	Processed    int
	Inserted     int
	Updated      int
	Skipped      int
	Errors       int
	ErrorDetails []RowError
	Warnings     []string
}

func (r *SyncRun) RecordError(e RowError) {
	r.Errors++
	r.ErrorDetails = append(r.ErrorDetails, e)
}

type SyncResult struct {
	Success      bool       `json:"success"`
	Aborted      bool       `json:"aborted,omitempty"`
	Message      string     `json:"message"`
	Processed    int        `json:"processed"`
	Inserted     int        `json:"inserted"`
	Updated      int        `json:"updated"`
	Skipped      int        `json:"skipped"`
	Errors       int        `json:"errors"`
	ErrorDetails []RowError `json:"errorDetails,omitempty"`
	OrphanedKeys []string   `json:"orphanedKeys,omitempty"`
	Warnings     []string   `json:"warnings,omitempty"`
}

type SyncHistory struct {
	TargetTable   string
	SpreadsheetID string
	LastSyncTime  time.Time
	RecordCount   int
}

type EventType string

const (
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

type Event struct {
	Type      EventType `json:"type"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Message   string    `json:"message"`
}
