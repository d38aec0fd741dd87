package source

import (
	"context"
	"fmt"
	"strings"

	"toursync/internal"
	"toursync/internal/cache"
	"toursync/internal/util"
)

type ErrorKind string

const (
	KindNotFound    ErrorKind = "not_found"
	KindForbidden   ErrorKind = "forbidden"
	KindRateLimited ErrorKind = "rate_limited"
	KindTransient   ErrorKind = "transient"
)

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the error is worth another attempt; rate limits
// and transient failures are, permission and existence problems are not.
func Retryable(err error) bool {
	se, ok := err.(*Error)
	if !ok {
		return false
	}
	return se.Kind == KindRateLimited || se.Kind == KindTransient
}

// Reader fetches raw tabular data from a spreadsheet backend.
type Reader interface {
	ListSheets(ctx context.Context, spreadsheetID string) ([]string, error)
	ReadRows(ctx context.Context, spreadsheetID, sheetName string) ([]internal.ExternalRow, error)
}

// CachedReader memoizes reads per (spreadsheet, sheet) so one sync run does
// not hit the remote source twice for the same data.
type CachedReader struct {
	inner Reader
	cache *cache.Cache
}

func NewCachedReader(inner Reader, c *cache.Cache) *CachedReader {
	return &CachedReader{inner: inner, cache: c}
}

func (r *CachedReader) ListSheets(ctx context.Context, spreadsheetID string) ([]string, error) {
	key := "sheets/" + spreadsheetID
	if v, ok := r.cache.Get(key); ok {
		return v.([]string), nil
	}
	sheets, err := r.inner.ListSheets(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, sheets)
	return sheets, nil
}

func (r *CachedReader) ReadRows(ctx context.Context, spreadsheetID, sheetName string) ([]internal.ExternalRow, error) {
	key := "rows/" + spreadsheetID + "/" + sheetName
	if v, ok := r.cache.Get(key); ok {
		return v.([]internal.ExternalRow), nil
	}
	rows, err := r.inner.ReadRows(ctx, spreadsheetID, sheetName)
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, rows)
	return rows, nil
}

func (r *CachedReader) Invalidate(spreadsheetID string) {
	r.cache.Invalidate("sheets/" + spreadsheetID)
	r.cache.InvalidatePrefix("rows/" + spreadsheetID + "/")
}

// RowsFromGrid turns a header row plus data rows into ExternalRows. Blank
// rows are dropped; a row wider than the header keeps only headered cells.
func RowsFromGrid(header []string, data [][]string) []internal.ExternalRow {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = util.CollapseSpaces(h)
	}

	out := make([]internal.ExternalRow, 0, len(data))
	index := 0
	for _, row := range data {
		cells := map[string]string{}
		empty := true
		for i, col := range cols {
			if col == "" {
				continue
			}
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			cells[col] = value
			if value != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		index++
		out = append(out, internal.ExternalRow{Index: index, Cells: cells})
	}
	return out
}

// DetectHeaderRow finds the header in a grid that may start with title or
// blank rows: the first of the leading rows with at least two non-empty,
// non-numeric cells.
func DetectHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		textCells := 0
		for _, cell := range rows[i] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if _, err := util.ParseNumber(cell); err != nil {
				textCells++
			}
		}
		if textCells >= 2 {
			return i
		}
	}
	return -1
}
