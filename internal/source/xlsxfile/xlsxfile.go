package xlsxfile

import (
	"context"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"toursync/internal"
	"toursync/internal/source"
)

// Source reads workbooks from disk; the spreadsheet identifier is the file
// path. Channel partners that mail their booking sheets land here via the
// mailbox puller.
type Source struct{}

func New() *Source { return &Source{} }

func (s *Source) ListSheets(ctx context.Context, path string) ([]string, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func (s *Source) ReadRows(ctx context.Context, path, sheetName string) ([]internal.ExternalRow, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	grid, err := f.GetRows(sheetName)
	if err != nil {
		return nil, &source.Error{Kind: source.KindNotFound, Op: "xlsx.rows",
			Err: fmt.Errorf("sheet %s: %w", sheetName, err)}
	}

	headerIdx := source.DetectHeaderRow(grid)
	if headerIdx < 0 {
		return nil, &source.Error{Kind: source.KindNotFound, Op: "xlsx.rows",
			Err: fmt.Errorf("no header row in %s!%s", path, sheetName)}
	}
	return source.RowsFromGrid(grid[headerIdx], grid[headerIdx+1:]), nil
}

func open(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		kind := source.KindTransient
		if os.IsNotExist(err) {
			kind = source.KindNotFound
		} else if os.IsPermission(err) {
			kind = source.KindForbidden
		}
		return nil, &source.Error{Kind: kind, Op: "xlsx.open", Err: err}
	}
	return f, nil
}
