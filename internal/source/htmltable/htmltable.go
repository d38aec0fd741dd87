package htmltable

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"toursync/internal"
	"toursync/internal/source"
	"toursync/internal/util"
)

// Source reads tables from an HTML file, e.g. a sheet exported with
// "publish to web" or a fragment pasted out of a browser. Sheet names are
// table captions when present, otherwise "table-N" by document order.
type Source struct{}

func New() *Source { return &Source{} }

func (s *Source) ListSheets(ctx context.Context, path string) ([]string, error) {
	doc, err := load(path)
	if err != nil {
		return nil, err
	}

	names := []string{}
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		names = append(names, tableName(table, i))
	})
	return names, nil
}

func (s *Source) ReadRows(ctx context.Context, path, sheetName string) ([]internal.ExternalRow, error) {
	doc, err := load(path)
	if err != nil {
		return nil, err
	}

	var grid [][]string
	found := false
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		if found || tableName(table, i) != sheetName {
			return
		}
		found = true
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.CollapseSpaces(cell.Text()))
			})
			grid = append(grid, cells)
		})
	})
	if !found {
		return nil, &source.Error{Kind: source.KindNotFound, Op: "html.rows",
			Err: fmt.Errorf("no table %q in %s", sheetName, path)}
	}

	headerIdx := source.DetectHeaderRow(grid)
	if headerIdx < 0 {
		return nil, &source.Error{Kind: source.KindNotFound, Op: "html.rows",
			Err: fmt.Errorf("no header row in table %q", sheetName)}
	}
	return source.RowsFromGrid(grid[headerIdx], grid[headerIdx+1:]), nil
}

func tableName(table *goquery.Selection, index int) string {
	caption := util.CollapseSpaces(table.Find("caption").First().Text())
	if caption != "" {
		return caption
	}
	return "table-" + strconv.Itoa(index+1)
}

func load(path string) (*goquery.Document, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		kind := source.KindTransient
		if os.IsNotExist(err) {
			kind = source.KindNotFound
		}
		return nil, &source.Error{Kind: kind, Op: "html.open", Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(blob)))
	if err != nil {
		return nil, &source.Error{Kind: source.KindTransient, Op: "html.parse", Err: err}
	}
	return doc, nil
}
