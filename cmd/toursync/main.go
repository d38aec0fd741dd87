package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"toursync/internal"
	"toursync/internal/cache"
	"toursync/internal/config"
	"toursync/internal/schema"
	"toursync/internal/source"
	googlesource "toursync/internal/source/google"
	"toursync/internal/source/htmltable"
	"toursync/internal/source/mailbox"
	"toursync/internal/source/xlsxfile"
	"toursync/internal/storage"
	"toursync/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx := context.Background()
	cmd := os.Args[1]
	switch cmd {
	case "sheets:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		spreadsheet := fs.String("spreadsheet", "", "spreadsheet id or file path")
		sourceName := fs.String("source", "google", "google|xlsx|html")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*spreadsheet) == "" {
			must(fmt.Errorf("--spreadsheet is required"))
		}
		reader, err := makeReader(ctx, cfg, *sourceName)
		must(err)
		sheets, err := reader.ListSheets(ctx, *spreadsheet)
		must(err)
		for _, name := range sheets {
			fmt.Println(name)
		}
	case "mapping:suggest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		spreadsheet := fs.String("spreadsheet", "", "spreadsheet id or file path")
		sheet := fs.String("sheet", "", "sheet name")
		table := fs.String("table", "", "target table")
		sourceName := fs.String("source", "google", "google|xlsx|html")
		_ = fs.Parse(os.Args[2:])
		if *spreadsheet == "" || *sheet == "" || *table == "" {
			must(fmt.Errorf("--spreadsheet --sheet --table are required"))
		}
		reader, err := makeReader(ctx, cfg, *sourceName)
		must(err)
		svc := syncer.New(db, reader, cfg)
		suggestions, columns, err := svc.Suggest(ctx, *spreadsheet, *sheet, *table)
		must(err)
		fmt.Printf("sheet columns: %s\n", strings.Join(columns, ", "))
		target, err := schema.Find(*table)
		must(err)
		for _, field := range target.Fields {
			s := suggestions[field.Name]
			if s.Confidence == internal.ConfidenceNone {
				fmt.Printf("  %-22s -> (unmapped)\n", field.Name)
				continue
			}
			fmt.Printf("  %-22s -> %-24s [%s]\n", field.Name, s.Column, s.Confidence)
		}
	case "mapping:save":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		sheet := fs.String("sheet", "", "sheet name")
		table := fs.String("table", "", "target table")
		pairs := fs.String("map", "", "field=column;field=column")
		_ = fs.Parse(os.Args[2:])
		if *sheet == "" || *table == "" || *pairs == "" {
			must(fmt.Errorf("--sheet --table --map are required"))
		}
		mapping, err := parseMappingPairs(*pairs)
		must(err)
		if _, err := schema.Find(*table); err != nil {
			must(err)
		}
		must(db.SaveMapping(*sheet, *table, mapping))
		fmt.Printf("saved mapping for %s/%s (%d fields)\n", *sheet, *table, len(mapping))
	case "sync:run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		spreadsheet := fs.String("spreadsheet", "", "spreadsheet id or file path")
		sheet := fs.String("sheet", "", "sheet name")
		table := fs.String("table", "", "target table")
		mode := fs.String("mode", "full", "full|incremental")
		sourceName := fs.String("source", "google", "google|xlsx|html")
		report := fs.String("report", "", "write an xlsx report to this path")
		_ = fs.Parse(os.Args[2:])
		if *spreadsheet == "" || *sheet == "" || *table == "" {
			must(fmt.Errorf("--spreadsheet --sheet --table are required"))
		}
		reader, err := makeReader(ctx, cfg, *sourceName)
		must(err)
		svc := syncer.New(db, reader, cfg)
		req := syncer.Request{
			SpreadsheetID: *spreadsheet,
			SheetName:     *sheet,
			TargetTable:   *table,
			Mode:          internal.SyncMode(*mode),
		}
		result, err := svc.Sync(ctx, req, printEvent)
		must(err)
		fmt.Println(result.Message)
		for _, w := range result.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		for _, key := range result.OrphanedKeys {
			fmt.Printf("orphaned (not deleted): %s\n", key)
		}
		if *report != "" {
			path := reportPath(cfg.OutputDir, *report)
			must(syncer.ExportResultToXLSX(req, result, path))
			fmt.Printf("report written to %s\n", path)
		}
		if !result.Success {
			os.Exit(1)
		}
	case "history:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		table := fs.String("table", "", "filter by target table")
		_ = fs.Parse(os.Args[2:])
		entries, err := db.ListHistory(*table)
		must(err)
		for _, h := range entries {
			fmt.Printf("%-22s %-44s last=%s records=%d\n",
				h.TargetTable, h.SpreadsheetID, h.LastSyncTime.Format(time.RFC3339), h.RecordCount)
		}
	case "runs:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		table := fs.String("table", "", "filter by target table")
		_ = fs.Parse(os.Args[2:])
		runs, err := db.ListRuns(*table)
		must(err)
		for _, r := range runs {
			fmt.Printf("%s %-22s %s!%s mode=%s inserted=%d updated=%d skipped=%d errors=%d\n",
				r.StartedAt.Format(time.RFC3339), r.TargetTable, r.SpreadsheetID, r.SheetName,
				r.Mode, r.Counts["inserted"], r.Counts["updated"], r.Counts["skipped"], r.Counts["errors"])
		}
	case "mail:pull":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		max := fs.Int("max", 20, "max messages")
		_ = fs.Parse(os.Args[2:])
		puller, err := mailbox.NewPuller(cfg)
		must(err)
		files, err := puller.PullAttachments(cfg.InboxDir, *max)
		must(err)
		for _, f := range files {
			fmt.Printf("pulled %s (from %s: %s)\n", f.Path, f.From, f.Subject)
		}
		fmt.Printf("mail pull done: %d spreadsheet attachments\n", len(files))
	default:
		usage()
		os.Exit(1)
	}
}

func makeReader(ctx context.Context, cfg config.Config, sourceName string) (source.Reader, error) {
	var inner source.Reader
	switch strings.ToLower(strings.TrimSpace(sourceName)) {
	case "google":
		src, err := googlesource.NewSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		inner = src
	case "xlsx":
		inner = xlsxfile.New()
	case "html":
		inner = htmltable.New()
	default:
		return nil, fmt.Errorf("unknown source: %s", sourceName)
	}

	ttl := time.Duration(cfg.SheetsCacheTTLSec) * time.Second
	return source.NewCachedReader(inner, cache.New(ttl)), nil
}

// reportPath places a bare file name under the configured output directory;
// anything with a directory component is used as given.
func reportPath(outputDir, name string) string {
	if filepath.IsAbs(name) || filepath.Dir(name) != "." {
		return name
	}
	return filepath.Join(outputDir, name)
}

func parseMappingPairs(raw string) (internal.ColumnMapping, error) {
	mapping := internal.ColumnMapping{}
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("bad mapping pair %q, want field=column", pair)
		}
		mapping[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if len(mapping) == 0 {
		return nil, fmt.Errorf("empty mapping")
	}
	return mapping, nil
}

func printEvent(e internal.Event) {
	switch e.Type {
	case internal.EventProgress:
		fmt.Printf("progress %d/%d %s\n", e.Processed, e.Total, e.Message)
	case internal.EventError:
		fmt.Printf("error: %s\n", e.Message)
	case internal.EventComplete:
		fmt.Printf("complete: %s\n", e.Message)
	}
}

func usage() {
	fmt.Println(`toursync commands:
  sheets:list      --spreadsheet <id|path> [--source google|xlsx|html]
  mapping:suggest  --spreadsheet <id|path> --sheet <name> --table <table> [--source ...]
  mapping:save     --sheet <name> --table <table> --map "field=column;..."
  sync:run         --spreadsheet <id|path> --sheet <name> --table <table> [--mode full|incremental] [--source ...] [--report out.xlsx]
  history:show     [--table <table>]
  runs:show        [--table <table>]
  mail:pull        [--max <n>]`)
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
