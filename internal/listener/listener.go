package listener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"toursync/internal"
	"toursync/internal/config"
	"toursync/internal/syncer"
)

// Service runs incremental syncs for every configured target on a timer.
// Overlapping runs against the same target cannot happen: cycles are strictly
// sequential.
type Service struct {
	sync *syncer.Service
	cfg  config.Config
}

type watchTarget struct {
	table         string
	spreadsheetID string
	sheetName     string
}

func NewService(sync *syncer.Service, cfg config.Config) *Service {
	return &Service{sync: sync, cfg: cfg}
}

func (s *Service) Run(ctx context.Context) error {
	targets, err := parseTargets(s.cfg.ListenerTargets)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("SYNC_TARGETS is empty; expected table:spreadsheetId:sheetName entries")
	}

	for {
		s.runCycle(ctx, targets)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.ListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context, targets []watchTarget) {
	for _, t := range targets {
		if ctx.Err() != nil {
			return
		}

		result, err := s.sync.Sync(ctx, syncer.Request{
			SpreadsheetID: t.spreadsheetID,
			SheetName:     t.sheetName,
			TargetTable:   t.table,
			Mode:          internal.ModeIncremental,
		}, nil)
		if err != nil {
			fmt.Printf("listener sync error table=%s sheet=%s: %v\n", t.table, t.sheetName, err)
			continue
		}
		fmt.Printf("listener sync done table=%s sheet=%s inserted=%d updated=%d skipped=%d errors=%d\n",
			t.table, t.sheetName, result.Inserted, result.Updated, result.Skipped, result.Errors)
	}
}

func parseTargets(raw string) ([]watchTarget, error) {
	out := []watchTarget{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("bad SYNC_TARGETS entry %q, want table:spreadsheetId:sheetName", entry)
		}
		out = append(out, watchTarget{
			table:         strings.TrimSpace(parts[0]),
			spreadsheetID: strings.TrimSpace(parts[1]),
			sheetName:     strings.TrimSpace(parts[2]),
		})
	}
	return out, nil
}
