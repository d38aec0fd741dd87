package syncer

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"toursync/internal"
	"toursync/internal/schema"
)

// Adapter is the narrow storage surface the executor drives. *storage.DB
// satisfies it; tests substitute fakes.
type Adapter interface {
	UpsertBatch(ctx context.Context, target schema.Target, records []internal.NormalizedRecord) error
	UpsertRecord(ctx context.Context, target schema.Target, rec internal.NormalizedRecord) error
}

type Executor struct {
	store     Adapter
	batchSize int
	retries   int
	retryBase time.Duration
}

func NewExecutor(store Adapter, batchSize, retries, retryBaseMs int) *Executor {
	if batchSize <= 0 {
		batchSize = 100
	}
	if retries < 0 {
		retries = 0
	}
	return &Executor{
		store:     store,
		batchSize: batchSize,
		retries:   retries,
		retryBase: time.Duration(retryBaseMs) * time.Millisecond,
	}
}

// Execute drives a reconcile partition against storage in sequential
// fixed-size batches. One failing row never aborts the batch or the run; a
// cancelled context stops further batches and finalizes a partial result.
func (e *Executor) Execute(ctx context.Context, run *internal.SyncRun, part Partition, target schema.Target, emit func(internal.Event)) internal.SyncResult {
	if emit == nil {
		emit = func(internal.Event) {}
	}

	total := len(part.ToInsert) + len(part.ToUpdate) + len(part.ToSkip)

	run.Skipped += len(part.ToSkip)
	run.Processed += len(part.ToSkip)

	aborted := false

	aborted = e.writePhase(ctx, run, part.ToInsert, target, total, &run.Inserted, emit)
	if !aborted {
		updates := make([]internal.NormalizedRecord, 0, len(part.ToUpdate))
		for _, u := range part.ToUpdate {
			updates = append(updates, u.Record)
		}
		aborted = e.writePhase(ctx, run, updates, target, total, &run.Updated, emit)
	}

	result := finalize(run, part, aborted)
	emit(internal.Event{Type: internal.EventComplete, Processed: run.Processed, Total: total, Message: result.Message})
	return result
}

// writePhase submits records in batches, falling back to per-row writes when
// a whole batch keeps failing so one bad row cannot sink its neighbors.
func (e *Executor) writePhase(ctx context.Context, run *internal.SyncRun, records []internal.NormalizedRecord, target schema.Target, total int, succeeded *int, emit func(internal.Event)) bool {
	for start := 0; start < len(records); start += e.batchSize {
		if ctx.Err() != nil {
			return true
		}

		end := start + e.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		err := e.withRetry(ctx, func() error {
			return e.store.UpsertBatch(ctx, target, batch)
		})
		if err == nil {
			*succeeded += len(batch)
			run.Processed += len(batch)
			emit(internal.Event{
				Type:      internal.EventProgress,
				Processed: run.Processed,
				Total:     total,
				Message:   fmt.Sprintf("%s: %d/%d", target.Table, run.Processed, total),
			})
			continue
		}
		if ctx.Err() != nil {
			return true
		}

		for _, rec := range batch {
			rowErr := e.withRetry(ctx, func() error {
				return e.store.UpsertRecord(ctx, target, rec)
			})
			run.Processed++
			if rowErr != nil {
				run.RecordError(internal.RowError{
					RowIndex:    rec.RowIndex,
					ExternalKey: rec.ExternalKey,
					Message:     rowErr.Error(),
				})
				emit(internal.Event{
					Type:      internal.EventError,
					Processed: run.Processed,
					Total:     total,
					Message:   fmt.Sprintf("row %d (%s): %v", rec.RowIndex, rec.ExternalKey, rowErr),
				})
				continue
			}
			*succeeded++
		}
		emit(internal.Event{
			Type:      internal.EventProgress,
			Processed: run.Processed,
			Total:     total,
			Message:   fmt.Sprintf("%s: %d/%d", target.Table, run.Processed, total),
		})
	}
	return false
}

func (e *Executor) withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = call()
		if lastErr == nil || attempt >= e.retries {
			return lastErr
		}
		backoff := e.retryBase*(1<<attempt) + time.Duration(rand.Intn(50))*time.Millisecond
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(backoff):
		}
	}
}

func finalize(run *internal.SyncRun, part Partition, aborted bool) internal.SyncResult {
	orphanKeys := make([]string, 0, len(part.Orphaned))
	for _, rec := range part.Orphaned {
		orphanKeys = append(orphanKeys, rec.ExternalKey)
	}

	// Forward progress is success: a run with a handful of bad rows among
	// many good ones is still a useful sync.
	success := run.Errors == 0 || run.Errors < run.Processed

	message := fmt.Sprintf("synced %s: %d inserted, %d updated, %d skipped, %d errors",
		run.TargetTable, run.Inserted, run.Updated, run.Skipped, run.Errors)
	if aborted {
		message = "sync aborted: " + message
	}

	return internal.SyncResult{
		Success:      success,
		Aborted:      aborted,
		Message:      message,
		Processed:    run.Processed,
		Inserted:     run.Inserted,
		Updated:      run.Updated,
		Skipped:      run.Skipped,
		Errors:       run.Errors,
		ErrorDetails: run.ErrorDetails,
		OrphanedKeys: orphanKeys,
		Warnings:     run.Warnings,
	}
}
