package syncer

import (
	"fmt"

	"toursync/internal"
	"toursync/internal/schema"
)

type UpdateCandidate struct {
	// Record carries the merged field values to write; manual-override
	// protection is already applied.
	Record   internal.NormalizedRecord
	StoredID int64
	Changed  []string
}

type Partition struct {
	ToInsert  []internal.NormalizedRecord
	ToUpdate  []UpdateCandidate
	ToSkip    []internal.NormalizedRecord
	Orphaned  []internal.StoredRecord
	DupErrors []internal.RowError
	Warnings  []string
}

// Reconcile joins the normalized batch against stored records by external key
// and partitions it into inserts, updates, and no-ops. Orphan detection runs
// under full mode only, and orphans are reported, never deleted.
func Reconcile(rows []internal.NormalizedRecord, existing []internal.StoredRecord, target schema.Target, mode internal.SyncMode) Partition {
	part := Partition{}

	byKey := map[string]internal.StoredRecord{}
	for _, rec := range existing {
		if prior, dup := byKey[rec.ExternalKey]; dup {
			// Storage already violated key uniqueness; surface it and keep
			// the first record as the match target.
			part.Warnings = append(part.Warnings,
				fmt.Sprintf("duplicate external key %q in storage (ids %d, %d)", rec.ExternalKey, prior.ID, rec.ID))
			continue
		}
		byKey[rec.ExternalKey] = rec
	}

	seen := map[string]int{}
	matched := map[string]struct{}{}

	for _, row := range rows {
		if firstRow, dup := seen[row.ExternalKey]; dup {
			// First occurrence stays authoritative; later duplicates are
			// flagged, never silently merged.
			part.DupErrors = append(part.DupErrors, internal.RowError{
				RowIndex:    row.RowIndex,
				ExternalKey: row.ExternalKey,
				Message:     fmt.Sprintf("duplicate external key in batch (first seen at row %d)", firstRow),
			})
			continue
		}
		seen[row.ExternalKey] = row.RowIndex

		stored, exists := byKey[row.ExternalKey]
		if !exists {
			part.ToInsert = append(part.ToInsert, row)
			continue
		}
		matched[row.ExternalKey] = struct{}{}

		merged, changed := mergeFields(row, stored, target)
		if len(changed) == 0 {
			part.ToSkip = append(part.ToSkip, row)
			continue
		}
		part.ToUpdate = append(part.ToUpdate, UpdateCandidate{Record: merged, StoredID: stored.ID, Changed: changed})
	}

	if mode == internal.ModeFull {
		for _, rec := range existing {
			if _, ok := matched[rec.ExternalKey]; ok {
				continue
			}
			if _, ok := seen[rec.ExternalKey]; ok {
				continue
			}
			part.Orphaned = append(part.Orphaned, rec)
		}
	}

	return part
}

// mergeFields diffs an incoming row against the stored record under
// normalized comparison. A manually overridden field keeps its stored value
// when the sheet is empty; a differing non-empty sheet value wins.
func mergeFields(row internal.NormalizedRecord, stored internal.StoredRecord, target schema.Target) (internal.NormalizedRecord, []string) {
	merged := internal.NormalizedRecord{
		ExternalKey: row.ExternalKey,
		RowIndex:    row.RowIndex,
		Fields:      map[string]internal.Value{},
	}
	changed := []string{}

	for _, field := range target.Fields {
		incoming := row.Fields[field.Name]
		storedValue := stored.Fields[field.Name]

		if stored.IsManualField(field.Name) && incoming.Canonical == "" {
			merged.Fields[field.Name] = internal.Value{Canonical: storedValue}
			continue
		}

		merged.Fields[field.Name] = incoming
		if incoming.Canonical != storedValue {
			changed = append(changed, field.Name)
		}
	}

	return merged, changed
}
