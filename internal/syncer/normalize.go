package syncer

import (
	"fmt"

	"toursync/internal"
	"toursync/internal/schema"
	"toursync/internal/util"
)

// NormalizeRows coerces raw sheet rows into typed records. A malformed row
// becomes error entries naming the row and field and is excluded from the
// batch; the rest of the batch is unaffected.
func NormalizeRows(rows []internal.ExternalRow, mapping internal.ColumnMapping, target schema.Target) ([]internal.NormalizedRecord, []internal.RowError) {
	records := make([]internal.NormalizedRecord, 0, len(rows))
	errs := []internal.RowError{}

	for _, row := range rows {
		rec, rowErrs := normalizeRow(row, mapping, target)
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

func normalizeRow(row internal.ExternalRow, mapping internal.ColumnMapping, target schema.Target) (internal.NormalizedRecord, []internal.RowError) {
	rec := internal.NormalizedRecord{RowIndex: row.Index, Fields: map[string]internal.Value{}}
	errs := []internal.RowError{}

	for _, field := range target.Fields {
		raw := util.CollapseSpaces(row.Cells[mapping[field.Name]])

		if raw == "" {
			if field.Required {
				errs = append(errs, internal.RowError{
					RowIndex: row.Index,
					Field:    field.Name,
					Message:  "required field is empty",
				})
			}
			rec.Fields[field.Name] = internal.Value{}
			continue
		}

		canonical, err := coerce(raw, field.Type)
		if err != nil {
			errs = append(errs, internal.RowError{RowIndex: row.Index, Field: field.Name, Message: err.Error()})
			continue
		}
		rec.Fields[field.Name] = internal.Value{Raw: raw, Canonical: canonical}
	}

	keyValue := rec.Fields[target.ExternalKey]
	rec.ExternalKey = util.NormalizeKey(keyValue.Raw)
	if len(errs) == 0 && rec.ExternalKey == "" {
		errs = append(errs, internal.RowError{
			RowIndex: row.Index,
			Field:    target.ExternalKey,
			Message:  "external key is empty after normalization",
		})
	}
	for i := range errs {
		errs[i].ExternalKey = rec.ExternalKey
	}

	return rec, errs
}

func coerce(raw string, kind internal.FieldType) (string, error) {
	switch kind {
	case internal.FieldString:
		return raw, nil
	case internal.FieldDate:
		t, err := util.ParseDate(raw)
		if err != nil {
			return "", err
		}
		return util.CanonicalDate(t), nil
	case internal.FieldNumber:
		n, err := util.ParseNumber(raw)
		if err != nil {
			return "", err
		}
		return util.CanonicalNumber(n), nil
	case internal.FieldBool:
		b, err := util.ParseBool(raw)
		if err != nil {
			return "", err
		}
		return util.CanonicalBool(b), nil
	default:
		return "", fmt.Errorf("unknown field type: %s", kind)
	}
}
