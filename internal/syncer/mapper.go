package syncer

import (
	"fmt"
	"sort"
	"strings"

	"toursync/internal"
	"toursync/internal/schema"
	"toursync/internal/util"
)

// MappingError is fatal: a run refuses to start while required fields are
// unmapped or mapped to columns the sheet does not have.
type MappingError struct {
	TargetTable string
	Fields      []string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("table %s: unmapped or unresolvable fields: %s", e.TargetTable, strings.Join(e.Fields, ", "))
}

// SuggestMapping proposes a field->column mapping with a confidence tier per
// field. Pure function of its inputs; persisting a confirmed mapping is the
// caller's job. A field no column plausibly matches is reported with
// confidence none rather than guessed.
func SuggestMapping(columns []string, target schema.Target) map[string]internal.MappingSuggestion {
	type column struct {
		raw  string
		norm string
	}
	normalized := make([]column, 0, len(columns))
	for _, c := range columns {
		normalized = append(normalized, column{raw: c, norm: util.NormalizeColumn(c)})
	}

	out := map[string]internal.MappingSuggestion{}
	used := map[string]struct{}{}

	// Confidence tiers are claimed in passes so an exact match on one field
	// is never stolen by a fuzzy match on another.
	passes := []struct {
		confidence internal.MatchConfidence
		match      func(field internal.FieldDescriptor, colNorm string) bool
	}{
		{internal.ConfidenceExact, func(f internal.FieldDescriptor, colNorm string) bool {
			return colNorm == util.NormalizeColumn(f.Name)
		}},
		{internal.ConfidenceSynonym, func(f internal.FieldDescriptor, colNorm string) bool {
			for _, syn := range f.Synonyms {
				if colNorm == util.NormalizeColumn(syn) {
					return true
				}
			}
			return false
		}},
		// Substring containment runs against the canonical field name only;
		// synonyms are often short enough ("tour", "date") to over-claim
		// unrelated columns.
		{internal.ConfidenceFuzzy, func(f internal.FieldDescriptor, colNorm string) bool {
			if colNorm == "" {
				return false
			}
			fieldNorm := util.NormalizeColumn(f.Name)
			return strings.Contains(colNorm, fieldNorm) || strings.Contains(fieldNorm, colNorm)
		}},
	}

	for _, pass := range passes {
		for _, field := range target.Fields {
			if _, done := out[field.Name]; done {
				continue
			}

			candidates := []column{}
			for _, col := range normalized {
				if _, taken := used[col.raw]; taken {
					continue
				}
				if pass.match(field, col.norm) {
					candidates = append(candidates, col)
				}
			}
			if len(candidates) == 0 {
				continue
			}

			// Shortest column name wins a tie: the more specific match.
			sort.Slice(candidates, func(i, j int) bool {
				if len(candidates[i].raw) != len(candidates[j].raw) {
					return len(candidates[i].raw) < len(candidates[j].raw)
				}
				return candidates[i].raw < candidates[j].raw
			})

			out[field.Name] = internal.MappingSuggestion{Column: candidates[0].raw, Confidence: pass.confidence}
			used[candidates[0].raw] = struct{}{}
		}
	}

	for _, field := range target.Fields {
		if _, done := out[field.Name]; !done {
			out[field.Name] = internal.MappingSuggestion{Confidence: internal.ConfidenceNone}
		}
	}
	return out
}

// AutoMapping converts a suggestion into a usable mapping when every required
// field resolved at exact or synonym confidence. Fuzzy matches on required
// fields need human confirmation, so they fail here.
func AutoMapping(suggestions map[string]internal.MappingSuggestion, target schema.Target) (internal.ColumnMapping, error) {
	unconfirmed := []string{}
	mapping := internal.ColumnMapping{}
	for _, field := range target.Fields {
		s := suggestions[field.Name]
		switch s.Confidence {
		case internal.ConfidenceExact, internal.ConfidenceSynonym:
			mapping[field.Name] = s.Column
		case internal.ConfidenceFuzzy:
			if field.Required {
				unconfirmed = append(unconfirmed, field.Name)
			}
		default:
			if field.Required {
				unconfirmed = append(unconfirmed, field.Name)
			}
		}
	}
	if len(unconfirmed) > 0 {
		return nil, &MappingError{TargetTable: target.Table, Fields: unconfirmed}
	}
	return mapping, nil
}

// ValidateMapping checks an explicit or stored mapping against the sheet's
// actual columns before any write happens.
func ValidateMapping(mapping internal.ColumnMapping, columns []string, target schema.Target) error {
	present := map[string]struct{}{}
	for _, c := range columns {
		present[util.CollapseSpaces(c)] = struct{}{}
	}

	bad := []string{}
	for _, field := range target.Fields {
		col, ok := mapping[field.Name]
		if !ok || col == "" {
			if field.Required {
				bad = append(bad, field.Name)
			}
			continue
		}
		if _, found := present[util.CollapseSpaces(col)]; !found {
			bad = append(bad, field.Name)
		}
	}
	if len(bad) > 0 {
		return &MappingError{TargetTable: target.Table, Fields: bad}
	}
	return nil
}
