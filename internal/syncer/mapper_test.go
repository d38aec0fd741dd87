package syncer

import (
	"testing"

	"toursync/internal"
	"toursync/internal/schema"
)

func mustTarget(t *testing.T, table string) schema.Target {
	t.Helper()
	target, err := schema.Find(table)
	if err != nil {
		t.Fatal(err)
	}
	return target
}

func TestSuggestMappingTiers(t *testing.T) {
	target := mustTarget(t, "reservations")
	columns := []string{
		"Reservation Number",      // exact after normalization
		"Guest Name",              // synonym of customer_name
		"Reservation Date (loc.)", // fuzzy: contains the field name
		"Pax",                     // exact
		"Weather",                 // matches nothing
	}

	got := SuggestMapping(columns, target)

	if s := got["reservation_number"]; s.Column != "Reservation Number" || s.Confidence != internal.ConfidenceExact {
		t.Fatalf("reservation_number: %+v", s)
	}
	if s := got["customer_name"]; s.Column != "Guest Name" || s.Confidence != internal.ConfidenceSynonym {
		t.Fatalf("customer_name: %+v", s)
	}
	if s := got["reservation_date"]; s.Column != "Reservation Date (loc.)" || s.Confidence != internal.ConfidenceFuzzy {
		t.Fatalf("reservation_date: %+v", s)
	}
	if s := got["pax"]; s.Column != "Pax" || s.Confidence != internal.ConfidenceExact {
		t.Fatalf("pax: %+v", s)
	}
	if s := got["total_amount"]; s.Confidence != internal.ConfidenceNone {
		t.Fatalf("total_amount should be unmapped, got %+v", s)
	}
}

func TestSuggestMappingTieBreakShortest(t *testing.T) {
	target := mustTarget(t, "reservations")
	// Both columns fuzzy-match pax; the shorter, more specific one wins.
	got := SuggestMapping([]string{"Pax Count (Adults)", "Pax Total"}, target)

	if s := got["pax"]; s.Column != "Pax Total" || s.Confidence != internal.ConfidenceFuzzy {
		t.Fatalf("tie break failed: %+v", s)
	}
}

func TestSuggestMappingDoesNotReuseColumns(t *testing.T) {
	target := mustTarget(t, "reservations")
	got := SuggestMapping([]string{"Date"}, target)

	// "Date" is a synonym of reservation_date; updated_at must not also
	// claim it fuzzily.
	if s := got["reservation_date"]; s.Column != "Date" || s.Confidence != internal.ConfidenceSynonym {
		t.Fatalf("reservation_date: %+v", s)
	}
	if s := got["updated_at"]; s.Column == "Date" {
		t.Fatalf("updated_at stole the Date column: %+v", s)
	}
}

func TestAutoMappingRejectsFuzzyRequired(t *testing.T) {
	target := mustTarget(t, "reservations")
	suggestions := SuggestMapping([]string{
		"Reservation Number Extra", // fuzzy on a required field
		"Guest Name",
		"Fecha",
	}, target)

	if _, err := AutoMapping(suggestions, target); err == nil {
		t.Fatal("expected MappingError for fuzzy required field")
	}
}

func TestAutoMappingAcceptsConfident(t *testing.T) {
	target := mustTarget(t, "tours")
	suggestions := SuggestMapping([]string{"Tour Code", "Name", "Price", "Days"}, target)

	mapping, err := AutoMapping(suggestions, target)
	if err != nil {
		t.Fatalf("AutoMapping: %v", err)
	}
	if mapping["tour_code"] != "Tour Code" || mapping["tour_name"] != "Name" {
		t.Fatalf("mapping: %+v", mapping)
	}
}

func TestValidateMapping(t *testing.T) {
	target := mustTarget(t, "payment_methods")
	columns := []string{"Code", "Method"}

	ok := internal.ColumnMapping{"method_code": "Code", "method_name": "Method"}
	if err := ValidateMapping(ok, columns, target); err != nil {
		t.Fatalf("valid mapping rejected: %v", err)
	}

	missingRequired := internal.ColumnMapping{"method_code": "Code"}
	if err := ValidateMapping(missingRequired, columns, target); err == nil {
		t.Fatal("expected error for unmapped required field")
	}

	badColumn := internal.ColumnMapping{"method_code": "Code", "method_name": "Nope"}
	if err := ValidateMapping(badColumn, columns, target); err == nil {
		t.Fatal("expected error for mapping to a missing column")
	}
}
