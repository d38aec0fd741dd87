package main

import (
	"path/filepath"
	"testing"
)

func TestReportPath(t *testing.T) {
	out := filepath.Join("data", "out")

	if got := reportPath(out, "run.xlsx"); got != filepath.Join(out, "run.xlsx") {
		t.Fatalf("bare name: %q", got)
	}
	if got := reportPath(out, filepath.Join("reports", "run.xlsx")); got != filepath.Join("reports", "run.xlsx") {
		t.Fatalf("relative path kept: %q", got)
	}
	abs := filepath.Join(string(filepath.Separator), "tmp", "run.xlsx")
	if got := reportPath(out, abs); got != abs {
		t.Fatalf("absolute path kept: %q", got)
	}
}

func TestParseMappingPairs(t *testing.T) {
	mapping, err := parseMappingPairs("reservation_number=Reserva; customer_name=Cliente")
	if err != nil {
		t.Fatal(err)
	}
	if mapping["reservation_number"] != "Reserva" || mapping["customer_name"] != "Cliente" {
		t.Fatalf("mapping: %+v", mapping)
	}

	if _, err := parseMappingPairs("no-equals-sign"); err == nil {
		t.Fatal("malformed pair must be rejected")
	}
	if _, err := parseMappingPairs(" ; "); err == nil {
		t.Fatal("empty mapping must be rejected")
	}
}
