package model

import "testing"

func TestParseFilterCriteria(t *testing.T) {
	criteria, err := ParseFilterCriteria("statecode|eq|0;name|like|Contoso")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(criteria) != 2 {
		t.Fatalf("expected 2 criteria, got %d", len(criteria))
	}
	if criteria[0].Field != "statecode" || criteria[0].Operator != "eq" || criteria[0].Value != "0" {
		t.Fatalf("unexpected first criterion: %+v", criteria[0])
	}
	if criteria[1].Field != "name" || criteria[1].Operator != "like" || criteria[1].Value != "Contoso" {
		t.Fatalf("unexpected second criterion: %+v", criteria[1])
	}
}

func TestParseFilterCriteria_Empty(t *testing.T) {
	criteria, err := ParseFilterCriteria("")
	if err != nil {
		t.Fatalf("parse empty: %v", err)
	}
	if len(criteria) != 0 {
		t.Fatalf("expected no criteria, got %d", len(criteria))
	}

	// Trailing separator is tolerated.
	criteria, err = ParseFilterCriteria("statecode|eq|0;")
	if err != nil {
		t.Fatalf("parse trailing separator: %v", err)
	}
	if len(criteria) != 1 {
		t.Fatalf("expected 1 criterion, got %d", len(criteria))
	}
}

func TestParseFilterCriteria_NullOperator(t *testing.T) {
	criteria, err := ParseFilterCriteria("parentcustomerid|notnull")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(criteria) != 1 {
		t.Fatalf("expected 1 criterion, got %d", len(criteria))
	}
	if criteria[0].Operator != "notnull" || criteria[0].Value != "" {
		t.Fatalf("unexpected criterion: %+v", criteria[0])
	}
}

func TestParseFilterCriteria_ValueWithPipe(t *testing.T) {
	criteria, err := ParseFilterCriteria("description|eq|a|b")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if criteria[0].Value != "a|b" {
		t.Fatalf("expected value to keep pipes, got %q", criteria[0].Value)
	}
}

func TestParseFilterCriteria_Malformed(t *testing.T) {
	if _, err := ParseFilterCriteria("justafield"); err == nil {
		t.Fatal("expected error for criterion without operator")
	}
	if _, err := ParseFilterCriteria("field|frobnicate|1"); err == nil {
		t.Fatal("expected error for unknown operator")
	}
	if _, err := ParseFilterCriteria("|eq|1"); err == nil {
		t.Fatal("expected error for missing field")
	}
}

func TestJoinFilterCriteria_RoundTrip(t *testing.T) {
	in := "statecode|eq|0;name|like|Contoso"
	criteria, err := ParseFilterCriteria(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out := JoinFilterCriteria(criteria)
	if out != in {
		t.Fatalf("round trip mismatch: %q != %q", out, in)
	}
}
