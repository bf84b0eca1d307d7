package session

import (
	"testing"

	"cascade-studio/internal/model"
)

func TestTabKeepsOneTrailingEmptyRow(t *testing.T) {
	tab := newTab("contact", "contact_customer_accounts", "parentcustomerid", true)

	if len(tab.Mappings) != 1 || !tab.Mappings[0].IsEmpty() {
		t.Fatalf("new tab should start with one empty mapping row, got %+v", tab.Mappings)
	}
	if len(tab.Filters) != 1 || !tab.Filters[0].IsEmpty() {
		t.Fatalf("new tab should start with one empty filter row, got %+v", tab.Filters)
	}

	tab.SetMappings([]MappingRow{
		{SourceField: "name", TargetField: "fullname"},
		{},
		{},
	})
	if len(tab.Mappings) != 2 {
		t.Fatalf("expected 1 mapping + 1 trailing empty row, got %d", len(tab.Mappings))
	}
	if !tab.Mappings[len(tab.Mappings)-1].IsEmpty() {
		t.Fatal("last mapping row must be empty")
	}

	tab.SetFilters([]FilterRow{{Field: "statecode", Operator: "eq", Value: "0"}})
	if len(tab.Filters) != 2 || !tab.Filters[1].IsEmpty() {
		t.Fatalf("expected 1 filter + 1 trailing empty row, got %+v", tab.Filters)
	}
}

func TestTabConfigDerivesOnlyValidRows(t *testing.T) {
	tab := newTab("contact", "", "parentcustomerid", false)
	tab.SetMappings([]MappingRow{
		{SourceField: "address1_city", TargetField: "address1_city", IsTriggerField: true},
		{SourceField: "half", TargetField: ""},
	})
	tab.SetFilters([]FilterRow{
		{Field: "statecode", Operator: "eq", Value: "0"},
		{Field: "name", Operator: "bogus", Value: "x"},
		{Field: "description", Operator: "notnull"},
	})

	rc := tab.Config()
	if rc.EntityName != "contact" || rc.UseRelationship {
		t.Fatalf("unexpected identity: %+v", rc)
	}
	if rc.RelationshipName != nil {
		t.Fatal("no relationship name expected")
	}
	if rc.LookupFieldName == nil || *rc.LookupFieldName != "parentcustomerid" {
		t.Fatalf("lookup field lost: %+v", rc.LookupFieldName)
	}
	if len(rc.FieldMappings) != 1 {
		t.Fatalf("expected only the valid mapping, got %+v", rc.FieldMappings)
	}
	if rc.FilterCriteria != "statecode|eq|0;description|notnull|" {
		t.Fatalf("unexpected filter criteria: %q", rc.FilterCriteria)
	}
}

func TestTabLoadConfigRoundTrips(t *testing.T) {
	rel := "contact_customer_accounts"
	lookup := "parentcustomerid"
	in := model.RelatedEntityConfig{
		EntityName:       "contact",
		RelationshipName: &rel,
		UseRelationship:  true,
		LookupFieldName:  &lookup,
		FilterCriteria:   "statecode|eq|0",
		FieldMappings: []model.FieldMapping{
			{SourceField: "address1_city", TargetField: "address1_city", IsTriggerField: true},
		},
	}

	tab := newTab(in.EntityName, rel, lookup, true)
	tab.loadConfig(in)

	out := tab.Config()
	if out.FilterCriteria != in.FilterCriteria {
		t.Fatalf("filter criteria changed: %q -> %q", in.FilterCriteria, out.FilterCriteria)
	}
	if len(out.FieldMappings) != 1 || out.FieldMappings[0] != in.FieldMappings[0] {
		t.Fatalf("mappings changed: %+v", out.FieldMappings)
	}
	if out.Key() != in.Key() {
		t.Fatalf("composite key changed: %q -> %q", in.Key(), out.Key())
	}
}

func TestTabNotifiesOnMutationUntilDetached(t *testing.T) {
	tab := newTab("contact", "", "parentcustomerid", false)
	notified := 0
	tab.attach(func() { notified++ })

	tab.SetMappings([]MappingRow{{SourceField: "a", TargetField: "b"}})
	tab.SetFilters([]FilterRow{{Field: "statecode", Operator: "eq", Value: "0"}})
	if notified != 2 {
		t.Fatalf("expected 2 notifications, got %d", notified)
	}

	tab.detach()
	tab.SetMappings(nil)
	if notified != 2 {
		t.Fatalf("detached tab must not notify, got %d", notified)
	}
}

func TestFilterRowValidity(t *testing.T) {
	cases := []struct {
		row   FilterRow
		valid bool
	}{
		{FilterRow{Field: "statecode", Operator: "eq", Value: "0"}, true},
		{FilterRow{Field: "statecode", Operator: "null"}, true},
		{FilterRow{Field: "statecode", Operator: "notnull"}, true},
		{FilterRow{Field: "statecode", Operator: "eq"}, false},
		{FilterRow{Field: "", Operator: "eq", Value: "0"}, false},
		{FilterRow{Field: "statecode", Operator: "between", Value: "0"}, false},
		{FilterRow{}, false},
	}
	for i, c := range cases {
		if got := c.row.IsValid(); got != c.valid {
			t.Fatalf("case %d: IsValid() = %v, want %v (%+v)", i, got, c.valid, c.row)
		}
	}
}
