package model

import "testing"

func TestFieldMapping_IsValid(t *testing.T) {
	if !(FieldMapping{SourceField: "a", TargetField: "b"}).IsValid() {
		t.Fatal("expected valid mapping")
	}
	if (FieldMapping{SourceField: "a"}).IsValid() {
		t.Fatal("expected invalid mapping without target")
	}
	if (FieldMapping{TargetField: "b"}).IsValid() {
		t.Fatal("expected invalid mapping without source")
	}
}

func TestValidate_CollectsAllIssues(t *testing.T) {
	m := &ConfigurationModel{
		ParentEntity: "",
		RelatedEntities: []RelatedEntityConfig{
			{EntityName: "contact", FieldMappings: []FieldMapping{{SourceField: "only_source"}}},
		},
	}

	issues := m.Validate()
	if len(issues) < 3 {
		t.Fatalf("expected at least 3 issues (parent, identification, mapping), got %d: %+v", len(issues), issues)
	}
}

func TestValidate_DuplicateKeys(t *testing.T) {
	lookup := "parentcustomerid"
	m := &ConfigurationModel{
		ParentEntity: "account",
		RelatedEntities: []RelatedEntityConfig{
			{EntityName: "contact", LookupFieldName: &lookup},
			{EntityName: "Contact", LookupFieldName: &lookup},
		},
	}

	issues := m.Validate()
	found := false
	for _, issue := range issues {
		if issue.Path == "relatedEntities[1]" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a duplicate issue on the second entry, got %+v", issues)
	}
}

func TestValidate_CleanModel(t *testing.T) {
	lookup := "parentcustomerid"
	m := &ConfigurationModel{
		ParentEntity: "account",
		RelatedEntities: []RelatedEntityConfig{
			{
				EntityName:      "contact",
				LookupFieldName: &lookup,
				FilterCriteria:  "statecode|eq|0",
				FieldMappings:   []FieldMapping{{SourceField: "address1_city", TargetField: "address1_city", IsTriggerField: true}},
			},
		},
	}
	if issues := m.Validate(); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestKey_PrefersBothIdentifiers(t *testing.T) {
	rel := "account_contacts"
	lookup := "parentcustomerid"
	a := RelatedEntityConfig{EntityName: "contact", RelationshipName: &rel, LookupFieldName: &lookup}
	b := RelatedEntityConfig{EntityName: "contact", LookupFieldName: &lookup}
	if a.Key() == b.Key() {
		t.Fatal("expected relationship name to participate in the key")
	}
}
