package model

import "testing"

func strptr(s string) *string { return &s }

func relConfig(entity, relationship, lookup string) RelatedEntityConfig {
	rc := RelatedEntityConfig{EntityName: entity}
	if relationship != "" {
		rc.RelationshipName = strptr(relationship)
		rc.UseRelationship = true
	}
	if lookup != "" {
		rc.LookupFieldName = strptr(lookup)
	}
	return rc
}

func TestDiff_RemovedRelationship(t *testing.T) {
	a := relConfig("contact", "account_contacts", "parentcustomerid")
	b := relConfig("task", "account_tasks", "regardingobjectid")
	c := relConfig("opportunity", "", "customerid")

	previous := &ConfigurationModel{ParentEntity: "account", RelatedEntities: []RelatedEntityConfig{a, b}}
	current := &ConfigurationModel{ParentEntity: "account", RelatedEntities: []RelatedEntityConfig{a, c}}

	toRetract := Diff(previous, current)
	if len(toRetract) != 1 {
		t.Fatalf("expected 1 retraction, got %d", len(toRetract))
	}
	if toRetract[0].EntityName != "task" {
		t.Fatalf("expected task to be retracted, got %s", toRetract[0].EntityName)
	}
}

func TestDiff_NilPrevious(t *testing.T) {
	current := &ConfigurationModel{ParentEntity: "account"}
	if toRetract := Diff(nil, current); len(toRetract) != 0 {
		t.Fatalf("expected no retractions with nil previous, got %d", len(toRetract))
	}
}

func TestDiff_CaseInsensitiveKeys(t *testing.T) {
	previous := &ConfigurationModel{RelatedEntities: []RelatedEntityConfig{
		relConfig("Contact", "Account_Contacts", "ParentCustomerId"),
	}}
	current := &ConfigurationModel{RelatedEntities: []RelatedEntityConfig{
		relConfig("contact", "account_contacts", "parentcustomerid"),
	}}

	if toRetract := Diff(previous, current); len(toRetract) != 0 {
		t.Fatalf("expected key match to be case-insensitive, got %d retractions", len(toRetract))
	}
}

func TestDiff_ChangedMappingsIsNotARetraction(t *testing.T) {
	a := relConfig("contact", "account_contacts", "parentcustomerid")
	aChanged := a
	aChanged.FieldMappings = []FieldMapping{{SourceField: "address1_city", TargetField: "address1_city"}}

	previous := &ConfigurationModel{RelatedEntities: []RelatedEntityConfig{a}}
	current := &ConfigurationModel{RelatedEntities: []RelatedEntityConfig{aChanged}}

	if toRetract := Diff(previous, current); len(toRetract) != 0 {
		t.Fatalf("mapping changes must not retract, got %d", len(toRetract))
	}
}
