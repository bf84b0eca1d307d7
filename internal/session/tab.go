package session

import (
	"strings"

	"cascade-studio/internal/metadata"
	"cascade-studio/internal/model"
)

// MappingRow is one editable field-mapping row on a tab.
type MappingRow struct {
	SourceField    string `json:"sourceField"`
	TargetField    string `json:"targetField"`
	IsTriggerField bool   `json:"isTriggerField"`
}

// IsValid reports whether the row is a complete mapping.
func (r MappingRow) IsValid() bool {
	return r.SourceField != "" && r.TargetField != ""
}

// IsEmpty reports whether the row carries nothing at all.
func (r MappingRow) IsEmpty() bool {
	return r.SourceField == "" && r.TargetField == "" && !r.IsTriggerField
}

// FilterRow is one editable filter-criterion row on a tab.
type FilterRow struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// IsValid reports whether the row is a complete criterion. The null and
// notnull operators take no value.
func (r FilterRow) IsValid() bool {
	if r.Field == "" || !model.KnownOperator(r.Operator) {
		return false
	}
	if r.Operator == "null" || r.Operator == "notnull" {
		return true
	}
	return r.Value != ""
}

// IsEmpty reports whether the row carries nothing at all.
func (r FilterRow) IsEmpty() bool {
	return r.Field == "" && r.Operator == "" && r.Value == ""
}

// Tab is the editable state for one child relationship. It is the only place
// mapping and filter edits happen; the configuration model entry is always
// derived from it. Every mutation goes through the owning engine's notify
// callback so JSON regeneration and save scheduling fire uniformly.
type Tab struct {
	ChildEntity      string
	RelationshipName string
	UseRelationship  bool
	LookupField      string
	Title            string
	Published        bool

	Mappings []MappingRow
	Filters  []FilterRow

	ParentAttributes []metadata.AttributeDescriptor
	ChildAttributes  []metadata.AttributeDescriptor

	notify func()
}

func newTab(childEntity, relationshipName, lookupField string, useRelationship bool) *Tab {
	t := &Tab{
		ChildEntity:      childEntity,
		RelationshipName: relationshipName,
		UseRelationship:  useRelationship,
		LookupField:      lookupField,
	}
	t.Title = tabTitle(childEntity, relationshipName, lookupField)
	t.ensureTrailingRows()
	return t
}

func tabTitle(childEntity, relationshipName, lookupField string) string {
	via := lookupField
	if via == "" {
		via = relationshipName
	}
	if via == "" {
		return childEntity
	}
	return childEntity + " (" + via + ")"
}

// Key returns the tab's composite identity: child entity, relationship schema
// name, lookup field, case-insensitive. Matches the model composite key.
func (t *Tab) Key() string {
	return strings.ToLower(t.ChildEntity) + "|" + strings.ToLower(t.RelationshipName) + "|" + strings.ToLower(t.LookupField)
}

func (t *Tab) attach(notify func()) { t.notify = notify }

// detach drops the notify callback so a removed tab can no longer drive JSON
// regeneration.
func (t *Tab) detach() { t.notify = nil }

func (t *Tab) changed() {
	if t.notify != nil {
		t.notify()
	}
}

// ensureTrailingRows keeps exactly one empty row at the end of each list so a
// presentation layer can offer in-place row addition.
func (t *Tab) ensureTrailingRows() {
	kept := t.Mappings[:0]
	for _, r := range t.Mappings {
		if !r.IsEmpty() {
			kept = append(kept, r)
		}
	}
	t.Mappings = append(kept, MappingRow{})

	keptF := t.Filters[:0]
	for _, r := range t.Filters {
		if !r.IsEmpty() {
			keptF = append(keptF, r)
		}
	}
	t.Filters = append(keptF, FilterRow{})
}

// SetMappings replaces the mapping rows and notifies the engine.
func (t *Tab) SetMappings(rows []MappingRow) {
	t.Mappings = append([]MappingRow(nil), rows...)
	t.ensureTrailingRows()
	t.changed()
}

// SetFilters replaces the filter rows and notifies the engine.
func (t *Tab) SetFilters(rows []FilterRow) {
	t.Filters = append([]FilterRow(nil), rows...)
	t.ensureTrailingRows()
	t.changed()
}

// loadConfig writes a parsed configuration entry into the tab's rows. Used by
// the restore/apply path only; manual edits go through SetMappings and
// SetFilters.
func (t *Tab) loadConfig(rc model.RelatedEntityConfig) {
	t.Mappings = t.Mappings[:0]
	for _, fm := range rc.FieldMappings {
		t.Mappings = append(t.Mappings, MappingRow{
			SourceField:    fm.SourceField,
			TargetField:    fm.TargetField,
			IsTriggerField: fm.IsTriggerField,
		})
	}

	t.Filters = t.Filters[:0]
	if criteria, err := model.ParseFilterCriteria(rc.FilterCriteria); err == nil {
		for _, fc := range criteria {
			t.Filters = append(t.Filters, FilterRow{Field: fc.Field, Operator: fc.Operator, Value: fc.Value})
		}
	}

	t.ensureTrailingRows()
	t.changed()
}

// Config derives the configuration entry from the tab's valid rows.
func (t *Tab) Config() model.RelatedEntityConfig {
	rc := model.RelatedEntityConfig{
		EntityName:      t.ChildEntity,
		UseRelationship: t.UseRelationship,
		FieldMappings:   []model.FieldMapping{},
	}
	if t.RelationshipName != "" {
		name := t.RelationshipName
		rc.RelationshipName = &name
	}
	if t.LookupField != "" {
		lookup := t.LookupField
		rc.LookupFieldName = &lookup
	}

	for _, r := range t.Mappings {
		if r.IsValid() {
			rc.FieldMappings = append(rc.FieldMappings, model.FieldMapping{
				SourceField:    r.SourceField,
				TargetField:    r.TargetField,
				IsTriggerField: r.IsTriggerField,
			})
		}
	}

	var criteria []model.FilterCriterion
	for _, r := range t.Filters {
		if r.IsValid() {
			criteria = append(criteria, model.FilterCriterion{Field: r.Field, Operator: r.Operator, Value: r.Value})
		}
	}
	rc.FilterCriteria = model.JoinFilterCriteria(criteria)

	return rc
}
