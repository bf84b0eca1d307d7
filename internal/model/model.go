package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ConfigurationModel is the canonical description of one parent entity's
// cascade rule set. It is pure data; the session engine derives it from tab
// state and projects it to canonical JSON. Field order here defines the
// canonical JSON field order.
type ConfigurationModel struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	ParentEntity    string                `json:"parentEntity"`
	IsActive        bool                  `json:"isActive"`
	EnableTracing   bool                  `json:"enableTracing"`
	RelatedEntities []RelatedEntityConfig `json:"relatedEntities"`
}

// RelatedEntityConfig is one child relationship's rule.
type RelatedEntityConfig struct {
	EntityName       string         `json:"entityName"`
	RelationshipName *string        `json:"relationshipName"`
	UseRelationship  bool           `json:"useRelationship"`
	LookupFieldName  *string        `json:"lookupFieldName"`
	FilterCriteria   string         `json:"filterCriteria"`
	FieldMappings    []FieldMapping `json:"fieldMappings"`
}

// FieldMapping maps one source field on the parent to one target field on the
// child. Trigger mappings are the ones whose source change initiates a cascade.
type FieldMapping struct {
	SourceField    string `json:"sourceField"`
	TargetField    string `json:"targetField"`
	IsTriggerField bool   `json:"isTriggerField"`
}

// Issue is one validation finding, addressed by a dotted path into the model.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// NewConfigurationModel creates an empty model for a parent entity with a
// fresh id and the conventional default name.
func NewConfigurationModel(parentEntity string) *ConfigurationModel {
	return &ConfigurationModel{
		ID:              uuid.New().String(),
		Name:            parentEntity + " cascade",
		ParentEntity:    parentEntity,
		IsActive:        true,
		RelatedEntities: []RelatedEntityConfig{},
	}
}

// IsValid reports whether the mapping row carries both field names.
func (m FieldMapping) IsValid() bool {
	return m.SourceField != "" && m.TargetField != ""
}

// RelationshipOrLookup returns whichever identifier is present, preferring the
// relationship schema name.
func (rc *RelatedEntityConfig) RelationshipOrLookup() string {
	if rc.RelationshipName != nil && *rc.RelationshipName != "" {
		return *rc.RelationshipName
	}
	if rc.LookupFieldName != nil && *rc.LookupFieldName != "" {
		return *rc.LookupFieldName
	}
	return ""
}

// Key returns the composite identity used for duplicate prevention and
// publish diffing: child entity plus relationship schema name plus lookup
// field, case-insensitive.
func (rc *RelatedEntityConfig) Key() string {
	rel := ""
	if rc.RelationshipName != nil {
		rel = *rc.RelationshipName
	}
	lookup := ""
	if rc.LookupFieldName != nil {
		lookup = *rc.LookupFieldName
	}
	return strings.ToLower(rc.EntityName) + "|" + strings.ToLower(rel) + "|" + strings.ToLower(lookup)
}

// Validate checks the requirements enforced at the model boundary. All
// findings are returned at once.
func (m *ConfigurationModel) Validate() []Issue {
	var issues []Issue

	if m.ParentEntity == "" {
		issues = append(issues, Issue{Path: "parentEntity", Message: "parent entity is required"})
	}

	seen := make(map[string]int, len(m.RelatedEntities))
	for i := range m.RelatedEntities {
		rc := &m.RelatedEntities[i]
		path := fmt.Sprintf("relatedEntities[%d]", i)

		if rc.EntityName == "" {
			issues = append(issues, Issue{Path: path + ".entityName", Message: "child entity is required"})
		}
		if rc.RelationshipOrLookup() == "" {
			issues = append(issues, Issue{Path: path, Message: "a relationship name or a lookup field is required"})
		}
		if !rc.UseRelationship && (rc.LookupFieldName == nil || *rc.LookupFieldName == "") {
			issues = append(issues, Issue{Path: path + ".lookupFieldName", Message: "a lookup field is required when not using a relationship"})
		}

		if prev, dup := seen[rc.Key()]; dup {
			issues = append(issues, Issue{
				Path:    path,
				Message: fmt.Sprintf("duplicate of relatedEntities[%d] (%s)", prev, rc.EntityName),
			})
		} else {
			seen[rc.Key()] = i
		}

		for j, fm := range rc.FieldMappings {
			if !fm.IsValid() {
				issues = append(issues, Issue{
					Path:    fmt.Sprintf("%s.fieldMappings[%d]", path, j),
					Message: "both source and target fields are required",
				})
			}
		}

		if _, err := ParseFilterCriteria(rc.FilterCriteria); err != nil {
			issues = append(issues, Issue{Path: path + ".filterCriteria", Message: err.Error()})
		}
	}

	return issues
}
