package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Parse decodes a configuration JSON document into a model. The decode is
// version-tolerant: unknown fields are ignored and missing optional fields
// default. Required fields are validated here, once, at the model boundary.
func Parse(data string) (*ConfigurationModel, error) {
	var m ConfigurationModel
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	if m.ParentEntity == "" {
		return nil, fmt.Errorf("parse configuration: parentEntity is required")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Name == "" {
		m.Name = m.ParentEntity + " cascade"
	}
	if m.RelatedEntities == nil {
		m.RelatedEntities = []RelatedEntityConfig{}
	}
	for i := range m.RelatedEntities {
		rc := &m.RelatedEntities[i]
		if rc.EntityName == "" {
			return nil, fmt.Errorf("parse configuration: relatedEntities[%d] has no entityName", i)
		}
		if rc.FieldMappings == nil {
			rc.FieldMappings = []FieldMapping{}
		}
		// Older documents carried a lookup field without the flag.
		if rc.RelationshipName == nil || *rc.RelationshipName == "" {
			rc.UseRelationship = false
		}
	}

	return &m, nil
}

// Canonical projects the model to its canonical JSON string. This projection
// is the single source of truth for persistence, preview, and publish.
func (m *ConfigurationModel) Canonical() (string, error) {
	out := *m
	if out.RelatedEntities == nil {
		out.RelatedEntities = []RelatedEntityConfig{}
	}
	for i := range out.RelatedEntities {
		if out.RelatedEntities[i].FieldMappings == nil {
			out.RelatedEntities[i].FieldMappings = []FieldMapping{}
		}
	}
	b, err := json.Marshal(&out)
	if err != nil {
		return "", fmt.Errorf("serialize configuration: %w", err)
	}
	return string(b), nil
}

// Clone returns a deep copy of the model.
func (m *ConfigurationModel) Clone() *ConfigurationModel {
	out := *m
	out.RelatedEntities = make([]RelatedEntityConfig, len(m.RelatedEntities))
	for i, rc := range m.RelatedEntities {
		cp := rc
		if rc.RelationshipName != nil {
			v := *rc.RelationshipName
			cp.RelationshipName = &v
		}
		if rc.LookupFieldName != nil {
			v := *rc.LookupFieldName
			cp.LookupFieldName = &v
		}
		cp.FieldMappings = append([]FieldMapping(nil), rc.FieldMappings...)
		out.RelatedEntities[i] = cp
	}
	return &out
}
