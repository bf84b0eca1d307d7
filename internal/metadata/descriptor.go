package metadata

// SolutionDescriptor identifies an unmanaged solution on the platform.
type SolutionDescriptor struct {
	ID           string `json:"id"`
	UniqueName   string `json:"unique_name"`
	FriendlyName string `json:"friendly_name"`
	Version      string `json:"version"`
}

// EntityDescriptor describes one entity available in a solution.
type EntityDescriptor struct {
	LogicalName    string `json:"logical_name"`
	DisplayName    string `json:"display_name"`
	ObjectTypeCode int    `json:"object_type_code"`
	IsCustom       bool   `json:"is_custom"`
}

// AttributeDescriptor describes one attribute of an entity.
type AttributeDescriptor struct {
	LogicalName string `json:"logical_name"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"` // string, int, decimal, boolean, lookup, datetime, optionset
	IsReadOnly  bool   `json:"is_read_only"`
	IsLogical   bool   `json:"is_logical"`
}

// RelationshipDescriptor describes a one-to-many relationship where the
// referenced (parent) entity is pointed at by a lookup on the referencing
// (child) entity.
type RelationshipDescriptor struct {
	SchemaName        string `json:"schema_name"`
	ReferencedEntity  string `json:"referenced_entity"`
	ReferencingEntity string `json:"referencing_entity"`
	LookupField       string `json:"lookup_field"`
	IsCustom          bool   `json:"is_custom"`
}

// FormDescriptor describes a form and the fields it places.
type FormDescriptor struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Entity string   `json:"entity"`
	Fields []string `json:"fields"`
}

// EntityMetadata is the full metadata record for a single entity.
type EntityMetadata struct {
	Descriptor  EntityDescriptor      `json:"descriptor"`
	PrimaryID   string                `json:"primary_id"`
	PrimaryName string                `json:"primary_name"`
	Attributes  []AttributeDescriptor `json:"attributes"`
}
