package metadata

import (
	"context"
	"errors"
)

// ErrEntityNotFound is returned by GetEntityMetadata when the entity does not
// exist on the platform.
var ErrEntityNotFound = errors.New("entity not found")

// Catalog resolves solutions, entities, attributes, relationships, and forms
// from the platform metadata services. Implementations are remote; results
// are immutable descriptive records.
type Catalog interface {
	ListUnmanagedSolutions(ctx context.Context) ([]SolutionDescriptor, error)
	ListEntities(ctx context.Context, solutionID string) ([]EntityDescriptor, error)
	ListChildRelationships(ctx context.Context, parentEntity, solutionID string) ([]RelationshipDescriptor, error)
	ListAttributes(ctx context.Context, entity string, includeReadOnly, includeLogical bool) ([]AttributeDescriptor, error)
	GetEntityMetadata(ctx context.Context, entity string) (*EntityMetadata, error)
	ListFormFields(ctx context.Context, solutionID, entity string) ([]FormDescriptor, error)
}
