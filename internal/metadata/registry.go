package metadata

import (
	"strings"
	"sync"
)

// Registry caches the metadata a configuration session has explicitly
// requested: the solution list, the entities of loaded solutions, the child
// relationships of selected parents, and attribute catalogs per entity.
type Registry struct {
	mu            sync.RWMutex
	solutions     []SolutionDescriptor
	entities      map[string][]EntityDescriptor       // keyed by solution id
	relationships map[string][]RelationshipDescriptor // keyed by parent entity logical name
	attributes    map[string][]AttributeDescriptor    // keyed by entity logical name
}

func NewRegistry() *Registry {
	return &Registry{
		entities:      make(map[string][]EntityDescriptor),
		relationships: make(map[string][]RelationshipDescriptor),
		attributes:    make(map[string][]AttributeDescriptor),
	}
}

// LoadSolutions replaces the cached solution list.
func (r *Registry) LoadSolutions(solutions []SolutionDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solutions = solutions
}

// Solutions returns the cached solution list.
func (r *Registry) Solutions() []SolutionDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.solutions
}

// FindSolution returns the solution with the given unique name
// (case-insensitive), or nil.
func (r *Registry) FindSolution(uniqueName string) *SolutionDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.solutions {
		if strings.EqualFold(r.solutions[i].UniqueName, uniqueName) {
			return &r.solutions[i]
		}
	}
	return nil
}

// LoadEntities replaces the cached entity list for a solution.
func (r *Registry) LoadEntities(solutionID string, entities []EntityDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[solutionID] = entities
}

// Entities returns the cached entities for a solution.
func (r *Registry) Entities(solutionID string) []EntityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[solutionID]
}

// FindEntity returns the entity with the given logical name within a
// solution's cached entities, or nil.
func (r *Registry) FindEntity(solutionID, logicalName string) *EntityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entities := r.entities[solutionID]
	for i := range entities {
		if strings.EqualFold(entities[i].LogicalName, logicalName) {
			return &entities[i]
		}
	}
	return nil
}

// LoadRelationships replaces the cached child relationships for a parent.
func (r *Registry) LoadRelationships(parentEntity string, rels []RelationshipDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relationships[strings.ToLower(parentEntity)] = rels
}

// Relationships returns the cached child relationships for a parent.
func (r *Registry) Relationships(parentEntity string) []RelationshipDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.relationships[strings.ToLower(parentEntity)]
}

// LoadAttributes replaces the cached attribute catalog for an entity.
func (r *Registry) LoadAttributes(entity string, attrs []AttributeDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attributes[strings.ToLower(entity)] = attrs
}

// Attributes returns the cached attribute catalog for an entity.
func (r *Registry) Attributes(entity string) []AttributeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.attributes[strings.ToLower(entity)]
}

// HasAttribute reports whether the cached catalog for an entity contains the
// given attribute. Returns false when the catalog has not been loaded.
func (r *Registry) HasAttribute(entity, attribute string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.attributes[strings.ToLower(entity)] {
		if strings.EqualFold(a.LogicalName, attribute) {
			return true
		}
	}
	return false
}

// Reset drops everything cached for a prior connection or solution scope.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solutions = nil
	r.entities = make(map[string][]EntityDescriptor)
	r.relationships = make(map[string][]RelationshipDescriptor)
	r.attributes = make(map[string][]AttributeDescriptor)
}
