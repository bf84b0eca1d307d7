package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"cascade-studio/internal/metadata"
	"cascade-studio/internal/model"
	"cascade-studio/internal/remote"
	"cascade-studio/internal/store"
)

type fakeCatalog struct {
	mu            sync.Mutex
	solutions     []metadata.SolutionDescriptor
	entities      map[string][]metadata.EntityDescriptor
	relationships map[string][]metadata.RelationshipDescriptor
	attributes    map[string][]metadata.AttributeDescriptor

	entityCalls []string
	entityGate  chan struct{} // when set, ListEntities blocks until a receive

	attrCalls []string
	attrGate  chan struct{} // when set, ListAttributes blocks until a receive
}

func (c *fakeCatalog) ListUnmanagedSolutions(ctx context.Context) ([]metadata.SolutionDescriptor, error) {
	return c.solutions, nil
}

func (c *fakeCatalog) ListEntities(ctx context.Context, solutionID string) ([]metadata.EntityDescriptor, error) {
	c.mu.Lock()
	c.entityCalls = append(c.entityCalls, solutionID)
	gate := c.entityGate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return c.entities[solutionID], nil
}

func (c *fakeCatalog) ListChildRelationships(ctx context.Context, parentEntity, solutionID string) ([]metadata.RelationshipDescriptor, error) {
	return c.relationships[strings.ToLower(parentEntity)], nil
}

func (c *fakeCatalog) ListAttributes(ctx context.Context, entity string, includeReadOnly, includeLogical bool) ([]metadata.AttributeDescriptor, error) {
	c.mu.Lock()
	c.attrCalls = append(c.attrCalls, strings.ToLower(entity))
	attrs := c.attributes[strings.ToLower(entity)]
	gate := c.attrGate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return attrs, nil
}

func (c *fakeCatalog) setAttributes(entity string, attrs []metadata.AttributeDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attributes[strings.ToLower(entity)] = attrs
}

func (c *fakeCatalog) setAttrGate(gate chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attrGate = gate
}

func (c *fakeCatalog) attrCallCount(entity string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, name := range c.attrCalls {
		if name == entity {
			n++
		}
	}
	return n
}

func (c *fakeCatalog) GetEntityMetadata(ctx context.Context, entity string) (*metadata.EntityMetadata, error) {
	c.mu.Lock()
	attrs, ok := c.attributes[strings.ToLower(entity)]
	c.mu.Unlock()
	if !ok {
		return nil, metadata.ErrEntityNotFound
	}
	return &metadata.EntityMetadata{
		Descriptor: metadata.EntityDescriptor{LogicalName: entity},
		Attributes: attrs,
	}, nil
}

func (c *fakeCatalog) ListFormFields(ctx context.Context, solutionID, entity string) ([]metadata.FormDescriptor, error) {
	return nil, nil
}

type fakePublisher struct {
	mu           sync.Mutex
	existingJSON map[string]string
	status       remote.AutomationStatus

	calls          []string
	registered     bool
	published      []*model.ConfigurationModel
	retracted      [][]model.RelatedEntityConfig
	retractParents []string
	retractErr     error
	publishErr     error
}

func (p *fakePublisher) GetExistingConfigurationJSON(ctx context.Context, parentEntity string) (string, error) {
	return p.existingJSON[strings.ToLower(parentEntity)], nil
}

func (p *fakePublisher) CheckRemoteAutomationStatus(ctx context.Context, localPackageVersion string) (remote.AutomationStatus, error) {
	return p.status, nil
}

func (p *fakePublisher) RegisterOrUpdateAutomation(ctx context.Context, packagePath, solutionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = true
	p.calls = append(p.calls, "register")
	return nil
}

func (p *fakePublisher) Publish(ctx context.Context, m *model.ConfigurationModel, progress remote.ProgressSink) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.published = append(p.published, m.Clone())
	p.calls = append(p.calls, "publish")
	return nil
}

func (p *fakePublisher) Retract(ctx context.Context, parentEntity string, relationships []model.RelatedEntityConfig, progress remote.ProgressSink) error {
	if len(relationships) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.retractErr != nil {
		return p.retractErr
	}
	p.retracted = append(p.retracted, relationships)
	p.retractParents = append(p.retractParents, parentEntity)
	p.calls = append(p.calls, "retract")
	return nil
}

func (p *fakePublisher) AddComponentsToSolution(ctx context.Context, solutionID string, components []string, progress remote.ProgressSink) error {
	return nil
}

type memStore struct {
	mu       sync.Mutex
	sessions map[string]store.SessionRecord
	saves    int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]store.SessionRecord)}
}

func (s *memStore) SaveSession(ctx context.Context, rec store.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.ConnectionID] = rec
	s.saves++
	return nil
}

func (s *memStore) LoadSession(ctx context.Context, connectionID string) (*store.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[connectionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *memStore) DeleteSession(ctx context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, connectionID)
	return nil
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *memStore) get(connectionID string) (store.SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[connectionID]
	return rec, ok
}

func newTestCatalog() *fakeCatalog {
	return &fakeCatalog{
		solutions: []metadata.SolutionDescriptor{
			{ID: "sol-default", UniqueName: "Default", FriendlyName: "Default Solution", Version: "1.0"},
			{ID: "sol-custom", UniqueName: "Custom", FriendlyName: "Custom Solution", Version: "1.0"},
		},
		entities: map[string][]metadata.EntityDescriptor{
			"sol-default": {
				{LogicalName: "account", DisplayName: "Account"},
				{LogicalName: "contact", DisplayName: "Contact"},
				{LogicalName: "invoice", DisplayName: "Invoice"},
			},
			"sol-custom": {
				{LogicalName: "account", DisplayName: "Account"},
			},
		},
		relationships: map[string][]metadata.RelationshipDescriptor{
			"account": {
				{SchemaName: "contact_customer_accounts", ReferencedEntity: "account", ReferencingEntity: "contact", LookupField: "parentcustomerid"},
				{SchemaName: "invoice_customer_accounts", ReferencedEntity: "account", ReferencingEntity: "invoice", LookupField: "customerid"},
			},
		},
		attributes: map[string][]metadata.AttributeDescriptor{
			"account": {
				{LogicalName: "name", DisplayName: "Name", Type: "string"},
				{LogicalName: "address1_city", DisplayName: "City", Type: "string"},
				{LogicalName: "statecode", DisplayName: "Status", Type: "optionset"},
			},
			"contact": {
				{LogicalName: "address1_city", DisplayName: "City", Type: "string"},
				{LogicalName: "statecode", DisplayName: "Status", Type: "optionset"},
			},
			"invoice": {
				{LogicalName: "name", DisplayName: "Name", Type: "string"},
			},
		},
	}
}

func newTestEngine(catalog *fakeCatalog, publisher *fakePublisher, st SessionStore) *Engine {
	if catalog == nil {
		catalog = newTestCatalog()
	}
	if publisher == nil {
		publisher = &fakePublisher{status: remote.AutomationStatus{IsRegistered: true}}
	}
	if st == nil {
		st = newMemStore()
	}
	return NewEngine("conn-1", Deps{
		Catalog:         catalog,
		Publisher:       publisher,
		Store:           st,
		DefaultSolution: "Default",
		SaveDebounce:    10 * time.Millisecond,
		PackagePath:     "/opt/cascade/package.zip",
		PackageVersion:  "1.0.0",
	})
}
