package session

import "cascade-studio/internal/metadata"

// TabView is a point-in-time serializable copy of a tab.
type TabView struct {
	Key              string                         `json:"key"`
	Title            string                         `json:"title"`
	ChildEntity      string                         `json:"childEntity"`
	RelationshipName string                         `json:"relationshipName"`
	UseRelationship  bool                           `json:"useRelationship"`
	LookupField      string                         `json:"lookupField"`
	Published        bool                           `json:"published"`
	Mappings         []MappingRow                   `json:"mappings"`
	Filters          []FilterRow                    `json:"filters"`
	ParentAttributes []metadata.AttributeDescriptor `json:"parentAttributes"`
	ChildAttributes  []metadata.AttributeDescriptor `json:"childAttributes"`
}

// View is a point-in-time serializable copy of the whole session.
type View struct {
	ConnectionID      string                       `json:"connectionId"`
	State             string                       `json:"state"`
	Status            string                       `json:"status"`
	Solution          *metadata.SolutionDescriptor `json:"solution"`
	ParentEntity      string                       `json:"parentEntity"`
	IsActive          bool                         `json:"isActive"`
	EnableTracing     bool                         `json:"enableTracing"`
	HasPublished      bool                         `json:"hasPublished"`
	Tabs              []TabView                    `json:"tabs"`
	ConfigurationJSON string                       `json:"configurationJson"`
}

// View snapshots the session for presentation. The copy is taken under the
// engine's lock; callers never see live tab state.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		ConnectionID:      e.connectionID,
		State:             e.state.String(),
		Status:            e.status,
		ParentEntity:      e.parentEntity,
		IsActive:          e.isActive,
		EnableTracing:     e.enableTracing,
		HasPublished:      e.published != nil,
		Tabs:              make([]TabView, 0, len(e.tabs)),
		ConfigurationJSON: e.canonicalJSON,
	}
	if e.solution != nil {
		sol := *e.solution
		v.Solution = &sol
	}
	for _, t := range e.tabs {
		v.Tabs = append(v.Tabs, TabView{
			Key:              t.Key(),
			Title:            t.Title,
			ChildEntity:      t.ChildEntity,
			RelationshipName: t.RelationshipName,
			UseRelationship:  t.UseRelationship,
			LookupField:      t.LookupField,
			Published:        t.Published,
			Mappings:         append([]MappingRow(nil), t.Mappings...),
			Filters:          append([]FilterRow(nil), t.Filters...),
			ParentAttributes: append([]metadata.AttributeDescriptor(nil), t.ParentAttributes...),
			ChildAttributes:  append([]metadata.AttributeDescriptor(nil), t.ChildAttributes...),
		})
	}
	return v
}
