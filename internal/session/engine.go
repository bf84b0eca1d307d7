package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"cascade-studio/internal/metadata"
	"cascade-studio/internal/model"
	"cascade-studio/internal/remote"
	"cascade-studio/internal/store"
	"cascade-studio/internal/trace"
)

// Deps are the collaborators one engine needs.
type Deps struct {
	Catalog   metadata.Catalog
	Publisher remote.Publisher
	Store     SessionStore
	Tracer    trace.Tracer

	DefaultSolution string
	SaveDebounce    time.Duration
	PackagePath     string
	PackageVersion  string
}

// Engine is the single authority for one connection's configuration session:
// what the current configuration is, whether it changed, and what must be
// persisted or published. The tab collection and the canonical JSON are
// mutated only under the engine's lock; remote calls run outside it, and
// stale completions are detected by comparing captured keys rather than
// cancelled. Each operation family (restore, entity load, attribute load)
// carries its own in-flight guard so families interleave safely but never
// re-enter themselves.
type Engine struct {
	mu sync.Mutex

	connectionID string
	catalog      metadata.Catalog
	registry     *metadata.Registry
	publisher    remote.Publisher
	store        SessionStore
	saver        *Saver
	tracer       trace.Tracer

	defaultSolution string
	packagePath     string
	packageVersion  string

	state       RestoreState
	restoring   bool
	pendingInit bool

	loadingEntities bool
	pendingSolution *metadata.SolutionDescriptor

	loadingAttributes map[string]bool

	solution     *metadata.SolutionDescriptor
	parentEntity string

	configID      string
	configName    string
	isActive      bool
	enableTracing bool

	tabs          []*Tab
	canonicalJSON string
	published     *model.ConfigurationModel

	status string
}

func NewEngine(connectionID string, deps Deps) *Engine {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = trace.NoopTracer{}
	}
	return &Engine{
		connectionID:      connectionID,
		catalog:           deps.Catalog,
		registry:          metadata.NewRegistry(),
		publisher:         deps.Publisher,
		store:             deps.Store,
		saver:             NewSaver(deps.Store, deps.SaveDebounce),
		tracer:            tracer,
		defaultSolution:   deps.DefaultSolution,
		packagePath:       deps.PackagePath,
		packageVersion:    deps.PackageVersion,
		loadingAttributes: make(map[string]bool),
	}
}

// ConnectionID returns the connection this engine belongs to.
func (e *Engine) ConnectionID() string { return e.connectionID }

// Status returns the last status message the engine reported.
func (e *Engine) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// CanonicalJSON returns the current canonical configuration JSON.
func (e *Engine) CanonicalJSON() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canonicalJSON
}

// Solutions returns the cached solution list.
func (e *Engine) Solutions() []metadata.SolutionDescriptor {
	return e.registry.Solutions()
}

// Entities returns the entities of the active solution.
func (e *Engine) Entities() []metadata.EntityDescriptor {
	e.mu.Lock()
	sol := e.solution
	e.mu.Unlock()
	if sol == nil {
		return nil
	}
	return e.registry.Entities(sol.ID)
}

// Initialize loads the solution list and the saved session for this
// connection. A valid saved session enters the restore chain; anything else
// starts fresh. A second Initialize arriving while a restore is in flight is
// queued and honored once, after the in-flight chain ends.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.restoring {
		e.pendingInit = true
		e.mu.Unlock()
		return nil
	}
	e.restoring = true
	e.mu.Unlock()

	ctx = trace.WithTracer(ctx, e.tracer)
	ctx, span := e.tracer.StartSpan(ctx, "session", "initialize")
	defer span.End()
	span.SetMetadata("connection_id", e.connectionID)

	for {
		e.initOnce(ctx)
		e.mu.Lock()
		again := e.pendingInit
		e.pendingInit = false
		if !again {
			e.restoring = false
			e.mu.Unlock()
			return nil
		}
		e.mu.Unlock()
	}
}

func (e *Engine) initOnce(ctx context.Context) {
	e.setState(StateLoadingSolutions)

	// metadata cached for a prior initialize may be stale now
	e.registry.Reset()

	solutions, err := e.catalog.ListUnmanagedSolutions(ctx)
	if err != nil {
		e.endFresh(fmt.Sprintf("failed to load solutions: %v", err))
		return
	}
	e.registry.LoadSolutions(solutions)

	rec, err := e.store.LoadSession(ctx, e.connectionID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("WARN: load session for %s: %v", e.connectionID, err)
		}
		e.fresh(ctx)
		return
	}
	if rec.IsEmpty() {
		e.fresh(ctx)
		return
	}

	e.restore(ctx, rec)
}

// fresh is the no-saved-session path: auto-select the conventional default
// solution when it exists.
func (e *Engine) fresh(ctx context.Context) {
	if e.registry.FindSolution(e.defaultSolution) != nil {
		if err := e.SelectSolution(ctx, e.defaultSolution); err != nil {
			log.Printf("WARN: auto-select solution %s: %v", e.defaultSolution, err)
		}
	}
	e.endFresh("ready")
}

// SelectSolution loads a solution's entities and makes it active. While a
// load is in flight further calls are not re-issued; the last solution
// requested while busy is the one honored when the in-flight load completes.
func (e *Engine) SelectSolution(ctx context.Context, uniqueName string) error {
	sol := e.registry.FindSolution(uniqueName)
	if sol == nil {
		return fmt.Errorf("solution %q not found", uniqueName)
	}

	e.mu.Lock()
	if e.loadingEntities {
		e.pendingSolution = sol
		e.mu.Unlock()
		return nil
	}
	e.loadingEntities = true
	e.mu.Unlock()

	var lastErr error
	for sol != nil {
		entities, err := e.catalog.ListEntities(ctx, sol.ID)

		e.mu.Lock()
		if err != nil {
			lastErr = fmt.Errorf("load entities for solution %s: %w", sol.UniqueName, err)
			e.status = lastErr.Error()
			log.Printf("ERROR: %v", lastErr)
		} else {
			lastErr = nil
			e.registry.LoadEntities(sol.ID, entities)
			if e.solution == nil || e.solution.ID != sol.ID {
				e.clearConfigurationLocked()
			}
			e.solution = sol
			e.status = fmt.Sprintf("solution %s: %d entities", sol.UniqueName, len(entities))
		}
		next := e.pendingSolution
		e.pendingSolution = nil
		if next == nil {
			e.loadingEntities = false
		}
		e.mu.Unlock()

		sol = next
	}
	return lastErr
}

// SelectParentEntity clears all relationship tabs, makes the entity the
// watched parent, loads its child relationships and attributes, and applies a
// previously-published configuration for it when the remote side has one.
func (e *Engine) SelectParentEntity(ctx context.Context, logicalName string) error {
	e.mu.Lock()
	if e.solution == nil {
		e.mu.Unlock()
		return fmt.Errorf("no solution selected")
	}
	ent := e.registry.FindEntity(e.solution.ID, logicalName)
	if ent == nil {
		e.mu.Unlock()
		return fmt.Errorf("entity %q not found in solution %s", logicalName, e.solution.UniqueName)
	}

	e.clearConfigurationLocked()
	e.parentEntity = ent.LogicalName
	seed := model.NewConfigurationModel(ent.LogicalName)
	e.configID = seed.ID
	e.configName = seed.Name
	e.isActive = seed.IsActive
	e.regenerateLocked()
	e.scheduleSaveLocked()
	solutionID := e.solution.ID
	e.mu.Unlock()

	parent := ent.LogicalName
	if rels, err := e.catalog.ListChildRelationships(ctx, parent, solutionID); err != nil {
		log.Printf("WARN: load child relationships for %s: %v", parent, err)
	} else {
		e.registry.LoadRelationships(parent, rels)
	}

	// the parent's attributes come from its full metadata record, which also
	// carries the primary fields a later mapping picker wants
	if meta, err := e.catalog.GetEntityMetadata(ctx, parent); err != nil {
		log.Printf("WARN: load metadata for %s: %v", parent, err)
		e.loadAttributes(ctx, parent, parent)
	} else {
		e.mu.Lock()
		if strings.EqualFold(e.parentEntity, parent) {
			e.registry.LoadAttributes(parent, meta.Attributes)
			for _, t := range e.tabs {
				t.ParentAttributes = meta.Attributes
			}
		}
		e.mu.Unlock()
	}

	existing, err := e.publisher.GetExistingConfigurationJSON(ctx, parent)
	if err != nil {
		e.setStatus(fmt.Sprintf("could not check for a published configuration: %v", err))
		return nil
	}

	// discard if the parent changed while we were away
	e.mu.Lock()
	stale := !strings.EqualFold(e.parentEntity, parent)
	e.mu.Unlock()
	if stale || existing == "" {
		return nil
	}

	if err := e.ApplyConfiguration(ctx, existing, true, true); err != nil {
		log.Printf("WARN: apply published configuration for %s: %v", parent, err)
		e.setStatus(fmt.Sprintf("published configuration for %s could not be applied: %v", parent, err))
	} else {
		e.setStatus(fmt.Sprintf("loaded published configuration for %s", parent))
	}
	return nil
}

// AvailableRelationships returns the parent's child relationships that no tab
// represents yet, compared by child entity logical name.
func (e *Engine) AvailableRelationships() []metadata.RelationshipDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.parentEntity == "" {
		return nil
	}
	configured := make(map[string]bool, len(e.tabs))
	for _, t := range e.tabs {
		configured[strings.ToLower(t.ChildEntity)] = true
	}
	var out []metadata.RelationshipDescriptor
	for _, rel := range e.registry.Relationships(e.parentEntity) {
		if !configured[strings.ToLower(rel.ReferencingEntity)] {
			out = append(out, rel)
		}
	}
	return out
}

// FormFields lists the forms of the watched parent entity in the active
// solution, with the fields each form places. Mapping pickers use it to rank
// attributes users actually see on a form.
func (e *Engine) FormFields(ctx context.Context) ([]metadata.FormDescriptor, error) {
	e.mu.Lock()
	if e.solution == nil || e.parentEntity == "" {
		e.mu.Unlock()
		return nil, fmt.Errorf("no parent entity selected")
	}
	solutionID := e.solution.ID
	parent := e.parentEntity
	e.mu.Unlock()

	forms, err := e.catalog.ListFormFields(ctx, solutionID, parent)
	if err != nil {
		return nil, fmt.Errorf("load form fields for %s: %w", parent, err)
	}
	return forms, nil
}

// AddRelationship creates a tab for the named child relationship, or selects
// the existing tab when one already matches the same composite key. The
// second return value reports whether a tab was created.
func (e *Engine) AddRelationship(ctx context.Context, schemaName string) (*Tab, bool, error) {
	e.mu.Lock()
	if e.parentEntity == "" {
		e.mu.Unlock()
		return nil, false, fmt.Errorf("no parent entity selected")
	}

	var desc *metadata.RelationshipDescriptor
	rels := e.registry.Relationships(e.parentEntity)
	for i := range rels {
		if strings.EqualFold(rels[i].SchemaName, schemaName) {
			desc = &rels[i]
			break
		}
	}
	if desc == nil {
		e.mu.Unlock()
		return nil, false, fmt.Errorf("relationship %q not found for %s", schemaName, e.parentEntity)
	}
	if desc.LookupField == "" {
		log.Printf("WARN: relationship %s has no resolvable lookup field", desc.SchemaName)
	}

	tab, created := e.addOrSelectTabLocked(desc.ReferencingEntity, desc.SchemaName, desc.LookupField, true)
	if created {
		e.regenerateLocked()
		e.scheduleSaveLocked()
	}
	parent := e.parentEntity
	child := desc.ReferencingEntity
	e.mu.Unlock()

	if created {
		e.loadAttributes(ctx, parent, child)
	}
	return tab, created, nil
}

// addOrSelectTabLocked is the single tab-construction path, shared by manual
// adds and configuration apply so the duplicate-prevention invariant holds
// uniformly.
func (e *Engine) addOrSelectTabLocked(childEntity, relationshipName, lookupField string, useRelationship bool) (*Tab, bool) {
	// a tab matches on the child entity plus either identifier, so adding a
	// relationship whose lookup is already configured lookup-only selects
	// the existing tab instead of creating a twin
	for _, t := range e.tabs {
		if !strings.EqualFold(t.ChildEntity, childEntity) {
			continue
		}
		if relationshipName != "" && strings.EqualFold(t.RelationshipName, relationshipName) {
			return t, false
		}
		if lookupField != "" && strings.EqualFold(t.LookupField, lookupField) {
			return t, false
		}
	}

	t := newTab(childEntity, relationshipName, lookupField, useRelationship)
	t.attach(e.onTabChangedLocked)
	t.ParentAttributes = e.registry.Attributes(e.parentEntity)
	t.ChildAttributes = e.registry.Attributes(childEntity)
	e.tabs = append(e.tabs, t)
	return t, true
}

// RemoveRelationship removes the tab with the given composite key. A tab that
// was published requires confirmation: the removal is deferred to publish
// time as a retraction, it is not an immediate remote delete.
func (e *Engine) RemoveRelationship(key string, confirmed bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, t := range e.tabs {
		if t.Key() == strings.ToLower(key) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no relationship tab with key %q", key)
	}

	t := e.tabs[idx]
	if t.Published && !confirmed {
		return &DecisionError{
			Kind:    DecisionRemovePublished,
			Message: fmt.Sprintf("%s is published; removing it will retract the relationship on the next publish", t.Title),
			Context: map[string]string{"key": t.Key()},
		}
	}

	t.detach()
	e.tabs = append(e.tabs[:idx], e.tabs[idx+1:]...)
	e.regenerateLocked()
	e.scheduleSaveLocked()
	return nil
}

// SetTabMappings replaces the mapping rows of the tab with the given key.
func (e *Engine) SetTabMappings(key string, rows []MappingRow) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tabLocked(key)
	if t == nil {
		return fmt.Errorf("no relationship tab with key %q", key)
	}
	t.SetMappings(rows)
	return nil
}

// SetTabFilters replaces the filter rows of the tab with the given key.
func (e *Engine) SetTabFilters(key string, rows []FilterRow) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tabLocked(key)
	if t == nil {
		return fmt.Errorf("no relationship tab with key %q", key)
	}
	t.SetFilters(rows)
	return nil
}

// SetRuleFlags sets the rule-set level flags.
func (e *Engine) SetRuleFlags(isActive, enableTracing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isActive = isActive
	e.enableTracing = enableTracing
	e.regenerateLocked()
	e.scheduleSaveLocked()
}

func (e *Engine) tabLocked(key string) *Tab {
	key = strings.ToLower(key)
	for _, t := range e.tabs {
		if t.Key() == key {
			return t
		}
	}
	return nil
}

// ApplyConfiguration parses raw JSON into a configuration, resolves its
// parent entity and relationships against the loaded metadata, and merges the
// entries into the tab collection through the same add-path manual creation
// uses. A parse failure aborts the operation and leaves prior state
// untouched. When markAsPublished is set the parsed model becomes the new
// published snapshot.
func (e *Engine) ApplyConfiguration(ctx context.Context, raw string, markAsPublished, confirmSolutionSwitch bool) error {
	parsed, err := model.Parse(raw)
	if err != nil {
		return fmt.Errorf("apply configuration: %w", err)
	}

	if err := e.resolveParentSolution(ctx, parsed.ParentEntity, confirmSolutionSwitch); err != nil {
		return err
	}

	e.mu.Lock()
	if !strings.EqualFold(e.parentEntity, parsed.ParentEntity) {
		e.clearConfigurationLocked()
		if ent := e.registry.FindEntity(e.solution.ID, parsed.ParentEntity); ent != nil {
			e.parentEntity = ent.LogicalName
		} else {
			e.parentEntity = parsed.ParentEntity
		}
	}
	e.configID = parsed.ID
	e.configName = parsed.Name
	e.isActive = parsed.IsActive
	e.enableTracing = parsed.EnableTracing
	parent := e.parentEntity
	solutionID := e.solution.ID
	haveRels := len(e.registry.Relationships(parent)) > 0
	e.mu.Unlock()

	if !haveRels {
		if rels, err := e.catalog.ListChildRelationships(ctx, parent, solutionID); err != nil {
			log.Printf("WARN: load child relationships for %s: %v", parent, err)
		} else {
			e.registry.LoadRelationships(parent, rels)
		}
	}

	e.mu.Lock()
	rels := e.registry.Relationships(e.parentEntity)
	var newChildren []string
	for i := range parsed.RelatedEntities {
		rc := parsed.RelatedEntities[i]

		relName := ""
		if rc.RelationshipName != nil {
			relName = *rc.RelationshipName
		}
		lookup := ""
		if rc.LookupFieldName != nil {
			lookup = *rc.LookupFieldName
		}

		if desc := resolveRelationship(rels, rc.EntityName, relName, lookup); desc != nil {
			// lookup-only entries stay lookup-only so a reapplied
			// configuration round-trips unchanged
			if rc.UseRelationship || relName != "" {
				relName = desc.SchemaName
			}
			if lookup == "" {
				lookup = desc.LookupField
			}
		} else if relName == "" {
			log.Printf("WARN: relationship for %s could not be resolved, left as configured", rc.EntityName)
		}

		tab, created := e.addOrSelectTabLocked(rc.EntityName, relName, lookup, rc.UseRelationship)
		tab.loadConfig(rc)
		if markAsPublished {
			tab.Published = true
		}
		if created {
			newChildren = append(newChildren, rc.EntityName)
		}
	}
	if markAsPublished {
		e.published = parsed.Clone()
	}
	e.regenerateLocked()
	e.scheduleSaveLocked()
	e.mu.Unlock()

	for _, child := range newChildren {
		e.loadAttributes(ctx, parent, child)
	}
	return nil
}

// resolveParentSolution ensures the parsed parent entity is reachable in the
// active solution, offering a switch to the conventional fallback solution
// when it is only found there.
func (e *Engine) resolveParentSolution(ctx context.Context, parentEntity string, confirmSwitch bool) error {
	e.mu.Lock()
	if e.solution == nil {
		e.mu.Unlock()
		return fmt.Errorf("no solution selected")
	}
	active := *e.solution
	inActive := e.registry.FindEntity(active.ID, parentEntity) != nil
	e.mu.Unlock()

	if inActive {
		return nil
	}

	fallback := e.registry.FindSolution(e.defaultSolution)
	if fallback == nil || fallback.ID == active.ID {
		return fmt.Errorf("parent entity %q is not available in solution %s", parentEntity, active.UniqueName)
	}

	if len(e.registry.Entities(fallback.ID)) == 0 {
		entities, err := e.catalog.ListEntities(ctx, fallback.ID)
		if err != nil {
			return fmt.Errorf("load entities for fallback solution %s: %w", fallback.UniqueName, err)
		}
		e.registry.LoadEntities(fallback.ID, entities)
	}
	if e.registry.FindEntity(fallback.ID, parentEntity) == nil {
		return fmt.Errorf("parent entity %q is not available in solution %s or %s",
			parentEntity, active.UniqueName, fallback.UniqueName)
	}

	if !confirmSwitch {
		return &DecisionError{
			Kind: DecisionSwitchSolution,
			Message: fmt.Sprintf("parent entity %s is not in solution %s but exists in %s",
				parentEntity, active.UniqueName, fallback.UniqueName),
			Context: map[string]string{"from": active.UniqueName, "to": fallback.UniqueName},
		}
	}
	return e.SelectSolution(ctx, fallback.UniqueName)
}

// resolveRelationship finds the descriptor for a configured entry using a
// three-stage fallback: exact schema-name match, then child-entity plus
// lookup-field match, then a unique candidate by child entity. Ambiguous
// matches return nil so the caller keeps the entry as configured instead of
// guessing.
func resolveRelationship(rels []metadata.RelationshipDescriptor, childEntity, relationshipName, lookupField string) *metadata.RelationshipDescriptor {
	if relationshipName != "" {
		for i := range rels {
			if strings.EqualFold(rels[i].SchemaName, relationshipName) {
				return &rels[i]
			}
		}
	}
	if lookupField != "" {
		for i := range rels {
			if strings.EqualFold(rels[i].ReferencingEntity, childEntity) &&
				strings.EqualFold(rels[i].LookupField, lookupField) {
				return &rels[i]
			}
		}
	}
	var candidate *metadata.RelationshipDescriptor
	for i := range rels {
		if strings.EqualFold(rels[i].ReferencingEntity, childEntity) {
			if candidate != nil {
				return nil // ambiguous
			}
			candidate = &rels[i]
		}
	}
	return candidate
}

// Publish validates the current model, retracts relationships removed since
// the last publish, and sends the full configuration. A retraction failure
// aborts before the upsert; an upsert failure leaves retracted relationships
// retracted.
func (e *Engine) Publish(ctx context.Context, progress remote.ProgressSink, confirmRegister bool) error {
	ctx = trace.WithTracer(ctx, e.tracer)
	ctx, span := e.tracer.StartSpan(ctx, "session", "publish")
	defer span.End()

	if progress == nil {
		progress = remote.LogProgress{}
	}

	e.mu.Lock()
	if e.parentEntity == "" {
		e.mu.Unlock()
		span.SetStatus("error")
		return fmt.Errorf("no parent entity selected")
	}
	current := e.currentModelLocked()
	issues := e.validateLocked(current)
	previous := e.published
	parent := e.parentEntity
	solutionID := ""
	if e.solution != nil {
		solutionID = e.solution.ID
	}
	e.mu.Unlock()

	span.SetMetadata("parent_entity", parent)
	if len(issues) > 0 {
		span.SetStatus("error")
		return &ValidationFailedError{Issues: issues}
	}

	status, err := e.publisher.CheckRemoteAutomationStatus(ctx, e.packageVersion)
	if err != nil {
		span.SetStatus("error")
		return err
	}
	if !status.IsRegistered || status.NeedsUpdate {
		if !confirmRegister {
			kind := DecisionRegisterAutomation
			msg := "the cascade automation package is not registered"
			if status.IsRegistered {
				kind = DecisionUpdateAutomation
				msg = "the registered cascade automation package is out of date"
			}
			return &DecisionError{Kind: kind, Message: msg}
		}
		progress.Report("register", "registering automation package")
		if err := e.publisher.RegisterOrUpdateAutomation(ctx, e.packagePath, solutionID); err != nil {
			span.SetStatus("error")
			return err
		}
	}

	toRetract := model.Diff(previous, current)
	if err := e.publisher.Retract(ctx, parent, toRetract, progress); err != nil {
		span.SetStatus("error")
		return fmt.Errorf("publish aborted, retraction failed: %w", err)
	}
	if err := e.publisher.Publish(ctx, current, progress); err != nil {
		// already-retracted relationships stay retracted
		span.SetStatus("error")
		return err
	}

	// the configuration record travels with the active solution; a failure
	// here does not undo the publish
	if solutionID != "" {
		if err := e.publisher.AddComponentsToSolution(ctx, solutionID, []string{current.ID}, progress); err != nil {
			log.Printf("WARN: add configuration %s to solution: %v", current.ID, err)
		}
	}

	e.mu.Lock()
	if strings.EqualFold(e.parentEntity, parent) {
		e.published = current.Clone()
		for _, t := range e.tabs {
			t.Published = true
		}
		e.status = fmt.Sprintf("published configuration for %s (%d relationships, %d retracted)",
			parent, len(current.RelatedEntities), len(toRetract))
		e.scheduleSaveLocked()
	}
	e.mu.Unlock()
	return nil
}

// validateLocked runs model validation plus the metadata-aware checks that
// need loaded attribute catalogs. Catalogs that have not loaded yet are
// skipped rather than failed.
func (e *Engine) validateLocked(m *model.ConfigurationModel) []ValidationIssue {
	var issues []ValidationIssue
	for _, iss := range m.Validate() {
		issues = append(issues, ValidationIssue{Path: iss.Path, Message: iss.Message})
	}

	parentAttrs := len(e.registry.Attributes(e.parentEntity)) > 0
	for i, t := range e.tabs {
		path := fmt.Sprintf("relatedEntities[%d]", i)

		if t.UseRelationship && t.LookupField == "" {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: fmt.Sprintf("no lookup field could be resolved for relationship %s", t.RelationshipName),
			})
		}

		childAttrs := len(e.registry.Attributes(t.ChildEntity)) > 0
		for j, r := range t.Mappings {
			if !r.IsValid() {
				continue
			}
			if parentAttrs && !e.registry.HasAttribute(e.parentEntity, r.SourceField) {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("%s.fieldMappings[%d].sourceField", path, j),
					Message: fmt.Sprintf("%s is not an attribute of %s", r.SourceField, e.parentEntity),
				})
			}
			if childAttrs && !e.registry.HasAttribute(t.ChildEntity, r.TargetField) {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("%s.fieldMappings[%d].targetField", path, j),
					Message: fmt.Sprintf("%s is not an attribute of %s", r.TargetField, t.ChildEntity),
				})
			}
		}
		if childAttrs {
			for j, r := range t.Filters {
				if r.IsValid() && !e.registry.HasAttribute(t.ChildEntity, r.Field) {
					issues = append(issues, ValidationIssue{
						Path:    fmt.Sprintf("%s.filterCriteria[%d]", path, j),
						Message: fmt.Sprintf("%s is not an attribute of %s", r.Field, t.ChildEntity),
					})
				}
			}
		}
	}
	return issues
}

// ClearSession deletes the persisted session and resets the in-memory
// configuration, keeping the loaded solution list.
func (e *Engine) ClearSession(ctx context.Context) error {
	e.saver.Stop()
	if err := e.store.DeleteSession(ctx, e.connectionID); err != nil {
		return err
	}
	e.mu.Lock()
	e.clearConfigurationLocked()
	e.state = StateIdle
	e.status = "session cleared"
	e.mu.Unlock()
	return nil
}

// Flush writes any pending debounced save immediately. Used on shutdown.
func (e *Engine) Flush(ctx context.Context) error {
	return e.saver.Flush(ctx)
}

// loadAttributes fetches an entity's attribute catalog and hands it to the
// tabs that want it. The request captures its "parent|child" key at issue
// time; a completion whose key no longer matches the current parent is
// discarded as stale. Re-entrant loads for the same key are suppressed.
func (e *Engine) loadAttributes(ctx context.Context, parent, entity string) {
	key := strings.ToLower(parent) + "|" + strings.ToLower(entity)

	e.mu.Lock()
	if e.loadingAttributes[key] {
		e.mu.Unlock()
		return
	}
	e.loadingAttributes[key] = true
	e.mu.Unlock()

	attrs, err := e.catalog.ListAttributes(ctx, entity, false, false)

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.loadingAttributes, key)
	if err != nil {
		log.Printf("WARN: load attributes for %s: %v", entity, err)
		return
	}
	if !strings.EqualFold(e.parentEntity, parent) {
		return // stale, a different parent is active now
	}
	e.registry.LoadAttributes(entity, attrs)
	for _, t := range e.tabs {
		if strings.EqualFold(t.ChildEntity, entity) {
			t.ChildAttributes = attrs
		}
		if strings.EqualFold(e.parentEntity, entity) {
			t.ParentAttributes = attrs
		}
	}
}

// onTabChangedLocked is the single propagation path for tab edits. The
// engine's lock is already held: tab mutations only happen inside engine
// methods.
func (e *Engine) onTabChangedLocked() {
	e.regenerateLocked()
	e.scheduleSaveLocked()
}

// currentModelLocked derives the configuration model from the engine state
// and the valid rows of every tab.
func (e *Engine) currentModelLocked() *model.ConfigurationModel {
	m := &model.ConfigurationModel{
		ID:              e.configID,
		Name:            e.configName,
		ParentEntity:    e.parentEntity,
		IsActive:        e.isActive,
		EnableTracing:   e.enableTracing,
		RelatedEntities: make([]model.RelatedEntityConfig, 0, len(e.tabs)),
	}
	for _, t := range e.tabs {
		m.RelatedEntities = append(m.RelatedEntities, t.Config())
	}
	return m
}

// regenerateLocked is the only writer of the canonical JSON.
func (e *Engine) regenerateLocked() {
	if e.parentEntity == "" {
		e.canonicalJSON = ""
		return
	}
	s, err := e.currentModelLocked().Canonical()
	if err != nil {
		log.Printf("ERROR: regenerate configuration JSON: %v", err)
		return
	}
	e.canonicalJSON = s
}

// scheduleSaveLocked snapshots the session and hands it to the debounced
// saver. The saver only ever sees snapshots taken at schedule time.
func (e *Engine) scheduleSaveLocked() {
	if e.connectionID == "" || e.parentEntity == "" {
		return
	}
	solutionName := ""
	if e.solution != nil {
		solutionName = e.solution.UniqueName
	}
	e.saver.Schedule(store.SessionRecord{
		ConnectionID:            e.connectionID,
		SolutionUniqueName:      solutionName,
		ParentEntityLogicalName: e.parentEntity,
		ConfigurationJSON:       e.canonicalJSON,
		LastModifiedUTC:         time.Now().UTC(),
	})
}

// clearConfigurationLocked drops the parent entity, all tabs, and the
// published snapshot. Tabs are detached first so a disposed tab can never
// drive a stale regeneration.
func (e *Engine) clearConfigurationLocked() {
	for _, t := range e.tabs {
		t.detach()
	}
	e.tabs = nil
	e.parentEntity = ""
	e.configID = ""
	e.configName = ""
	e.isActive = false
	e.enableTracing = false
	e.published = nil
	e.canonicalJSON = ""
}

func (e *Engine) setState(s RestoreState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) setStatus(msg string) {
	e.mu.Lock()
	e.status = msg
	e.mu.Unlock()
}

// endFresh ends an initialize chain in the Fresh-equivalent state.
func (e *Engine) endFresh(status string) {
	e.mu.Lock()
	e.state = StateIdle
	e.status = status
	e.mu.Unlock()
}
