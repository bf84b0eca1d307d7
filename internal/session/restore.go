package session

import (
	"context"
	"fmt"
	"log"

	"cascade-studio/internal/model"
	"cascade-studio/internal/store"
)

// RestoreState is the explicit state of the restore chain. One value replaces
// the overlapping boolean mode flags that a chain like this tends to grow.
type RestoreState int

const (
	StateIdle RestoreState = iota
	StateLoadingSolutions
	StateSolutionSelected
	StateEntitiesLoaded
	StateParentSelected
	StateRestored
)

func (s RestoreState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingSolutions:
		return "loading_solutions"
	case StateSolutionSelected:
		return "solution_selected"
	case StateEntitiesLoaded:
		return "entities_loaded"
	case StateParentSelected:
		return "parent_selected"
	case StateRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// restore replays a saved session: solution, then entities, then parent, then
// the saved configuration. Every branch, found or not-found or error, runs
// through the same exit: a failed step reports why, resets to a clean fresh
// state, and never leaves a partial tab list or a stuck flag behind.
func (e *Engine) restore(ctx context.Context, rec *store.SessionRecord) {
	failure := ""
	defer func() {
		e.mu.Lock()
		if failure == "" {
			e.state = StateRestored
			e.status = fmt.Sprintf("session restored: %s in %s", rec.ParentEntityLogicalName, rec.SolutionUniqueName)
		} else {
			e.clearConfigurationLocked()
			e.state = StateIdle
			e.status = failure
			log.Printf("WARN: restore for %s ended fresh: %s", e.connectionID, failure)
		}
		e.mu.Unlock()
	}()

	if _, err := model.Parse(rec.ConfigurationJSON); err != nil {
		failure = fmt.Sprintf("saved configuration is not parseable: %v", err)
		return
	}

	e.setState(StateSolutionSelected)
	solutionName := rec.SolutionUniqueName
	if e.registry.FindSolution(solutionName) == nil {
		solutionName = e.defaultSolution
	}
	if e.registry.FindSolution(solutionName) == nil {
		failure = fmt.Sprintf("saved solution %q is no longer available", rec.SolutionUniqueName)
		return
	}
	if err := e.SelectSolution(ctx, solutionName); err != nil {
		failure = fmt.Sprintf("saved solution %q could not be loaded: %v", solutionName, err)
		return
	}

	e.setState(StateEntitiesLoaded)
	e.mu.Lock()
	found := e.solution != nil && e.registry.FindEntity(e.solution.ID, rec.ParentEntityLogicalName) != nil
	e.mu.Unlock()
	if !found {
		failure = fmt.Sprintf("saved parent entity %q is not in solution %s", rec.ParentEntityLogicalName, solutionName)
		return
	}

	e.setState(StateParentSelected)
	if err := e.ApplyConfiguration(ctx, rec.ConfigurationJSON, false, true); err != nil {
		failure = fmt.Sprintf("saved configuration could not be applied: %v", err)
		return
	}
}
