package session

import "fmt"

// Decision kinds. A DecisionError means the operation stopped at a point that
// needs an explicit yes from the caller before it can proceed.
const (
	DecisionSwitchSolution     = "switch_solution"
	DecisionRegisterAutomation = "register_automation"
	DecisionUpdateAutomation   = "update_automation"
	DecisionRemovePublished    = "remove_published"
)

// DecisionError is returned when an operation is recoverable but needs
// confirmation. The caller retries the operation with its confirm flag set.
type DecisionError struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("decision required (%s): %s", e.Kind, e.Message)
}

// ValidationFailedError carries every validation finding at once. Publish is
// blocked until all of them are fixed.
type ValidationFailedError struct {
	Issues []ValidationIssue `json:"issues"`
}

// ValidationIssue is one finding, addressed by a path into the configuration.
type ValidationIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("configuration validation failed with %d issues", len(e.Issues))
}
