package remote

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"cascade-studio/internal/model"
)

// ProgressSink receives step-by-step progress from long-running remote
// operations (publish, retract, registration).
type ProgressSink interface {
	Report(stage, message string)
}

// LogProgress writes progress reports to the standard logger.
type LogProgress struct{}

func (LogProgress) Report(stage, message string) {
	log.Printf("[%s] %s", stage, message)
}

// AutomationStatus describes whether the cascade automation package is
// registered on the remote side and whether it is older than the local one.
type AutomationStatus struct {
	IsRegistered bool `json:"is_registered"`
	NeedsUpdate  bool `json:"needs_update"`
}

// Publisher is the remote registration side of the system: it turns a
// finished configuration into deployed automation steps and removes steps for
// retracted relationships.
type Publisher interface {
	// GetExistingConfigurationJSON returns the configuration previously
	// published for a parent entity, or "" when none exists.
	GetExistingConfigurationJSON(ctx context.Context, parentEntity string) (string, error)

	CheckRemoteAutomationStatus(ctx context.Context, localPackageVersion string) (AutomationStatus, error)
	RegisterOrUpdateAutomation(ctx context.Context, packagePath, solutionID string) error

	Publish(ctx context.Context, m *model.ConfigurationModel, progress ProgressSink) error
	Retract(ctx context.Context, parentEntity string, relationships []model.RelatedEntityConfig, progress ProgressSink) error
	AddComponentsToSolution(ctx context.Context, solutionID string, components []string, progress ProgressSink) error
}

// HTTPPublisher implements Publisher against the platform automation service.
type HTTPPublisher struct {
	client *Client
}

func NewHTTPPublisher(client *Client) *HTTPPublisher {
	return &HTTPPublisher{client: client}
}

func (p *HTTPPublisher) GetExistingConfigurationJSON(ctx context.Context, parentEntity string) (string, error) {
	var out struct {
		ConfigurationJSON string `json:"configuration_json"`
	}
	path := "/automation/configurations/" + url.PathEscape(parentEntity)
	if err := p.client.doJSON(ctx, "GET", path, nil, &out); err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("fetch existing configuration for %s: %w", parentEntity, err)
	}
	return out.ConfigurationJSON, nil
}

func (p *HTTPPublisher) CheckRemoteAutomationStatus(ctx context.Context, localPackageVersion string) (AutomationStatus, error) {
	var out AutomationStatus
	path := "/automation/status?version=" + url.QueryEscape(localPackageVersion)
	if err := p.client.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return AutomationStatus{}, fmt.Errorf("check automation status: %w", err)
	}
	return out, nil
}

func (p *HTTPPublisher) RegisterOrUpdateAutomation(ctx context.Context, packagePath, solutionID string) error {
	body := map[string]string{"package_path": packagePath}
	if solutionID != "" {
		body["solution_id"] = solutionID
	}
	if err := p.client.doJSON(ctx, "POST", "/automation/register", body, nil); err != nil {
		return fmt.Errorf("register automation: %w", err)
	}
	return nil
}

func (p *HTTPPublisher) Publish(ctx context.Context, m *model.ConfigurationModel, progress ProgressSink) error {
	progress.Report("publish", fmt.Sprintf("publishing configuration for %s (%d relationships)",
		m.ParentEntity, len(m.RelatedEntities)))
	if err := p.client.doJSON(ctx, "POST", "/automation/configurations", m, nil); err != nil {
		return fmt.Errorf("publish configuration for %s: %w", m.ParentEntity, err)
	}
	progress.Report("publish", "configuration published")
	return nil
}

func (p *HTTPPublisher) Retract(ctx context.Context, parentEntity string, relationships []model.RelatedEntityConfig, progress ProgressSink) error {
	if len(relationships) == 0 {
		return nil
	}
	for _, rc := range relationships {
		progress.Report("retract", fmt.Sprintf("retracting %s (%s)", rc.EntityName, rc.RelationshipOrLookup()))
	}
	body := map[string]any{
		"parent_entity": parentEntity,
		"relationships": relationships,
	}
	if err := p.client.doJSON(ctx, "POST", "/automation/retractions", body, nil); err != nil {
		return fmt.Errorf("retract %d relationships of %s: %w", len(relationships), parentEntity, err)
	}
	return nil
}

func (p *HTTPPublisher) AddComponentsToSolution(ctx context.Context, solutionID string, components []string, progress ProgressSink) error {
	progress.Report("solution", fmt.Sprintf("adding %d components to solution %s", len(components), solutionID))
	path := "/metadata/solutions/" + url.PathEscape(solutionID) + "/components"
	if err := p.client.doJSON(ctx, "POST", path, map[string]any{"components": components}, nil); err != nil {
		return fmt.Errorf("add components to solution %s: %w", solutionID, err)
	}
	return nil
}
