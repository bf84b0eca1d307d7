package remote

import (
	"context"
	"fmt"
	"net/url"

	"cascade-studio/internal/metadata"
)

// HTTPCatalog implements metadata.Catalog against the platform metadata
// service.
type HTTPCatalog struct {
	client *Client
}

func NewHTTPCatalog(client *Client) *HTTPCatalog {
	return &HTTPCatalog{client: client}
}

func (c *HTTPCatalog) ListUnmanagedSolutions(ctx context.Context) ([]metadata.SolutionDescriptor, error) {
	var out []metadata.SolutionDescriptor
	if err := c.client.doJSON(ctx, "GET", "/metadata/solutions?managed=false", nil, &out); err != nil {
		return nil, fmt.Errorf("list solutions: %w", err)
	}
	return out, nil
}

func (c *HTTPCatalog) ListEntities(ctx context.Context, solutionID string) ([]metadata.EntityDescriptor, error) {
	var out []metadata.EntityDescriptor
	path := "/metadata/solutions/" + url.PathEscape(solutionID) + "/entities"
	if err := c.client.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, fmt.Errorf("list entities for solution %s: %w", solutionID, err)
	}
	return out, nil
}

func (c *HTTPCatalog) ListChildRelationships(ctx context.Context, parentEntity, solutionID string) ([]metadata.RelationshipDescriptor, error) {
	var out []metadata.RelationshipDescriptor
	path := "/metadata/entities/" + url.PathEscape(parentEntity) + "/child-relationships"
	if solutionID != "" {
		path += "?solution=" + url.QueryEscape(solutionID)
	}
	if err := c.client.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, fmt.Errorf("list child relationships of %s: %w", parentEntity, err)
	}
	return out, nil
}

func (c *HTTPCatalog) ListAttributes(ctx context.Context, entity string, includeReadOnly, includeLogical bool) ([]metadata.AttributeDescriptor, error) {
	var out []metadata.AttributeDescriptor
	path := fmt.Sprintf("/metadata/entities/%s/attributes?read_only=%t&logical=%t",
		url.PathEscape(entity), includeReadOnly, includeLogical)
	if err := c.client.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, fmt.Errorf("list attributes of %s: %w", entity, err)
	}
	return out, nil
}

func (c *HTTPCatalog) GetEntityMetadata(ctx context.Context, entity string) (*metadata.EntityMetadata, error) {
	var out metadata.EntityMetadata
	path := "/metadata/entities/" + url.PathEscape(entity)
	if err := c.client.doJSON(ctx, "GET", path, nil, &out); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", metadata.ErrEntityNotFound, entity)
		}
		return nil, fmt.Errorf("get entity metadata for %s: %w", entity, err)
	}
	return &out, nil
}

func (c *HTTPCatalog) ListFormFields(ctx context.Context, solutionID, entity string) ([]metadata.FormDescriptor, error) {
	var out []metadata.FormDescriptor
	path := "/metadata/solutions/" + url.PathEscape(solutionID) + "/forms?entity=" + url.QueryEscape(entity)
	if err := c.client.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, fmt.Errorf("list forms for %s: %w", entity, err)
	}
	return out, nil
}
