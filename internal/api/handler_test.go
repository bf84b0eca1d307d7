package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"cascade-studio/internal/metadata"
	"cascade-studio/internal/model"
	"cascade-studio/internal/remote"
	"cascade-studio/internal/session"
	"cascade-studio/internal/store"
)

type stubCatalog struct{}

func (stubCatalog) ListUnmanagedSolutions(ctx context.Context) ([]metadata.SolutionDescriptor, error) {
	return []metadata.SolutionDescriptor{
		{ID: "sol-default", UniqueName: "Default", FriendlyName: "Default Solution", Version: "1.0"},
	}, nil
}

func (stubCatalog) ListEntities(ctx context.Context, solutionID string) ([]metadata.EntityDescriptor, error) {
	return []metadata.EntityDescriptor{
		{LogicalName: "account", DisplayName: "Account"},
		{LogicalName: "contact", DisplayName: "Contact"},
	}, nil
}

func (stubCatalog) ListChildRelationships(ctx context.Context, parentEntity, solutionID string) ([]metadata.RelationshipDescriptor, error) {
	if !strings.EqualFold(parentEntity, "account") {
		return nil, nil
	}
	return []metadata.RelationshipDescriptor{
		{SchemaName: "contact_customer_accounts", ReferencedEntity: "account", ReferencingEntity: "contact", LookupField: "parentcustomerid"},
	}, nil
}

func (stubCatalog) ListAttributes(ctx context.Context, entity string, includeReadOnly, includeLogical bool) ([]metadata.AttributeDescriptor, error) {
	return []metadata.AttributeDescriptor{
		{LogicalName: "address1_city", DisplayName: "City", Type: "string"},
		{LogicalName: "statecode", DisplayName: "Status", Type: "optionset"},
	}, nil
}

func (stubCatalog) GetEntityMetadata(ctx context.Context, entity string) (*metadata.EntityMetadata, error) {
	attrs, _ := stubCatalog{}.ListAttributes(ctx, entity, false, false)
	return &metadata.EntityMetadata{
		Descriptor: metadata.EntityDescriptor{LogicalName: entity},
		Attributes: attrs,
	}, nil
}

func (stubCatalog) ListFormFields(ctx context.Context, solutionID, entity string) ([]metadata.FormDescriptor, error) {
	return []metadata.FormDescriptor{
		{ID: "form-1", Name: "Information", Entity: entity, Fields: []string{"address1_city", "statecode"}},
	}, nil
}

type stubPublisher struct{}

func (stubPublisher) GetExistingConfigurationJSON(ctx context.Context, parentEntity string) (string, error) {
	return "", nil
}

func (stubPublisher) CheckRemoteAutomationStatus(ctx context.Context, localPackageVersion string) (remote.AutomationStatus, error) {
	return remote.AutomationStatus{IsRegistered: true}, nil
}

func (stubPublisher) RegisterOrUpdateAutomation(ctx context.Context, packagePath, solutionID string) error {
	return nil
}

func (stubPublisher) Publish(ctx context.Context, m *model.ConfigurationModel, progress remote.ProgressSink) error {
	return nil
}

func (stubPublisher) Retract(ctx context.Context, parentEntity string, relationships []model.RelatedEntityConfig, progress remote.ProgressSink) error {
	return nil
}

func (stubPublisher) AddComponentsToSolution(ctx context.Context, solutionID string, components []string, progress remote.ProgressSink) error {
	return nil
}

type stubStore struct{}

func (stubStore) SaveSession(ctx context.Context, rec store.SessionRecord) error { return nil }
func (stubStore) LoadSession(ctx context.Context, connectionID string) (*store.SessionRecord, error) {
	return nil, store.ErrNotFound
}
func (stubStore) DeleteSession(ctx context.Context, connectionID string) error { return nil }

func newTestApp() *fiber.App {
	manager := session.NewManager(session.Deps{
		Catalog:         stubCatalog{},
		Publisher:       stubPublisher{},
		Store:           stubStore{},
		DefaultSolution: "Default",
		SaveDebounce:    10 * time.Millisecond,
		PackageVersion:  "1.0.0",
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	identity := func(c *fiber.Ctx) error {
		c.Locals("connection_id", "conn-test")
		return c.Next()
	}
	RegisterRoutes(app, NewHandler(manager), identity)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("%s %s: bad response %s", method, path, raw)
		}
	}
	return resp, decoded
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	app := newTestApp()

	resp, _ := doJSON(t, app, "POST", "/api/session/initialize", "")
	if resp.StatusCode != 200 {
		t.Fatalf("initialize: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, "POST", "/api/session/parent", `{"logicalName":"account"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("select parent: status %d", resp.StatusCode)
	}

	resp, body := doJSON(t, app, "POST", "/api/session/relationships", `{"schemaName":"contact_customer_accounts"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("add relationship: status %d", resp.StatusCode)
	}
	data := body["data"].(map[string]any)
	if created, _ := data["created"].(bool); !created {
		t.Fatalf("expected a created tab, got %v", data)
	}
	key := data["key"].(string)

	resp, body = doJSON(t, app, "GET", "/api/session/forms", "")
	if resp.StatusCode != 200 {
		t.Fatalf("get forms: status %d", resp.StatusCode)
	}
	if forms := body["data"].([]any); len(forms) != 1 {
		t.Fatalf("expected 1 form, got %v", body["data"])
	}

	resp, body = doJSON(t, app, "GET", "/api/session", "")
	if resp.StatusCode != 200 {
		t.Fatalf("get session: status %d", resp.StatusCode)
	}
	view := body["data"].(map[string]any)
	if view["parentEntity"] != "account" {
		t.Fatalf("parent = %v", view["parentEntity"])
	}
	if tabs := view["tabs"].([]any); len(tabs) != 1 {
		t.Fatalf("expected 1 tab, got %d", len(tabs))
	}

	resp, _ = doJSON(t, app, "PUT", "/api/session/relationships/mappings",
		`{"key":"`+key+`","mappings":[{"sourceField":"address1_city","targetField":"address1_city","isTriggerField":true}]}`)
	if resp.StatusCode != 200 {
		t.Fatalf("set mappings: status %d", resp.StatusCode)
	}

	resp, body = doJSON(t, app, "GET", "/api/session/json", "")
	if resp.StatusCode != 200 {
		t.Fatalf("get json: status %d", resp.StatusCode)
	}
	raw := body["data"].(map[string]any)["configurationJson"].(string)
	if !strings.Contains(raw, `"address1_city"`) {
		t.Fatalf("canonical JSON missing mapping: %s", raw)
	}

	resp, _ = doJSON(t, app, "POST", "/api/session/publish", `{"confirmRegister":false}`)
	if resp.StatusCode != 200 {
		t.Fatalf("publish: status %d", resp.StatusCode)
	}
}

func TestRemovePublishedTabRequiresConfirmation(t *testing.T) {
	app := newTestApp()

	doJSON(t, app, "POST", "/api/session/initialize", "")
	applied := `{"configurationJson":"{\"parentEntity\":\"account\",\"relatedEntities\":[{\"entityName\":\"contact\",\"lookupFieldName\":\"parentcustomerid\",\"fieldMappings\":[]}]}","markAsPublished":true}`
	resp, _ := doJSON(t, app, "POST", "/api/session/apply", applied)
	if resp.StatusCode != 200 {
		t.Fatalf("apply: status %d", resp.StatusCode)
	}

	resp, body := doJSON(t, app, "DELETE", "/api/session/relationships?key=contact%7C%7Cparentcustomerid", "")
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409 decision, got %d: %v", resp.StatusCode, body)
	}
	errObj := body["error"].(map[string]any)
	if errObj["code"] != "DECISION_REQUIRED" {
		t.Fatalf("expected DECISION_REQUIRED, got %v", errObj["code"])
	}

	resp, _ = doJSON(t, app, "DELETE", "/api/session/relationships?key=contact%7C%7Cparentcustomerid&confirm=true", "")
	if resp.StatusCode != 200 {
		t.Fatalf("confirmed remove: status %d", resp.StatusCode)
	}
}

func TestValidationFailureMapsTo422(t *testing.T) {
	app := newTestApp()

	doJSON(t, app, "POST", "/api/session/initialize", "")
	doJSON(t, app, "POST", "/api/session/parent", `{"logicalName":"account"}`)
	resp, body := doJSON(t, app, "POST", "/api/session/relationships", `{"schemaName":"contact_customer_accounts"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("add relationship: %d", resp.StatusCode)
	}
	key := body["data"].(map[string]any)["key"].(string)

	doJSON(t, app, "PUT", "/api/session/relationships/mappings",
		`{"key":"`+key+`","mappings":[{"sourceField":"address1_city","targetField":"not_an_attribute"}]}`)

	resp, body = doJSON(t, app, "POST", "/api/session/publish", "")
	if resp.StatusCode != 422 {
		t.Fatalf("expected 422, got %d: %v", resp.StatusCode, body)
	}
	errObj := body["error"].(map[string]any)
	if errObj["code"] != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", errObj["code"])
	}
	if details := errObj["details"].([]any); len(details) == 0 {
		t.Fatal("expected validation details")
	}
}

func TestFilterTestEndpoint(t *testing.T) {
	app := newTestApp()

	resp, body := doJSON(t, app, "POST", "/api/filter/test",
		`{"criteria":"statecode|eq|0","record":{"statecode":0}}`)
	if resp.StatusCode != 200 {
		t.Fatalf("filter test: status %d", resp.StatusCode)
	}
	data := body["data"].(map[string]any)
	if matched, _ := data["matched"].(bool); !matched {
		t.Fatalf("expected match, got %v", data)
	}
	if data["expression"] != `record["statecode"] == 0` {
		t.Fatalf("unexpected expression: %v", data["expression"])
	}

	resp, _ = doJSON(t, app, "POST", "/api/filter/test",
		`{"criteria":"statecode|bogus|0","record":{}}`)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for unknown operator, got %d", resp.StatusCode)
	}
}

func TestMissingConnectionIdentityIsUnauthorized(t *testing.T) {
	manager := session.NewManager(session.Deps{
		Catalog:         stubCatalog{},
		Publisher:       stubPublisher{},
		Store:           stubStore{},
		DefaultSolution: "Default",
	})
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, NewHandler(manager)) // no identity middleware

	resp, body := doJSON(t, app, "GET", "/api/session", "")
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d: %v", resp.StatusCode, body)
	}
}
