package api

import (
	"sync"

	"github.com/gofiber/fiber/v2"

	"cascade-studio/internal/filter"
	"cascade-studio/internal/session"
)

// Handler exposes the configuration session over HTTP. Every route resolves
// the caller's engine through the session manager; engines never outlive
// their connection scope.
type Handler struct {
	manager   *session.Manager
	evaluator *filter.Evaluator
}

func NewHandler(manager *session.Manager) *Handler {
	return &Handler{
		manager:   manager,
		evaluator: filter.NewEvaluator(),
	}
}

func (h *Handler) engine(c *fiber.Ctx) (*session.Engine, error) {
	connectionID, _ := c.Locals("connection_id").(string)
	if connectionID == "" {
		return nil, UnauthorizedError("No connection identity on request")
	}
	return h.manager.Engine(connectionID), nil
}

// Initialize handles POST /api/session/initialize.
func (h *Handler) Initialize(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	if err := e.Initialize(c.Context()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.View()})
}

// Session handles GET /api/session.
func (h *Handler) Session(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.View()})
}

// ClearSession handles DELETE /api/session.
func (h *Handler) ClearSession(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	if err := e.ClearSession(c.Context()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.View()})
}

// ConfigurationJSON handles GET /api/session/json.
func (h *Handler) ConfigurationJSON(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"configurationJson": e.CanonicalJSON()}})
}

// Solutions handles GET /api/solutions.
func (h *Handler) Solutions(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.Solutions()})
}

// SelectSolution handles POST /api/session/solution.
func (h *Handler) SelectSolution(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	var body struct {
		UniqueName string `json:"uniqueName"`
	}
	if err := c.BodyParser(&body); err != nil || body.UniqueName == "" {
		return NewAppError("INVALID_PAYLOAD", 400, "uniqueName is required")
	}
	if err := e.SelectSolution(c.Context(), body.UniqueName); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.View()})
}

// Entities handles GET /api/session/entities.
func (h *Handler) Entities(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.Entities()})
}

// SelectParentEntity handles POST /api/session/parent.
func (h *Handler) SelectParentEntity(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	var body struct {
		LogicalName string `json:"logicalName"`
	}
	if err := c.BodyParser(&body); err != nil || body.LogicalName == "" {
		return NewAppError("INVALID_PAYLOAD", 400, "logicalName is required")
	}
	if err := e.SelectParentEntity(c.Context(), body.LogicalName); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.View()})
}

// FormFields handles GET /api/session/forms.
func (h *Handler) FormFields(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	forms, err := e.FormFields(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": forms})
}

// AvailableRelationships handles GET /api/session/relationships/available.
func (h *Handler) AvailableRelationships(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.AvailableRelationships()})
}

// AddRelationship handles POST /api/session/relationships.
func (h *Handler) AddRelationship(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	var body struct {
		SchemaName string `json:"schemaName"`
	}
	if err := c.BodyParser(&body); err != nil || body.SchemaName == "" {
		return NewAppError("INVALID_PAYLOAD", 400, "schemaName is required")
	}
	tab, created, err := e.AddRelationship(c.Context(), body.SchemaName)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"key":     tab.Key(),
		"created": created,
		"session": e.View(),
	}})
}

// RemoveRelationship handles DELETE /api/session/relationships. The tab key
// travels in the query string because it contains pipe separators.
func (h *Handler) RemoveRelationship(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	key := c.Query("key")
	if key == "" {
		return NewAppError("INVALID_PAYLOAD", 400, "key is required")
	}
	confirmed := c.QueryBool("confirm")
	if err := e.RemoveRelationship(key, confirmed); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.View()})
}

// SetMappings handles PUT /api/session/relationships/mappings.
func (h *Handler) SetMappings(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	var body struct {
		Key      string               `json:"key"`
		Mappings []session.MappingRow `json:"mappings"`
	}
	if err := c.BodyParser(&body); err != nil || body.Key == "" {
		return NewAppError("INVALID_PAYLOAD", 400, "key is required")
	}
	if err := e.SetTabMappings(body.Key, body.Mappings); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.View()})
}

// SetFilters handles PUT /api/session/relationships/filters.
func (h *Handler) SetFilters(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	var body struct {
		Key     string              `json:"key"`
		Filters []session.FilterRow `json:"filters"`
	}
	if err := c.BodyParser(&body); err != nil || body.Key == "" {
		return NewAppError("INVALID_PAYLOAD", 400, "key is required")
	}
	if err := e.SetTabFilters(body.Key, body.Filters); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.View()})
}

// SetFlags handles PUT /api/session/flags.
func (h *Handler) SetFlags(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	var body struct {
		IsActive      bool `json:"isActive"`
		EnableTracing bool `json:"enableTracing"`
	}
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	e.SetRuleFlags(body.IsActive, body.EnableTracing)
	return c.JSON(fiber.Map{"data": e.View()})
}

// Apply handles POST /api/session/apply.
func (h *Handler) Apply(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	var body struct {
		ConfigurationJSON     string `json:"configurationJson"`
		MarkAsPublished       bool   `json:"markAsPublished"`
		ConfirmSolutionSwitch bool   `json:"confirmSolutionSwitch"`
	}
	if err := c.BodyParser(&body); err != nil || body.ConfigurationJSON == "" {
		return NewAppError("INVALID_PAYLOAD", 400, "configurationJson is required")
	}
	if err := e.ApplyConfiguration(c.Context(), body.ConfigurationJSON, body.MarkAsPublished, body.ConfirmSolutionSwitch); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e.View()})
}

// progressLog collects progress reports so the publish response can replay
// them to the caller.
type progressLog struct {
	mu    sync.Mutex
	steps []string
}

func (p *progressLog) Report(stage, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, stage+": "+message)
}

// Publish handles POST /api/session/publish.
func (h *Handler) Publish(c *fiber.Ctx) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	var body struct {
		ConfirmRegister bool `json:"confirmRegister"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
		}
	}

	progress := &progressLog{}
	if err := e.Publish(c.Context(), progress, body.ConfirmRegister); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"progress": progress.steps,
		"session":  e.View(),
	}})
}

// TestFilter handles POST /api/filter/test: evaluates serialized filter
// criteria against a sample record so a filter can be checked before publish.
func (h *Handler) TestFilter(c *fiber.Ctx) error {
	var body struct {
		Criteria string         `json:"criteria"`
		Record   map[string]any `json:"record"`
	}
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}

	expr, err := filter.Expression(body.Criteria)
	if err != nil {
		return NewAppError("INVALID_FILTER", 400, err.Error())
	}
	matched, err := h.evaluator.Evaluate(body.Criteria, body.Record)
	if err != nil {
		return NewAppError("INVALID_FILTER", 400, err.Error())
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"matched":    matched,
		"expression": expr,
	}})
}
