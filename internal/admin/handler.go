package admin

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"cascade-studio/internal/api"
	"cascade-studio/internal/auth"
	"cascade-studio/internal/model"
	"cascade-studio/internal/session"
	"cascade-studio/internal/store"
)

// Handler exposes the persisted session inventory for operators: what is
// saved, for which connection, and whether the saved configuration still
// parses cleanly.
type Handler struct {
	store   *store.Store
	manager *session.Manager
}

func NewHandler(st *store.Store, manager *session.Manager) *Handler {
	return &Handler{store: st, manager: manager}
}

func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	grp := app.Group("/api/_admin", middleware...)
	grp.Get("/sessions", h.ListSessions)
	grp.Get("/sessions/:connectionId", h.InspectSession)
	grp.Delete("/sessions/:connectionId", h.DeleteSession)
	grp.Post("/connections", h.CreateConnection)
}

// CreateConnection handles POST /api/_admin/connections: registers a new
// platform connection this tool may hold sessions for.
func (h *Handler) CreateConnection(c *fiber.Ctx) error {
	var body struct {
		Name   string `json:"name"`
		Secret string `json:"secret"`
	}
	if err := c.BodyParser(&body); err != nil || body.Name == "" || body.Secret == "" {
		return api.NewAppError("INVALID_PAYLOAD", 400, "name and secret are required")
	}

	hash, err := auth.HashSecret(body.Secret)
	if err != nil {
		return err
	}
	rec, err := h.store.CreateConnection(c.Context(), body.Name, hash)
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return api.NewAppError("CONNECTION_EXISTS", 409, "a connection with that name already exists")
		}
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": rec})
}

// ListSessions handles GET /api/_admin/sessions.
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.store.ListSessions(c.Context())
	if err != nil {
		return err
	}
	type summary struct {
		ConnectionID       string `json:"connectionId"`
		SolutionUniqueName string `json:"solutionUniqueName"`
		ParentEntity       string `json:"parentEntity"`
		LastModifiedUTC    string `json:"lastModifiedUtc"`
		Parseable          bool   `json:"parseable"`
	}
	out := make([]summary, 0, len(sessions))
	for _, rec := range sessions {
		_, parseErr := model.Parse(rec.ConfigurationJSON)
		out = append(out, summary{
			ConnectionID:       rec.ConnectionID,
			SolutionUniqueName: rec.SolutionUniqueName,
			ParentEntity:       rec.ParentEntityLogicalName,
			LastModifiedUTC:    rec.LastModifiedUTC.Format("2006-01-02T15:04:05Z"),
			Parseable:          parseErr == nil,
		})
	}
	return c.JSON(fiber.Map{"data": out})
}

// InspectSession handles GET /api/_admin/sessions/:connectionId. The saved
// configuration is returned along with its validation findings so an operator
// can see why a session might not restore.
func (h *Handler) InspectSession(c *fiber.Ctx) error {
	rec, err := h.store.LoadSession(c.Context(), c.Params("connectionId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return api.NotFoundError("session")
		}
		return err
	}

	var issues []model.Issue
	parsed, parseErr := model.Parse(rec.ConfigurationJSON)
	if parseErr == nil {
		issues = parsed.Validate()
	}

	resp := fiber.Map{
		"record": rec,
		"issues": issues,
	}
	if parseErr != nil {
		resp["parseError"] = parseErr.Error()
	}
	return c.JSON(fiber.Map{"data": resp})
}

// DeleteSession handles DELETE /api/_admin/sessions/:connectionId. The live
// engine for the connection, if any, is dropped along with the saved row.
func (h *Handler) DeleteSession(c *fiber.Ctx) error {
	connectionID := c.Params("connectionId")
	if conn := auth.GetConnection(c); conn != nil {
		log.Printf("Session %s deleted by connection %s", connectionID, conn.Name)
	}
	h.manager.Remove(c.Context(), connectionID)
	if err := h.store.DeleteSession(c.Context(), connectionID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": connectionID}})
}
