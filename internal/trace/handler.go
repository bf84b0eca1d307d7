package trace

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the trace buffer over REST.
type Handler struct {
	buffer *Buffer
}

func NewHandler(buffer *Buffer) *Handler {
	return &Handler{buffer: buffer}
}

func RegisterTraceRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	group := app.Group("/api/_trace", middleware...)
	group.Get("/", h.List)
	group.Delete("/", h.Clear)
}

// List handles GET /api/_trace. Most recent spans first, with optional
// component/action/status filters.
func (h *Handler) List(c *fiber.Ctx) error {
	component := c.Query("component")
	action := c.Query("action")
	status := c.Query("status")
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	if limit < 1 {
		limit = 100
	}

	records := h.buffer.Records()
	out := make([]Record, 0, limit)
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := records[i]
		if component != "" && rec.Component != component {
			continue
		}
		if action != "" && rec.Action != action {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}

	return c.JSON(fiber.Map{"data": out, "total": h.buffer.Len()})
}

// Clear handles DELETE /api/_trace.
func (h *Handler) Clear(c *fiber.Ctx) error {
	h.buffer.Clear()
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "ok"}})
}
