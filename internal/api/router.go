package api

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"cascade-studio/internal/session"
)

// RegisterRoutes mounts the session API. The auth middleware is passed in by
// the caller so this package stays agnostic of how connections authenticate.
func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	grp := app.Group("/api", middleware...)

	grp.Get("/solutions", h.Solutions)

	grp.Post("/session/initialize", h.Initialize)
	grp.Get("/session", h.Session)
	grp.Delete("/session", h.ClearSession)
	grp.Get("/session/json", h.ConfigurationJSON)
	grp.Post("/session/solution", h.SelectSolution)
	grp.Get("/session/entities", h.Entities)
	grp.Post("/session/parent", h.SelectParentEntity)
	grp.Put("/session/flags", h.SetFlags)
	grp.Get("/session/forms", h.FormFields)

	grp.Get("/session/relationships/available", h.AvailableRelationships)
	grp.Post("/session/relationships", h.AddRelationship)
	grp.Delete("/session/relationships", h.RemoveRelationship)
	grp.Put("/session/relationships/mappings", h.SetMappings)
	grp.Put("/session/relationships/filters", h.SetFilters)

	grp.Post("/session/apply", h.Apply)
	grp.Post("/session/publish", h.Publish)

	grp.Post("/filter/test", h.TestFilter)
}

// ErrorHandler converts errors into the API's error envelope. Decision points
// map to 409 so a client can retry with the confirm flag; validation findings
// map to 422 with every issue attached.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
	}

	var decision *session.DecisionError
	if errors.As(err, &decision) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": fiber.Map{
				"code":     "DECISION_REQUIRED",
				"message":  decision.Message,
				"decision": decision,
			},
		})
	}

	var validation *session.ValidationFailedError
	if errors.As(err, &validation) {
		details := make([]ErrorDetail, 0, len(validation.Issues))
		for _, iss := range validation.Issues {
			details = append(details, ErrorDetail{Path: iss.Path, Message: iss.Message})
		}
		vErr := ValidationError(details)
		return c.Status(vErr.Status).JSON(ErrorResponse{Error: vErr})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Error: NewAppError("HTTP_ERROR", fiberErr.Code, fiberErr.Message),
		})
	}

	log.Printf("ERROR: unhandled: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error: NewAppError("INTERNAL", fiber.StatusInternalServerError, err.Error()),
	})
}
