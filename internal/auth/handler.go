package auth

import (
	"github.com/gofiber/fiber/v2"

	"cascade-studio/internal/api"
	"cascade-studio/internal/store"
)

// Handler handles the connect endpoint that exchanges connection credentials
// for a token.
type Handler struct {
	store     *store.Store
	jwtSecret string
}

func NewHandler(s *store.Store, jwtSecret string) *Handler {
	return &Handler{store: s, jwtSecret: jwtSecret}
}

func RegisterAuthRoutes(app *fiber.App, h *Handler) {
	app.Post("/api/connect", h.Connect)
}

// Connect handles POST /api/connect.
func (h *Handler) Connect(c *fiber.Ctx) error {
	var body struct {
		Connection string `json:"connection"`
		Secret     string `json:"secret"`
	}
	if err := c.BodyParser(&body); err != nil {
		return api.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Connection == "" || body.Secret == "" {
		return api.UnauthorizedError("Connection name and secret are required")
	}

	conn, err := h.store.FindConnectionByName(c.Context(), body.Connection)
	if err != nil {
		return api.UnauthorizedError("Invalid connection or secret")
	}
	if !conn.Active {
		return api.UnauthorizedError("Connection is disabled")
	}
	if !CheckSecret(body.Secret, conn.SecretHash) {
		return api.UnauthorizedError("Invalid connection or secret")
	}

	token, err := GenerateConnectionToken(conn.Name, conn.ID, h.jwtSecret)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": fiber.Map{
		"token":      token,
		"connection": conn.Name,
	}})
}
