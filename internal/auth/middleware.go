package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"cascade-studio/internal/api"
)

// Connection is the authenticated connection identity attached to a request.
type Connection struct {
	ID   string
	Name string
}

// Middleware returns a Fiber middleware that validates connection tokens and
// attaches the connection identity to the request.
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return api.UnauthorizedError("Missing connection token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return api.UnauthorizedError("Invalid auth header format")
		}

		claims, err := ParseConnectionToken(parts[1], secret)
		if err != nil {
			return api.UnauthorizedError("Invalid or expired token")
		}

		c.Locals("connection", &Connection{
			ID:   claims.ConnectionID,
			Name: claims.Subject,
		})
		c.Locals("connection_id", claims.ConnectionID)

		return c.Next()
	}
}

// GetConnection extracts the connection identity from a Fiber context.
func GetConnection(c *fiber.Ctx) *Connection {
	conn, _ := c.Locals("connection").(*Connection)
	return conn
}
