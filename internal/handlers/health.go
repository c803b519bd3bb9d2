package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// HealthCheck reports service liveness for monitoring.
func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "pizza-bot",
		"version": "1.0.0",
	})
}
