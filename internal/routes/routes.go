package routes

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/balancy/pizza-bot/internal/handlers"
	"github.com/balancy/pizza-bot/internal/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, facebookHandler *handlers.FacebookHandler) {
	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Pizza Bot!",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":  "/health",
				"webhook": "/webhook/facebook",
			},
		})
	})

	app.Get("/health", handlers.HealthCheck)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	webhooks.Get("/facebook", facebookHandler.HandleVerify)

	// Skip signature validation for local development behind ngrok.
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		webhooks.Post("/facebook", facebookHandler.HandleWebhook)
	} else {
		webhooks.Post("/facebook", middleware.ValidateFacebookSignature(), facebookHandler.HandleWebhook)
	}
}
