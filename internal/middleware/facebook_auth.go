package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ValidateFacebookSignature validates that the webhook request is from
// Facebook: X-Hub-Signature-256 carries an HMAC-SHA256 of the raw body
// keyed with the app secret.
func ValidateFacebookSignature() fiber.Handler {
	return func(c *fiber.Ctx) error {
		signature := c.Get("X-Hub-Signature-256")
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing signature",
			})
		}

		appSecret := os.Getenv("FB_APP_SECRET")
		if appSecret == "" {
			log.Println("ERROR: FB_APP_SECRET not set")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		expected := calculateSignature(appSecret, c.Body())
		received := strings.TrimPrefix(signature, "sha256=")

		if !hmac.Equal([]byte(expected), []byte(received)) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

// calculateSignature computes the hex HMAC-SHA256 digest of the body.
func calculateSignature(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
