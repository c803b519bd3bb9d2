package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newSignedApp() *fiber.App {
	app := fiber.New()
	app.Post("/webhook", ValidateFacebookSignature(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestValidSignaturePasses(t *testing.T) {
	t.Setenv("FB_APP_SECRET", "app-secret")
	app := newSignedApp()

	body := `{"object":"page"}`
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign("app-secret", body))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestInvalidSignatureRejected(t *testing.T) {
	t.Setenv("FB_APP_SECRET", "app-secret")
	app := newSignedApp()

	body := `{"object":"page"}`
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign("another-secret", body))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMissingSignatureRejected(t *testing.T) {
	t.Setenv("FB_APP_SECRET", "app-secret")
	app := newSignedApp()

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{}"))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
