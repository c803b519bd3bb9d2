package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/balancy/pizza-bot/internal/services"
)

func TestHandleVerifyHandshake(t *testing.T) {
	t.Setenv("FB_VERIFY_TOKEN", "secret-token")

	app := fiber.New()
	handler := NewFacebookHandler(nil)
	app.Get("/webhook/facebook", handler.HandleVerify)

	req := httptest.NewRequest("GET",
		"/webhook/facebook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != "12345" {
		t.Errorf("handshake = %d %q, want 200 with the challenge echoed", resp.StatusCode, body)
	}
}

func TestHandleVerifyRejectsWrongToken(t *testing.T) {
	t.Setenv("FB_VERIFY_TOKEN", "secret-token")

	app := fiber.New()
	handler := NewFacebookHandler(nil)
	app.Get("/webhook/facebook", handler.HandleVerify)

	req := httptest.NewRequest("GET",
		"/webhook/facebook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestTranslateMessaging(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want services.Event
		ok   bool
	}{
		{
			name: "postback",
			raw:  `{"sender":{"id":"7"},"postback":{"payload":"cart"}}`,
			want: services.Event{Payload: "cart"},
			ok:   true,
		},
		{
			name: "quick reply",
			raw:  `{"sender":{"id":"7"},"message":{"text":"Pay","quick_reply":{"payload":"pay"}}}`,
			want: services.Event{Payload: "pay"},
			ok:   true,
		},
		{
			name: "plain text",
			raw:  `{"sender":{"id":"7"},"message":{"text":"Lenina street 5"}}`,
			want: services.Event{Text: "Lenina street 5"},
			ok:   true,
		},
		{
			name: "command",
			raw:  `{"sender":{"id":"7"},"message":{"text":"/start now"}}`,
			want: services.Event{Command: "/start"},
			ok:   true,
		},
		{
			name: "empty envelope",
			raw:  `{"sender":{"id":"7"}}`,
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var messaging facebookMessaging
			if err := json.Unmarshal([]byte(tc.raw), &messaging); err != nil {
				t.Fatalf("unmarshal fixture: %v", err)
			}

			event, ok := translateMessaging(messaging)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if event.Command != tc.want.Command || event.Text != tc.want.Text || event.Payload != tc.want.Payload {
				t.Errorf("event = %+v, want %+v", event, tc.want)
			}
		})
	}
}

func TestTranslateMessagingLocation(t *testing.T) {
	raw := `{"sender":{"id":"7"},"message":{"attachments":[
		{"type":"location","payload":{"coordinates":{"lat":55.75,"long":37.62}}}
	]}}`

	var messaging facebookMessaging
	if err := json.Unmarshal([]byte(raw), &messaging); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	event, ok := translateMessaging(messaging)
	if !ok {
		t.Fatal("a location attachment must produce an event")
	}
	if event.Location == nil || event.Location.Latitude != 55.75 || event.Location.Longitude != 37.62 {
		t.Errorf("location = %+v, want (55.75, 37.62)", event.Location)
	}
}
