package handlers

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/balancy/pizza-bot/internal/models"
	"github.com/balancy/pizza-bot/internal/services"
)

// FacebookHandler handles Messenger webhook requests.
type FacebookHandler struct {
	conversation *services.Conversation
	verifyToken  string
}

// NewFacebookHandler creates a webhook handler driving the given
// conversation.
func NewFacebookHandler(conversation *services.Conversation) *FacebookHandler {
	return &FacebookHandler{
		conversation: conversation,
		verifyToken:  os.Getenv("FB_VERIFY_TOKEN"),
	}
}

// HandleVerify answers the Messenger webhook subscription handshake.
func (h *FacebookHandler) HandleVerify(c *fiber.Ctx) error {
	if c.Query("hub.mode") == "subscribe" && c.Query("hub.challenge") != "" {
		if c.Query("hub.verify_token") != h.verifyToken {
			return c.Status(fiber.StatusForbidden).SendString("Verification token mismatch")
		}
		return c.SendString(c.Query("hub.challenge"))
	}

	return c.SendString("Hello world")
}

// Messenger page-event envelope.

type facebookWebhookPayload struct {
	Object string          `json:"object"`
	Entry  []facebookEntry `json:"entry"`
}

type facebookEntry struct {
	Messaging []facebookMessaging `json:"messaging"`
}

type facebookMessaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Message  *facebookMessage  `json:"message"`
	Postback *facebookPostback `json:"postback"`
}

type facebookMessage struct {
	Text       string `json:"text"`
	QuickReply *struct {
		Payload string `json:"payload"`
	} `json:"quick_reply"`
	Attachments []facebookAttachment `json:"attachments"`
}

type facebookAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		Coordinates *struct {
			Lat  float64 `json:"lat"`
			Long float64 `json:"long"`
		} `json:"coordinates"`
	} `json:"payload"`
}

type facebookPostback struct {
	Payload string `json:"payload"`
}

// HandleWebhook processes incoming Messenger events.
func (h *FacebookHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload facebookWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing facebook webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	if payload.Object != "page" {
		return c.SendString("ok")
	}

	for _, entry := range payload.Entry {
		for _, messaging := range entry.Messaging {
			event, ok := translateMessaging(messaging)
			if !ok {
				continue
			}

			userID := messaging.Sender.ID
			if err := h.conversation.HandleEvent(userID, event); err != nil {
				log.Printf("Facebook event for %s failed: %v", userID, err)
			}
		}
	}

	return c.SendString("ok")
}

// translateMessaging maps one Messenger event onto a platform-agnostic
// event.
func translateMessaging(messaging facebookMessaging) (services.Event, bool) {
	var event services.Event

	switch {
	case messaging.Postback != nil:
		event.Payload = messaging.Postback.Payload

	case messaging.Message != nil:
		message := messaging.Message
		if message.QuickReply != nil {
			event.Payload = message.QuickReply.Payload
			break
		}

		event.Text = message.Text
		if strings.HasPrefix(message.Text, "/") {
			event.Command = strings.Fields(message.Text)[0]
			event.Text = ""
		}

		for _, attachment := range message.Attachments {
			if attachment.Type == "location" && attachment.Payload.Coordinates != nil {
				event.Location = &models.Coordinates{
					Latitude:  attachment.Payload.Coordinates.Lat,
					Longitude: attachment.Payload.Coordinates.Long,
				}
			}
		}

	default:
		return event, false
	}

	return event, true
}
