package services

import "github.com/balancy/pizza-bot/internal/models"

// Choice is one labeled option presented to the user. Payload comes back
// verbatim in the next event when the user picks it.
type Choice struct {
	Label   string
	Payload string
}

// Invoice describes a payment request. Total is in whole currency units;
// the platform adapter converts to its own minor units.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Currency    string
	Total       int
}

// Messenger delivers outbound instructions to one chat platform. The
// conversation treats it as an opaque sink; rendering details stay in the
// adapters.
type Messenger interface {
	SendText(userID, text string) error
	SendChoices(userID, text string, choices []Choice) error
	SendPhoto(userID, imageURL, caption string, choices []Choice) error
	SendLocation(userID string, coords models.Coordinates) error
	SendInvoice(userID string, invoice Invoice) error
	AnswerPreCheckout(queryID string, ok bool, errorMessage string) error
}
