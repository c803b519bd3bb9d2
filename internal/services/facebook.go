package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/balancy/pizza-bot/internal/models"
)

// FacebookService sends messages through the Messenger Send API. The
// platform has no payment primitive, so a payment request degrades to an
// order summary with a confirm choice carrying the order tag.
type FacebookService struct {
	sendURL    string
	pageToken  string
	httpClient *http.Client
}

// NewFacebookService creates a Messenger Send API client.
func NewFacebookService(sendURL, pageToken string) *FacebookService {
	return &FacebookService{
		sendURL:    sendURL,
		pageToken:  pageToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *FacebookService) send(recipientID string, message map[string]any) error {
	payload := map[string]any{
		"recipient": map[string]string{"id": recipientID},
		"message":   message,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}

	url := f.sendURL + "?access_token=" + f.pageToken
	resp, err := f.httpClient.Post(url, "application/json", bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{URL: f.sendURL, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

func (f *FacebookService) SendText(userID, text string) error {
	return f.send(userID, map[string]any{"text": text})
}

func (f *FacebookService) SendChoices(userID, text string, choices []Choice) error {
	replies := make([]map[string]string, 0, len(choices))
	for _, choice := range choices {
		replies = append(replies, map[string]string{
			"content_type": "text",
			"title":        choice.Label,
			"payload":      choice.Payload,
		})
	}

	return f.send(userID, map[string]any{
		"text":          text,
		"quick_replies": replies,
	})
}

func (f *FacebookService) SendPhoto(userID, imageURL, caption string, choices []Choice) error {
	attachment := map[string]any{
		"attachment": map[string]any{
			"type":    "image",
			"payload": map[string]any{"url": imageURL, "is_reusable": true},
		},
	}
	if err := f.send(userID, attachment); err != nil {
		return err
	}

	return f.SendChoices(userID, caption, choices)
}

func (f *FacebookService) SendLocation(userID string, coords models.Coordinates) error {
	text := fmt.Sprintf("Customer location: https://maps.google.com/?q=%f,%f",
		coords.Latitude, coords.Longitude)
	return f.SendText(userID, text)
}

func (f *FacebookService) SendInvoice(userID string, invoice Invoice) error {
	text := fmt.Sprintf("%s\n\n%s\n\nTotal: %d %s",
		invoice.Title, invoice.Description, invoice.Total, invoice.Currency)

	return f.SendChoices(userID, text, []Choice{
		{Label: "Confirm payment", Payload: invoice.Payload},
	})
}

// AnswerPreCheckout is a no-op: Messenger has no pre-checkout step, the
// confirm choice is validated against the order tag instead.
func (f *FacebookService) AnswerPreCheckout(queryID string, ok bool, errorMessage string) error {
	return nil
}
