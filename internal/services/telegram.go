package services

import (
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/balancy/pizza-bot/internal/models"
)

// TelegramService runs the Telegram side of the bot: a long-polling loop
// feeding the conversation, and the Messenger implementation sending
// replies back.
type TelegramService struct {
	bot          *tgbotapi.BotAPI
	paymentToken string
	conversation *Conversation
}

// NewTelegramService connects to the Telegram Bot API.
func NewTelegramService(botToken, paymentToken string) (*TelegramService, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}

	return &TelegramService{
		bot:          bot,
		paymentToken: paymentToken,
	}, nil
}

// SetConversation wires the state machine in (call from main.go). The
// conversation needs this service as its Messenger, so the two are
// constructed first and linked after.
func (t *TelegramService) SetConversation(conversation *Conversation) {
	t.conversation = conversation
}

// Username returns the authorized bot account name.
func (t *TelegramService) Username() string {
	return t.bot.Self.UserName
}

// Run polls for updates until the channel closes. Updates are handled in
// arrival order; per-user serialization lives in the conversation.
func (t *TelegramService) Run() {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	for update := range t.bot.GetUpdatesChan(updateConfig) {
		userID, event, ok := t.translate(update)
		if !ok {
			continue
		}

		if err := t.conversation.HandleEvent(userID, event); err != nil {
			log.Printf("Telegram event for %s failed: %v", userID, err)
		}
	}
}

// Stop ends the polling loop.
func (t *TelegramService) Stop() {
	t.bot.StopReceivingUpdates()
}

// translate maps one Telegram update onto a platform-agnostic event.
func (t *TelegramService) translate(update tgbotapi.Update) (string, Event, bool) {
	switch {
	case update.PreCheckoutQuery != nil:
		query := update.PreCheckoutQuery
		event := Event{PreCheckout: &PreCheckout{ID: query.ID, Payload: query.InvoicePayload}}
		return strconv.FormatInt(query.From.ID, 10), event, true

	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		// Acknowledge the button press so the client stops its spinner.
		if _, err := t.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			log.Printf("Answer callback query failed: %v", err)
		}
		return strconv.FormatInt(query.Message.Chat.ID, 10), Event{Payload: query.Data}, true

	case update.Message != nil:
		message := update.Message
		userID := strconv.FormatInt(message.Chat.ID, 10)

		if message.SuccessfulPayment != nil {
			return userID, Event{PaymentDone: true}, true
		}

		event := Event{Text: message.Text}
		if message.IsCommand() {
			event.Command = "/" + message.Command()
			event.Text = ""
		}
		if message.Location != nil {
			event.Location = &models.Coordinates{
				Latitude:  message.Location.Latitude,
				Longitude: message.Location.Longitude,
			}
		}
		return userID, event, true
	}

	return "", Event{}, false
}

func chatID(userID string) int64 {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		log.Printf("Bad telegram chat id %q: %v", userID, err)
	}
	return id
}

func (t *TelegramService) SendText(userID, text string) error {
	_, err := t.bot.Send(tgbotapi.NewMessage(chatID(userID), text))
	return err
}

// keyboard lays choices out as an inline keyboard, rowSize buttons per row.
func keyboard(choices []Choice, rowSize int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for _, choice := range choices {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(choice.Label, choice.Payload))
		if len(row) == rowSize {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (t *TelegramService) SendChoices(userID, text string, choices []Choice) error {
	message := tgbotapi.NewMessage(chatID(userID), text)
	message.ReplyMarkup = keyboard(choices, 1)
	_, err := t.bot.Send(message)
	return err
}

func (t *TelegramService) SendPhoto(userID, imageURL, caption string, choices []Choice) error {
	photo := tgbotapi.NewPhoto(chatID(userID), tgbotapi.FileURL(imageURL))
	photo.Caption = caption
	photo.ReplyMarkup = keyboard(choices, 3)
	_, err := t.bot.Send(photo)
	return err
}

func (t *TelegramService) SendLocation(userID string, coords models.Coordinates) error {
	_, err := t.bot.Send(tgbotapi.NewLocation(chatID(userID), coords.Latitude, coords.Longitude))
	return err
}

func (t *TelegramService) SendInvoice(userID string, invoice Invoice) error {
	// Telegram prices are in minor currency units.
	prices := []tgbotapi.LabeledPrice{{Label: "Order total", Amount: invoice.Total * 100}}

	config := tgbotapi.NewInvoice(
		chatID(userID),
		invoice.Title,
		invoice.Description,
		invoice.Payload,
		t.paymentToken,
		"",
		invoice.Currency,
		prices,
	)
	config.NeedName = true
	config.NeedPhoneNumber = true

	_, err := t.bot.Send(config)
	return err
}

func (t *TelegramService) AnswerPreCheckout(queryID string, ok bool, errorMessage string) error {
	_, err := t.bot.Request(tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	})
	return err
}
