package services

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/balancy/pizza-bot/internal/jobs"
	"github.com/balancy/pizza-bot/internal/models"
	"github.com/balancy/pizza-bot/internal/storage"
)

// Event is one inbound user action, already stripped of platform details.
// A location share wins over text present in the same event.
type Event struct {
	Command     string
	Text        string
	Payload     string
	Location    *models.Coordinates
	PreCheckout *PreCheckout
	PaymentDone bool
}

// PreCheckout is the platform's pre-payment validation request.
type PreCheckout struct {
	ID      string
	Payload string
}

const (
	startCommand = "/start"
	exitCommand  = "/exit"

	payloadCart     = "cart"
	payloadBack     = "back"
	payloadPay      = "pay"
	payloadPickup   = "pickup"
	payloadDelivery = "delivery"

	addressFlowSlug = "customer_address"
)

const (
	msgTryAgain     = "Something went wrong, please try again."
	msgAskStart     = "Send /start to see the menu."
	msgAskEmail     = "Please send your email."
	msgBadEmail     = "That doesn't look like an email, please check it and try again."
	msgAskAddress   = "Now send your delivery address as text, or share your location."
	msgBadAddress   = "Couldn't locate that address. Try again, or share your location."
	msgFollowUp     = "Enjoy your pizza! If it still hasn't arrived, reply here and we'll sort it out."
	msgGoodbye      = "Hope to see you again!"
	msgFinishOrExit = "Finish the payment, or send /exit to cancel the order."
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Conversation is the platform-agnostic state machine driving one chat
// platform's sessions. Events for the same user are serialized; distinct
// users proceed concurrently.
type Conversation struct {
	platform  string
	store     storage.Store
	api       *MoltinClient
	geocoder  *Geocoder
	delivery  *DeliveryService
	followUps *jobs.FollowUpScheduler
	messenger Messenger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewConversation creates the state machine for one platform.
func NewConversation(
	platform string,
	store storage.Store,
	api *MoltinClient,
	geocoder *Geocoder,
	delivery *DeliveryService,
	followUps *jobs.FollowUpScheduler,
	messenger Messenger,
) *Conversation {
	return &Conversation{
		platform:  platform,
		store:     store,
		api:       api,
		geocoder:  geocoder,
		delivery:  delivery,
		followUps: followUps,
		messenger: messenger,
		userLocks: make(map[string]*sync.Mutex),
	}
}

func (c *Conversation) userLock(userID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, exists := c.userLocks[userID]
	if !exists {
		lock = &sync.Mutex{}
		c.userLocks[userID] = lock
	}
	return lock
}

// HandleEvent runs one inbound event through the state machine. On a
// collaborator failure the session keeps its state and the user gets a
// retry prompt; a retry is always a new user event.
func (c *Conversation) HandleEvent(userID string, event Event) error {
	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.store.GetSession(userID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		session = models.NewSession(c.platform, userID)
	} else if err != nil {
		log.Printf("Load session for %s failed: %v", userID, err)
		c.reply(userID, msgTryAgain)
		return err
	}

	if event.Command == exitCommand {
		return c.handleExit(session)
	}

	var next models.SessionState
	switch {
	case event.Command == startCommand:
		next, err = c.handleStart(session)
	case session.State == "":
		return c.messenger.SendText(userID, msgAskStart)
	case session.State == models.StateMenu:
		next, err = c.handleMenu(session, event)
	case session.State == models.StateDescription:
		next, err = c.handleDescription(session, event)
	case session.State == models.StateCart:
		next, err = c.handleCart(session, event)
	case session.State == models.StateWaitEmail:
		next, err = c.handleWaitEmail(session, event)
	case session.State == models.StateCoordinates:
		next, err = c.handleCoordinates(session, event)
	case session.State == models.StatePayment:
		next, err = c.handlePayment(session, event)
	default:
		next = session.State
	}

	if err != nil {
		log.Printf("Event for %s/%s in state %q failed: %v", c.platform, userID, session.State, err)
		c.reply(userID, msgTryAgain)
		return err
	}

	if next == models.StateEnd {
		return c.store.DeleteSession(userID)
	}

	session.State = next
	return c.store.SaveSession(session)
}

// reply sends a text best-effort; a failed reply must not mask the error
// being handled.
func (c *Conversation) reply(userID, text string) {
	if err := c.messenger.SendText(userID, text); err != nil {
		log.Printf("Send reply to %s failed: %v", userID, err)
	}
}

func (c *Conversation) handleExit(session *models.Session) error {
	c.followUps.Cancel(session.UserID)
	c.reply(session.UserID, msgGoodbye)
	return c.store.DeleteSession(session.UserID)
}

func (c *Conversation) handleStart(session *models.Session) (models.SessionState, error) {
	if err := c.sendMenu(session.UserID); err != nil {
		return "", err
	}
	return models.StateMenu, nil
}

func (c *Conversation) handleMenu(session *models.Session, event Event) (models.SessionState, error) {
	switch {
	case event.Payload == payloadCart:
		if err := c.sendCart(session.UserID, session.CartRef); err != nil {
			return "", err
		}
		return models.StateCart, nil

	case event.Payload != "":
		product, err := c.api.FetchProduct(event.Payload)
		if errors.Is(err, ErrNotFound) {
			c.reply(session.UserID, "That item is no longer on the menu.")
			if err := c.sendMenu(session.UserID); err != nil {
				return "", err
			}
			return models.StateMenu, nil
		}
		if err != nil {
			return "", err
		}

		if err := c.sendProductDetails(session.UserID, product); err != nil {
			return "", err
		}
		return models.StateDescription, nil

	default:
		if err := c.sendMenu(session.UserID); err != nil {
			return "", err
		}
		return models.StateMenu, nil
	}
}

func (c *Conversation) handleDescription(session *models.Session, event Event) (models.SessionState, error) {
	switch event.Payload {
	case payloadBack:
		if err := c.sendMenu(session.UserID); err != nil {
			return "", err
		}
		return models.StateMenu, nil

	case payloadCart:
		if err := c.sendCart(session.UserID, session.CartRef); err != nil {
			return "", err
		}
		return models.StateCart, nil
	}

	productID, rawQuantity, found := strings.Cut(event.Payload, ";")
	if !found {
		c.reply(session.UserID, "Pick a quantity, or go back to the menu.")
		return models.StateDescription, nil
	}

	quantity, err := strconv.Atoi(rawQuantity)
	if err != nil || quantity <= 0 {
		c.reply(session.UserID, "Pick a quantity, or go back to the menu.")
		return models.StateDescription, nil
	}

	cart, err := c.api.AddToCart(session.CartRef, productID, quantity)
	if err != nil {
		return "", err
	}

	if err := c.renderCart(session.UserID, cart); err != nil {
		return "", err
	}
	return models.StateCart, nil
}

func (c *Conversation) handleCart(session *models.Session, event Event) (models.SessionState, error) {
	switch event.Payload {
	case payloadBack:
		if err := c.sendMenu(session.UserID); err != nil {
			return "", err
		}
		return models.StateMenu, nil

	case payloadPay:
		if err := c.messenger.SendText(session.UserID, msgAskEmail); err != nil {
			return "", err
		}
		return models.StateWaitEmail, nil

	case "":
		if err := c.sendCart(session.UserID, session.CartRef); err != nil {
			return "", err
		}
		return models.StateCart, nil
	}

	cart, err := c.api.RemoveCartItem(session.CartRef, event.Payload)
	if errors.Is(err, ErrNotFound) {
		// Removing an already-removed line is well-defined: say so and
		// show the cart as it is.
		c.reply(session.UserID, "That item is no longer in your cart.")
		if err := c.sendCart(session.UserID, session.CartRef); err != nil {
			return "", err
		}
		return models.StateCart, nil
	}
	if err != nil {
		return "", err
	}

	if err := c.renderCart(session.UserID, cart); err != nil {
		return "", err
	}
	return models.StateCart, nil
}

func (c *Conversation) handleWaitEmail(session *models.Session, event Event) (models.SessionState, error) {
	email := strings.TrimSpace(event.Text)
	if !emailPattern.MatchString(email) {
		c.reply(session.UserID, msgBadEmail)
		return models.StateWaitEmail, nil
	}

	var confirmation string
	_, err := c.api.CreateCustomer(email)
	switch {
	case errors.Is(err, ErrEntityExists):
		// Already registered is success-equivalent for the flow.
		confirmation = fmt.Sprintf("A customer with email %s is already registered.", email)
	case err != nil:
		return "", err
	default:
		confirmation = fmt.Sprintf("Registered you with email %s.", email)
	}

	session.Email = email
	if err := c.messenger.SendText(session.UserID, confirmation+"\n"+msgAskAddress); err != nil {
		return "", err
	}
	return models.StateCoordinates, nil
}

func (c *Conversation) handleCoordinates(session *models.Session, event Event) (models.SessionState, error) {
	if event.Payload == payloadPickup || event.Payload == payloadDelivery {
		return c.handleDeliveryChoice(session, event.Payload)
	}

	// A shared location always wins over text in the same event.
	coords := event.Location
	if coords == nil {
		if strings.TrimSpace(event.Text) == "" {
			c.reply(session.UserID, msgAskAddress)
			return models.StateCoordinates, nil
		}

		resolved, err := c.geocoder.Resolve(event.Text)
		if err != nil {
			return "", err
		}
		if resolved == nil {
			c.reply(session.UserID, msgBadAddress)
			return models.StateCoordinates, nil
		}
		coords = resolved
	}

	nearest, err := c.delivery.NearestPizzeria(*coords)
	if err != nil {
		return "", err
	}

	session.Coordinates = coords
	session.Pizzeria = nearest

	err = c.api.CreateEntry(addressFlowSlug, map[string]any{
		"latitude":  coords.Latitude,
		"longitude": coords.Longitude,
	})
	if err != nil {
		return "", err
	}

	if err := c.sendDeliveryOptions(session.UserID, nearest); err != nil {
		return "", err
	}
	return models.StateCoordinates, nil
}

func (c *Conversation) handleDeliveryChoice(session *models.Session, choice string) (models.SessionState, error) {
	if session.Pizzeria == nil {
		c.reply(session.UserID, msgAskAddress)
		return models.StateCoordinates, nil
	}

	cost, available := DeliveryCost(session.Pizzeria.DistanceKm)
	if choice == payloadDelivery && !available {
		c.reply(session.UserID, "We don't deliver that far, pickup only.")
		return models.StateCoordinates, nil
	}

	cart, err := c.api.FetchCart(session.CartRef)
	if err != nil {
		return "", err
	}

	var details strings.Builder
	for _, item := range cart.Items {
		fmt.Fprintf(&details, "%s: %d pcs; ", item.Name, item.Quantity)
	}

	total := cart.Total
	label := "pickup"
	if choice == payloadDelivery {
		fmt.Fprintf(&details, "Delivery: %d", cost)
		total += cost
		label = "delivery"
	}

	session.DeliveryChoice = choice
	session.OrderTag = uuid.NewString()

	if err := c.messenger.SendText(session.UserID, fmt.Sprintf("You chose %s. Now pay the invoice.", label)); err != nil {
		return "", err
	}

	invoice := Invoice{
		Title:       "Your pizza order",
		Description: details.String(),
		Payload:     session.OrderTag,
		Currency:    "RUB",
		Total:       total,
	}
	if err := c.messenger.SendInvoice(session.UserID, invoice); err != nil {
		return "", err
	}
	return models.StatePayment, nil
}

func (c *Conversation) handlePayment(session *models.Session, event Event) (models.SessionState, error) {
	switch {
	case event.PreCheckout != nil:
		ok := event.PreCheckout.Payload == session.OrderTag
		errorMessage := ""
		if !ok {
			errorMessage = "Something went wrong with your order, please start over."
		}
		if err := c.messenger.AnswerPreCheckout(event.PreCheckout.ID, ok, errorMessage); err != nil {
			return "", err
		}
		return models.StatePayment, nil

	case event.PaymentDone:
		return c.completeOrder(session)

	case event.Payload != "" && event.Payload == session.OrderTag:
		// Platforms without a payment primitive confirm with the order
		// tag as a plain choice.
		return c.completeOrder(session)

	case event.Payload != "":
		c.reply(session.UserID, "That confirmation doesn't match your order.")
		return models.StatePayment, nil

	default:
		c.reply(session.UserID, msgFinishOrExit)
		return models.StatePayment, nil
	}
}

func (c *Conversation) completeOrder(session *models.Session) (models.SessionState, error) {
	if session.Pizzeria == nil {
		return "", fmt.Errorf("no fulfillment location on session %s", session.UserID)
	}

	if session.DeliveryChoice == payloadPickup {
		text := fmt.Sprintf("You can pick up your order at %s. Thank you!", session.Pizzeria.Address)
		if err := c.messenger.SendText(session.UserID, text); err != nil {
			return "", err
		}
		return models.StateEnd, nil
	}

	cost, _ := DeliveryCost(session.Pizzeria.DistanceKm)
	cart, err := c.api.FetchCart(session.CartRef)
	if err != nil {
		return "", err
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "Order from customer %s\n\n", session.UserID)
	for _, item := range cart.Items {
		fmt.Fprintf(&summary, "%s: %d pcs\n", item.Name, item.Quantity)
	}
	fmt.Fprintf(&summary, "Delivery fee: %d rub\n\nTotal due: %d rub", cost, cart.Total+cost)

	deliverymanID := session.Pizzeria.DeliverymanID
	if err := c.messenger.SendText(deliverymanID, summary.String()); err != nil {
		return "", err
	}
	if session.Coordinates != nil {
		if err := c.messenger.SendLocation(deliverymanID, *session.Coordinates); err != nil {
			return "", err
		}
	}

	userID := session.UserID
	c.followUps.Schedule(userID, func() {
		if err := c.messenger.SendText(userID, msgFollowUp); err != nil {
			log.Printf("Send follow-up to %s failed: %v", userID, err)
		}
	})

	if err := c.messenger.SendText(userID, "The deliveryman got your order. Thank you!"); err != nil {
		return "", err
	}
	return models.StateEnd, nil
}

func (c *Conversation) sendMenu(userID string) error {
	products, err := c.api.FetchProducts()
	if err != nil {
		return err
	}

	choices := make([]Choice, 0, len(products)+1)
	for _, product := range products {
		choices = append(choices, Choice{Label: product.Name, Payload: product.ID})
	}
	choices = append(choices, Choice{Label: "Cart", Payload: payloadCart})

	return c.messenger.SendChoices(userID, "Menu", choices)
}

func (c *Conversation) sendProductDetails(userID string, product *models.Product) error {
	imageURL, err := c.api.FetchImageURL(product.ImageID)
	if err != nil {
		return err
	}

	caption := fmt.Sprintf("%s\n\nPrice: %d rub\n\n%s", product.Name, product.Price, product.Description)

	choices := []Choice{}
	for _, quantity := range []int{1, 5, 10} {
		choices = append(choices, Choice{
			Label:   fmt.Sprintf("%d pcs", quantity),
			Payload: fmt.Sprintf("%s;%d", product.ID, quantity),
		})
	}
	choices = append(choices,
		Choice{Label: "Back to menu", Payload: payloadBack},
		Choice{Label: "Cart", Payload: payloadCart},
	)

	return c.messenger.SendPhoto(userID, imageURL, caption, choices)
}

func (c *Conversation) sendCart(userID, cartRef string) error {
	cart, err := c.api.FetchCart(cartRef)
	if err != nil {
		return err
	}
	return c.renderCart(userID, cart)
}

func (c *Conversation) renderCart(userID string, cart *models.Cart) error {
	if len(cart.Items) == 0 {
		return c.messenger.SendChoices(userID, "Your cart is empty",
			[]Choice{{Label: "Back to menu", Payload: payloadBack}})
	}

	var text strings.Builder
	text.WriteString("Your cart:\n\n")

	choices := make([]Choice, 0, len(cart.Items)+2)
	for _, item := range cart.Items {
		fmt.Fprintf(&text, "%s\n%d rub each\n%d pcs for %d rub\n\n",
			item.Name, item.UnitPrice, item.Quantity, item.LineTotal)
		choices = append(choices, Choice{
			Label:   fmt.Sprintf("Remove %q from cart", item.Name),
			Payload: item.ID,
		})
	}
	fmt.Fprintf(&text, "Total: %d rub", cart.Total)

	choices = append(choices,
		Choice{Label: "Pay", Payload: payloadPay},
		Choice{Label: "Back to menu", Payload: payloadBack},
	)

	return c.messenger.SendChoices(userID, text.String(), choices)
}

func (c *Conversation) sendDeliveryOptions(userID string, nearest *models.NearestPizzeria) error {
	cost, available := DeliveryCost(nearest.DistanceKm)
	pickup := Choice{Label: "Pickup", Payload: payloadPickup}

	// Beyond the delivery range the delivery option is not shown at all.
	if !available {
		text := fmt.Sprintf(
			"Sorry, we don't deliver that far: the nearest pizzeria is %.1f km away from you. Pickup only.",
			nearest.DistanceKm)
		return c.messenger.SendChoices(userID, text, []Choice{pickup})
	}

	choices := []Choice{pickup, {Label: "Delivery", Payload: payloadDelivery}}

	var text string
	switch {
	case nearest.DistanceKm <= 0.5:
		text = fmt.Sprintf(
			"How about picking your pizza up? The nearest pizzeria is only %.0f m away, at %s. Free delivery works too.",
			nearest.DistanceKm*1000, nearest.Address)
	case nearest.DistanceKm <= 5:
		text = fmt.Sprintf(
			"Looks like a scooter ride: you are %.1f km away, delivery costs %d rub. Delivery or pickup?",
			nearest.DistanceKm, cost)
	default:
		text = fmt.Sprintf(
			"Looks like a car ride: you are %.1f km away, delivery costs %d rub. Delivery or pickup?",
			nearest.DistanceKm, cost)
	}

	return c.messenger.SendChoices(userID, text, choices)
}
