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

// MoltinClient talks to the e-commerce backend: catalog, carts, customers
// and custom flow entries. Catalog and file reads use the implicit token;
// mutations use the client-credentials token. Failed calls are never
// retried here; a retry is always a new user event.
type MoltinClient struct {
	apiRoot     string
	httpClient  *http.Client
	credentials *AuthToken
	implicit    *AuthToken
}

// NewMoltinClient creates a backend client with both token caches.
func NewMoltinClient(apiRoot, clientID, clientSecret string) *MoltinClient {
	authURL := apiRoot + "/oauth/access_token"

	return &MoltinClient{
		apiRoot:     apiRoot,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		credentials: NewAuthToken(authURL, clientID, clientSecret),
		implicit:    NewAuthToken(authURL, clientID, ""),
	}
}

func (m *MoltinClient) do(method, path string, auth *AuthToken, payload, out any) error {
	token, err := auth.Token()
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, m.apiRoot+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrEntityExists
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{URL: m.apiRoot + path, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

// Wire shapes of the backend's v2 API.

type productResource struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Meta        struct {
		DisplayPrice struct {
			WithoutTax struct {
				Amount int `json:"amount"`
			} `json:"without_tax"`
		} `json:"display_price"`
	} `json:"meta"`
	Relationships struct {
		MainImage struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"main_image"`
	} `json:"relationships"`
}

func (p productResource) toProduct() models.Product {
	return models.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Meta.DisplayPrice.WithoutTax.Amount,
		ImageID:     p.Relationships.MainImage.Data.ID,
	}
}

type cartItemResource struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Meta      struct {
		DisplayPrice struct {
			WithoutTax struct {
				Unit struct {
					Amount int `json:"amount"`
				} `json:"unit"`
				Value struct {
					Amount int `json:"amount"`
				} `json:"value"`
			} `json:"without_tax"`
		} `json:"display_price"`
	} `json:"meta"`
}

type cartResponse struct {
	Data []cartItemResource `json:"data"`
	Meta struct {
		DisplayPrice struct {
			WithoutTax struct {
				Amount int `json:"amount"`
			} `json:"without_tax"`
		} `json:"display_price"`
	} `json:"meta"`
}

func (c cartResponse) toCart() *models.Cart {
	cart := &models.Cart{Total: c.Meta.DisplayPrice.WithoutTax.Amount}
	for _, item := range c.Data {
		price := item.Meta.DisplayPrice.WithoutTax
		cart.Items = append(cart.Items, models.CartItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: price.Unit.Amount,
			LineTotal: price.Value.Amount,
		})
	}
	return cart
}

// FetchProducts lists the whole catalog.
func (m *MoltinClient) FetchProducts() ([]models.Product, error) {
	var resp struct {
		Data []productResource `json:"data"`
	}
	if err := m.do(http.MethodGet, "/v2/products", m.implicit, nil, &resp); err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(resp.Data))
	for _, resource := range resp.Data {
		products = append(products, resource.toProduct())
	}
	return products, nil
}

// FetchProduct loads one product's details. Returns ErrNotFound for an
// unknown id.
func (m *MoltinClient) FetchProduct(productID string) (*models.Product, error) {
	var resp struct {
		Data productResource `json:"data"`
	}
	if err := m.do(http.MethodGet, "/v2/products/"+productID, m.implicit, nil, &resp); err != nil {
		return nil, err
	}

	product := resp.Data.toProduct()
	return &product, nil
}

// FetchImageURL resolves a file id to its public URL.
func (m *MoltinClient) FetchImageURL(imageID string) (string, error) {
	var resp struct {
		Data struct {
			Link struct {
				Href string `json:"href"`
			} `json:"link"`
		} `json:"data"`
	}
	if err := m.do(http.MethodGet, "/v2/files/"+imageID, m.implicit, nil, &resp); err != nil {
		return "", err
	}
	return resp.Data.Link.Href, nil
}

// FetchCart reads a cart with its computed totals.
func (m *MoltinClient) FetchCart(cartRef string) (*models.Cart, error) {
	var resp cartResponse
	if err := m.do(http.MethodGet, "/v2/carts/"+cartRef+"/items", m.credentials, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toCart(), nil
}

// AddToCart adds quantity units of a product and returns the updated cart.
// Quantity must be positive.
func (m *MoltinClient) AddToCart(cartRef, productID string, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	payload := map[string]any{
		"data": map[string]any{
			"id":       productID,
			"type":     "cart_item",
			"quantity": quantity,
		},
	}

	var resp cartResponse
	if err := m.do(http.MethodPost, "/v2/carts/"+cartRef+"/items", m.credentials, payload, &resp); err != nil {
		return nil, err
	}
	return resp.toCart(), nil
}

// RemoveCartItem deletes one cart line and returns the updated cart.
// Returns ErrNotFound for a line that is no longer in the cart.
func (m *MoltinClient) RemoveCartItem(cartRef, itemID string) (*models.Cart, error) {
	var resp cartResponse
	if err := m.do(http.MethodDelete, "/v2/carts/"+cartRef+"/items/"+itemID, m.credentials, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toCart(), nil
}

// CreateCustomer registers a customer by email. Returns ErrEntityExists
// when the email is already registered.
func (m *MoltinClient) CreateCustomer(email string) (*models.Customer, error) {
	payload := map[string]any{
		"data": map[string]any{
			"type":  "customer",
			"name":  strings.SplitN(email, "@", 2)[0],
			"email": email,
		},
	}

	var resp struct {
		Data struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"data"`
	}
	if err := m.do(http.MethodPost, "/v2/customers", m.credentials, payload, &resp); err != nil {
		return nil, err
	}

	return &models.Customer{ID: resp.Data.ID, Email: resp.Data.Email}, nil
}

// CreateEntry stores one record in a custom flow.
func (m *MoltinClient) CreateEntry(flowSlug string, fields map[string]any) error {
	data := map[string]any{"type": "entry"}
	for key, value := range fields {
		data[key] = value
	}

	return m.do(http.MethodPost, "/v2/flows/"+flowSlug+"/entries", m.credentials, map[string]any{"data": data}, nil)
}

type pizzeriaEntry struct {
	Alias         string      `json:"alias"`
	Address       string      `json:"address"`
	Latitude      float64     `json:"latitude"`
	Longitude     float64     `json:"longitude"`
	DeliverymanID json.Number `json:"deliveryman_telegram_id"`
}

// FetchPizzerias lists the fulfillment-location directory from the
// "pizzeria" flow.
func (m *MoltinClient) FetchPizzerias() ([]models.Pizzeria, error) {
	var resp struct {
		Data []pizzeriaEntry `json:"data"`
	}
	if err := m.do(http.MethodGet, "/v2/flows/pizzeria/entries", m.implicit, nil, &resp); err != nil {
		return nil, err
	}

	pizzerias := make([]models.Pizzeria, 0, len(resp.Data))
	for _, entry := range resp.Data {
		pizzerias = append(pizzerias, models.Pizzeria{
			Alias:         entry.Alias,
			Address:       entry.Address,
			Latitude:      entry.Latitude,
			Longitude:     entry.Longitude,
			DeliverymanID: entry.DeliverymanID.String(),
		})
	}
	return pizzerias, nil
}
