package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func authStub(mux *http.ServeMux) {
	mux.HandleFunc("POST /oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"access_token":"test-token","expires":%d}`, time.Now().Add(time.Hour).Unix())
	})
}

func TestFetchProductNotFound(t *testing.T) {
	mux := http.NewServeMux()
	authStub(mux)
	mux.HandleFunc("GET /v2/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "{}", http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api := NewMoltinClient(server.URL, "client", "secret")
	if _, err := api.FetchProduct("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateCustomerConflict(t *testing.T) {
	mux := http.NewServeMux()
	authStub(mux)
	mux.HandleFunc("POST /v2/customers", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "{}", http.StatusConflict)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api := NewMoltinClient(server.URL, "client", "secret")
	if _, err := api.CreateCustomer("dup@example.com"); !errors.Is(err, ErrEntityExists) {
		t.Fatalf("expected ErrEntityExists, got %v", err)
	}
}

func TestFetchCartDecodesTotals(t *testing.T) {
	mux := http.NewServeMux()
	authStub(mux)
	mux.HandleFunc("GET /v2/carts/{ref}/items", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization header = %q", got)
		}
		fmt.Fprint(w, `{
			"data": [
				{"id":"line-1","product_id":"prod-1","name":"Margherita","quantity":5,
				 "meta":{"display_price":{"without_tax":{"unit":{"amount":100},"value":{"amount":500}}}}},
				{"id":"line-2","product_id":"prod-2","name":"Pepperoni","quantity":1,
				 "meta":{"display_price":{"without_tax":{"unit":{"amount":150},"value":{"amount":150}}}}}
			],
			"meta":{"display_price":{"without_tax":{"amount":650}}}
		}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api := NewMoltinClient(server.URL, "client", "secret")
	cart, err := api.FetchCart("tg_pizza_42")
	if err != nil {
		t.Fatalf("FetchCart failed: %v", err)
	}

	if cart.Total != 650 {
		t.Errorf("cart total = %d, want 650", cart.Total)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(cart.Items))
	}
	first := cart.Items[0]
	if first.ID != "line-1" || first.Name != "Margherita" || first.Quantity != 5 ||
		first.UnitPrice != 100 || first.LineTotal != 500 {
		t.Errorf("unexpected first line: %+v", first)
	}
}

func TestAddToCartRejectsNonPositiveQuantity(t *testing.T) {
	api := NewMoltinClient("http://unused", "client", "secret")

	for _, quantity := range []int{0, -3} {
		if _, err := api.AddToCart("ref", "prod-1", quantity); err == nil {
			t.Errorf("AddToCart with quantity %d should fail before any network call", quantity)
		}
	}
}

func TestAddToCartSendsCartItem(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	authStub(mux)
	mux.HandleFunc("POST /v2/carts/{ref}/items", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"data":[],"meta":{"display_price":{"without_tax":{"amount":0}}}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api := NewMoltinClient(server.URL, "client", "secret")
	if _, err := api.AddToCart("tg_pizza_42", "prod-1", 5); err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}

	data, _ := got["data"].(map[string]any)
	if data["id"] != "prod-1" || data["type"] != "cart_item" || data["quantity"] != float64(5) {
		t.Errorf("unexpected request data: %v", data)
	}
}

func TestFetchPizzeriasNumericDeliverymanID(t *testing.T) {
	mux := http.NewServeMux()
	authStub(mux)
	mux.HandleFunc("GET /v2/flows/pizzeria/entries", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"alias":"central","address":"12 Tverskaya St","latitude":55.75,"longitude":37.62,"deliveryman_telegram_id":555001}
		]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api := NewMoltinClient(server.URL, "client", "secret")
	pizzerias, err := api.FetchPizzerias()
	if err != nil {
		t.Fatalf("FetchPizzerias failed: %v", err)
	}
	if len(pizzerias) != 1 {
		t.Fatalf("got %d pizzerias, want 1", len(pizzerias))
	}
	if pizzerias[0].DeliverymanID != "555001" {
		t.Errorf("deliveryman id = %q, want the numeric id as a string", pizzerias[0].DeliverymanID)
	}
}

func TestUnexpectedStatusIsAPIError(t *testing.T) {
	mux := http.NewServeMux()
	authStub(mux)
	mux.HandleFunc("GET /v2/products", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	api := NewMoltinClient(server.URL, "client", "secret")
	_, err := api.FetchProducts()

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", apiErr.Status)
	}
}
