package services

import (
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/balancy/pizza-bot/internal/models"
)

func TestDeliveryCostTiers(t *testing.T) {
	cases := []struct {
		distanceKm float64
		cost       int
		ok         bool
	}{
		{0, 0, true},
		{0.5, 0, true},
		{0.501, 100, true},
		{5, 100, true},
		{5.001, 300, true},
		{20, 300, true},
		{20.001, 0, false},
		{100, 0, false},
	}

	for _, tc := range cases {
		cost, ok := DeliveryCost(tc.distanceKm)
		if cost != tc.cost || ok != tc.ok {
			t.Errorf("DeliveryCost(%v) = (%d, %v), want (%d, %v)",
				tc.distanceKm, cost, ok, tc.cost, tc.ok)
		}
	}
}

func TestDistanceKm(t *testing.T) {
	moscow := models.Coordinates{Latitude: 55.7539, Longitude: 37.6208}
	petersburg := models.Coordinates{Latitude: 59.9343, Longitude: 30.3351}

	if d := DistanceKm(moscow, moscow); d != 0 {
		t.Errorf("distance to itself = %v, want 0", d)
	}

	d := DistanceKm(moscow, petersburg)
	if math.Abs(d-634) > 5 {
		t.Errorf("Moscow-Petersburg distance = %v km, want about 634", d)
	}

	if ab, ba := DistanceKm(moscow, petersburg), DistanceKm(petersburg, moscow); ab != ba {
		t.Errorf("distance is not symmetric: %v vs %v", ab, ba)
	}
}

func newPizzeriaBackend(t *testing.T, entriesJSON string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"access_token":"test-token","expires":%d}`, time.Now().Add(time.Hour).Unix())
	})
	mux.HandleFunc("GET /v2/flows/pizzeria/entries", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":%s}`, entriesJSON)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNearestPizzeria(t *testing.T) {
	server := newPizzeriaBackend(t, `[
		{"alias":"north","address":"1 North St","latitude":55.90,"longitude":37.62,"deliveryman_telegram_id":111},
		{"alias":"central","address":"12 Tverskaya St","latitude":55.75,"longitude":37.62,"deliveryman_telegram_id":222},
		{"alias":"south","address":"3 South St","latitude":55.60,"longitude":37.62,"deliveryman_telegram_id":333}
	]`)

	delivery := NewDeliveryService(NewMoltinClient(server.URL, "client", "secret"))

	nearest, err := delivery.NearestPizzeria(models.Coordinates{Latitude: 55.751, Longitude: 37.621})
	if err != nil {
		t.Fatalf("NearestPizzeria failed: %v", err)
	}
	if nearest.Alias != "central" {
		t.Errorf("nearest alias = %q, want central", nearest.Alias)
	}
	if nearest.DistanceKm > 0.5 {
		t.Errorf("nearest distance = %v km, want under 0.5", nearest.DistanceKm)
	}
	if nearest.DeliverymanID != "222" {
		t.Errorf("deliveryman id = %q, want 222", nearest.DeliverymanID)
	}
}

func TestNearestPizzeriaTieBreaksOnAlias(t *testing.T) {
	// Two locations at the same point: the smaller alias must win, in
	// either listing order.
	listings := []string{
		`[{"alias":"zeta","address":"a","latitude":55.75,"longitude":37.62,"deliveryman_telegram_id":1},
		  {"alias":"alpha","address":"b","latitude":55.75,"longitude":37.62,"deliveryman_telegram_id":2}]`,
		`[{"alias":"alpha","address":"b","latitude":55.75,"longitude":37.62,"deliveryman_telegram_id":2},
		  {"alias":"zeta","address":"a","latitude":55.75,"longitude":37.62,"deliveryman_telegram_id":1}]`,
	}

	for _, entries := range listings {
		server := newPizzeriaBackend(t, entries)
		delivery := NewDeliveryService(NewMoltinClient(server.URL, "client", "secret"))

		nearest, err := delivery.NearestPizzeria(models.Coordinates{Latitude: 55.75, Longitude: 37.62})
		if err != nil {
			t.Fatalf("NearestPizzeria failed: %v", err)
		}
		if nearest.Alias != "alpha" {
			t.Errorf("tie broke to %q, want alpha", nearest.Alias)
		}
	}
}

func TestNearestPizzeriaEmptyDirectory(t *testing.T) {
	server := newPizzeriaBackend(t, `[]`)
	delivery := NewDeliveryService(NewMoltinClient(server.URL, "client", "secret"))

	if _, err := delivery.NearestPizzeria(models.Coordinates{}); err == nil {
		t.Fatal("expected an error for an empty pizzeria directory")
	}
}
