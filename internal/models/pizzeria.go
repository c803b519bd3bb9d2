package models

// Pizzeria is a fulfillment location from the backend's "pizzeria" flow.
// DeliverymanID is the chat contact that receives order handoffs.
type Pizzeria struct {
	Alias         string  `json:"alias"`
	Address       string  `json:"address"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	DeliverymanID string  `json:"deliveryman_id"`
}

// NearestPizzeria is the pizzeria closest to a customer, with the computed
// great-circle distance in kilometers.
type NearestPizzeria struct {
	Pizzeria
	DistanceKm float64 `json:"distance_km"`
}
