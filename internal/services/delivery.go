package services

import (
	"fmt"
	"math"

	"github.com/balancy/pizza-bot/internal/models"
)

const earthRadiusKm = 6371.0

// MaxDeliveryDistanceKm is the farthest we deliver; beyond it only pickup
// is offered.
const MaxDeliveryDistanceKm = 20.0

// DistanceKm returns the great-circle (haversine) distance between two
// points in kilometers.
func DistanceKm(a, b models.Coordinates) float64 {
	latA := a.Latitude * math.Pi / 180
	latB := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// DeliveryCost returns the delivery cost for a distance. ok is false beyond
// MaxDeliveryDistanceKm, where only pickup is available.
func DeliveryCost(distanceKm float64) (cost int, ok bool) {
	switch {
	case distanceKm <= 0.5:
		return 0, true
	case distanceKm <= 5:
		return 100, true
	case distanceKm <= MaxDeliveryDistanceKm:
		return 300, true
	default:
		return 0, false
	}
}

// DeliveryService picks the fulfillment location nearest to a customer.
type DeliveryService struct {
	api *MoltinClient
}

// NewDeliveryService creates a nearest-location resolver over the backend's
// pizzeria directory.
func NewDeliveryService(api *MoltinClient) *DeliveryService {
	return &DeliveryService{api: api}
}

// NearestPizzeria fetches the full directory and returns the minimum
// distance location. The directory is small (tens of entries), a linear
// scan per call is fine. On an exact distance tie the lexicographically
// smaller alias wins, so repeated calls are reproducible.
func (d *DeliveryService) NearestPizzeria(coords models.Coordinates) (*models.NearestPizzeria, error) {
	pizzerias, err := d.api.FetchPizzerias()
	if err != nil {
		return nil, err
	}
	if len(pizzerias) == 0 {
		return nil, fmt.Errorf("pizzeria directory is empty")
	}

	var nearest *models.NearestPizzeria
	for _, pizzeria := range pizzerias {
		distance := DistanceKm(coords, models.Coordinates{
			Latitude:  pizzeria.Latitude,
			Longitude: pizzeria.Longitude,
		})

		closer := nearest == nil ||
			distance < nearest.DistanceKm ||
			(distance == nearest.DistanceKm && pizzeria.Alias < nearest.Alias)
		if closer {
			nearest = &models.NearestPizzeria{Pizzeria: pizzeria, DistanceKm: distance}
		}
	}

	return nearest, nil
}
