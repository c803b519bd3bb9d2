package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/balancy/pizza-bot/internal/models"
)

// Geocoder resolves free-text addresses to coordinates via a Yandex-style
// geocoding API.
type Geocoder struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGeocoder creates a geocoding client.
func NewGeocoder(baseURL, apiKey string) *Geocoder {
	return &Geocoder{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Resolve returns the most relevant match for an address, or nil when the
// provider finds nothing. An empty result is expected, not an error; only
// transport and provider failures return one.
func (g *Geocoder) Resolve(address string) (*models.Coordinates, error) {
	params := url.Values{
		"geocode": {address},
		"apikey":  {g.apiKey},
		"format":  {"json"},
	}

	resp, err := g.httpClient.Get(g.baseURL + "?" + params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{URL: g.baseURL, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var payload struct {
		Response struct {
			GeoObjectCollection struct {
				FeatureMember []struct {
					GeoObject struct {
						Point struct {
							Pos string `json:"pos"`
						} `json:"Point"`
					} `json:"GeoObject"`
				} `json:"featureMember"`
			} `json:"GeoObjectCollection"`
		} `json:"response"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode geocoder response: %w", err)
	}

	places := payload.Response.GeoObjectCollection.FeatureMember
	if len(places) == 0 {
		return nil, nil
	}

	// The point comes as a "lon lat" string.
	fields := strings.Fields(places[0].GeoObject.Point.Pos)
	if len(fields) != 2 {
		return nil, fmt.Errorf("malformed geocoder point %q", places[0].GeoObject.Point.Pos)
	}

	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude: %w", err)
	}

	return &models.Coordinates{Latitude: lat, Longitude: lon}, nil
}
