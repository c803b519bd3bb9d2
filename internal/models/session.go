package models

import (
	"fmt"

	"gorm.io/gorm"
)

// SessionState is the closed set of conversation states. The zero value
// means no conversation is in progress for the user.
type SessionState string

const (
	StateMenu        SessionState = "menu"
	StateDescription SessionState = "description"
	StateCart        SessionState = "cart"
	StateWaitEmail   SessionState = "wait_email"
	StateCoordinates SessionState = "coordinates"
	StatePayment     SessionState = "payment"
	StateEnd         SessionState = "end"
)

// Coordinates is a (latitude, longitude) pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Session holds one user's conversation state. It is mutated only by the
// conversation service, one event at a time.
type Session struct {
	UserID         string           `json:"user_id"`
	Platform       string           `json:"platform"`
	State          SessionState     `json:"state"`
	CartRef        string           `json:"cart_ref"`
	Email          string           `json:"email,omitempty"`
	Pizzeria       *NearestPizzeria `json:"pizzeria,omitempty"`
	Coordinates    *Coordinates     `json:"coordinates,omitempty"`
	DeliveryChoice string           `json:"delivery_choice,omitempty"`
	OrderTag       string           `json:"order_tag,omitempty"`
}

// NewSession creates a session for a user with the deterministic cart
// reference derived from platform and user id.
func NewSession(platform, userID string) *Session {
	return &Session{
		UserID:   userID,
		Platform: platform,
		CartRef:  fmt.Sprintf("%s_pizza_%s", platform, userID),
	}
}

// SessionRecord is the database row for a persisted session. The session
// itself is stored as a JSON snapshot so the schema does not chase the
// session shape.
type SessionRecord struct {
	gorm.Model
	UserID   string `gorm:"uniqueIndex"`
	State    string
	Snapshot string
}
