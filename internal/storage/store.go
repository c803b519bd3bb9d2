package storage

import (
	"errors"
	"sync"

	"github.com/balancy/pizza-bot/internal/models"
)

// ErrSessionNotFound is returned when no session exists for a user.
var ErrSessionNotFound = errors.New("session not found")

var (
	storeInstance Store
	storeMu       sync.RWMutex
)

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeMu.Lock()
	defer storeMu.Unlock()
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return storeInstance
}

// Store defines the interface for session persistence, keyed by user id.
// Load and save are atomic per user.
type Store interface {
	GetSession(userID string) (*models.Session, error)
	SaveSession(session *models.Session) error
	DeleteSession(userID string) error
}
