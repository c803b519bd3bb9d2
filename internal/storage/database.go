package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/balancy/pizza-bot/internal/models"
)

// DatabaseStore persists sessions in PostgreSQL via GORM. Each session is
// one row keyed by user id with a JSON snapshot of the session.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a database-backed session store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (d *DatabaseStore) GetSession(userID string) (*models.Session, error) {
	var record models.SessionRecord
	err := d.db.Where("user_id = ?", userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session for %s: %w", userID, err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(record.Snapshot), &session); err != nil {
		return nil, fmt.Errorf("decode session snapshot for %s: %w", userID, err)
	}
	return &session, nil
}

func (d *DatabaseStore) SaveSession(session *models.Session) error {
	snapshot, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session for %s: %w", session.UserID, err)
	}

	var record models.SessionRecord
	err = d.db.Where("user_id = ?", session.UserID).First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = models.SessionRecord{
			UserID:   session.UserID,
			State:    string(session.State),
			Snapshot: string(snapshot),
		}
		return d.db.Create(&record).Error
	case err != nil:
		return fmt.Errorf("load session row for %s: %w", session.UserID, err)
	}

	record.State = string(session.State)
	record.Snapshot = string(snapshot)
	return d.db.Save(&record).Error
}

func (d *DatabaseStore) DeleteSession(userID string) error {
	return d.db.Where("user_id = ?", userID).Delete(&models.SessionRecord{}).Error
}
