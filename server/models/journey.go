package models

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Journey statuses. A journey starts out 'active'; the other three
// are terminal.
const (
	ACTIVE_JOURNEY    = "active"
	ARRIVED_JOURNEY   = "arrived"
	EXPIRED_JOURNEY   = "expired"
	CANCELLED_JOURNEY = "cancelled"
)

var JourneyStatusNameMap = map[string]bool{
	ACTIVE_JOURNEY:    true,
	ARRIVED_JOURNEY:   true,
	EXPIRED_JOURNEY:   true,
	CANCELLED_JOURNEY: true,
}

// Journey is one safe-walk session. Invariant: at most one 'active'
// journey per user - CreateJourney cancels any prior active one in
// the same transaction.
type Journey struct {
	BaseModel
	UserID      uint      `json:"user_id" gorm:"not null"`
	Destination string    `json:"destination" gorm:"not null"`
	EtaMinutes  int       `json:"eta_minutes" gorm:"not null"`
	StartedAt   time.Time `json:"started_at"`
	Status      string    `json:"status" gorm:"default:active"`
}

// SetStatus moves an active journey into one of the terminal
// statuses. Terminal journeys are final - the guarded update means a
// concurrent transition can't overwrite one terminal status with
// another.
func (journey *Journey) SetStatus(status string) error {
	if !JourneyStatusNameMap[status] || status == ACTIVE_JOURNEY {
		return errors.Wrapf(ErrValidation, "cannot transition journey to %q", status)
	}

	res := db.Model(&Journey{}).
		Where("id = ? AND status = ?", journey.ID, ACTIVE_JOURNEY).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	journey.Status = status
	return nil
}

// CreateJourney starts a new active journey for the user, cancelling
// any prior active one atomically.
func CreateJourney(userID uint, destination string, etaMinutes int, startedAt time.Time) (*Journey, error) {
	journey := Journey{
		UserID:      userID,
		Destination: destination,
		EtaMinutes:  etaMinutes,
		StartedAt:   startedAt,
		Status:      ACTIVE_JOURNEY,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&Journey{}).
			Where("user_id = ? AND status = ?", userID, ACTIVE_JOURNEY).
			Update("status", CANCELLED_JOURNEY).Error
		if err != nil {
			return err
		}

		return tx.Create(&journey).Error
	})
	if err != nil {
		return nil, err
	}

	return &journey, nil
}

// ActiveJourney returns the user's active journey(if any)
func ActiveJourney(userID interface{}) (*Journey, error) {
	journey := Journey{}

	err := db.Where("user_id = ? AND status = ?", userID, ACTIVE_JOURNEY).
		Last(&journey).Error
	if err != nil {
		return nil, err
	}

	return &journey, nil
}

// CancelActiveJourneys marks all of the user's active journeys as
// cancelled. It's a no-op when there's nothing active.
func CancelActiveJourneys(userID interface{}) error {
	return db.Model(&Journey{}).
		Where("user_id = ? AND status = ?", userID, ACTIVE_JOURNEY).
		Update("status", CANCELLED_JOURNEY).Error
}

func FindJourney(id interface{}) (*Journey, error) {
	journey := Journey{}
	err := db.First(&journey, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &journey, nil
}
