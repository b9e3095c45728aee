package models

import (
	"crypto/subtle"

	"github.com/pkg/errors"
)

const (
	DEFAULT_REAL_PIN   = "1234"
	DEFAULT_DURESS_PIN = "9999"
	MIN_PIN_LENGTH     = 4
)

// PinMatch is the outcome of checking a candidate pin against a
// user's safety profile.
type PinMatch int

const (
	PinMatchNone PinMatch = iota
	PinMatchReal
	PinMatchDuress
)

// SafetyProfile holds a user's safety pins & current SOS flag.
// 'SosActive' is the single source of truth for whether the user's
// SOS is live - it's only ever flipped by the sos state machine.
type SafetyProfile struct {
	BaseModel
	UserID    uint   `json:"user_id" gorm:"not null;unique"`
	RealPin   string `json:"real_pin" gorm:"not null;default:1234"`
	DuressPin string `json:"duress_pin" gorm:"not null;default:9999"`
	SosActive bool   `json:"sos_active" gorm:"default:false"`
}

// CheckPin compares 'candidate' against both stored pins in constant
// time. The real pin wins; the two pins can never be equal, so at
// most one of them matches.
func (profile *SafetyProfile) CheckPin(candidate string) PinMatch {
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(profile.RealPin)) == 1 {
		return PinMatchReal
	}

	if subtle.ConstantTimeCompare([]byte(candidate), []byte(profile.DuressPin)) == 1 {
		return PinMatchDuress
	}

	return PinMatchNone
}

// SetSosActive flips the persisted SOS flag. Only the sos package
// should call this.
func (profile *SafetyProfile) SetSosActive(active bool) error {
	err := db.Model(&SafetyProfile{}).Where("id = ?", profile.ID).
		Update("sos_active", active).Error
	if err != nil {
		return err
	}

	profile.SosActive = active
	return nil
}

// SetPins validates & persists both pins atomically.
func (profile *SafetyProfile) SetPins(realPin, duressPin string) error {
	if err := ValidatePins(realPin, duressPin); err != nil {
		return err
	}

	err := db.Model(&SafetyProfile{}).Where("id = ?", profile.ID).
		Updates(map[string]interface{}{"real_pin": realPin, "duress_pin": duressPin}).Error
	if err != nil {
		return err
	}

	profile.RealPin = realPin
	profile.DuressPin = duressPin
	return nil
}

// ValidatePins enforces the pin rules: both present, digits only,
// at least MIN_PIN_LENGTH long & different from each other.
func ValidatePins(realPin, duressPin string) error {
	if realPin == "" || duressPin == "" {
		return errors.Wrap(ErrValidation, "both pins are required")
	}

	if !isDigits(realPin) || !isDigits(duressPin) {
		return errors.Wrap(ErrValidation, "pins must contain only numbers")
	}

	if len(realPin) < MIN_PIN_LENGTH || len(duressPin) < MIN_PIN_LENGTH {
		return errors.Wrapf(ErrValidation, "pins must be at least %v digits", MIN_PIN_LENGTH)
	}

	if realPin == duressPin {
		return errors.Wrap(ErrValidation, "real pin and duress pin must be different")
	}

	return nil
}

// FindOrCreateSafetyProfile returns the user's safety profile,
// creating one with the default pins on first access.
func FindOrCreateSafetyProfile(userID uint) (*SafetyProfile, error) {
	profile := SafetyProfile{}

	err := db.Where(SafetyProfile{UserID: userID}).
		Attrs(SafetyProfile{RealPin: DEFAULT_REAL_PIN, DuressPin: DEFAULT_DURESS_PIN}).
		FirstOrCreate(&profile).Error
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func isDigits(value string) bool {
	for _, char := range value {
		if char < '0' || char > '9' {
			return false
		}
	}

	return len(value) > 0
}
