// Package journey runs the safe-walk timer. There is no background
// scheduler - expiry is detected lazily on the next poll after the
// deadline, at which point the walk escalates to an automatic SOS.
package journey

import (
	"errors"
	"strings"
	"time"

	"github.com/beaconhq/beacon/server/geo"
	"github.com/beaconhq/beacon/server/logger"
	"github.com/beaconhq/beacon/server/models"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

var logg = logger.NewLogger()

// PanicTrigger is the slice of the sos state machine the tracker
// needs for auto-escalation.
type PanicTrigger interface {
	Trigger(userID uint, coords *geo.Coordinates, action string) error
}

// Status is the poll result for a user's current walk
type Status struct {
	Active           bool   `json:"active"`
	Expired          bool   `json:"expired,omitempty"`
	Destination      string `json:"destination,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds,omitempty"`
}

type Service struct {
	panicTrigger PanicTrigger
	nowFunc      func() time.Time
}

func NewService(panicTrigger PanicTrigger) *Service {
	return &Service{panicTrigger: panicTrigger, nowFunc: time.Now}
}

// Start begins a new safe walk, cancelling any walk already in
// progress for the user.
func (service *Service) Start(userID uint, destination string, etaMinutes int) (*models.Journey, error) {
	destination = strings.TrimSpace(destination)

	if destination == "" {
		return nil, pkgerrors.Wrap(models.ErrValidation, "destination is required")
	}

	if etaMinutes <= 0 {
		return nil, pkgerrors.Wrap(models.ErrValidation, "eta_minutes must be a positive number")
	}

	return models.CreateJourney(userID, destination, etaMinutes, service.nowFunc())
}

// Arrive marks the user's active walk as safely completed. Returns
// gorm.ErrRecordNotFound when there's nothing active.
func (service *Service) Arrive(userID uint) error {
	journey, err := models.ActiveJourney(userID)
	if err != nil {
		return err
	}

	return journey.SetStatus(models.ARRIVED_JOURNEY)
}

// Cancel calls off the user's active walk. Cancelling with nothing
// active is fine - it's a no-op.
func (service *Service) Cancel(userID uint) error {
	return models.CancelActiveJourneys(userID)
}

// Poll reports how the user's walk is doing. When the ETA has lapsed
// without an arrival, the walk is marked expired & an auto_journey
// SOS fires before the expired status is returned.
func (service *Service) Poll(userID uint) (*Status, error) {
	journey, err := models.ActiveJourney(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Status{Active: false}, nil
	}
	if err != nil {
		return nil, err
	}

	elapsed := service.nowFunc().Sub(journey.StartedAt).Seconds()
	remaining := float64(journey.EtaMinutes*60) - elapsed

	if remaining > 0 {
		return &Status{
			Active:           true,
			Destination:      journey.Destination,
			RemainingSeconds: int(remaining),
		}, nil
	}

	// Guarded transition: if a concurrent poll already expired this
	// walk, skip the duplicate escalation.
	err = journey.SetStatus(models.EXPIRED_JOURNEY)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Status{Active: true, Expired: true, Destination: journey.Destination}, nil
	}
	if err != nil {
		return nil, err
	}

	logg.Warnf("journey: walk to %q expired for user %v - escalating to SOS", journey.Destination, userID)

	err = service.panicTrigger.Trigger(userID, nil, models.AUTO_JOURNEY_SOS)
	if err != nil {
		logg.Errorf("journey: auto SOS for user %v failed: %v", userID, err)
	}

	return &Status{Active: true, Expired: true, Destination: journey.Destination}, nil
}
