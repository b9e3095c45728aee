// Package sos is the escalation core: triggering an SOS, deactivating
// it with the real pin, and the covert duress path. Every transition
// writes its profile mutation & audit log entry *before* any
// notification goes out, so a flaky channel can never roll back a
// safety-critical state change.
package sos

import (
	"github.com/beaconhq/beacon/server/dispatch"
	"github.com/beaconhq/beacon/server/geo"
	"github.com/beaconhq/beacon/server/logger"
	"github.com/beaconhq/beacon/server/models"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidPin is returned when a deactivation pin matches
	// neither of the user's pins. No state is touched in that case.
	ErrInvalidPin = errors.New("invalid pin")

	logg = logger.NewLogger()
)

// Notifier fans an alert out to the user's trusted contacts. The
// returned outcome is observability metadata only - the state machine
// never fails a transition over delivery glitches.
type Notifier interface {
	Alert(user *models.User, contacts []models.Contact, trigger string, coords *geo.Coordinates) dispatch.Outcome
	AllClear(user *models.User, contacts []models.Contact) dispatch.Outcome
	DuressAlert(user *models.User, contacts []models.Contact) dispatch.Outcome
}

// Receipt is what the caller(and so, potentially, a coercer looking
// over the user's shoulder) sees after a deactivation attempt. Its
// shape is identical for real & duress deactivations.
type Receipt struct {
	Status string `json:"status"`
	Duress bool   `json:"duress"`
}

type Service struct {
	notifier Notifier
}

func NewService(notifier Notifier) *Service {
	return &Service{notifier: notifier}
}

// Trigger raises the user's SOS. 'action' tags the audit entry with
// what raised it - a manual trigger or one of the auto_* sources.
// Re-triggering while already active is deliberate: each call is a
// distinct incident that re-logs & re-alerts.
func (service *Service) Trigger(userID uint, coords *geo.Coordinates, action string) error {
	if !models.TriggerActionNameMap[action] {
		return errors.Wrapf(models.ErrValidation, "%q is not a trigger action", action)
	}

	user, err := models.FindUserBy("id", userID)
	if err != nil {
		return err
	}

	profile, err := models.FindOrCreateSafetyProfile(userID)
	if err != nil {
		return err
	}

	if err := profile.SetSosActive(true); err != nil {
		return err
	}

	sosLog := &models.SOSLog{UserID: userID, Action: action}
	if coords != nil {
		sosLog.Latitude = &coords.Latitude
		sosLog.Longitude = &coords.Longitude
	}
	if err := models.CreateSOSLog(sosLog); err != nil {
		return err
	}

	service.notify(userID, func(contacts []models.Contact) dispatch.Outcome {
		return service.notifier.Alert(user, contacts, action, coords)
	})

	return nil
}

// Deactivate evaluates 'pin' against the user's safety profile:
//
//   - real pin: SOS comes down, contacts get the all-clear.
//   - duress pin: the SOS flag is NOT touched, a covert high-priority
//     alert goes to contacts, and the receipt looks exactly like a
//     real deactivation.
//   - anything else: ErrInvalidPin, nothing mutated/logged/sent.
func (service *Service) Deactivate(userID uint, pin string) (*Receipt, error) {
	user, err := models.FindUserBy("id", userID)
	if err != nil {
		return nil, err
	}

	profile, err := models.FindOrCreateSafetyProfile(userID)
	if err != nil {
		return nil, err
	}

	switch profile.CheckPin(pin) {
	case models.PinMatchReal:
		if err := profile.SetSosActive(false); err != nil {
			return nil, err
		}

		err = models.CreateSOSLog(&models.SOSLog{UserID: userID, Action: models.DEACTIVATED_SOS})
		if err != nil {
			return nil, err
		}

		service.notify(userID, func(contacts []models.Contact) dispatch.Outcome {
			return service.notifier.AllClear(user, contacts)
		})

		return &Receipt{Status: "deactivated", Duress: false}, nil

	case models.PinMatchDuress:
		// Leave sos_active exactly as it is - the community alert
		// stays live while the receipt plays along.
		err = models.CreateSOSLog(&models.SOSLog{
			UserID: userID,
			Action: models.DURESS_SOS,
			Notes:  "Duress PIN entered; covert alert sent",
		})
		if err != nil {
			return nil, err
		}

		service.notify(userID, func(contacts []models.Contact) dispatch.Outcome {
			return service.notifier.DuressAlert(user, contacts)
		})

		return &Receipt{Status: "deactivated", Duress: true}, nil
	}

	return nil, ErrInvalidPin
}

// SosActive reports whether the user's SOS flag is currently up
func (service *Service) SosActive(userID uint) (bool, error) {
	profile, err := models.FindOrCreateSafetyProfile(userID)
	if err != nil {
		return false, err
	}

	return profile.SosActive, nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (service *Service) notify(userID uint, send func([]models.Contact) dispatch.Outcome) {
	contacts, err := models.ContactsFor(userID)
	if err != nil {
		logg.Errorf("sos: unable to load contacts for user %v: %v", userID, err)
		return
	}

	outcome := send(contacts)
	if len(outcome.Failures) > 0 {
		logg.Warnf("sos: %v of %v deliveries failed for user %v",
			len(outcome.Failures), len(outcome.Failures)+outcome.Delivered, userID)
	}
}
