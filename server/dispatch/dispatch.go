// Package dispatch fans safety alerts out to a user's trusted
// contacts over the email & sms sinks. Delivery is best-effort:
// per-contact failures are collected in the returned Outcome and
// never abort the batch or bubble up to the caller.
package dispatch

import (
	"fmt"
	"time"

	"github.com/beaconhq/beacon/server/geo"
	"github.com/beaconhq/beacon/server/logger"
	"github.com/beaconhq/beacon/server/models"
)

const DefaultContactTimeout = 5 * time.Second

var logg = logger.NewLogger()

type EmailSender interface {
	SendEmail(subject, body string, recipients []string) error
}

type SMSSender interface {
	SendMessage(to, msg string) error
}

// Failure records one contact channel that couldn't be reached
type Failure struct {
	Contact string `json:"contact"`
	Channel string `json:"channel"`
	Error   string `json:"error"`
}

// Outcome summarizes one dispatch batch
type Outcome struct {
	Delivered int       `json:"delivered"`
	Failures  []Failure `json:"failures,omitempty"`
}

type Dispatcher struct {
	email          EmailSender
	sms            SMSSender
	contactTimeout time.Duration
}

func NewDispatcher(email EmailSender, sms SMSSender) *Dispatcher {
	return &Dispatcher{
		email:          email,
		sms:            sms,
		contactTimeout: DefaultContactTimeout,
	}
}

// Alert sends the standard(visible) SOS alert to every trusted
// contact, with a map link when a location is known.
func (d *Dispatcher) Alert(user *models.User, contacts []models.Contact, trigger string, coords *geo.Coordinates) Outcome {
	if len(contacts) == 0 {
		return Outcome{}
	}

	subject := "SOS Alert"
	body := fmt.Sprintf("%v is in an emergency. Location: %v", user.FullName(), mapLink(coords))
	smsBody := fmt.Sprintf("SOS ALERT [%v]: %v needs help. %v", trigger, user.FullName(), mapLink(coords))

	return d.send(subject, body, smsBody, contacts)
}

// AllClear tells every trusted contact the user deactivated their
// alert with their real pin.
func (d *Dispatcher) AllClear(user *models.User, contacts []models.Contact) Outcome {
	if len(contacts) == 0 {
		return Outcome{}
	}

	subject := "SOS Deactivated"
	body := fmt.Sprintf("%v is now safe.", user.FullName())

	return d.send(subject, body, body, contacts)
}

// DuressAlert is the covert, high-priority variant sent when the
// duress pin is entered. Callers pick this variant explicitly - the
// dispatcher itself never inspects trigger semantics.
func (d *Dispatcher) DuressAlert(user *models.User, contacts []models.Contact) Outcome {
	if len(contacts) == 0 {
		return Outcome{}
	}

	subject := "HIGH PRIORITY SILENT ALERT - DURESS PIN ENTERED"
	body := fmt.Sprintf(
		"URGENT: %v entered their DURESS PIN. They may be forced to deactivate. Send immediate help!",
		user.FullName())

	return d.send(subject, body, body, contacts)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// send emails the whole recipient list at once, then walks the
// per-contact sms delivery sequence. Each sms send is bounded by the
// contact timeout so one dead channel can't stall the batch.
func (d *Dispatcher) send(subject, body, smsBody string, contacts []models.Contact) Outcome {
	outcome := Outcome{}

	recipients := []string{}
	for _, contact := range contacts {
		recipients = append(recipients, contact.Email)
	}

	if err := d.email.SendEmail(subject, body, recipients); err != nil {
		logg.Errorf("dispatch: email send failed: %v", err)
		outcome.Failures = append(outcome.Failures,
			Failure{Contact: "all", Channel: "email", Error: err.Error()})
	} else {
		outcome.Delivered += len(recipients)
	}

	for _, contact := range contacts {
		if err := d.sendSMSWithTimeout(contact.PhoneNumber, smsBody); err != nil {
			logg.Errorf("dispatch: sms to %v(%v) failed: %v", contact.Name, contact.PhoneNumber, err)
			outcome.Failures = append(outcome.Failures,
				Failure{Contact: contact.Name, Channel: "sms", Error: err.Error()})
			continue
		}

		logg.Infof("dispatch: sms delivered to %v", contact.Name)
		outcome.Delivered++
	}

	return outcome
}

func (d *Dispatcher) sendSMSWithTimeout(to, msg string) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- d.sms.SendMessage(to, msg)
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(d.contactTimeout):
		return fmt.Errorf("sms to %v timed out after %v", to, d.contactTimeout)
	}
}

func mapLink(coords *geo.Coordinates) string {
	lat, lon := "Unknown", "Unknown"
	if coords != nil {
		lat = fmt.Sprintf("%v", coords.Latitude)
		lon = fmt.Sprintf("%v", coords.Longitude)
	}

	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%v,%v", lat, lon)
}
