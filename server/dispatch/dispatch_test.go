package dispatch

import (
	"errors"
	"strings"
	"testing"

	"github.com/beaconhq/beacon/server/geo"
	"github.com/beaconhq/beacon/server/models"
	"github.com/stretchr/testify/assert"
)

type fakeEmailSender struct {
	subjects   []string
	bodies     []string
	recipients [][]string
	err        error
}

func (f *fakeEmailSender) SendEmail(subject, body string, recipients []string) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	f.recipients = append(f.recipients, recipients)
	return nil
}

type fakeSMSSender struct {
	sent     []string
	failFor  string
	messages []string
}

func (f *fakeSMSSender) SendMessage(to, msg string) error {
	if to == f.failFor {
		return errors.New("unreachable")
	}
	f.sent = append(f.sent, to)
	f.messages = append(f.messages, msg)
	return nil
}

func testUserAndContacts() (*models.User, []models.Contact) {
	user := &models.User{FirstName: "jessica", LastName: "pearson"}
	contacts := []models.Contact{
		{Name: "harvey", Email: "harvey@firm.com", PhoneNumber: "+12345678900"},
		{Name: "louis", Email: "louis@firm.com", PhoneNumber: "+12345678901"},
	}
	return user, contacts
}

func TestAlert(t *testing.T) {
	user, contacts := testUserAndContacts()

	t.Run("includes map link when location is known", func(t *testing.T) {
		email := &fakeEmailSender{}
		sms := &fakeSMSSender{}
		dispatcher := NewDispatcher(email, sms)

		outcome := dispatcher.Alert(user, contacts, models.TRIGGERED_SOS, &geo.Coordinates{Latitude: 43.65, Longitude: -79.38})

		assert.Empty(t, outcome.Failures)
		assert.Equal(t, 4, outcome.Delivered, "2 emails + 2 sms")
		assert.Equal(t, "SOS Alert", email.subjects[0])
		assert.Contains(t, email.bodies[0], "query=43.65,-79.38")
		assert.Equal(t, []string{"harvey@firm.com", "louis@firm.com"}, email.recipients[0])
		assert.Equal(t, []string{"+12345678900", "+12345678901"}, sms.sent)
	})

	t.Run("uses Unknown placeholder without location", func(t *testing.T) {
		email := &fakeEmailSender{}
		dispatcher := NewDispatcher(email, &fakeSMSSender{})

		dispatcher.Alert(user, contacts, models.AUTO_JOURNEY_SOS, nil)

		assert.Contains(t, email.bodies[0], "query=Unknown,Unknown")
	})

	t.Run("empty contact list is a no-op", func(t *testing.T) {
		email := &fakeEmailSender{}
		sms := &fakeSMSSender{}
		dispatcher := NewDispatcher(email, sms)

		outcome := dispatcher.Alert(user, nil, models.TRIGGERED_SOS, nil)

		assert.Equal(t, Outcome{}, outcome)
		assert.Empty(t, email.subjects)
		assert.Empty(t, sms.sent)
	})

	t.Run("collects per-contact failures without aborting the batch", func(t *testing.T) {
		sms := &fakeSMSSender{failFor: "+12345678900"}
		dispatcher := NewDispatcher(&fakeEmailSender{}, sms)

		outcome := dispatcher.Alert(user, contacts, models.TRIGGERED_SOS, nil)

		assert.Len(t, outcome.Failures, 1)
		assert.Equal(t, "harvey", outcome.Failures[0].Contact)
		assert.Equal(t, "sms", outcome.Failures[0].Channel)
		assert.Equal(t, []string{"+12345678901"}, sms.sent, "remaining contacts still get the sms")
	})

	t.Run("email sink failure is reported, not raised", func(t *testing.T) {
		email := &fakeEmailSender{err: errors.New("smtp down")}
		dispatcher := NewDispatcher(email, &fakeSMSSender{})

		outcome := dispatcher.Alert(user, contacts, models.TRIGGERED_SOS, nil)

		assert.Len(t, outcome.Failures, 1)
		assert.Equal(t, "email", outcome.Failures[0].Channel)
		assert.Equal(t, 2, outcome.Delivered, "sms deliveries still count")
	})
}

func TestAllClear(t *testing.T) {
	user, contacts := testUserAndContacts()
	email := &fakeEmailSender{}
	sms := &fakeSMSSender{}

	NewDispatcher(email, sms).AllClear(user, contacts)

	assert.Equal(t, "SOS Deactivated", email.subjects[0])
	assert.Contains(t, email.bodies[0], "jessica pearson is now safe.")
	assert.Len(t, sms.sent, 2)
}

func TestDuressAlert(t *testing.T) {
	user, contacts := testUserAndContacts()
	email := &fakeEmailSender{}

	NewDispatcher(email, &fakeSMSSender{}).DuressAlert(user, contacts)

	assert.Equal(t, "HIGH PRIORITY SILENT ALERT - DURESS PIN ENTERED", email.subjects[0])
	assert.True(t, strings.Contains(email.bodies[0], "DURESS PIN"))
	assert.Contains(t, email.bodies[0], "Send immediate help!")
}
