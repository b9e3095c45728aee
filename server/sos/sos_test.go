package sos

import (
	"testing"

	"github.com/beaconhq/beacon/server/dispatch"
	"github.com/beaconhq/beacon/server/geo"
	"github.com/beaconhq/beacon/server/models"
	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	alerts       []string
	allClears    int
	duressAlerts int
	lastContacts []models.Contact
	lastCoords   *geo.Coordinates
}

func (r *recordingNotifier) Alert(user *models.User, contacts []models.Contact, trigger string, coords *geo.Coordinates) dispatch.Outcome {
	r.alerts = append(r.alerts, trigger)
	r.lastContacts = contacts
	r.lastCoords = coords
	return dispatch.Outcome{Delivered: len(contacts)}
}

func (r *recordingNotifier) AllClear(user *models.User, contacts []models.Contact) dispatch.Outcome {
	r.allClears++
	r.lastContacts = contacts
	return dispatch.Outcome{Delivered: len(contacts)}
}

func (r *recordingNotifier) DuressAlert(user *models.User, contacts []models.Contact) dispatch.Outcome {
	r.duressAlerts++
	r.lastContacts = contacts
	return dispatch.Outcome{Delivered: len(contacts)}
}

func createTestUser(t *testing.T, email, phone string) *models.User {
	t.Helper()

	user := &models.User{
		FirstName:   "rachel",
		LastName:    "zane",
		Email:       email,
		Password:    "paralegal",
		PhoneNumber: phone,
	}
	assert.Nil(t, models.CreateUser(user))

	assert.Nil(t, user.AddContact(&models.Contact{
		Name:        "mike",
		Email:       "mike@firm.com",
		PhoneNumber: "+12345678999",
	}))

	return user
}

func TestTrigger(t *testing.T) {
	models.InitializeTestDb()

	notifier := &recordingNotifier{}
	service := NewService(notifier)
	user := createTestUser(t, "rachel@firm.com", "+12345678900")

	err := service.Trigger(user.ID, &geo.Coordinates{Latitude: 43.65, Longitude: -79.38}, models.TRIGGERED_SOS)
	assert.Nil(t, err)

	profile, err := models.FindOrCreateSafetyProfile(user.ID)
	assert.Nil(t, err)
	assert.True(t, profile.SosActive)

	logs, _, err := models.FetchSOSLogs(user.ID, 1)
	assert.Nil(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, models.TRIGGERED_SOS, logs[0].Action)
	assert.Equal(t, 43.65, *logs[0].Latitude)

	assert.Equal(t, []string{models.TRIGGERED_SOS}, notifier.alerts)
	assert.Len(t, notifier.lastContacts, 1)

	t.Run("re-trigger re-logs and re-alerts", func(t *testing.T) {
		err := service.Trigger(user.ID, nil, models.AUTO_SHAKE_SOS)
		assert.Nil(t, err)

		logs, _, err := models.FetchSOSLogs(user.ID, 1)
		assert.Nil(t, err)
		assert.Len(t, logs, 2)
		assert.Equal(t, []string{models.TRIGGERED_SOS, models.AUTO_SHAKE_SOS}, notifier.alerts)
		assert.Nil(t, notifier.lastCoords)
	})

	t.Run("rejects non-trigger actions", func(t *testing.T) {
		err := service.Trigger(user.ID, nil, models.DEACTIVATED_SOS)
		assert.ErrorIs(t, err, models.ErrValidation)

		err = service.Trigger(user.ID, nil, "made-up")
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestDeactivate(t *testing.T) {
	t.Run("real pin brings the alert down", func(t *testing.T) {
		models.InitializeTestDb()

		notifier := &recordingNotifier{}
		service := NewService(notifier)
		user := createTestUser(t, "rachel@firm.com", "+12345678900")

		assert.Nil(t, service.Trigger(user.ID, nil, models.TRIGGERED_SOS))

		receipt, err := service.Deactivate(user.ID, models.DEFAULT_REAL_PIN)
		assert.Nil(t, err)
		assert.Equal(t, &Receipt{Status: "deactivated", Duress: false}, receipt)

		profile, _ := models.FindOrCreateSafetyProfile(user.ID)
		assert.False(t, profile.SosActive)

		triggered, _ := models.CountSOSLogsByAction(user.ID, models.TRIGGERED_SOS)
		deactivated, _ := models.CountSOSLogsByAction(user.ID, models.DEACTIVATED_SOS)
		assert.Equal(t, int64(1), triggered)
		assert.Equal(t, int64(1), deactivated)

		assert.Len(t, notifier.alerts, 1)
		assert.Equal(t, 1, notifier.allClears)
	})

	t.Run("duress pin leaves the flag untouched and alerts covertly", func(t *testing.T) {
		models.InitializeTestDb()

		notifier := &recordingNotifier{}
		service := NewService(notifier)
		user := createTestUser(t, "rachel@firm.com", "+12345678900")

		assert.Nil(t, service.Trigger(user.ID, nil, models.TRIGGERED_SOS))

		receipt, err := service.Deactivate(user.ID, models.DEFAULT_DURESS_PIN)
		assert.Nil(t, err)

		// Same response shape as the real deactivation
		assert.Equal(t, "deactivated", receipt.Status)
		assert.True(t, receipt.Duress)

		profile, _ := models.FindOrCreateSafetyProfile(user.ID)
		assert.True(t, profile.SosActive, "sos flag must stay up")

		duress, _ := models.CountSOSLogsByAction(user.ID, models.DURESS_SOS)
		assert.Equal(t, int64(1), duress)
		assert.Equal(t, 1, notifier.duressAlerts)
		assert.Equal(t, 0, notifier.allClears)
	})

	t.Run("duress pin alerts even when no SOS is active", func(t *testing.T) {
		models.InitializeTestDb()

		notifier := &recordingNotifier{}
		service := NewService(notifier)
		user := createTestUser(t, "rachel@firm.com", "+12345678900")

		receipt, err := service.Deactivate(user.ID, models.DEFAULT_DURESS_PIN)
		assert.Nil(t, err)
		assert.True(t, receipt.Duress)

		profile, _ := models.FindOrCreateSafetyProfile(user.ID)
		assert.False(t, profile.SosActive, "flag stays whatever it was")
		assert.Equal(t, 1, notifier.duressAlerts)
	})

	t.Run("unknown pin mutates nothing", func(t *testing.T) {
		models.InitializeTestDb()

		notifier := &recordingNotifier{}
		service := NewService(notifier)
		user := createTestUser(t, "rachel@firm.com", "+12345678900")

		assert.Nil(t, service.Trigger(user.ID, nil, models.TRIGGERED_SOS))

		receipt, err := service.Deactivate(user.ID, "0000")
		assert.ErrorIs(t, err, ErrInvalidPin)
		assert.Nil(t, receipt)

		profile, _ := models.FindOrCreateSafetyProfile(user.ID)
		assert.True(t, profile.SosActive)

		logs, _, _ := models.FetchSOSLogs(user.ID, 1)
		assert.Len(t, logs, 1, "no extra log entry")
		assert.Equal(t, 0, notifier.allClears)
		assert.Equal(t, 0, notifier.duressAlerts)
	})
}
