package journey

import (
	"testing"
	"time"

	"github.com/beaconhq/beacon/server/geo"
	"github.com/beaconhq/beacon/server/models"
	"github.com/stretchr/testify/assert"
)

type fakePanicTrigger struct {
	calls []string
}

func (f *fakePanicTrigger) Trigger(userID uint, coords *geo.Coordinates, action string) error {
	f.calls = append(f.calls, action)
	return nil
}

func createTestUser(t *testing.T) *models.User {
	t.Helper()

	user := &models.User{
		FirstName:   "donna",
		LastName:    "paulsen",
		Email:       "donna@firm.com",
		Password:    "the-donna",
		PhoneNumber: "+12345678900",
	}
	assert.Nil(t, models.CreateUser(user))
	return user
}

func newTestService(panicTrigger *fakePanicTrigger, now time.Time) *Service {
	service := NewService(panicTrigger)
	service.nowFunc = func() time.Time { return now }
	return service
}

func TestStart(t *testing.T) {
	models.InitializeTestDb()

	service := NewService(&fakePanicTrigger{})
	user := createTestUser(t)

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := service.Start(user.ID, "", 10)
		assert.ErrorIs(t, err, models.ErrValidation)

		_, err = service.Start(user.ID, "   ", 10)
		assert.ErrorIs(t, err, models.ErrValidation)

		_, err = service.Start(user.ID, "Union Station", 0)
		assert.ErrorIs(t, err, models.ErrValidation)

		_, err = service.Start(user.ID, "Union Station", -5)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("creates an active journey", func(t *testing.T) {
		journey, err := service.Start(user.ID, "Union Station", 10)
		assert.Nil(t, err)
		assert.Equal(t, models.ACTIVE_JOURNEY, journey.Status)
		assert.Equal(t, "Union Station", journey.Destination)
		assert.Equal(t, 10, journey.EtaMinutes)
	})

	t.Run("starting again cancels the prior active walk", func(t *testing.T) {
		first, err := models.ActiveJourney(user.ID)
		assert.Nil(t, err)

		second, err := service.Start(user.ID, "King St Library", 15)
		assert.Nil(t, err)

		cancelled, err := models.FindJourney(first.ID)
		assert.Nil(t, err)
		assert.Equal(t, models.CANCELLED_JOURNEY, cancelled.Status)

		active, err := models.ActiveJourney(user.ID)
		assert.Nil(t, err)
		assert.Equal(t, second.ID, active.ID)
	})
}

func TestArrive(t *testing.T) {
	models.InitializeTestDb()

	service := NewService(&fakePanicTrigger{})
	user := createTestUser(t)

	t.Run("fails when nothing is active", func(t *testing.T) {
		err := service.Arrive(user.ID)
		assert.NotNil(t, err)
	})

	t.Run("marks the active walk arrived", func(t *testing.T) {
		journey, err := service.Start(user.ID, "Union Station", 10)
		assert.Nil(t, err)

		assert.Nil(t, service.Arrive(user.ID))

		arrived, err := models.FindJourney(journey.ID)
		assert.Nil(t, err)
		assert.Equal(t, models.ARRIVED_JOURNEY, arrived.Status)
	})
}

func TestCancel(t *testing.T) {
	models.InitializeTestDb()

	service := NewService(&fakePanicTrigger{})
	user := createTestUser(t)

	t.Run("no-op when nothing is active", func(t *testing.T) {
		assert.Nil(t, service.Cancel(user.ID))
	})

	t.Run("cancels the active walk", func(t *testing.T) {
		journey, err := service.Start(user.ID, "Union Station", 10)
		assert.Nil(t, err)

		assert.Nil(t, service.Cancel(user.ID))

		cancelled, err := models.FindJourney(journey.ID)
		assert.Nil(t, err)
		assert.Equal(t, models.CANCELLED_JOURNEY, cancelled.Status)
	})
}

func TestPoll(t *testing.T) {
	models.InitializeTestDb()

	panicTrigger := &fakePanicTrigger{}
	startTime := time.Now()
	service := newTestService(panicTrigger, startTime)
	user := createTestUser(t)

	t.Run("inactive without a walk", func(t *testing.T) {
		status, err := service.Poll(user.ID)
		assert.Nil(t, err)
		assert.Equal(t, &Status{Active: false}, status)
	})

	journey, err := service.Start(user.ID, "Union Station", 10)
	assert.Nil(t, err)

	t.Run("reports floored remaining seconds before the deadline", func(t *testing.T) {
		service.nowFunc = func() time.Time { return startTime.Add(120 * time.Second) }

		status, err := service.Poll(user.ID)
		assert.Nil(t, err)
		assert.True(t, status.Active)
		assert.False(t, status.Expired)
		assert.Equal(t, 480, status.RemainingSeconds)
		assert.Equal(t, "Union Station", status.Destination)
		assert.Empty(t, panicTrigger.calls, "no escalation before the deadline")
	})

	t.Run("expires and escalates once the eta lapses", func(t *testing.T) {
		service.nowFunc = func() time.Time { return startTime.Add(10*time.Minute + time.Second) }

		status, err := service.Poll(user.ID)
		assert.Nil(t, err)
		assert.True(t, status.Active)
		assert.True(t, status.Expired)
		assert.Equal(t, "Union Station", status.Destination)

		expired, err := models.FindJourney(journey.ID)
		assert.Nil(t, err)
		assert.Equal(t, models.EXPIRED_JOURNEY, expired.Status)

		assert.Equal(t, []string{models.AUTO_JOURNEY_SOS}, panicTrigger.calls)
	})

	t.Run("expired walk no longer polls active", func(t *testing.T) {
		status, err := service.Poll(user.ID)
		assert.Nil(t, err)
		assert.Equal(t, &Status{Active: false}, status)
		assert.Len(t, panicTrigger.calls, 1, "escalation fired exactly once")
	})
}
