package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestCreateJourney(t *testing.T) {
	InitializeTestDb()

	user := createTestUser(t, "rachel", 10)

	first, err := CreateJourney(user.ID, "Union Station", 10, time.Now())
	assert.Nil(t, err)
	assert.Equal(t, ACTIVE_JOURNEY, first.Status)

	t.Run("starting another cancels the prior active one", func(t *testing.T) {
		second, err := CreateJourney(user.ID, "King St Library", 15, time.Now())
		assert.Nil(t, err)

		cancelled, err := FindJourney(first.ID)
		assert.Nil(t, err)
		assert.Equal(t, CANCELLED_JOURNEY, cancelled.Status)

		active, err := ActiveJourney(user.ID)
		assert.Nil(t, err)
		assert.Equal(t, second.ID, active.ID)
	})
}

func TestSetStatus(t *testing.T) {
	InitializeTestDb()

	user := createTestUser(t, "katrina", 11)

	journey, err := CreateJourney(user.ID, "Union Station", 10, time.Now())
	assert.Nil(t, err)

	t.Run("rejects non-terminal targets", func(t *testing.T) {
		assert.ErrorIs(t, journey.SetStatus(ACTIVE_JOURNEY), ErrValidation)
		assert.ErrorIs(t, journey.SetStatus("lost"), ErrValidation)
	})

	t.Run("terminal statuses are final", func(t *testing.T) {
		assert.Nil(t, journey.SetStatus(ARRIVED_JOURNEY))

		// A second transition loses the guarded update
		assert.ErrorIs(t, journey.SetStatus(EXPIRED_JOURNEY), gorm.ErrRecordNotFound)

		stored, err := FindJourney(journey.ID)
		assert.Nil(t, err)
		assert.Equal(t, ARRIVED_JOURNEY, stored.Status)
	})
}

func TestCancelActiveJourneys(t *testing.T) {
	InitializeTestDb()

	user := createTestUser(t, "donna", 12)

	t.Run("no-op without an active journey", func(t *testing.T) {
		assert.Nil(t, CancelActiveJourneys(user.ID))
	})

	t.Run("cancels the active journey", func(t *testing.T) {
		journey, err := CreateJourney(user.ID, "Union Station", 10, time.Now())
		assert.Nil(t, err)

		assert.Nil(t, CancelActiveJourneys(user.ID))

		stored, err := FindJourney(journey.ID)
		assert.Nil(t, err)
		assert.Equal(t, CANCELLED_JOURNEY, stored.Status)

		_, err = ActiveJourney(user.ID)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}
