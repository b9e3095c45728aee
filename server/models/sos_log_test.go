package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchSOSLogs(t *testing.T) {
	InitializeTestDb()

	user := createTestUser(t, "harold", 30)
	lat, lon := 43.6532, -79.3832

	assert.Nil(t, CreateSOSLog(&SOSLog{UserID: user.ID, Action: TRIGGERED_SOS, Latitude: &lat, Longitude: &lon}))
	assert.Nil(t, CreateSOSLog(&SOSLog{UserID: user.ID, Action: DEACTIVATED_SOS}))

	sosLogs, paging, err := FetchSOSLogs(user.ID, 1)
	assert.Nil(t, err)
	assert.Len(t, sosLogs, 2)
	assert.Equal(t, int64(2), paging.Total)

	// newest first
	assert.Equal(t, DEACTIVATED_SOS, sosLogs[0].Action)
	assert.Equal(t, TRIGGERED_SOS, sosLogs[1].Action)
	assert.Equal(t, lat, *sosLogs[1].Latitude)

	t.Run("only the owner's entries are returned", func(t *testing.T) {
		other := createTestUser(t, "samantha", 31)

		otherLogs, paging, err := FetchSOSLogs(other.ID, 1)
		assert.Nil(t, err)
		assert.Empty(t, otherLogs)
		assert.Equal(t, int64(0), paging.Total)
	})
}

func TestCountSOSLogsByAction(t *testing.T) {
	InitializeTestDb()

	user := createTestUser(t, "alex", 32)

	assert.Nil(t, CreateSOSLog(&SOSLog{UserID: user.ID, Action: TRIGGERED_SOS}))
	assert.Nil(t, CreateSOSLog(&SOSLog{UserID: user.ID, Action: TRIGGERED_SOS}))
	assert.Nil(t, CreateSOSLog(&SOSLog{UserID: user.ID, Action: DURESS_SOS}))

	count, err := CountSOSLogsByAction(user.ID, TRIGGERED_SOS)
	assert.Nil(t, err)
	assert.Equal(t, int64(2), count)

	count, err = CountSOSLogsByAction(user.ID, DURESS_SOS)
	assert.Nil(t, err)
	assert.Equal(t, int64(1), count)

	count, err = CountSOSLogsByAction(user.ID, AUTO_JOURNEY_SOS)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), count)
}
