package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func createTestUser(t *testing.T, firstName string, n int) *User {
	t.Helper()

	user := &User{
		FirstName:   firstName,
		LastName:    "specter",
		Email:       fmt.Sprintf("%v-%v@firm.com", firstName, n),
		Password:    "password",
		PhoneNumber: fmt.Sprintf("+1416555%04d", n),
	}
	assert.Nil(t, CreateUser(user))
	return user
}

func TestCreateUserAttachesSafetyDefaults(t *testing.T) {
	InitializeTestDb()

	user := createTestUser(t, "harvey", 1)

	profile, err := FindOrCreateSafetyProfile(user.ID)
	assert.Nil(t, err)
	assert.Equal(t, DEFAULT_REAL_PIN, profile.RealPin)
	assert.Equal(t, DEFAULT_DURESS_PIN, profile.DuressPin)
	assert.False(t, profile.SosActive)

	location, err := FindUserLocation(user.ID)
	assert.Nil(t, err)
	assert.Nil(t, location.Latitude)
	assert.Nil(t, location.Longitude)
}

func TestCheckPin(t *testing.T) {
	profile := SafetyProfile{RealPin: "2468", DuressPin: "1357"}

	assert.Equal(t, PinMatchReal, profile.CheckPin("2468"))
	assert.Equal(t, PinMatchDuress, profile.CheckPin("1357"))
	assert.Equal(t, PinMatchNone, profile.CheckPin("0000"))
	assert.Equal(t, PinMatchNone, profile.CheckPin(""))
	assert.Equal(t, PinMatchNone, profile.CheckPin("24680"), "prefix is not a match")
}

func TestValidatePins(t *testing.T) {
	testCases := []struct {
		name      string
		realPin   string
		duressPin string
		wantErr   string
	}{
		{"valid pins", "2468", "1357", ""},
		{"longer pins are fine", "246800", "135799", ""},
		{"missing real pin", "", "1357", "both pins are required"},
		{"missing duress pin", "2468", "", "both pins are required"},
		{"letters rejected", "24ab", "1357", "only numbers"},
		{"whitespace rejected", "24 8", "1357", "only numbers"},
		{"too short", "12", "12", "at least 4 digits"},
		{"equal pins rejected", "2468", "2468", "must be different"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePins(tc.realPin, tc.duressPin)
			if tc.wantErr == "" {
				assert.Nil(t, err)
				return
			}

			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSetPins(t *testing.T) {
	InitializeTestDb()

	user := createTestUser(t, "mike", 2)
	profile, err := FindOrCreateSafetyProfile(user.ID)
	assert.Nil(t, err)

	t.Run("rejects invalid pins without persisting", func(t *testing.T) {
		assert.ErrorIs(t, profile.SetPins("2468", "2468"), ErrValidation)

		stored, err := FindOrCreateSafetyProfile(user.ID)
		assert.Nil(t, err)
		assert.Equal(t, DEFAULT_REAL_PIN, stored.RealPin)
		assert.Equal(t, DEFAULT_DURESS_PIN, stored.DuressPin)
	})

	t.Run("persists both pins", func(t *testing.T) {
		assert.Nil(t, profile.SetPins("2468", "1357"))

		stored, err := FindOrCreateSafetyProfile(user.ID)
		assert.Nil(t, err)
		assert.Equal(t, "2468", stored.RealPin)
		assert.Equal(t, "1357", stored.DuressPin)
	})
}

func TestSetSosActive(t *testing.T) {
	InitializeTestDb()

	user := createTestUser(t, "louis", 3)
	profile, err := FindOrCreateSafetyProfile(user.ID)
	assert.Nil(t, err)

	assert.Nil(t, profile.SetSosActive(true))
	assert.True(t, profile.SosActive)

	stored, err := FindOrCreateSafetyProfile(user.ID)
	assert.Nil(t, err)
	assert.True(t, stored.SosActive)

	assert.Nil(t, profile.SetSosActive(false))

	stored, err = FindOrCreateSafetyProfile(user.ID)
	assert.Nil(t, err)
	assert.False(t, stored.SosActive)
}
