package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	t.Run("zero distance for identical points", func(t *testing.T) {
		assert.Equal(t, 0.0, Haversine(0, 0, 0, 0))
		assert.Equal(t, 0.0, Haversine(43.6532, -79.3832, 43.6532, -79.3832))
	})

	t.Run("symmetric", func(t *testing.T) {
		// Toronto -> Montreal & back
		assert.Equal(t,
			Haversine(43.6532, -79.3832, 45.5019, -73.5674),
			Haversine(45.5019, -73.5674, 43.6532, -79.3832))
	})

	t.Run("known distances", func(t *testing.T) {
		// Toronto -> Montreal is ~504km
		assert.InDelta(t, 504, Haversine(43.6532, -79.3832, 45.5019, -73.5674), 2)

		// One degree of latitude at the equator is ~111.19km
		assert.InDelta(t, 111.19, Haversine(0, 0, 1, 0), 0.05)
	})
}

func TestDistance(t *testing.T) {
	from := Coordinates{Latitude: 43.6532, Longitude: -79.3832}
	to := Coordinates{Latitude: 45.5019, Longitude: -73.5674}

	assert.Equal(t, Haversine(from.Latitude, from.Longitude, to.Latitude, to.Longitude), Distance(from, to))
}
