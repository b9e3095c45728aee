// Package proximity answers "is anyone near me in trouble?" - a
// radius filter over recently-reported locations of users whose SOS
// is live.
package proximity

import (
	"errors"
	"math"
	"time"

	"github.com/beaconhq/beacon/server/geo"
	"github.com/beaconhq/beacon/server/models"
	"gorm.io/gorm"
)

const (
	DefaultRadiusKm = 5.0
	DefaultWindow   = 10 * time.Minute
)

// NearbyAlert is one active SOS within range of the querying user
type NearbyAlert struct {
	Username   string  `json:"username"`
	DistanceKm float64 `json:"distance"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
}

type Service struct {
	nowFunc func() time.Time
}

func NewService() *Service {
	return &Service{nowFunc: time.Now}
}

// Nearby returns every other user with an active SOS whose location
// was reported within 'window' and sits within 'radiusKm'(inclusive)
// of the caller's last known position. A caller with no position on
// file gets an empty result, not an error.
func (service *Service) Nearby(userID uint, radiusKm float64, window time.Duration) ([]NearbyAlert, error) {
	myLocation, err := models.FindUserLocation(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []NearbyAlert{}, nil
	}
	if err != nil {
		return nil, err
	}

	if myLocation.Latitude == nil || myLocation.Longitude == nil {
		return []NearbyAlert{}, nil
	}

	cutoff := service.nowFunc().Add(-window)
	locations, err := models.ActiveSOSLocationsSince(cutoff, userID)
	if err != nil {
		return nil, err
	}

	alerts := []NearbyAlert{}
	for _, location := range locations {
		if location.Latitude == nil || location.Longitude == nil {
			continue
		}

		distance := geo.Haversine(
			*myLocation.Latitude, *myLocation.Longitude,
			*location.Latitude, *location.Longitude)
		if distance > radiusKm {
			continue
		}

		user, err := models.FindUserBy("id", location.UserID)
		if err != nil {
			return nil, err
		}

		alerts = append(alerts, NearbyAlert{
			Username:   user.FirstName,
			DistanceKm: roundTo2dp(distance),
			Latitude:   *location.Latitude,
			Longitude:  *location.Longitude,
		})
	}

	return alerts, nil
}

func roundTo2dp(value float64) float64 {
	return math.Round(value*100) / 100
}
