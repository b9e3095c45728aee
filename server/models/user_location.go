package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserLocation is a user's last reported position - overwritten in
// place on every report, no history kept. 'UpdatedAt' doubles as the
// freshness timestamp for proximity scans.
type UserLocation struct {
	BaseModel
	UserID    uint     `json:"user_id" gorm:"not null;unique"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// UpsertUserLocation overwrites the user's location snapshot,
// creating the row on first report.
func UpsertUserLocation(userID uint, lat, lon float64) error {
	location := UserLocation{UserID: userID, Latitude: &lat, Longitude: &lon}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "updated_at"}),
	}).Create(&location).Error
}

func FindUserLocation(userID interface{}) (*UserLocation, error) {
	location := UserLocation{}

	err := db.First(&location, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}

	return &location, nil
}

// ActiveSOSLocationsSince returns location snapshots(updated on/after
// 'cutoff') of users whose SOS flag is up, excluding 'excludeUserID'.
// Each result is preloaded with the owning user for display.
func ActiveSOSLocationsSince(cutoff time.Time, excludeUserID uint) ([]UserLocation, error) {
	locations := []UserLocation{}

	err := db.Joins(
		"INNER JOIN safety_profiles ON safety_profiles.user_id = user_locations.user_id AND safety_profiles.sos_active = true").
		Where("user_locations.updated_at >= ? AND user_locations.user_id != ?", cutoff, excludeUserID).
		Find(&locations).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return locations, nil
}
