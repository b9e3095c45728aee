package models

// Contact is a user's trusted contact - the folks that get notified
// when an SOS, all-clear or duress alert goes out.
type Contact struct {
	BaseModel
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
	UserID      uint   `json:"user_id" gorm:"not null"`
}

func FindContact(userID, contactID interface{}) (*Contact, error) {
	contact := Contact{}

	err := db.Where("user_id = ? AND id = ?", userID, contactID).First(&contact).Error
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

func ContactsFor(userID interface{}) ([]Contact, error) {
	contacts := []Contact{}

	err := db.Limit(500).Find(&contacts, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}
