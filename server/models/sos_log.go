package models

// SOS log actions. 'auto_*' actions are machine-raised triggers,
// everything else is user-raised.
const (
	TRIGGERED_SOS    = "triggered"
	DEACTIVATED_SOS  = "deactivated"
	DURESS_SOS       = "duress"
	AUTO_PANIC_SOS   = "auto_panic"
	AUTO_BATTERY_SOS = "auto_battery"
	AUTO_SHAKE_SOS   = "auto_shake"
	AUTO_JOURNEY_SOS = "auto_journey"
)

var SOSActionNameMap = map[string]bool{
	TRIGGERED_SOS:    true,
	DEACTIVATED_SOS:  true,
	DURESS_SOS:       true,
	AUTO_PANIC_SOS:   true,
	AUTO_BATTERY_SOS: true,
	AUTO_SHAKE_SOS:   true,
	AUTO_JOURNEY_SOS: true,
}

// TriggerActionNameMap is the subset of actions that may start an SOS
var TriggerActionNameMap = map[string]bool{
	TRIGGERED_SOS:    true,
	AUTO_PANIC_SOS:   true,
	AUTO_BATTERY_SOS: true,
	AUTO_SHAKE_SOS:   true,
	AUTO_JOURNEY_SOS: true,
}

// SOSLog is an immutable audit record - appended on every
// SOS-affecting transition, never updated or deleted.
type SOSLog struct {
	BaseModel
	UserID    uint     `json:"user_id" gorm:"not null"`
	Action    string   `json:"action" gorm:"not null"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Notes     string   `json:"notes"`
}

func CreateSOSLog(sosLog *SOSLog) error {
	return db.Create(sosLog).Error
}

// FetchSOSLogs returns a page of the user's SOS history, newest first
func FetchSOSLogs(userID interface{}, page int) ([]SOSLog, *Paging, error) {
	var total int64
	sosLogs := []SOSLog{}

	err := db.Model(&SOSLog{}).Where("user_id = ?", userID).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, MAX_PAGE_SIZE)).
		Order("sos_logs.id desc").
		Find(&sosLogs, "user_id = ?", userID).Error
	if err != nil {
		return nil, nil, err
	}

	return sosLogs, newPaging(int64(page), MAX_PAGE_SIZE, total), nil
}

func CountSOSLogsByAction(userID interface{}, action string) (int64, error) {
	var total int64

	err := db.Model(&SOSLog{}).
		Where("user_id = ? AND action = ?", userID, action).Count(&total).Error
	if err != nil {
		return 0, err
	}

	return total, nil
}
