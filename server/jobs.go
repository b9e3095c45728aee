package server

import (
	"fmt"
	"time"

	"github.com/beaconhq/beacon/server/dispatch"
	"github.com/beaconhq/beacon/server/geo"
	"github.com/beaconhq/beacon/server/gstorage"
	"github.com/beaconhq/beacon/server/models"
	"github.com/beaconhq/beacon/server/work"
	"github.com/beaconhq/beacon/shared"
)

const (
	DELIVER_ALERT_HANDLER = "deliver_alert"
	DB_BACKUP_HANDLER     = "sqlite_backup"

	ALERT_KIND_SOS       = "alert"
	ALERT_KIND_ALL_CLEAR = "all_clear"
	ALERT_KIND_DURESS    = "duress"
)

// dbBackupHandler is kept around so cleanup can run one final backup
// on shutdown.
var dbBackupHandler work.Handler

func registerJobHandlers(
	wpa *work.WorkerPoolAdapter, dispatcher *dispatch.Dispatcher,
	config shared.ServerConfig, configDir string) {

	fatalOnError(wpa.Register(DELIVER_ALERT_HANDLER, deliverAlertHandler(dispatcher)))

	dbBackupHandler = backupSqliteDbHandler(config, configDir)
	fatalOnError(wpa.Register(DB_BACKUP_HANDLER, dbBackupHandler))
}

func enqueueJobs(wpa *work.WorkerPoolAdapter, config shared.ServerConfig) {
	if !sqliteBackupEnabled(config) {
		return
	}

	err := wpa.PeriodicallyPerform(config.Google.Storage.SqliteBackupSchedule, work.JobParams{
		Name:    DB_BACKUP_HANDLER,
		Handler: DB_BACKUP_HANDLER,
		Unique:  true,
		Args:    map[string]interface{}{},
	})
	fatalOnError(err)
}

func sqliteBackupEnabled(config shared.ServerConfig) bool {
	enabled, ok := config.Google.Storage.EnableSqliteBackupAndSync.(bool)
	return ok && enabled
}

// ---------------------------------------------------------------------------------//
// Job handlers
// --------------------------------------------------------------------------------//

// deliverAlertHandler performs the actual contact fan-out for a queued
// alert. Contacts are re-loaded at delivery time so a contact added
// between trigger & delivery still gets the message.
func deliverAlertHandler(dispatcher *dispatch.Dispatcher) work.Handler {
	return func(args map[string]interface{}) error {
		userID, ok := args["user_id"].(float64)
		if !ok {
			return fmt.Errorf("deliver_alert: missing user_id in %v", args)
		}

		user, err := models.FindUserBy("id", uint(userID))
		if err != nil {
			return err
		}

		contacts, err := models.ContactsFor(user.ID)
		if err != nil {
			return err
		}

		var coords *geo.Coordinates
		if lat, ok := args["lat"].(float64); ok {
			if lon, ok := args["lon"].(float64); ok {
				coords = &geo.Coordinates{Latitude: lat, Longitude: lon}
			}
		}

		var outcome dispatch.Outcome
		switch args["kind"] {
		case ALERT_KIND_SOS:
			outcome = dispatcher.Alert(user, contacts, fmt.Sprintf("%v", args["trigger"]), coords)
		case ALERT_KIND_ALL_CLEAR:
			outcome = dispatcher.AllClear(user, contacts)
		case ALERT_KIND_DURESS:
			outcome = dispatcher.DuressAlert(user, contacts)
		default:
			return fmt.Errorf("deliver_alert: unknown kind %q", args["kind"])
		}

		if len(outcome.Failures) > 0 {
			logg.Warnf("deliver_alert: %v of %v deliveries failed for user %v",
				len(outcome.Failures), len(outcome.Failures)+outcome.Delivered, user.ID)
		}

		return nil
	}
}

func backupSqliteDbHandler(config shared.ServerConfig, configDir string) work.Handler {
	return func(map[string]interface{}) error {
		storageClient, err := gstorage.NewGStorage(config.Google.ApplicationCredentials)
		if err != nil {
			return err
		}

		dbFilePath, err := models.DbFilePath(configDir)
		if err != nil {
			return err
		}

		return storageClient.UploadFile(config.Google.Storage.Bucket, dbFilePath)
	}
}

// ---------------------------------------------------------------------------------//
// Async notifier
// --------------------------------------------------------------------------------//

// asyncNotifier satisfies the sos notifier contract by queueing a
// 'deliver_alert' job instead of dispatching inline. The returned
// outcome is always empty - delivery results surface in the job logs.
type asyncNotifier struct {
	pool *work.WorkerPoolAdapter
}

func (n *asyncNotifier) Alert(
	user *models.User, contacts []models.Contact,
	trigger string, coords *geo.Coordinates) dispatch.Outcome {

	args := map[string]interface{}{
		"kind":    ALERT_KIND_SOS,
		"user_id": user.ID,
		"trigger": trigger,
	}
	if coords != nil {
		args["lat"] = coords.Latitude
		args["lon"] = coords.Longitude
	}

	n.enqueue(args)
	return dispatch.Outcome{}
}

func (n *asyncNotifier) AllClear(user *models.User, contacts []models.Contact) dispatch.Outcome {
	n.enqueue(map[string]interface{}{"kind": ALERT_KIND_ALL_CLEAR, "user_id": user.ID})
	return dispatch.Outcome{}
}

func (n *asyncNotifier) DuressAlert(user *models.User, contacts []models.Contact) dispatch.Outcome {
	n.enqueue(map[string]interface{}{"kind": ALERT_KIND_DURESS, "user_id": user.ID})
	return dispatch.Outcome{}
}

func (n *asyncNotifier) enqueue(args map[string]interface{}) {
	err := n.pool.Perform(work.JobParams{
		Name:    fmt.Sprintf("%v-%v-%v", DELIVER_ALERT_HANDLER, args["kind"], time.Now().UnixNano()),
		Handler: DELIVER_ALERT_HANDLER,
		Args:    args,
	})
	if err != nil {
		logg.Errorf("unable to enqueue alert delivery: %v", err)
	}
}
