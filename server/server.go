package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/beaconhq/beacon/server/auth"
	"github.com/beaconhq/beacon/server/auth/key"
	"github.com/beaconhq/beacon/server/dispatch"
	"github.com/beaconhq/beacon/server/journey"
	"github.com/beaconhq/beacon/server/logger"
	"github.com/beaconhq/beacon/server/mailer"
	"github.com/beaconhq/beacon/server/models"
	"github.com/beaconhq/beacon/server/proximity"
	"github.com/beaconhq/beacon/server/sos"
	"github.com/beaconhq/beacon/server/twilio"
	"github.com/beaconhq/beacon/server/voice"
	"github.com/beaconhq/beacon/server/work"
	"github.com/beaconhq/beacon/shared"
	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

type RequestContextKey string

type DecodedJWT struct {
	Claims   *auth.BeaconTokenClaims
	ErrorMsg string
}

var (
	validate    *validator.Validate
	authKeyPair *key.KeyPair
	workerPool  *work.WorkerPoolAdapter

	sosService       *sos.Service
	journeyService   *journey.Service
	proximityService *proximity.Service
	voiceAnalyzer    *voice.Analyzer

	logg = logger.NewLogger()
)

// Start wires every collaborator together & runs the api server until
// SIGINT/SIGTERM.
func Start(config *viper.Viper, devMode bool) {
	serverConfig := shared.ServerConfig{}
	fatalOnError(config.Unmarshal(&serverConfig))

	validate = validator.New()
	fatalOnError(RegisterValidators(validate))
	fatalOnError(validate.Struct(serverConfig))

	configDir := configDirectory(devMode)
	fatalOnError(models.AutoMigrate(serverConfig.Sqlite.PassPhrase, configDir))

	var err error
	authKeyPair, err = key.NewKeyPairFromRSAPrivateKeyPem(serverConfig.Beacon.PrivateKeyPem)
	fatalOnError(err)

	workerPool = work.NewWorkerAdapter(serverConfig.Beacon.Cron.TimeZone, false)

	smsClient := twilio.NewClient(serverConfig.Twilio, devMode)
	emailClient := mailer.NewMailer(serverConfig.Smtp, devMode)
	dispatcher := dispatch.NewDispatcher(emailClient, smsClient)

	// Alerts are delivered off the request path - the state machine
	// enqueues, the worker pool dispatches.
	sosService = sos.NewService(&asyncNotifier{pool: workerPool})
	journeyService = journey.NewService(sosService)
	proximityService = proximity.NewService()
	voiceAnalyzer = voice.NewAnalyzer()

	registerJobHandlers(workerPool, dispatcher, serverConfig, configDir)
	enqueueJobs(workerPool, serverConfig)
	fatalOnError(workerPool.Start())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", serverConfig.Beacon.Listener.Port),
		Handler: newRouter(),
	}
	go serve(server)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	<-signalChan

	cleanup(workerPool, server, sqliteBackupEnabled(serverConfig))
}

func newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware, initialContextMiddleware)

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/jwks.json", jwks).Methods("GET")
	router.HandleFunc("/login", logIn).Methods("POST")

	adminRouter := router.PathPrefix("/").Subrouter()
	adminRouter.Use(adminRouteMiddleware)
	adminRouter.HandleFunc("/users", createUser).Methods("POST")
	adminRouter.HandleFunc("/jobs/stats", jobsStats).Methods("GET")

	protectedRouter := router.PathPrefix("/").Subrouter()
	protectedRouter.Use(protectedRouteMiddleware)
	protectedRouter.HandleFunc("/users/{uid}", findUser).Methods("GET")
	protectedRouter.HandleFunc("/users/{uid}", updateUser).Methods("PUT")
	protectedRouter.HandleFunc("/users/{uid}", deleteUser).Methods("DELETE")
	protectedRouter.HandleFunc("/users/{uid}/profile", findSafetyProfile).Methods("GET")
	protectedRouter.HandleFunc("/users/{uid}/profile", updateSafetyPins).Methods("PUT")
	protectedRouter.HandleFunc("/users/{uid}/contacts", listContacts).Methods("GET")
	protectedRouter.HandleFunc("/users/{uid}/contacts", createContact).Methods("POST")
	protectedRouter.HandleFunc("/users/{uid}/contacts/{id}", deleteContact).Methods("DELETE")
	protectedRouter.HandleFunc("/users/{uid}/sos", triggerSos).Methods("POST")
	protectedRouter.HandleFunc("/users/{uid}/sos", sosStatus).Methods("GET")
	protectedRouter.HandleFunc("/users/{uid}/sos/deactivate", deactivateSos).Methods("POST")
	protectedRouter.HandleFunc("/users/{uid}/sos/history", sosHistory).Methods("GET")
	protectedRouter.HandleFunc("/users/{uid}/location", updateLocation).Methods("PUT")
	protectedRouter.HandleFunc("/users/{uid}/alerts", nearbyAlerts).Methods("GET")
	protectedRouter.HandleFunc("/users/{uid}/journeys", startJourney).Methods("POST")
	protectedRouter.HandleFunc("/users/{uid}/journeys/current", pollJourney).Methods("GET")
	protectedRouter.HandleFunc("/users/{uid}/journeys/arrive", arriveJourney).Methods("POST")
	protectedRouter.HandleFunc("/users/{uid}/journeys/cancel", cancelJourney).Methods("POST")
	protectedRouter.HandleFunc("/incidents", listIncidents).Methods("GET")
	protectedRouter.HandleFunc("/incidents", createIncident).Methods("POST")
	protectedRouter.HandleFunc("/voice/analyze", analyzeVoice).Methods("POST")

	return router
}
