package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/beaconhq/beacon/server/auth"
	"github.com/beaconhq/beacon/server/auth/key"
	"github.com/beaconhq/beacon/server/geo"
	"github.com/beaconhq/beacon/server/models"
	"github.com/beaconhq/beacon/server/proximity"
	"github.com/beaconhq/beacon/server/sos"
	"github.com/beaconhq/beacon/version"
	"github.com/golang-jwt/jwt"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

const AUTH_TOKEN_TTL = 24 * time.Hour

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ---------------------------------------------------------------------------------//
// Auth & account handlers
// --------------------------------------------------------------------------------//

func logIn(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]string)
	decoder := json.NewDecoder(r.Body)
	decoder.Decode(&data)

	passwordHash, err := models.FindUserPassword(data["email"])
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if !auth.CheckPasswordHash(data["password"], passwordHash) {
		writeResponse(rw, ResponsePayload{Errors: []string{"email/password is invalid"}}, http.StatusUnauthorized)
		return
	}

	user, err := models.FindUserBy("email", data["email"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	isAdmin, err := user.IsAdmin()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := auth.EncodeJWT(auth.BeaconTokenClaims{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsAdmin:   isAdmin,
		StandardClaims: jwt.StandardClaims{
			Subject:   fmt.Sprint(user.ID),
			Issuer:    "beacon",
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(AUTH_TOKEN_TTL).Unix(),
		},
	}, authKeyPair)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]string{"token": token}}, http.StatusOK)
}

func createUser(rw http.ResponseWriter, r *http.Request) {
	data := models.User{}
	decoder := json.NewDecoder(r.Body)

	err := decoder.Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(data)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	// The very first account bootstraps as admin
	exists, err := models.AtLeastOneUserExists()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	roleName := models.BASIC_USER_ROLE
	if !exists {
		roleName = models.ADMIN_USER_ROLE
	}

	role, err := models.FindRole(roleName)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}
	data.RoleID = role.ID

	err = models.CreateUser(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusCreated)
}

func findUser(rw http.ResponseWriter, r *http.Request) {
	user, err := models.FindUserBy("id", mux.Vars(r)["uid"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: user}, http.StatusOK)
}

func updateUser(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]interface{})
	decoder := json.NewDecoder(r.Body)

	err := decoder.Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(data, map[string]bool{
		"first_name": true, "last_name": true, "phone_number": true, "password": true})
	if len(data) <= 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	user, err := models.FindUserBy("id", mux.Vars(r)["uid"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	err = user.Update(data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func deleteUser(rw http.ResponseWriter, r *http.Request) {
	err := models.DeleteUser(mux.Vars(r)["uid"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Safety profile handlers
// --------------------------------------------------------------------------------//

func findSafetyProfile(rw http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	profile, err := models.FindOrCreateSafetyProfile(userID)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	// pins never leave the server
	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{
		"sos_active": profile.SosActive,
		"updated_at": profile.UpdatedAt,
	}}, http.StatusOK)
}

func updateSafetyPins(rw http.ResponseWriter, r *http.Request) {
	params := struct {
		RealPin   string `json:"real_pin"`
		DuressPin string `json:"duress_pin"`
	}{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	userID, err := pathUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	profile, err := models.FindOrCreateSafetyProfile(userID)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	err = profile.SetPins(params.RealPin, params.DuressPin)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Trusted contact handlers
// --------------------------------------------------------------------------------//

func listContacts(rw http.ResponseWriter, r *http.Request) {
	contacts, err := models.ContactsFor(mux.Vars(r)["uid"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: contacts}, http.StatusOK)
}

func createContact(rw http.ResponseWriter, r *http.Request) {
	data := models.Contact{}
	decoder := json.NewDecoder(r.Body)

	err := decoder.Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(data)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	user, err := models.FindUserBy("id", mux.Vars(r)["uid"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	err = user.AddContact(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: data}, http.StatusCreated)
}

func deleteContact(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := models.FindUserBy("id", vars["uid"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	_, err = models.FindContact(vars["uid"], vars["id"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	err = user.DeleteContact(vars["id"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// SOS handlers
// --------------------------------------------------------------------------------//

func triggerSos(rw http.ResponseWriter, r *http.Request) {
	params := struct {
		Action    string   `json:"action"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if params.Action == "" {
		params.Action = models.TRIGGERED_SOS
	}

	userID, err := pathUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	var coords *geo.Coordinates
	if params.Latitude != nil && params.Longitude != nil {
		coords = &geo.Coordinates{Latitude: *params.Latitude, Longitude: *params.Longitude}

		// Keep the proximity snapshot fresh while an SOS is live
		if err := models.UpsertUserLocation(userID, coords.Latitude, coords.Longitude); err != nil {
			logg.Errorf("unable to update location for user %v: %v", userID, err)
		}
	}

	err = sosService.Trigger(userID, coords, params.Action)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]string{"status": "active"}}, http.StatusOK)
}

func deactivateSos(rw http.ResponseWriter, r *http.Request) {
	params := struct {
		Pin string `json:"pin"`
	}{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	userID, err := pathUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	receipt, err := sosService.Deactivate(userID, params.Pin)
	if errors.Is(err, sos.ErrInvalidPin) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusUnauthorized)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: receipt}, http.StatusOK)
}

func sosStatus(rw http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	active, err := sosService.SosActive(userID)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]bool{"active": active}}, http.StatusOK)
}

func sosHistory(rw http.ResponseWriter, r *http.Request) {
	sosLogs, paging, err := models.FetchSOSLogs(mux.Vars(r)["uid"], pageParam(r))
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{
		"logs":   sosLogs,
		"paging": paging,
	}}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Location & proximity handlers
// --------------------------------------------------------------------------------//

func updateLocation(rw http.ResponseWriter, r *http.Request) {
	params := struct {
		Latitude  *float64 `json:"latitude" validate:"required,latitude"`
		Longitude *float64 `json:"longitude" validate:"required,longitude"`
	}{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(params)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	userID, err := pathUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	err = models.UpsertUserLocation(userID, *params.Latitude, *params.Longitude)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func nearbyAlerts(rw http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	alerts, err := proximityService.Nearby(userID, proximity.DefaultRadiusKm, proximity.DefaultWindow)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: alerts}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Safe-walk handlers
// --------------------------------------------------------------------------------//

func startJourney(rw http.ResponseWriter, r *http.Request) {
	params := struct {
		Destination string `json:"destination"`
		EtaMinutes  int    `json:"eta_minutes"`
	}{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	userID, err := pathUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	journeyRecord, err := journeyService.Start(userID, params.Destination, params.EtaMinutes)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: journeyRecord}, http.StatusCreated)
}

func pollJourney(rw http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	status, err := journeyService.Poll(userID)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: status}, http.StatusOK)
}

func arriveJourney(rw http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	err = journeyService.Arrive(userID)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func cancelJourney(rw http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	err = journeyService.Cancel(userID)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Incident report handlers
// --------------------------------------------------------------------------------//

func listIncidents(rw http.ResponseWriter, r *http.Request) {
	reports, paging, err := models.RecentIncidentReports(time.Now(), pageParam(r))
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{
		"incidents": reports,
		"paging":    paging,
	}}, http.StatusOK)
}

func createIncident(rw http.ResponseWriter, r *http.Request) {
	params := struct {
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		Description string  `json:"description"`
		Severity    string  `json:"severity"`
	}{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if params.Severity == "" {
		params.Severity = models.LOW_SEVERITY
	}

	claims := requestClaims(r)
	if claims == nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"no token provided"}}, http.StatusUnauthorized)
		return
	}

	user, err := models.FindUserBy("id", claims.Subject)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	report := models.IncidentReport{
		UserID:      user.ID,
		Latitude:    params.Latitude,
		Longitude:   params.Longitude,
		Description: params.Description,
		Severity:    params.Severity,
	}

	err = models.CreateIncidentReport(&report)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, errStatusCode(err))
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: report}, http.StatusCreated)
}

// ---------------------------------------------------------------------------------//
// Misc handlers
// --------------------------------------------------------------------------------//

func analyzeVoice(rw http.ResponseWriter, r *http.Request) {
	writeResponse(rw, ResponsePayload{Success: true, Data: voiceAnalyzer.Analyze()}, http.StatusOK)
}

func jwks(rw http.ResponseWriter, r *http.Request) {
	keyPairJWK, err := authKeyPair.JWK()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(key.ExportJWKAsJWKS(keyPairJWK))
}

func healthCheck(rw http.ResponseWriter, r *http.Request) {
	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]string{
		"version": version.Version,
	}}, http.StatusOK)
}

func jobsStats(rw http.ResponseWriter, r *http.Request) {
	stats, err := models.CurrentJobsStats()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: stats}, http.StatusOK)
}
