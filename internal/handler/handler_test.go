package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/gamezone-reservation/internal/availability"
	"github.com/iliyamo/gamezone-reservation/internal/booking"
	"github.com/iliyamo/gamezone-reservation/internal/config"
	"github.com/iliyamo/gamezone-reservation/internal/maintenance"
	"github.com/iliyamo/gamezone-reservation/internal/middleware"
	"github.com/iliyamo/gamezone-reservation/internal/model"
	"github.com/iliyamo/gamezone-reservation/internal/repository"
	"github.com/iliyamo/gamezone-reservation/internal/utils"
)

var fixedNow = time.Date(2025, 3, 10, 14, 20, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: bcrypt.MinCost}
}

func hashOf(t *testing.T, plain string) string {
	t.Helper()
	h, err := utils.HashPassword(plain, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

// call runs h against a request, optionally as principal, and returns the
// recorder.  Handlers are invoked directly so route middleware is skipped.
func call(t *testing.T, h echo.HandlerFunc, method, target, body string, principal *model.Account, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) > 0 {
		names, values := []string{}, []string{}
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if principal != nil {
		middleware.SetPrincipal(c, *principal)
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

var (
	accountCols = []string{"id", "nom", "prenom", "email", "password"}
	admin       = &model.Account{ID: 1, Kind: model.KindAdmin, Email: "admin@gamezone.com"}
	client      = &model.Account{ID: 7, Kind: model.KindClient, Email: "jane@x.io"}
)

// ----- auth -----

func newAuth(db *sql.DB) *AuthHandler {
	return NewAuthHandler(testConfig(), repository.NewAdminRepo(db), repository.NewClientRepo(db))
}

func TestLoginPrefersAdmin(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM admin WHERE email=?")).
		WithArgs("admin@gamezone.com").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(1, "Admin", "GameZone", "admin@gamezone.com", hashOf(t, "admin123")))

	rec := call(t, newAuth(db).Login, http.MethodPost, "/api/auth/login",
		`{"email":"Admin@GameZone.com","password":"admin123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "admin", body["userType"])
	assert.Contains(t, body, "admin")

	kind, id, _, err := utils.ParseAccessToken("test-secret", body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, model.KindAdmin, kind)
	assert.Equal(t, uint64(1), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginFallsBackToClient(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM admin WHERE email=?")).
		WillReturnRows(sqlmock.NewRows(accountCols))
	mock.ExpectQuery(regexp.QuoteMeta("FROM client WHERE email=?")).
		WithArgs("jane@x.io").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(7, "Doe", "Jane", "jane@x.io", hashOf(t, "secret1")))

	rec := call(t, newAuth(db).Login, http.MethodPost, "/api/auth/login",
		`{"email":"jane@x.io","password":"secret1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "client", body["userType"])
	assert.Equal(t, float64(7), body["user"].(map[string]any)["id_client"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM admin WHERE email=?")).
		WillReturnRows(sqlmock.NewRows(accountCols))
	// A client created by an admin has no password and cannot log in.
	mock.ExpectQuery(regexp.QuoteMeta("FROM client WHERE email=?")).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(7, "Doe", "Jane", "jane@x.io", nil))

	rec := call(t, newAuth(db).Login, http.MethodPost, "/api/auth/login",
		`{"email":"jane@x.io","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid credentials"}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginValidation(t *testing.T) {
	db, _ := newMock(t)
	rec := call(t, newAuth(db).Login, http.MethodPost, "/api/auth/login", `{"email":"nope","password":"123"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["errors"], 2)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO client")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	rec := call(t, newAuth(db).Register, http.MethodPost, "/api/auth/register",
		`{"nom":"Doe","prenom":"Jane","email":"jane@x.io","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"message":"Email already exists"}`, rec.Body.String())
}

func TestRegisterValidatesNames(t *testing.T) {
	db, _ := newMock(t)
	rec := call(t, newAuth(db).Register, http.MethodPost, "/api/auth/register",
		`{"nom":"D","prenom":" J ","email":"jane@x.io","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode(t, rec)["errors"], 2)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	db, mock := newMock(t)
	me := *admin
	me.PasswordHash = hashOf(t, "admin123")

	rec := call(t, newAuth(db).ChangePassword, http.MethodPut, "/api/auth/change-password",
		`{"currentPassword":"wrong!","newPassword":"another1"}`, &me)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Current password is incorrect"}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePasswordUpdatesMatchingStore(t *testing.T) {
	db, mock := newMock(t)
	me := *client
	me.PasswordHash = hashOf(t, "secret1")
	mock.ExpectExec(regexp.QuoteMeta("UPDATE client SET password=? WHERE id_client=?")).
		WithArgs(sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := call(t, newAuth(db).ChangePassword, http.MethodPut, "/api/auth/client/change-password",
		`{"currentPassword":"secret1","newPassword":"another1"}`, &me)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAccountLastAdmin(t *testing.T) {
	db, mock := newMock(t)
	me := *admin
	me.PasswordHash = hashOf(t, "admin123")
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM admin FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	rec := call(t, newAuth(db).DeleteAccount, http.MethodDelete, "/api/auth/delete-account",
		`{"password":"admin123"}`, &me)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAccountRequiresPassword(t *testing.T) {
	db, _ := newMock(t)
	rec := call(t, newAuth(db).DeleteAccount, http.MethodDelete, "/api/auth/client/delete-account", `{}`, client)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateClientProfileEmailTaken(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE client SET nom=?, prenom=?, email=? WHERE id_client=?")).
		WithArgs("Doe", "Jane", "taken@x.io", 7).
		WillReturnError(&mysql.MySQLError{Number: 1062})

	rec := call(t, newAuth(db).UpdateClientProfile, http.MethodPut, "/api/client/profile",
		`{"nom":"Doe","prenom":"Jane","email":"Taken@x.io"}`, client)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

// ----- stations -----

var viewCols = []string{"id_station", "plateforme", "config_pc", "nombre_manettes", "total", "active", "conflicts"}

func newStations(db *sql.DB) *StationHandler {
	resolver := availability.NewResolver(repository.NewAvailabilityRepo(db), clock)
	return &StationHandler{
		Stations: repository.NewStationRepo(db),
		Resolver: resolver,
		Sweeper: &maintenance.Sweeper{
			Sessions:          repository.NewSessionRepo(db),
			Reservations:      repository.NewReservationRepo(db),
			SessionMaxAge:     4 * time.Hour,
			ReservationMaxAge: 24 * time.Hour,
			Now:               clock,
		},
	}
}

func TestStationListComputesStatus(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM stationjeu s")).
		WithArgs(model.SlotStart(fixedNow)).
		WillReturnRows(sqlmock.NewRows(viewCols).
			AddRow(1, "PC", "i7", nil, 3, 0, 0).
			AddRow(2, "Console", nil, 4, 2, 1, 1).
			AddRow(3, "PC", "i5", nil, 1, 0, 1))

	rec := call(t, newStations(db).List, http.MethodGet, "/api/stations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []model.StationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 3)
	assert.Equal(t, model.StatusAvailable, views[0].Status)
	assert.True(t, views[0].Available)
	assert.Equal(t, model.StatusActiveSession, views[1].Status)
	assert.Equal(t, model.StatusReserved, views[2].Status)
	assert.False(t, views[2].Available)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStationGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM stationjeu s") + ".*" + regexp.QuoteMeta("WHERE s.id_station = ?")).
		WithArgs(model.SlotStart(fixedNow), 9).
		WillReturnRows(sqlmock.NewRows(viewCols))

	rec := call(t, newStations(db).Get, http.MethodGet, "/api/stations/9", "", nil, "id", "9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Station not found"}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStationGetLoadsOneStation(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM stationjeu s") + ".*" + regexp.QuoteMeta("WHERE s.id_station = ?")).
		WithArgs(model.SlotStart(fixedNow), 2).
		WillReturnRows(sqlmock.NewRows(viewCols).AddRow(2, "Console", nil, 4, 2, 0, 1))

	rec := call(t, newStations(db).Get, http.MethodGet, "/api/stations/2", "", nil, "id", "2")
	require.Equal(t, http.StatusOK, rec.Code)
	var v model.StationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, uint64(2), v.ID)
	assert.Equal(t, model.StatusReserved, v.Status)
	assert.False(t, v.Available)
	require.NotNil(t, v.NombreManettes)
	assert.Equal(t, 4, *v.NombreManettes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStationAvailabilityRequiresDate(t *testing.T) {
	db, _ := newMock(t)
	rec := call(t, newStations(db).Availability, http.MethodGet, "/api/stations/1/availability", "", nil, "id", "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Date parameter is required"}`, rec.Body.String())
}

func TestStationAvailabilityReport(t *testing.T) {
	db, mock := newMock(t)
	slot := time.Date(2025, 3, 11, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_station FROM stationjeu WHERE id_station = ?")).
		WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"id_station"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessiondejeu sd")).
		WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"id_session", "id_reservation", "debut_session"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservation r")).
		WithArgs(1, slot, slot.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id_reservation", "date_reservation", "has_session"}).
			AddRow(5, slot.Add(30*time.Minute), false))

	rec := call(t, newStations(db).Availability, http.MethodGet,
		"/api/stations/1/availability?date=2025-03-11T18:45:00Z", "", nil, "id", "1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, false, body["available"])
	assert.Equal(t, "reserved", body["status"])
	assert.Equal(t, float64(1), body["conflicts"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStationAvailabilityUnknownStation(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_station FROM stationjeu WHERE id_station = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id_station"}))

	rec := call(t, newStations(db).Availability, http.MethodGet,
		"/api/stations/4/availability?date=2025-03-11T18:00:00Z", "", nil, "id", "4")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStationAvailableFiltersSlot(t *testing.T) {
	db, mock := newMock(t)
	slot := time.Date(2025, 3, 11, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM stationjeu s")).
		WithArgs(slot, slot.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows(viewCols).
			AddRow(1, "PC", "i7", nil, 3, 0, 0).
			AddRow(2, "Console", nil, 4, 2, 0, 1))

	rec := call(t, newStations(db).Available, http.MethodGet,
		"/api/stations/available?date=2025-03-11&time=18:30", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var views []model.StationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, uint64(1), views[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStationCreateValidation(t *testing.T) {
	db, _ := newMock(t)
	h := newStations(db)

	rec := call(t, h.Create, http.MethodPost, "/api/stations", `{"plateforme":"Xbox"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h.Create, http.MethodPost, "/api/stations", `{"plateforme":"Console","nombre_manettes":9}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStationCreateConsole(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stationjeu (plateforme) VALUES (?)")).
		WithArgs("Console").WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO espaceconsole (id_station, nombre_manettes) VALUES (?, ?)")).
		WithArgs(12, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.id_station = ?")).
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows([]string{"id_station", "plateforme", "config_pc", "nombre_manettes"}).
			AddRow(12, "Console", nil, 2))

	rec := call(t, newStations(db).Create, http.MethodPost, "/api/stations", `{"plateforme":"Console"}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id_station":12,"plateforme":"Console","config_pc":null,"nombre_manettes":2}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStationDeleteNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM stationjeu WHERE id_station = ?")).
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 0))

	rec := call(t, newStations(db).Delete, http.MethodDelete, "/api/stations/3", "", admin, "id", "3")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStationRefresh(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessiondejeu SET fin_session = ?")).
		WithArgs(fixedNow, fixedNow.Add(-4*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reservation")).
		WithArgs(fixedNow.Add(-24 * time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(regexp.QuoteMeta("FROM stationjeu s")).
		WillReturnRows(sqlmock.NewRows(viewCols).
			AddRow(1, "PC", "i7", nil, 0, 0, 0).
			AddRow(2, "PC", "i5", nil, 1, 0, 1))

	rec := call(t, newStations(db).Refresh, http.MethodPost, "/api/stations/refresh", "", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, map[string]any{
		"terminatedSessions":  float64(2),
		"deletedReservations": float64(3),
		"availableStations":   float64(1),
		"totalStations":       float64(2),
	}, body["stats"])
	stations := body["stations"].([]any)
	require.Len(t, stations, 2)
	assert.Contains(t, stations[0], "last_updated")
	require.NoError(t, mock.ExpectationsWereMet())
}

// ----- reservations -----

func newReservations(db *sql.DB) *ReservationHandler {
	return &ReservationHandler{
		Reservations: repository.NewReservationRepo(db),
		Booking:      booking.New(db, clock, nil),
	}
}

func TestReservationMyIsClientOnly(t *testing.T) {
	db, _ := newMock(t)
	rec := call(t, newReservations(db).My, http.MethodGet, "/api/reservations/my", "", admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReservationGetHidesOthers(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM client_reservation WHERE id_reservation = ? AND id_client = ?")).
		WithArgs(3, 7).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))

	rec := call(t, newReservations(db).Get, http.MethodGet, "/api/reservations/3", "", client, "id", "3")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreateRejectsPast(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("LOCK IN SHARE MODE")).
		WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"id_station"}).AddRow(1))
	mock.ExpectRollback()

	rec := call(t, newReservations(db).Create, http.MethodPost, "/api/client-reservations",
		`{"id_station":1,"date_reservation":"2025-03-10T14:20:00Z"}`, client)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Reservation date must be in the future"}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreateSlotTaken(t *testing.T) {
	db, mock := newMock(t)
	at := fixedNow.Add(2 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("LOCK IN SHARE MODE")).
		WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"id_station"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("slot_start = ?")).
		WithArgs(1, model.SlotStart(at)).
		WillReturnRows(sqlmock.NewRows([]string{"id_reservation"}).AddRow(4))
	mock.ExpectRollback()

	rec := call(t, newReservations(db).Create, http.MethodPost, "/api/reservations",
		`{"id_station":1,"date_reservation":"`+at.Format(time.RFC3339)+`","client_ids":[7]}`, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreateAdminNeedsClients(t *testing.T) {
	db, _ := newMock(t)
	rec := call(t, newReservations(db).Create, http.MethodPost, "/api/reservations",
		`{"id_station":1,"date_reservation":"2025-03-11T10:00:00Z"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReservationCancelNotOwned(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("JOIN client_reservation cr")).
		WithArgs(3, 7).WillReturnRows(sqlmock.NewRows([]string{"date_reservation", "has_session"}))
	mock.ExpectRollback()

	rec := call(t, newReservations(db).Cancel, http.MethodDelete, "/api/client-reservations/3", "", client, "id", "3")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationListScopesClients(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reservation r WHERE")).
		WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY r.date_reservation DESC")).
		WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// A client cannot widen the listing with ?client=.
	rec := call(t, newReservations(db).List, http.MethodGet, "/api/reservations?client=9", "", client)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "0", rec.Header().Get("X-Total-Count"))
	assert.JSONEq(t, `[]`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationListRejectsBadFilter(t *testing.T) {
	db, _ := newMock(t)
	rec := call(t, newReservations(db).List, http.MethodGet, "/api/reservations?from=yesterday", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ----- sessions -----

func newSessions(db *sql.DB) *SessionHandler {
	return &SessionHandler{Sessions: repository.NewSessionRepo(db), Now: clock}
}

func TestSessionStartUnknownReservation(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"id_reservation"}))
	mock.ExpectRollback()

	rec := call(t, newSessions(db).Start, http.MethodPost, "/api/sessions/start", `{"id_reservation":5}`, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStartAlreadyActive(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"id_reservation"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("fin_session IS NULL")).
		WithArgs(5).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	rec := call(t, newSessions(db).Start, http.MethodPost, "/api/sessions/start", `{"id_reservation":5}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Session already active for this reservation"}`, rec.Body.String())
}

func TestSessionEndNotRunning(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessiondejeu SET fin_session = ? WHERE id_session = ? AND fin_session IS NULL")).
		WithArgs(fixedNow, 8).WillReturnResult(sqlmock.NewResult(0, 0))

	rec := call(t, newSessions(db).End, http.MethodPut, "/api/sessions/8/end", "", admin, "id", "8")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Active session not found"}`, rec.Body.String())
}

// ----- clients -----

func TestClientCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO client")).
		WithArgs("Doe", "Jane", "jane@x.io", nil).
		WillReturnError(&mysql.MySQLError{Number: 1062})

	h := &ClientHandler{Clients: repository.NewClientRepo(db)}
	rec := call(t, h.Create, http.MethodPost, "/api/clients", `{"nom":"Doe","prenom":"Jane","email":"jane@x.io"}`, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientGetInvalidID(t *testing.T) {
	db, _ := newMock(t)
	h := &ClientHandler{Clients: repository.NewClientRepo(db)}
	rec := call(t, h.Get, http.MethodGet, "/api/clients/abc", "", admin, "id", "abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ----- common -----

func TestParseTime(t *testing.T) {
	want := time.Date(2025, 3, 11, 18, 30, 0, 0, time.UTC)
	for _, in := range []string{"2025-03-11T18:30:00Z", "2025-03-11T20:30:00+02:00", "2025-03-11T18:30", "2025-03-11 18:30"} {
		got, err := parseTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}
	_, err := parseTime("tomorrow")
	assert.Error(t, err)
}

func TestHTTPErrorHandler(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	e.GET("/boom", func(echo.Context) error { return sql.ErrConnDone })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Route not found"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	rec := call(t, Health, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", decode(t, rec)["status"])
}
