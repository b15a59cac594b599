package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"carelink-server/internal/config"
	"carelink-server/internal/models"
	"carelink-server/internal/routes"
	"carelink-server/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testCfg = &config.Config{
	JWTSecret:                 "test_jwt_secret",
	JWTRefreshSecret:          "test_refresh_secret",
	JWTExpirationMinutes:      15,
	JWTRefreshExpirationHours: 168,
	Environment:               "development",
}

// newTestServer builds a router backed by a fresh in-memory database.
func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	router := gin.New()
	routes.SetupRoutes(router, db, testCfg)
	return router, db
}

// seedDoctor creates a doctor account directly in the store and returns the
// profile plus a bearer token for it.
func seedDoctor(t *testing.T, db *gorm.DB, email, license string) (models.Doctor, string) {
	t.Helper()
	user := models.User{Email: email, FirstName: "Doc", LastName: "Tor", Role: models.RoleDoctor}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(&user).Error)
	doctor := models.Doctor{UserID: user.ID, Specialization: "cardiology", LicenseNumber: license}
	require.NoError(t, db.Create(&doctor).Error)
	doctor.User = user
	return doctor, tokenFor(t, &user)
}

// seedPatient creates a patient account directly in the store, optionally
// pre-assigned to doctors, and returns the profile plus a bearer token.
func seedPatient(t *testing.T, db *gorm.DB, email string, doctors ...models.Doctor) (models.Patient, string) {
	t.Helper()
	user := models.User{Email: email, FirstName: "Pat", LastName: "Ient", Role: models.RolePatient}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(&user).Error)
	patient := models.Patient{
		UserID:          user.ID,
		DateOfBirth:     time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC),
		AssignedDoctors: doctors,
	}
	require.NoError(t, db.Create(&patient).Error)
	patient.User = user
	return patient, tokenFor(t, &user)
}

func tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	access, _, err := utils.GenerateTokens(user, testCfg)
	require.NoError(t, err)
	return access
}

// doRequest performs a JSON request against the router. An empty token leaves
// the request anonymous.
func doRequest(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

// envelope mirrors the response shape from internal/utils.
type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// decodeData unwraps the response envelope into out.
func decodeData(t *testing.T, recorder *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &env))
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}

func assertStatus(t *testing.T, recorder *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, recorder.Code, "body: %s", recorder.Body.String())
}
