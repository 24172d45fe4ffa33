package testutil

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test and fails if it cannot be set.
// Use this in suite setup functions.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}
	RequireTestEnvironment(t)
}

// NewTestDB opens a migrated in-memory SQLite database and installs it as
// the global connection.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to connect to test database")

	// Every connection to ":memory:" is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.Migrate(db), "Failed to migrate test database")
	config.SetDB(db)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SeedUser inserts an account linked to subject. Administrators receive
// perms; technicians start Available.
func SeedUser(t *testing.T, db *gorm.DB, subject string, role models.Role, perms ...models.Capability) *models.User {
	t.Helper()

	s := subject
	user := &models.User{
		Auth0ID: &s,
		Name:    subject,
		Email:   subject + "@example.com",
		Role:    role,
	}
	switch role {
	case models.RoleTechnician:
		user.Technician.Status = models.TechnicianAvailable
	case models.RoleAdministrator:
		for _, p := range perms {
			user.Administrator.PermissionsList = append(user.Administrator.PermissionsList, string(p))
		}
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// PerformJSON sends body as JSON through router and returns the recorder.
func PerformJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// Envelope is the shape every API response shares.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string      `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details"`
	} `json:"error"`
}

// DecodeEnvelope parses the response body, failing the test on malformed JSON.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Response should be valid JSON: %s", w.Body.String())
	return env
}

// ErrorCode returns the error code of a failed response, or "" on success.
func ErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	env := DecodeEnvelope(t, w)
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}
