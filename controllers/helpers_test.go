package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/middleware"
	"github.com/fieldops/interventions-api/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Every connection to ":memory:" is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := config.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	config.SetDB(db)
	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// mockAuthMiddleware simulates the Auth0 JWT middleware for testing
// It sets up the context exactly as the real EnsureValidToken middleware does
func mockAuthMiddleware(auth0ID, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, auth0ID)
		c.Set(middleware.ContextAccessToken, accessToken)
		c.Next()
	}
}

// authenticated is the chain every protected route uses: token, then the
// local account lookup.
func authenticated(user *models.User, handler gin.HandlerFunc) []gin.HandlerFunc {
	return []gin.HandlerFunc{mockAuthMiddleware(*user.Auth0ID, "token-"+*user.Auth0ID), middleware.LoadActor(), handler}
}

type userOption func(*models.User)

func withPermissions(perms ...string) userOption {
	return func(u *models.User) { u.Administrator.PermissionsList = perms }
}

func withSkills(skills ...string) userOption {
	return func(u *models.User) { u.Technician.SkillsList = skills }
}

func createUser(t *testing.T, db *gorm.DB, auth0ID string, role models.Role, opts ...userOption) *models.User {
	subject := auth0ID
	user := &models.User{
		Auth0ID: &subject,
		Name:    auth0ID + " name",
		Email:   auth0ID + "@example.com",
		Role:    role,
	}
	if role == models.RoleTechnician {
		user.Technician.Status = models.TechnicianAvailable
	}
	for _, opt := range opts {
		opt(user)
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createIntervention(t *testing.T, db *gorm.DB, client *models.User, technician *models.User, status models.InterventionStatus) *models.Intervention {
	intervention := &models.Intervention{
		Title:       "Printer jam",
		Description: "Office printer jams on every page",
		ClientID:    client.ID,
		Category:    models.CategoryITSupport,
		Status:      status,
		Attachments: []string{},
		Evidence:    models.Evidence{Photos: []string{}},
	}
	if technician != nil {
		intervention.TechnicianID = &technician.ID
	}
	require.NoError(t, db.Omit(clause.Associations).Create(intervention).Error)
	return intervention
}

func performJSON(router *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "Response body: %s", w.Body.String())
	return response
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	response := decodeResponse(t, w)
	errorData, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "expected an error envelope, got %s", w.Body.String())
	return errorData["code"].(string)
}

func responseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	response := decodeResponse(t, w)
	require.True(t, response["success"].(bool), "Response body: %s", w.Body.String())
	return response["data"].(map[string]interface{})
}

func responseList(t *testing.T, w *httptest.ResponseRecorder) []interface{} {
	response := decodeResponse(t, w)
	require.True(t, response["success"].(bool), "Response body: %s", w.Body.String())
	return response["data"].([]interface{})
}
