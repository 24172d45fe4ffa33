package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldops/interventions-api/models"
	"github.com/fieldops/interventions-api/services"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// LifecycleAcceptanceSuite drives a running server over real HTTP, the way a
// mobile client would.
type LifecycleAcceptanceSuite struct {
	suite.Suite
	server  *httptest.Server
	db      *gorm.DB
	storage *services.MockS3Service

	client     *models.User
	technician *models.User
	dispatcher *models.User
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *LifecycleAcceptanceSuite) SetupTest() {
	router, db := setupTestApp(s.T(), testConfig())
	s.db = db
	s.server = httptest.NewServer(router)

	s.storage = services.NewMockS3Service()
	s.storage.SetAsMockForTesting()

	s.client = seedAccount(s.T(), db, "auth0|client", models.RoleClient)
	s.technician = seedAccount(s.T(), db, "auth0|tech", models.RoleTechnician)
	s.dispatcher = seedAccount(s.T(), db, "auth0|dispatcher", models.RoleAdministrator,
		string(models.CapabilityAssignTechnician), string(models.CapabilityManageUsers))
}

func (s *LifecycleAcceptanceSuite) TearDownTest() {
	s.server.Close()
	services.SetS3Service(nil)
}

func (s *LifecycleAcceptanceSuite) do(method, path, subject string, body interface{}) (int, envelope) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+subject)
	return s.send(req)
}

func (s *LifecycleAcceptanceSuite) send(req *http.Request) (int, envelope) {
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var env envelope
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *LifecycleAcceptanceSuite) upload(interventionID uint, subject, filename string) (int, envelope) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filename)
	s.Require().NoError(err)
	_, err = part.Write([]byte("jpeg bytes"))
	s.Require().NoError(err)
	s.Require().NoError(writer.Close())

	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/api/v1/interventions/%d/evidence/photos", s.server.URL, interventionID), &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+subject)
	return s.send(req)
}

func (s *LifecycleAcceptanceSuite) TestInterventionLifecycle() {
	// The client reports a broken printer.
	status, env := s.do(http.MethodPost, "/api/v1/interventions", "auth0|client", map[string]interface{}{
		"title":       "Printer jam",
		"description": "Tray 2 jams on every job",
		"category":    "it_support",
		"location":    "Floor 3",
	})
	s.Require().Equal(http.StatusCreated, status)
	var intervention models.Intervention
	s.Require().NoError(json.Unmarshal(env.Data, &intervention))
	s.Equal(models.StatusPending, intervention.Status)

	// A dispatcher assigns the technician, which opens the chat room.
	status, env = s.do(http.MethodPut, fmt.Sprintf("/api/v1/interventions/assign-technician/%d", intervention.ID),
		"auth0|dispatcher", map[string]uint{"technicianId": s.technician.ID})
	s.Require().Equal(http.StatusOK, status)
	var assignment struct {
		Intervention models.Intervention `json:"intervention"`
		ChatRoomID   uint                `json:"chatRoomId"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &assignment))
	s.NotZero(assignment.ChatRoomID)
	s.Equal(models.StatusInProgress, assignment.Intervention.Status)

	// Both parties see the same room and can talk in it.
	status, _ = s.do(http.MethodPost, fmt.Sprintf("/api/v1/chat/rooms/%d/messages", assignment.ChatRoomID),
		"auth0|tech", map[string]string{"content": "On my way"})
	s.Require().Equal(http.StatusCreated, status)

	status, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/chat/rooms/%d/messages", assignment.ChatRoomID), "auth0|client", nil)
	s.Require().Equal(http.StatusOK, status)
	var messages []models.ChatMessage
	s.Require().NoError(json.Unmarshal(env.Data, &messages))
	s.Require().Len(messages, 1)
	s.Equal("On my way", messages[0].Content)

	// Re-submitting the current status is a harmless no-op.
	status, _ = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/interventions/%d/status", intervention.ID),
		"auth0|tech", map[string]string{"status": "In Progress"})
	s.Require().Equal(http.StatusOK, status)

	// Closing without a photo is refused and leaves the intervention open.
	status, env = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/interventions/%d/status", intervention.ID),
		"auth0|tech", map[string]interface{}{"status": "Completed", "attachments": []string{}})
	s.Equal(http.StatusBadRequest, status)
	s.Require().NotNil(env.Error)
	s.Equal("EVIDENCE_REQUIRED", env.Error.Code)

	// Upload the evidence, then close with it.
	status, env = s.upload(intervention.ID, "auth0|tech", "fixed.jpg")
	s.Require().Equal(http.StatusCreated, status)
	var photo struct {
		Key string `json:"key"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &photo))
	s.True(s.storage.FileExists(photo.Key))

	status, env = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/interventions/%d/status", intervention.ID),
		"auth0|tech", map[string]interface{}{
			"status":      "Completed",
			"attachments": []string{photo.Key},
			"notes":       "Replaced the pickup roller",
		})
	s.Require().Equal(http.StatusOK, status)
	s.Require().NoError(json.Unmarshal(env.Data, &intervention))
	s.Equal(models.StatusCompleted, intervention.Status)
	s.Equal([]string{photo.Key}, intervention.Evidence.Photos)

	// The client rates the visit once.
	status, _ = s.do(http.MethodPost, fmt.Sprintf("/api/v1/feedback/%d", intervention.ID),
		"auth0|client", map[string]interface{}{"rating": 4, "comment": "Quick fix"})
	s.Require().Equal(http.StatusCreated, status)

	status, env = s.do(http.MethodPost, fmt.Sprintf("/api/v1/feedback/%d", intervention.ID),
		"auth0|client", map[string]interface{}{"rating": 5})
	s.Equal(http.StatusNotFound, status)
	s.Require().NotNil(env.Error)
	s.Equal("INTERVENTION_NOT_FOUND", env.Error.Code)

	// The rating lands on the technician's profile.
	status, env = s.do(http.MethodGet, "/api/v1/admin/users?role=technician", "auth0|dispatcher", nil)
	s.Require().Equal(http.StatusOK, status)
	var technicians []models.UserResponse
	s.Require().NoError(json.Unmarshal(env.Data, &technicians))
	s.Require().Len(technicians, 1)
	s.Require().NotNil(technicians[0].Technician)
	s.Equal(4.0, technicians[0].Technician.AvgRating)
}

func (s *LifecycleAcceptanceSuite) TestSupportRequestOpensAdminRoom() {
	status, env := s.do(http.MethodPost, "/api/v1/support", "auth0|client", map[string]string{
		"subject": "Billing question",
		"message": "I was charged twice",
	})
	s.Require().Equal(http.StatusCreated, status)
	var request models.SupportRequest
	s.Require().NoError(json.Unmarshal(env.Data, &request))

	status, env = s.do(http.MethodPost, fmt.Sprintf("/api/v1/support/admin/respond/%d", request.ID),
		"auth0|dispatcher", map[string]string{"message": "Looking into it"})
	s.Require().Equal(http.StatusCreated, status)
	var response struct {
		ChatRoomID uint `json:"chatRoomId"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &response))

	// Responding again reuses the room.
	status, env = s.do(http.MethodPost, fmt.Sprintf("/api/v1/support/admin/respond/%d", request.ID),
		"auth0|dispatcher", nil)
	s.Require().Equal(http.StatusCreated, status)
	var again struct {
		ChatRoomID uint `json:"chatRoomId"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &again))
	s.Equal(response.ChatRoomID, again.ChatRoomID)

	status, env = s.do(http.MethodGet, "/api/v1/chat/rooms", "auth0|client", nil)
	s.Require().Equal(http.StatusOK, status)
	var rooms []models.ChatRoom
	s.Require().NoError(json.Unmarshal(env.Data, &rooms))
	s.Require().Len(rooms, 1)
	s.Equal(response.ChatRoomID, rooms[0].ID)
}

func (s *LifecycleAcceptanceSuite) TestClientCannotCloseIntervention() {
	status, env := s.do(http.MethodPost, "/api/v1/interventions", "auth0|client", map[string]string{
		"title":       "Leaking tap",
		"description": "Kitchen tap drips",
		"category":    "plumbing",
	})
	s.Require().Equal(http.StatusCreated, status)
	var intervention models.Intervention
	s.Require().NoError(json.Unmarshal(env.Data, &intervention))

	status, env = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/interventions/%d/status", intervention.ID),
		"auth0|client", map[string]interface{}{"status": "Completed", "attachments": []string{"a.jpg"}})
	s.Equal(http.StatusForbidden, status)
	s.Require().NotNil(env.Error)
	s.Equal("FORBIDDEN", env.Error.Code)
}

func TestLifecycleAcceptanceSuite(t *testing.T) {
	suite.Run(t, new(LifecycleAcceptanceSuite))
}
