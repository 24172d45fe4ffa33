package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/fieldops/interventions-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type ProvisionerTestSuite struct {
	suite.Suite
	db          *gorm.DB
	provisioner *Provisioner
	client      *models.User
	technician  *models.User
	assigner    *models.User
}

func (s *ProvisionerTestSuite) SetupTest() {
	t := s.T()
	s.db = setupServiceDB(t)
	s.provisioner = NewProvisioner(s.db)
	s.client = seedUser(t, s.db, "client", models.RoleClient)
	s.technician = seedUser(t, s.db, "tech", models.RoleTechnician)
	s.assigner = seedUser(t, s.db, "assigner", models.RoleAdministrator, models.CapabilityAssignTechnician)
}

func TestProvisionerTestSuite(t *testing.T) {
	suite.Run(t, new(ProvisionerTestSuite))
}

func (s *ProvisionerTestSuite) TestAssignMovesToInProgressAndCreatesRoom() {
	intervention := seedIntervention(s.T(), s.db, s.client, nil, models.StatusPending)

	result, err := s.provisioner.Assign(context.Background(), s.assigner, intervention.ID, s.technician.ID)
	s.Require().NoError(err)

	s.True(result.RoomCreated)
	s.Equal(models.StatusInProgress, result.Intervention.Status)
	s.Require().NotNil(result.Intervention.TechnicianID)
	s.Equal(s.technician.ID, *result.Intervention.TechnicianID)

	var room models.ChatRoom
	s.Require().NoError(s.db.First(&room, result.ChatRoomID).Error)
	s.Equal(s.client.ID, room.ClientID)
	s.Equal(s.technician.ID, *room.TechnicianID)
	s.Equal(intervention.ID, *room.InterventionID)
}

func (s *ProvisionerTestSuite) TestFullAccessAdminCanAssign() {
	root := seedUser(s.T(), s.db, "root", models.RoleAdministrator, models.CapabilityFullAccess)
	intervention := seedIntervention(s.T(), s.db, s.client, nil, models.StatusPending)

	_, err := s.provisioner.Assign(context.Background(), root, intervention.ID, s.technician.ID)
	s.NoError(err)
}

func (s *ProvisionerTestSuite) TestAssignRequiresCapability() {
	reporter := seedUser(s.T(), s.db, "reporter", models.RoleAdministrator, models.CapabilityViewReports)
	intervention := seedIntervention(s.T(), s.db, s.client, nil, models.StatusPending)

	for _, actor := range []*models.User{reporter, s.client, s.technician} {
		_, err := s.provisioner.Assign(context.Background(), actor, intervention.ID, s.technician.ID)

		var authErr *AuthorizationError
		s.Require().True(errors.As(err, &authErr), "actor %s", actor.Name)
		s.Equal(http.StatusUnauthorized, authErr.Status)
	}

	var count int64
	s.db.Model(&models.ChatRoom{}).Count(&count)
	s.Zero(count)
}

func (s *ProvisionerTestSuite) TestAssignUnknownTargets() {
	intervention := seedIntervention(s.T(), s.db, s.client, nil, models.StatusPending)

	_, err := s.provisioner.Assign(context.Background(), s.assigner, 9999, s.technician.ID)
	var nf *NotFoundError
	s.Require().True(errors.As(err, &nf))
	s.Equal("INTERVENTION_NOT_FOUND", nf.Code())

	// A client id is not a technician id.
	_, err = s.provisioner.Assign(context.Background(), s.assigner, intervention.ID, s.client.ID)
	s.Require().True(errors.As(err, &nf))
	s.Equal("TECHNICIAN_NOT_FOUND", nf.Code())

	_, err = s.provisioner.Assign(context.Background(), s.assigner, intervention.ID, 0)
	var ve *ValidationError
	s.True(errors.As(err, &ve))
}

func (s *ProvisionerTestSuite) TestAssignIsAtomic() {
	intervention := seedIntervention(s.T(), s.db, s.client, nil, models.StatusPending)

	// Room provisioning fails, so the assignment must not stick either.
	s.Require().NoError(s.db.Migrator().DropTable(&models.ChatRoom{}))

	_, err := s.provisioner.Assign(context.Background(), s.assigner, intervention.ID, s.technician.ID)
	s.Require().Error(err)

	var stored models.Intervention
	s.Require().NoError(s.db.First(&stored, intervention.ID).Error)
	s.Nil(stored.TechnicianID)
	s.Equal(models.StatusPending, stored.Status)
}

func (s *ProvisionerTestSuite) TestAssignReusesExistingRoom() {
	intervention := seedIntervention(s.T(), s.db, s.client, nil, models.StatusPending)
	existing := models.ChatRoom{
		RoomKey:        models.InterventionRoomKey(s.client.ID, s.technician.ID, intervention.ID),
		ClientID:       s.client.ID,
		TechnicianID:   &s.technician.ID,
		InterventionID: &intervention.ID,
	}
	s.Require().NoError(s.db.Create(&existing).Error)

	result, err := s.provisioner.Assign(context.Background(), s.assigner, intervention.ID, s.technician.ID)
	s.Require().NoError(err)

	s.False(result.RoomCreated)
	s.Equal(existing.ID, result.ChatRoomID)
}

func (s *ProvisionerTestSuite) TestReassignToAnotherTechnicianOpensSecondRoom() {
	other := seedUser(s.T(), s.db, "tech2", models.RoleTechnician)
	intervention := seedIntervention(s.T(), s.db, s.client, nil, models.StatusPending)

	first, err := s.provisioner.Assign(context.Background(), s.assigner, intervention.ID, s.technician.ID)
	s.Require().NoError(err)
	second, err := s.provisioner.Assign(context.Background(), s.assigner, intervention.ID, other.ID)
	s.Require().NoError(err)

	s.NotEqual(first.ChatRoomID, second.ChatRoomID)
	s.Equal(other.ID, *second.Intervention.TechnicianID)
}

func (s *ProvisionerTestSuite) TestAssignClosedIntervention() {
	for _, status := range []models.InterventionStatus{models.StatusCompleted, models.StatusCancelled} {
		intervention := seedIntervention(s.T(), s.db, s.client, s.technician, status)

		_, err := s.provisioner.Assign(context.Background(), s.assigner, intervention.ID, s.technician.ID)

		var conflict *StateConflictError
		s.Require().True(errors.As(err, &conflict))
		s.Equal("INTERVENTION_CLOSED", conflict.Code)
	}
}

func (s *ProvisionerTestSuite) TestRespondToSupport() {
	admin := seedUser(s.T(), s.db, "helpdesk", models.RoleAdministrator)
	request := models.SupportRequest{ClientID: s.client.ID, Subject: "Access", Message: "Locked out", Status: models.SupportStatusOpen}
	s.Require().NoError(s.db.Create(&request).Error)

	first, err := s.provisioner.RespondToSupport(context.Background(), admin, request.ID, "")
	s.Require().NoError(err)
	s.True(first.RoomCreated)
	s.Equal(models.SupportStatusInProgress, first.SupportRequest.Status)

	second, err := s.provisioner.RespondToSupport(context.Background(), admin, request.ID, "Any luck?")
	s.Require().NoError(err)
	s.False(second.RoomCreated)
	s.Equal(first.ChatRoomID, second.ChatRoomID)

	var messages []models.ChatMessage
	s.Require().NoError(s.db.Where("chat_room_id = ?", first.ChatRoomID).Order("id").Find(&messages).Error)
	s.Require().Len(messages, 2)
	s.Equal(defaultSupportGreeting, messages[0].Content)
	s.Equal("Any luck?", messages[1].Content)
}

// The test database holds a single connection, so these calls queue up and
// run their transactions one after another. This checks that every caller
// lands on the same room; a true insert race needs a multi-connection
// database such as Postgres.
func TestAssign_OverlappingCallsShareOneRoom(t *testing.T) {
	db := setupServiceDB(t)
	provisioner := NewProvisioner(db)
	client := seedUser(t, db, "client", models.RoleClient)
	technician := seedUser(t, db, "tech", models.RoleTechnician)
	admin := seedUser(t, db, "admin", models.RoleAdministrator, models.CapabilityFullAccess)
	intervention := seedIntervention(t, db, client, nil, models.StatusPending)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*AssignmentResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = provisioner.Assign(context.Background(), admin, intervention.ID, technician.ID)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ChatRoomID, results[i].ChatRoomID)
		if results[i].RoomCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)

	var count int64
	db.Model(&models.ChatRoom{}).Where("intervention_id = ?", intervention.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}
