package services

import (
	"testing"

	"github.com/fieldops/interventions-api/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to connect to test database")

	// Every connection to ":memory:" is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Intervention{},
		&models.ChatRoom{},
		&models.ChatMessage{},
		&models.Feedback{},
		&models.SupportRequest{},
	), "Failed to migrate test database")
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, role models.Role, permissions ...models.Capability) *models.User {
	user := &models.User{
		Name:  name,
		Email: name + "@example.com",
		Role:  role,
	}
	switch role {
	case models.RoleTechnician:
		user.Technician = models.TechnicianProfile{SkillsList: []string{}, Status: models.TechnicianAvailable}
	case models.RoleAdministrator:
		perms := make([]string, 0, len(permissions))
		for _, p := range permissions {
			perms = append(perms, string(p))
		}
		user.Administrator = models.AdministratorProfile{PermissionsList: perms}
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedIntervention(t *testing.T, db *gorm.DB, client, technician *models.User, status models.InterventionStatus) *models.Intervention {
	intervention := &models.Intervention{
		Title:       "Printer jam",
		Description: "Jams on every page",
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
