package services

import (
	"context"

	"github.com/fieldops/interventions-api/models"
	"gorm.io/gorm"
)

// TechnicianRating is one row of the ratings report.
type TechnicianRating struct {
	TechnicianID  uint    `json:"technicianId"`
	Name          string  `json:"name"`
	AvgRating     float64 `json:"avgRating"`
	FeedbackCount int64   `json:"feedbackCount"`
}

// Report summarises intervention activity for administrators.
type Report struct {
	InterventionsByStatus map[models.InterventionStatus]int64 `json:"interventionsByStatus"`
	OpenSupportRequests   int64                               `json:"openSupportRequests"`
	Technicians           []TechnicianRating                  `json:"technicians"`
}

// ReportService builds administrator reports.
type ReportService struct {
	db *gorm.DB
}

// NewReportService creates a report service on db
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// Summary needs view_reports.
func (s *ReportService) Summary(ctx context.Context, actor *models.User) (*Report, error) {
	if !models.Authorize(actor, models.CapabilityViewReports) {
		return nil, missingCapability("view_reports permission required")
	}
	db := s.db.WithContext(ctx)

	report := &Report{InterventionsByStatus: map[models.InterventionStatus]int64{
		models.StatusPending:    0,
		models.StatusInProgress: 0,
		models.StatusCompleted:  0,
		models.StatusCancelled:  0,
	}}

	var counts []struct {
		Status models.InterventionStatus
		Total  int64
	}
	err := db.Model(&models.Intervention{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		report.InterventionsByStatus[c.Status] = c.Total
	}

	if err := db.Model(&models.SupportRequest{}).
		Where("status <> ?", models.SupportStatusResolved).
		Count(&report.OpenSupportRequests).Error; err != nil {
		return nil, err
	}

	err = db.Model(&models.User{}).
		Select("users.id AS technician_id, users.name, users.avg_rating, COUNT(feedback.id) AS feedback_count").
		Joins("LEFT JOIN interventions ON interventions.technician_id = users.id AND interventions.deleted_at IS NULL").
		Joins("LEFT JOIN feedback ON feedback.intervention_id = interventions.id").
		Where("users.role = ?", models.RoleTechnician).
		Group("users.id, users.name, users.avg_rating").
		Order("users.avg_rating DESC, users.id ASC").
		Scan(&report.Technicians).Error
	if err != nil {
		return nil, err
	}
	if report.Technicians == nil {
		report.Technicians = []TechnicianRating{}
	}
	return report, nil
}
