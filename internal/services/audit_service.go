package services

import (
	"context"

	"github.com/sgavilanez/planea-api/internal/jobs"
	"github.com/sgavilanez/planea-api/internal/models"
	"github.com/sgavilanez/planea-api/internal/repository"
	"gorm.io/gorm"
)

type AuditService struct {
	db     *gorm.DB
	worker *jobs.Worker
}

func NewAuditService(db *gorm.DB, worker *jobs.Worker) *AuditService {
	return &AuditService{db: db, worker: worker}
}

// Log records an audit entry. With a worker attached the insert goes through
// the job queue, keeping the audit trail off the request path.
func (s *AuditService) Log(ctx context.Context, userID uint, action, entity string, entityID uint, details, ip, userAgent string) error {
	logEntry := &models.AuditLog{
		UserID:    userID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if s.worker != nil {
		s.worker.Enqueue(func(jobCtx context.Context) error {
			return s.db.Create(logEntry).Error
		})
		return nil
	}
	return s.db.Create(logEntry).Error
}

// List retrieves one page of the audit trail
func (s *AuditService) List(ctx context.Context, q *repository.ListQuery) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	if err := s.db.Model(&models.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	result := s.db.Preload("User").
		Order(q.OrderClause("created_at", "action", "entity")).
		Limit(q.PerPage).
		Offset(q.Offset()).
		Find(&logs)
	return logs, total, result.Error
}
