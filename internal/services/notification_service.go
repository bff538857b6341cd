package services

import (
	"context"
	"errors"

	"github.com/sgavilanez/planea-api/internal/jobs"
	"github.com/sgavilanez/planea-api/internal/models"
	"github.com/sgavilanez/planea-api/internal/repository"
)

type NotificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	worker   *jobs.Worker
}

func NewNotificationService(repo repository.NotificationRepository, userRepo repository.UserRepository, worker *jobs.Worker) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, worker: worker}
}

func (s *NotificationService) FindByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	return s.repo.FindByUser(ctx, userID, limit)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// NotifyUser records an in-app notification. With a worker attached the write
// happens off the request path; the worker logs and counts failures.
func (s *NotificationService) NotifyUser(ctx context.Context, userID uint, title, message, notifType string) error {
	notification := &models.Notification{
		UserID:           userID,
		Title:            title,
		Message:          message,
		NotificationType: &notifType,
	}
	if s.worker != nil {
		s.worker.EnqueueAsync(func(jobCtx context.Context) error {
			return s.repo.Create(jobCtx, notification)
		})
		return nil
	}
	return s.repo.Create(ctx, notification)
}

// NotifyAdmins fans one notification out to every admin. A failed write for
// one admin does not stop the rest; all failures are reported together.
func (s *NotificationService) NotifyAdmins(ctx context.Context, title, message, notifType string) error {
	admins, err := s.userRepo.FindAdmins(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, admin := range admins {
		notification := &models.Notification{
			UserID:           admin.ID,
			Title:            title,
			Message:          message,
			NotificationType: &notifType,
		}
		if err := s.repo.Create(ctx, notification); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
