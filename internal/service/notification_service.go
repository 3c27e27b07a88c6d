package service

import (
	"context"
	"errors"
	"fmt"

	"hygienix/backend/internal/model"
	"hygienix/backend/internal/repository"
)

// NotificationService reads and acknowledges the admin audit feed.
type NotificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) List(ctx context.Context) ([]model.Notification, error) {
	return s.repo.ListNotifications(ctx)
}

func (s *NotificationService) MarkRead(ctx context.Context, id int64) error {
	err := s.repo.MarkRead(ctx, id)
	if errors.Is(err, repository.ErrNotificationNotFound) {
		return fmt.Errorf("%w: notification %d", ErrNotFound, id)
	}
	return err
}
