package services

import (
	"context"

	"bridgeus/internal/models"
	"bridgeus/internal/repositories"
	"bridgeus/internal/store"

	"go.uber.org/zap"
)

type notificationService struct {
	notifications repositories.NotificationRepository
	logger        *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(repos *repositories.Collection, logger *zap.Logger) NotificationService {
	return &notificationService{
		notifications: repos.Notification,
		logger:        logger,
	}
}

func (s *notificationService) ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	list, err := s.notifications.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError("list notifications", err)
	}
	return list, nil
}

// MarkAsRead marks one of the user's notifications read
func (s *notificationService) MarkAsRead(ctx context.Context, notificationID, userID string) error {
	n, err := s.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return storeError("get notification", err)
	}
	if n == nil {
		return EntityNotFoundError("notification", notificationID)
	}
	if n.UserID != userID {
		return NotOwnerError("read", "notifications", userID)
	}
	if n.Read {
		return nil
	}
	if err := s.notifications.MarkRead(ctx, notificationID); err != nil {
		return storeError("mark notification read", err)
	}
	return nil
}

// MarkAllAsRead marks the notifications unread right now and returns how many
func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	n, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, storeError("mark notifications read", err)
	}
	if n > 0 {
		s.logger.Info("Notifications marked read", zap.String("user_id", userID), zap.Int("count", n))
	}
	return n, nil
}

func (s *notificationService) SubscribeNotifications(ctx context.Context, userID string) (*store.Stream[[]*models.Notification], error) {
	stream, err := s.notifications.SubscribeByUser(ctx, userID)
	if err != nil {
		return nil, storeError("subscribe to notifications", err)
	}
	return stream, nil
}

// SubscribeUnreadCount streams the number of unread notifications
func (s *notificationService) SubscribeUnreadCount(ctx context.Context, userID string) (*store.Stream[int], error) {
	src, err := s.SubscribeNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	return store.Map(ctx, src, s.logger, func(_ context.Context, list []*models.Notification) (int, error) {
		unread := 0
		for _, n := range list {
			if !n.Read {
				unread++
			}
		}
		return unread, nil
	}), nil
}
