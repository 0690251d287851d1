package repositories

import (
	"context"
	"fmt"

	"bridgeus/internal/models"
	"bridgeus/internal/store"

	"go.uber.org/zap"
)

type notificationRepository struct {
	*BaseRepository
}

// NewNotificationRepository creates a new instance of NotificationRepository
func NewNotificationRepository(s store.Store, logger *zap.Logger) NotificationRepository {
	return &notificationRepository{
		BaseRepository: NewBaseRepository(s, logger),
	}
}

// Create writes an unread notification and returns its id
func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) (string, error) {
	data := map[string]interface{}{
		"userId":    n.UserID,
		"type":      string(n.Type),
		"title":     n.Title,
		"body":      n.Body,
		"read":      false,
		"createdAt": store.ServerTimestamp(),
	}
	optional := map[string]string{
		"taskId":      n.TaskID,
		"chatId":      n.ChatID,
		"taskTitle":   n.TaskTitle,
		"companyName": n.CompanyName,
		"studentName": n.StudentName,
	}
	for k, v := range optional {
		if v != "" {
			data[k] = v
		}
	}

	id, err := r.store.Add(ctx, CollectionNotifications, data)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("user_id", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to create notification: %w", err)
	}
	n.ID = id
	return id, nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	doc, err := r.GetDocument(ctx, CollectionNotifications, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeNotification(doc)
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	if err := r.store.Update(ctx, CollectionNotifications, id, map[string]interface{}{"read": true}); err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks exactly the notifications unread at call time in one
// batch and returns how many were updated. Legacy documents are included
// because unread state is judged after normalization.
func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	notifications, err := r.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	batch := r.store.Batch()
	for _, n := range notifications {
		if !n.Read {
			batch.Update(CollectionNotifications, n.ID, map[string]interface{}{"read": true})
		}
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	if err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}

	r.logger.Debug("Marked notifications read",
		zap.String("user_id", userID),
		zap.Int("count", batch.Len()),
	)
	return batch.Len(), nil
}

func userNotificationsQuery(userID string) store.Query {
	return store.NewQuery(CollectionNotifications).
		Where("userId", store.OpEqual, userID).
		Order("createdAt", store.Desc)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string) ([]*models.Notification, error) {
	docs, err := r.QueryDocuments(ctx, userNotificationsQuery(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return decodeAll(r.logger, docs, decodeNotification), nil
}

func (r *notificationRepository) SubscribeByUser(ctx context.Context, userID string) (*store.Stream[[]*models.Notification], error) {
	return subscribeDecoded(ctx, r.BaseRepository, userNotificationsQuery(userID), decodeNotification)
}
