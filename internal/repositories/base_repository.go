package repositories

import (
	"context"
	"errors"
	"fmt"

	"bridgeus/internal/store"

	"go.uber.org/zap"
)

// Collection names
const (
	CollectionUsers          = "users"
	CollectionTasks          = "tasks"
	CollectionApplications   = "applications"
	CollectionFavorites      = "favorites"
	CollectionChatRooms      = "chatRooms"
	CollectionNotifications  = "notifications"
	CollectionAccounts       = "accounts"
	CollectionAccountEmails  = "accountEmails"
	CollectionSessions       = "sessions"
	CollectionPasswordResets = "passwordResets"
)

// MessagesCollection is the message collection nested under a chat room
func MessagesCollection(roomID string) string {
	return CollectionChatRooms + "/" + roomID + "/messages"
}

// BaseRepository provides the store operations shared by every repository
type BaseRepository struct {
	store  store.Store
	logger *zap.Logger
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(s store.Store, logger *zap.Logger) *BaseRepository {
	return &BaseRepository{
		store:  s,
		logger: logger,
	}
}

// ===============================
// CORE STORE OPERATIONS
// ===============================

// GetDocument returns the document or nil when it does not exist
func (r *BaseRepository) GetDocument(ctx context.Context, collection, id string) (*store.Document, error) {
	doc, err := r.store.Get(ctx, collection, id)
	if err != nil {
		if r.IsNotFound(err) {
			return nil, nil
		}
		r.logger.Error("Failed to get document",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err),
		)
		return nil, err
	}
	return doc, nil
}

// Exists reports whether the document exists
func (r *BaseRepository) Exists(ctx context.Context, collection, id string) (bool, error) {
	doc, err := r.GetDocument(ctx, collection, id)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// QueryDocuments runs q and logs failures
func (r *BaseRepository) QueryDocuments(ctx context.Context, q store.Query) ([]*store.Document, error) {
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		r.logger.Error("Query execution failed",
			zap.String("query", q.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return docs, nil
}

// Store returns the underlying document store
func (r *BaseRepository) Store() store.Store {
	return r.store
}

// GetLogger returns the logger instance
func (r *BaseRepository) GetLogger() *zap.Logger {
	return r.logger
}

// IsNotFound checks if the error means the document does not exist
func (r *BaseRepository) IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// ===============================
// DECODING
// ===============================

// decodeAll decodes docs, skipping the ones decode rejects
func decodeAll[T any](logger *zap.Logger, docs []*store.Document, decode func(*store.Document) (T, error)) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := decode(d)
		if err != nil {
			logger.Warn("Skipping undecodable document",
				zap.String("path", d.Path()),
				zap.Error(err),
			)
			continue
		}
		out = append(out, v)
	}
	return out
}

// subscribeDecoded subscribes to q and decodes every snapshot
func subscribeDecoded[T any](ctx context.Context, r *BaseRepository, q store.Query, decode func(*store.Document) (T, error)) (*store.Stream[[]T], error) {
	src, err := r.store.Subscribe(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", q.Collection, err)
	}
	return store.Map(ctx, src, r.logger, func(_ context.Context, snap *store.Snapshot) ([]T, error) {
		return decodeAll(r.logger, snap.Documents, decode), nil
	}), nil
}
