// file: internal/repositories/session_repository.go
package repositories

import (
	"context"
	"fmt"
	"time"

	"bridgeus/internal/models"
	"bridgeus/internal/store"

	"go.uber.org/zap"
)

// sessionRepository implements SessionRepository
type sessionRepository struct {
	*BaseRepository
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(s store.Store, logger *zap.Logger) SessionRepository {
	return &sessionRepository{
		BaseRepository: NewBaseRepository(s, logger),
	}
}

// Create stores a session. The id is copied into the body so a single
// session can be watched with an equality query.
func (r *sessionRepository) Create(ctx context.Context, session *models.AuthSession) error {
	if session.ID == "" {
		session.ID = store.NewID()
	}
	err := r.store.Set(ctx, CollectionSessions, session.ID, map[string]interface{}{
		"sessionId": session.ID,
		"userId":    session.UserID,
		"expiresAt": session.ExpiresAt,
		"userAgent": session.UserAgent,
		"ipAddress": session.IPAddress,
		"createdAt": store.ServerTimestamp(),
	})
	if err != nil {
		r.logger.Error("Failed to create session",
			zap.String("user_id", session.UserID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*models.AuthSession, error) {
	doc, err := r.GetDocument(ctx, CollectionSessions, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeAuthSession(doc)
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, CollectionSessions, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUser revokes every session of a user
func (r *sessionRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	docs, err := r.QueryDocuments(ctx, store.NewQuery(CollectionSessions).Where("userId", store.OpEqual, userID))
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return r.deleteAll(ctx, docs)
}

// Subscribe watches one session. The stream yields nil once it is deleted.
func (r *sessionRepository) Subscribe(ctx context.Context, id string) (*store.Stream[*models.AuthSession], error) {
	q := store.NewQuery(CollectionSessions).Where("sessionId", store.OpEqual, id)
	src, err := r.store.Subscribe(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to watch session: %w", err)
	}
	return store.Map(ctx, src, r.logger, func(_ context.Context, snap *store.Snapshot) (*models.AuthSession, error) {
		if snap.Size() == 0 {
			return nil, nil
		}
		return decodeAuthSession(snap.Documents[0])
	}), nil
}

// CleanupExpired deletes sessions that expired before now
func (r *sessionRepository) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	docs, err := r.QueryDocuments(ctx, store.NewQuery(CollectionSessions))
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	var expired []*store.Document
	for _, d := range docs {
		s, _ := decodeAuthSession(d)
		if s.ExpiresAt.Before(now) {
			expired = append(expired, d)
		}
	}
	n, err := r.deleteAll(ctx, expired)
	if err == nil && n > 0 {
		r.logger.Info("Expired sessions cleaned up", zap.Int("count", n))
	}
	return n, err
}

func (r *sessionRepository) deleteAll(ctx context.Context, docs []*store.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	batch := r.store.Batch()
	for _, d := range docs {
		batch.Delete(CollectionSessions, d.ID)
	}
	if err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return len(docs), nil
}
