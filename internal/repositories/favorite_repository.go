package repositories

import (
	"context"
	"fmt"

	"bridgeus/internal/models"
	"bridgeus/internal/store"

	"go.uber.org/zap"
)

type favoriteRepository struct {
	*BaseRepository
}

// NewFavoriteRepository creates a new instance of FavoriteRepository
func NewFavoriteRepository(s store.Store, logger *zap.Logger) FavoriteRepository {
	return &favoriteRepository{
		BaseRepository: NewBaseRepository(s, logger),
	}
}

func (r *favoriteRepository) Add(ctx context.Context, studentID, taskID string) error {
	err := r.store.Set(ctx, CollectionFavorites, models.FavoriteID(studentID, taskID), map[string]interface{}{
		"userId":    studentID,
		"taskId":    taskID,
		"createdAt": store.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

func (r *favoriteRepository) Remove(ctx context.Context, studentID, taskID string) error {
	if err := r.store.Delete(ctx, CollectionFavorites, models.FavoriteID(studentID, taskID)); err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

func (r *favoriteRepository) Exists(ctx context.Context, studentID, taskID string) (bool, error) {
	return r.BaseRepository.Exists(ctx, CollectionFavorites, models.FavoriteID(studentID, taskID))
}

func (r *favoriteRepository) ListByStudent(ctx context.Context, studentID string) ([]*models.Favorite, error) {
	q := store.NewQuery(CollectionFavorites).
		Where("userId", store.OpEqual, studentID).
		Order("createdAt", store.Desc)
	docs, err := r.QueryDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return decodeAll(r.logger, docs, decodeFavorite), nil
}
