package services

import (
	"context"

	"bridgeus/internal/models"
	"bridgeus/internal/repositories"

	"go.uber.org/zap"
)

type favoriteService struct {
	favorites    repositories.FavoriteRepository
	tasks        repositories.TaskRepository
	applications repositories.ApplicationRepository
	logger       *zap.Logger
}

// NewFavoriteService creates a new favorite service
func NewFavoriteService(repos *repositories.Collection, logger *zap.Logger) FavoriteService {
	return &favoriteService{
		favorites:    repos.Favorite,
		tasks:        repos.Task,
		applications: repos.Application,
		logger:       logger,
	}
}

// AddFavorite saves a task. Saving it twice keeps one favorite.
func (s *favoriteService) AddFavorite(ctx context.Context, studentID, taskID string) error {
	if studentID == "" || taskID == "" {
		return NewValidationError("student id and task id are required", nil)
	}
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return storeError("get task", err)
	}
	if task == nil {
		return EntityNotFoundError("task", taskID)
	}
	if err := s.favorites.Add(ctx, studentID, taskID); err != nil {
		return storeError("add favorite", err)
	}
	s.logger.Debug("Favorite added", zap.String("student_id", studentID), zap.String("task_id", taskID))
	return nil
}

func (s *favoriteService) RemoveFavorite(ctx context.Context, studentID, taskID string) error {
	if err := s.favorites.Remove(ctx, studentID, taskID); err != nil {
		return storeError("remove favorite", err)
	}
	return nil
}

// ListFavoriteTasks returns the saved tasks, most recently saved first.
// Favorites of deleted tasks are skipped.
func (s *favoriteService) ListFavoriteTasks(ctx context.Context, studentID string) ([]*models.TaskView, error) {
	favorites, err := s.favorites.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, storeError("list favorites", err)
	}

	views := make([]*models.TaskView, 0, len(favorites))
	for _, f := range favorites {
		task, err := s.tasks.GetByID(ctx, f.TaskID)
		if err != nil {
			return nil, storeError("get task", err)
		}
		if task == nil {
			continue
		}
		applied, err := s.applications.Exists(ctx, studentID, task.ID)
		if err != nil {
			return nil, storeError("check application", err)
		}
		views = append(views, &models.TaskView{Task: *task, Applied: applied, Favorited: true})
	}
	return views, nil
}
