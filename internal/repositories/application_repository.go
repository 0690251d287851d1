package repositories

import (
	"context"
	"fmt"

	"bridgeus/internal/models"
	"bridgeus/internal/store"

	"go.uber.org/zap"
)

type applicationRepository struct {
	*BaseRepository
}

// NewApplicationRepository creates a new instance of ApplicationRepository
func NewApplicationRepository(s store.Store, logger *zap.Logger) ApplicationRepository {
	return &applicationRepository{
		BaseRepository: NewBaseRepository(s, logger),
	}
}

func (r *applicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	doc, err := r.GetDocument(ctx, CollectionApplications, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get application by ID: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeApplication(doc)
}

// Put writes the application under its composite key, replacing any
// earlier application of the same student to the same task.
func (r *applicationRepository) Put(ctx context.Context, app *models.Application) error {
	app.ID = models.ApplicationID(app.UserID, app.TaskID)
	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}

	data := map[string]interface{}{
		"userId":      app.UserID,
		"taskId":      app.TaskID,
		"message":     app.Message,
		"status":      string(app.Status),
		"appliedAt":   store.ServerTimestamp(),
		"studentName": app.Name,
	}
	if app.University != "" {
		data["studentUniversity"] = app.University
	}
	if app.Year != 0 {
		data["studentYear"] = app.Year
	}
	if app.AvatarURL != "" {
		data["studentAvatarUrl"] = app.AvatarURL
	}

	if err := r.store.Set(ctx, CollectionApplications, app.ID, data); err != nil {
		r.logger.Error("Failed to write application",
			zap.String("application_id", app.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to write application: %w", err)
	}
	return nil
}

// UpdateReview records a review decision
func (r *applicationRepository) UpdateReview(ctx context.Context, id string, status models.ApplicationStatus, reviewNote string) error {
	data := map[string]interface{}{
		"status":     string(status),
		"reviewedAt": store.ServerTimestamp(),
		"reviewNote": reviewNote,
	}
	if err := r.store.Update(ctx, CollectionApplications, id, data); err != nil {
		return fmt.Errorf("failed to review application %s: %w", id, err)
	}
	return nil
}

func (r *applicationRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, CollectionApplications, id); err != nil {
		return fmt.Errorf("failed to delete application %s: %w", id, err)
	}
	return nil
}

func (r *applicationRepository) Exists(ctx context.Context, studentID, taskID string) (bool, error) {
	return r.BaseRepository.Exists(ctx, CollectionApplications, models.ApplicationID(studentID, taskID))
}

func taskApplicationsQuery(taskID string) store.Query {
	return store.NewQuery(CollectionApplications).
		Where("taskId", store.OpEqual, taskID).
		Order("appliedAt", store.Desc)
}

func (r *applicationRepository) ListByTask(ctx context.Context, taskID string) ([]*models.Application, error) {
	docs, err := r.QueryDocuments(ctx, taskApplicationsQuery(taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to list applications for task %s: %w", taskID, err)
	}
	return decodeAll(r.logger, docs, decodeApplication), nil
}

func (r *applicationRepository) ListByStudent(ctx context.Context, studentID string) ([]*models.Application, error) {
	q := store.NewQuery(CollectionApplications).
		Where("userId", store.OpEqual, studentID).
		Order("appliedAt", store.Desc)
	docs, err := r.QueryDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications for student %s: %w", studentID, err)
	}
	return decodeAll(r.logger, docs, decodeApplication), nil
}

func (r *applicationRepository) SubscribeByTask(ctx context.Context, taskID string) (*store.Stream[[]*models.Application], error) {
	return subscribeDecoded(ctx, r.BaseRepository, taskApplicationsQuery(taskID), decodeApplication)
}

func (r *applicationRepository) CountByTask(ctx context.Context, taskID string) (int, error) {
	n, err := r.store.Count(ctx, store.NewQuery(CollectionApplications).Where("taskId", store.OpEqual, taskID))
	if err != nil {
		return 0, fmt.Errorf("failed to count applications for task %s: %w", taskID, err)
	}
	return n, nil
}
