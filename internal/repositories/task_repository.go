// file: internal/repositories/task_repository.go
package repositories

import (
	"context"
	"fmt"

	"bridgeus/internal/models"
	"bridgeus/internal/store"

	"go.uber.org/zap"
)

// taskRepository implements TaskRepository on the tasks collection
type taskRepository struct {
	*BaseRepository
}

// NewTaskRepository creates a new instance of TaskRepository
func NewTaskRepository(s store.Store, logger *zap.Logger) TaskRepository {
	return &taskRepository{
		BaseRepository: NewBaseRepository(s, logger),
	}
}

// Create writes a new task and fills in its id and timestamps
func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = store.NewID()
	}
	categories := task.Categories
	if categories == nil {
		categories = []string{}
	}

	data := map[string]interface{}{
		"title":          task.Title,
		"companyId":      task.CompanyID,
		"company":        task.Company,
		"companyLogoUrl": task.CompanyLogoURL,
		"description":    task.Description,
		"deadline":       task.Deadline,
		"reward":         task.Reward,
		"categories":     categories,
		"category":       legacyCategory(categories),
		"status":         string(task.Status),
		"applicantCount": task.ApplicantCount,
		"createdAt":      store.ServerTimestamp(),
		"updatedAt":      store.ServerTimestamp(),
	}

	if err := r.store.Set(ctx, CollectionTasks, task.ID, data); err != nil {
		r.logger.Error("Failed to create task",
			zap.Error(err),
			zap.String("company_id", task.CompanyID),
			zap.String("title", task.Title),
		)
		return fmt.Errorf("failed to create task: %w", err)
	}

	stored, err := r.GetByID(ctx, task.ID)
	if err != nil {
		return err
	}
	if stored != nil {
		task.CreatedAt = stored.CreatedAt
		task.UpdatedAt = stored.UpdatedAt
	}

	r.logger.Info("Task created successfully",
		zap.String("task_id", task.ID),
		zap.String("company_id", task.CompanyID),
	)
	return nil
}

// GetByID returns the normalized task, or nil when it does not exist
func (r *taskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	doc, err := r.GetDocument(ctx, CollectionTasks, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task by ID: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeTask(doc)
}

// Update merges the provided fields. Changing categories rewrites the
// legacy category field too.
func (r *taskRepository) Update(ctx context.Context, id string, update TaskUpdate) error {
	data := map[string]interface{}{
		"updatedAt": store.ServerTimestamp(),
	}
	if update.Title != nil {
		data["title"] = *update.Title
	}
	if update.Description != nil {
		data["description"] = *update.Description
	}
	if update.Deadline != nil {
		data["deadline"] = *update.Deadline
	}
	if update.Reward != nil {
		data["reward"] = *update.Reward
	}
	if update.Categories != nil {
		data["categories"] = update.Categories
		data["category"] = legacyCategory(update.Categories)
	}
	if update.Status != nil {
		data["status"] = string(*update.Status)
	}

	if err := r.store.Update(ctx, CollectionTasks, id, data); err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return nil
}

// Delete removes the task document
func (r *taskRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, CollectionTasks, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	r.logger.Info("Task deleted", zap.String("task_id", id))
	return nil
}

// ===============================
// LISTING
// ===============================

// allTasksQuery covers every status. Legacy tasks without a status only
// become published after normalization, so filtering happens in Go.
func allTasksQuery() store.Query {
	return store.NewQuery(CollectionTasks).Order("createdAt", store.Desc)
}

func companyTasksQuery(companyID string) store.Query {
	return store.NewQuery(CollectionTasks).
		Where("companyId", store.OpEqual, companyID).
		Order("createdAt", store.Desc)
}

func (r *taskRepository) ListAll(ctx context.Context) ([]*models.Task, error) {
	docs, err := r.QueryDocuments(ctx, allTasksQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return decodeAll(r.logger, docs, decodeTask), nil
}

func (r *taskRepository) ListByCompany(ctx context.Context, companyID string) ([]*models.Task, error) {
	docs, err := r.QueryDocuments(ctx, companyTasksQuery(companyID))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for company %s: %w", companyID, err)
	}
	return decodeAll(r.logger, docs, decodeTask), nil
}

func (r *taskRepository) SubscribeAll(ctx context.Context) (*store.Stream[[]*models.Task], error) {
	return subscribeDecoded(ctx, r.BaseRepository, allTasksQuery(), decodeTask)
}

func (r *taskRepository) SubscribeByCompany(ctx context.Context, companyID string) (*store.Stream[[]*models.Task], error) {
	return subscribeDecoded(ctx, r.BaseRepository, companyTasksQuery(companyID), decodeTask)
}

// ===============================
// COUNTERS
// ===============================

// IncrementApplicantCount adjusts applicantCount atomically
func (r *taskRepository) IncrementApplicantCount(ctx context.Context, id string, delta int64) error {
	err := r.store.Update(ctx, CollectionTasks, id, map[string]interface{}{
		"applicantCount": store.Increment(delta),
	})
	if err != nil {
		return fmt.Errorf("failed to adjust applicant count of task %s: %w", id, err)
	}
	return nil
}

// SetApplicantCount overwrites applicantCount, used by reconciliation
func (r *taskRepository) SetApplicantCount(ctx context.Context, id string, count int) error {
	err := r.store.Update(ctx, CollectionTasks, id, map[string]interface{}{
		"applicantCount": count,
	})
	if err != nil {
		return fmt.Errorf("failed to set applicant count of task %s: %w", id, err)
	}
	return nil
}
