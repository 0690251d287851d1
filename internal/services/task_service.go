// file: internal/services/task_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"bridgeus/internal/events"
	"bridgeus/internal/models"
	"bridgeus/internal/repositories"
	"bridgeus/internal/store"
	"bridgeus/internal/utils"
	"bridgeus/internal/validation"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const counterPublishedTasks = "publishedTaskCount"

type taskService struct {
	tasks        repositories.TaskRepository
	applications repositories.ApplicationRepository
	favorites    repositories.FavoriteRepository
	users        repositories.UserRepository
	events       events.EventBus
	retry        RetryPolicy
	logger       *zap.Logger
}

// NewTaskService creates a new task service
func NewTaskService(repos *repositories.Collection, bus events.EventBus, retry RetryPolicy, logger *zap.Logger) TaskService {
	return &taskService{
		tasks:        repos.Task,
		applications: repos.Application,
		favorites:    repos.Favorite,
		users:        repos.User,
		events:       bus,
		retry:        retry,
		logger:       logger,
	}
}

// ===============================
// COMPANY SIDE
// ===============================

// CreateTask posts a task under the company's current name and logo
func (s *taskService) CreateTask(ctx context.Context, companyID string, req *TaskInput) (*models.Task, error) {
	if req == nil {
		return nil, NewValidationError("task is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, validationFailed("invalid task", err)
	}

	company, err := s.company(ctx, companyID)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.TaskStatusPublished
	}
	task := &models.Task{
		Title:          strings.TrimSpace(req.Title),
		CompanyID:      company.ID,
		Company:        company.CompanyName,
		CompanyLogoURL: company.LogoURL,
		Description:    req.Description,
		Deadline:       req.Deadline,
		Reward:         req.Reward,
		Categories:     req.Categories,
		Status:         status,
	}
	if errs := task.Validate(); errs.HasErrors() {
		return nil, validationFailed("invalid task", errs)
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, storeError("create task", err)
	}
	if status == models.TaskStatusPublished {
		s.adjustPublished(ctx, task.ID, companyID, 1)
	}

	s.publish(ctx, events.NewTaskEvent(events.EventTaskCreated, task.ID, companyID, "", string(status)))
	s.logger.Info("Task created",
		zap.String("task_id", task.ID),
		zap.String("company_id", companyID),
		zap.String("status", string(status)),
	)
	return task, nil
}

// UpdateTask merges the provided fields into a task the company owns
func (s *taskService) UpdateTask(ctx context.Context, taskID, companyID string, req *TaskUpdateInput) (*models.Task, error) {
	if req == nil {
		return nil, NewValidationError("task update is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, validationFailed("invalid task update", err)
	}

	task, err := s.ownedTask(ctx, taskID, companyID, "update")
	if err != nil {
		return nil, err
	}

	// validate the merged result
	merged := *task
	if req.Title != nil {
		merged.Title = strings.TrimSpace(*req.Title)
		req.Title = &merged.Title
	}
	if req.Description != nil {
		merged.Description = *req.Description
	}
	if req.Deadline != nil {
		merged.Deadline = *req.Deadline
	}
	if req.Reward != nil {
		merged.Reward = *req.Reward
	}
	if req.Categories != nil {
		merged.Categories = req.Categories
	}
	if req.Status != nil {
		merged.Status = *req.Status
	}
	if errs := merged.Validate(); errs.HasErrors() {
		return nil, validationFailed("invalid task update", errs)
	}

	update := repositories.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		Reward:      req.Reward,
		Categories:  req.Categories,
		Status:      req.Status,
	}
	if err := s.tasks.Update(ctx, taskID, update); err != nil {
		return nil, storeError("update task", err)
	}
	s.afterStatusChange(ctx, task, merged.Status)

	return s.reload(ctx, taskID)
}

// SetTaskStatus publishes, unpublishes, closes or drafts a task
func (s *taskService) SetTaskStatus(ctx context.Context, taskID, companyID string, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, NewDetailedValidationError("invalid task status", []FieldError{{
			Field:   "status",
			Value:   status,
			Message: "status must be one of: draft, published, unpublished, closed",
			Code:    "invalid_value",
		}})
	}

	task, err := s.ownedTask(ctx, taskID, companyID, "update")
	if err != nil {
		return nil, err
	}
	if task.Status == status {
		return task, nil
	}

	if err := s.tasks.Update(ctx, taskID, repositories.TaskUpdate{Status: &status}); err != nil {
		return nil, storeError("update task status", err)
	}
	s.afterStatusChange(ctx, task, status)

	return s.reload(ctx, taskID)
}

// DeleteTask removes a task the company owns. Applications and chat rooms
// stay for history.
func (s *taskService) DeleteTask(ctx context.Context, taskID, companyID string) error {
	task, err := s.ownedTask(ctx, taskID, companyID, "delete")
	if err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return storeError("delete task", err)
	}
	if task.Status == models.TaskStatusPublished {
		s.adjustPublished(ctx, taskID, companyID, -1)
	}

	s.publish(ctx, events.NewTaskEvent(events.EventTaskDeleted, taskID, companyID, string(task.Status), ""))
	s.logger.Info("Task deleted",
		zap.String("task_id", taskID),
		zap.String("company_id", companyID),
	)
	return nil
}

func (s *taskService) ListCompanyTasks(ctx context.Context, companyID string) ([]*models.Task, error) {
	tasks, err := s.tasks.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, storeError("list company tasks", err)
	}
	return tasks, nil
}

func (s *taskService) SubscribeCompanyTasks(ctx context.Context, companyID string) (*store.Stream[[]*models.Task], error) {
	stream, err := s.tasks.SubscribeByCompany(ctx, companyID)
	if err != nil {
		return nil, storeError("subscribe to company tasks", err)
	}
	return stream, nil
}

// ===============================
// STUDENT SIDE
// ===============================

// GetTask returns the task augmented for studentID. An empty studentID
// leaves applied and favorited false.
func (s *taskService) GetTask(ctx context.Context, taskID, studentID string) (*models.TaskView, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, storeError("get task", err)
	}
	if task == nil {
		return nil, EntityNotFoundError("task", taskID)
	}
	return s.augment(ctx, task, studentID)
}

// GetApplicantCount counts the task's application documents
func (s *taskService) GetApplicantCount(ctx context.Context, taskID string) (int, error) {
	n, err := s.applications.CountByTask(ctx, taskID)
	if err != nil {
		return 0, storeError("count applicants", err)
	}
	return n, nil
}

// ListVisibleTasks returns the published tasks matching filter, newest first
func (s *taskService) ListVisibleTasks(ctx context.Context, studentID string, filter models.TaskFilter) ([]*models.TaskView, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListAll(ctx)
	if err != nil {
		return nil, storeError("list tasks", err)
	}
	return s.visible(ctx, tasks, studentID, filter)
}

// SubscribeVisibleTasks re-applies the visibility filter to every task snapshot
func (s *taskService) SubscribeVisibleTasks(ctx context.Context, studentID string, filter models.TaskFilter) (*store.Stream[[]*models.TaskView], error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	src, err := s.tasks.SubscribeAll(ctx)
	if err != nil {
		return nil, storeError("subscribe to tasks", err)
	}
	return store.Map(ctx, src, s.logger, func(ctx context.Context, tasks []*models.Task) ([]*models.TaskView, error) {
		return s.visible(ctx, tasks, studentID, filter)
	}), nil
}

// visible applies status, category and search filters, then augments.
// Repositories already order by createdAt desc; the stable sort keeps that
// order for tasks that share a timestamp.
func (s *taskService) visible(ctx context.Context, tasks []*models.Task, studentID string, filter models.TaskFilter) ([]*models.TaskView, error) {
	search := strings.TrimSpace(filter.Search)
	matched := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != models.TaskStatusPublished {
			continue
		}
		if filter.Category != "" && filter.Category != models.CategoryAll && !t.HasCategory(filter.Category) {
			continue
		}
		if search != "" && !utils.ContainsFold(t.Title, search) && !utils.ContainsFold(t.Company, search) {
			continue
		}
		matched = append(matched, t)
	}
	slices.SortStableFunc(matched, func(a, b *models.Task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	views := make([]*models.TaskView, 0, len(matched))
	for _, t := range matched {
		v, err := s.augment(ctx, t, studentID)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *taskService) augment(ctx context.Context, task *models.Task, studentID string) (*models.TaskView, error) {
	view := &models.TaskView{Task: *task}
	if studentID == "" {
		return view, nil
	}

	applied, err := s.applications.Exists(ctx, studentID, task.ID)
	if err != nil {
		return nil, storeError("check application", err)
	}
	favorited, err := s.favorites.Exists(ctx, studentID, task.ID)
	if err != nil {
		return nil, storeError("check favorite", err)
	}
	view.Applied = applied
	view.Favorited = favorited
	return view, nil
}

func validateFilter(filter models.TaskFilter) error {
	if filter.Category == "" || filter.Category == models.CategoryAll || models.IsValidCategory(filter.Category) {
		return nil
	}
	return NewDetailedValidationError("invalid task filter", []FieldError{{
		Field:   "category",
		Value:   filter.Category,
		Message: fmt.Sprintf("unknown category %q", filter.Category),
		Code:    "invalid_value",
	}})
}

// ===============================
// HELPERS
// ===============================

func (s *taskService) company(ctx context.Context, companyID string) (*models.Company, error) {
	user, err := s.users.GetByID(ctx, companyID)
	if err != nil {
		return nil, storeError("get company", err)
	}
	company, ok := user.(*models.Company)
	if !ok {
		if user == nil {
			return nil, EntityNotFoundError("company", companyID)
		}
		return nil, NewPermissionDeniedError("only companies can post tasks")
	}
	return company, nil
}

// ownedTask loads a task and checks that companyID owns it
func (s *taskService) ownedTask(ctx context.Context, taskID, companyID, action string) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, storeError("get task", err)
	}
	if task == nil {
		return nil, EntityNotFoundError("task", taskID)
	}
	if task.CompanyID != companyID {
		return nil, NotOwnerError(action, "tasks", companyID)
	}
	return task, nil
}

func (s *taskService) reload(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, storeError("get task", err)
	}
	if task == nil {
		return nil, EntityNotFoundError("task", taskID)
	}
	return task, nil
}

// afterStatusChange keeps publishedTaskCount in step when a task enters or
// leaves the published state
func (s *taskService) afterStatusChange(ctx context.Context, before *models.Task, status models.TaskStatus) {
	if before.Status == status {
		return
	}
	switch {
	case status == models.TaskStatusPublished:
		s.adjustPublished(ctx, before.ID, before.CompanyID, 1)
	case before.Status == models.TaskStatusPublished:
		s.adjustPublished(ctx, before.ID, before.CompanyID, -1)
	}
	s.publish(ctx, events.NewTaskEvent(events.EventTaskStatusChanged, before.ID, before.CompanyID, string(before.Status), string(status)))
}

// adjustPublished retries the counter update. When it still fails the
// task write stands and a partial failure event asks reconciliation to
// recount the company.
func (s *taskService) adjustPublished(ctx context.Context, taskID, companyID string, delta int64) {
	err := s.retry.Do(ctx, s.logger, "adjust published task count", func(ctx context.Context) error {
		return s.users.IncrementCounter(ctx, companyID, counterPublishedTasks, delta)
	})
	if err == nil {
		return
	}
	s.logger.Error("Failed to adjust published task count",
		zap.String("task_id", taskID),
		zap.String("company_id", companyID),
		zap.Int64("delta", delta),
		zap.Error(err),
	)
	s.publish(context.WithoutCancel(ctx), events.NewWorkflowPartialFailureEvent(workflowTaskStatus, "adjust published task count", "", companyID, "", err))
}

func (s *taskService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishAsync(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", event.GetEventType()),
			zap.Error(err),
		)
	}
}
