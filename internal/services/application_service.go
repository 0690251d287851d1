// file: internal/services/application_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bridgeus/internal/events"
	"bridgeus/internal/models"
	"bridgeus/internal/repositories"
	"bridgeus/internal/store"
	"bridgeus/internal/validation"

	"go.uber.org/zap"
)

// Workflow names used in partial failure events
const (
	workflowApply   = "apply"
	workflowUnapply = "unapply"
	workflowApprove = "approve"
	workflowReject  = "reject"

	workflowTaskStatus = "task_status"
)

type applicationService struct {
	tasks         repositories.TaskRepository
	applications  repositories.ApplicationRepository
	chats         repositories.ChatRepository
	notifications repositories.NotificationRepository
	users         repositories.UserRepository
	events        events.EventBus
	retry         RetryPolicy
	logger        *zap.Logger
}

// NewApplicationService creates the apply/review workflow service
func NewApplicationService(repos *repositories.Collection, bus events.EventBus, retry RetryPolicy, logger *zap.Logger) ApplicationService {
	return &applicationService{
		tasks:         repos.Task,
		applications:  repos.Application,
		chats:         repos.Chat,
		notifications: repos.Notification,
		users:         repos.User,
		events:        bus,
		retry:         retry,
		logger:        logger,
	}
}

// ===============================
// STUDENT WORKFLOWS
// ===============================

// Apply writes a pending application, bumps the task's applicantCount and
// notifies the company. Re-applying overwrites the earlier application.
func (s *applicationService) Apply(ctx context.Context, req *ApplyRequest) (*models.Application, error) {
	if req == nil {
		return nil, NewValidationError("application is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, validationFailed("invalid application", err)
	}

	task, err := s.tasks.GetByID(ctx, req.TaskID)
	if err != nil {
		return nil, storeError("get task", err)
	}
	if task == nil {
		return nil, EntityNotFoundError("task", req.TaskID)
	}

	snapshot, err := s.snapshot(ctx, req)
	if err != nil {
		return nil, err
	}

	app := &models.Application{
		UserID:          req.StudentID,
		TaskID:          task.ID,
		Message:         strings.TrimSpace(req.Message),
		Status:          models.ApplicationStatusPending,
		StudentSnapshot: snapshot,
	}
	err = s.retry.Do(ctx, s.logger, "write application", func(ctx context.Context) error {
		return s.applications.Put(ctx, app)
	})
	if err != nil {
		return nil, storeError("submit application", err)
	}

	err = s.retry.Do(ctx, s.logger, "increment applicant count", func(ctx context.Context) error {
		return s.tasks.IncrementApplicantCount(ctx, task.ID, 1)
	})
	if err != nil {
		s.partialFailure(ctx, workflowApply, "increment applicant count", task.ID, task.CompanyID, req.StudentID, err)
		return nil, storeError("update applicant count", err)
	}

	notification := &models.Notification{
		UserID:      task.CompanyID,
		Type:        models.NotificationNewApplication,
		Title:       "新しい応募があります",
		Body:        fmt.Sprintf("%sさんが「%s」に応募しました", snapshot.Name, task.Title),
		TaskID:      task.ID,
		TaskTitle:   task.Title,
		StudentName: snapshot.Name,
	}
	if err := s.notify(ctx, notification); err != nil {
		s.partialFailure(ctx, workflowApply, "notify company", task.ID, task.CompanyID, req.StudentID, err)
		return nil, storeError("notify company", err)
	}

	s.publish(ctx, events.NewApplicationEvent(events.EventApplicationSubmitted, req.StudentID, app.ID, task.ID, req.StudentID))
	s.logger.Info("Application submitted",
		zap.String("application_id", app.ID),
		zap.String("task_id", task.ID),
		zap.String("student_id", req.StudentID),
	)

	stored, err := s.applications.GetByID(ctx, app.ID)
	if err != nil || stored == nil {
		return app, nil
	}
	return stored, nil
}

// Unapply withdraws an application. The applicantCount is decremented only
// when an application was actually removed.
func (s *applicationService) Unapply(ctx context.Context, studentID, taskID string) error {
	if studentID == "" || taskID == "" {
		return NewValidationError("student id and task id are required", nil)
	}

	existed, err := s.applications.Exists(ctx, studentID, taskID)
	if err != nil {
		return storeError("check application", err)
	}
	if !existed {
		s.logger.Debug("Unapply without application",
			zap.String("student_id", studentID),
			zap.String("task_id", taskID),
		)
		return nil
	}

	id := models.ApplicationID(studentID, taskID)
	err = s.retry.Do(ctx, s.logger, "delete application", func(ctx context.Context) error {
		return s.applications.Delete(ctx, id)
	})
	if err != nil {
		return storeError("withdraw application", err)
	}

	err = s.retry.Do(ctx, s.logger, "decrement applicant count", func(ctx context.Context) error {
		return s.tasks.IncrementApplicantCount(ctx, taskID, -1)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// the task is gone; nothing left to count
			return nil
		}
		s.partialFailure(ctx, workflowUnapply, "decrement applicant count", taskID, "", studentID, err)
		return storeError("update applicant count", err)
	}

	s.publish(ctx, events.NewApplicationEvent(events.EventApplicationWithdrawn, studentID, id, taskID, studentID))
	s.logger.Info("Application withdrawn",
		zap.String("application_id", id),
		zap.String("student_id", studentID),
	)
	return nil
}

// ===============================
// COMPANY WORKFLOWS
// ===============================

// Approve marks the application approved, resolves the chat room for
// (task, company, student) and notifies the student. It returns the room id.
func (s *applicationService) Approve(ctx context.Context, req *ReviewRequest) (string, error) {
	app, review, err := s.loadReview(ctx, req, "approve")
	if err != nil {
		return "", err
	}

	err = s.retry.Do(ctx, s.logger, "approve application", func(ctx context.Context) error {
		return s.applications.UpdateReview(ctx, app.ID, models.ApplicationStatusApproved, review.ReviewNote)
	})
	if err != nil {
		return "", storeError("approve application", err)
	}

	var roomID string
	err = s.retry.Do(ctx, s.logger, "resolve chat room", func(ctx context.Context) error {
		id, err := s.resolveRoom(ctx, app, review)
		roomID = id
		return err
	})
	if err != nil {
		s.partialFailure(ctx, workflowApprove, "resolve chat room", review.TaskID, review.CompanyID, app.UserID, err)
		return "", storeError("open chat room", err)
	}

	notification := &models.Notification{
		UserID:      app.UserID,
		Type:        models.NotificationApplicationApproved,
		Title:       "応募が承認されました",
		Body:        fmt.Sprintf("%sが「%s」への応募を承認しました。チャットでメッセージを送りましょう！", review.CompanyName, review.TaskTitle),
		TaskID:      review.TaskID,
		ChatID:      roomID,
		TaskTitle:   review.TaskTitle,
		CompanyName: review.CompanyName,
	}
	if err := s.notify(ctx, notification); err != nil {
		s.partialFailure(ctx, workflowApprove, "notify student", review.TaskID, review.CompanyID, app.UserID, err)
		return "", storeError("notify student", err)
	}

	event := events.NewApplicationEvent(events.EventApplicationApproved, review.CompanyID, app.ID, review.TaskID, app.UserID)
	event.ChatRoomID = roomID
	s.publish(ctx, event)

	s.logger.Info("Application approved",
		zap.String("application_id", app.ID),
		zap.String("chat_room_id", roomID),
		zap.String("company_id", review.CompanyID),
	)
	return roomID, nil
}

// Reject marks the application rejected and notifies the student
func (s *applicationService) Reject(ctx context.Context, req *ReviewRequest) error {
	app, review, err := s.loadReview(ctx, req, "reject")
	if err != nil {
		return err
	}

	err = s.retry.Do(ctx, s.logger, "reject application", func(ctx context.Context) error {
		return s.applications.UpdateReview(ctx, app.ID, models.ApplicationStatusRejected, review.ReviewNote)
	})
	if err != nil {
		return storeError("reject application", err)
	}

	notification := &models.Notification{
		UserID:      app.UserID,
		Type:        models.NotificationApplicationRejected,
		Title:       "応募結果のお知らせ",
		Body:        fmt.Sprintf("%sが「%s」への応募を見送りました。", review.CompanyName, review.TaskTitle),
		TaskID:      review.TaskID,
		TaskTitle:   review.TaskTitle,
		CompanyName: review.CompanyName,
	}
	if err := s.notify(ctx, notification); err != nil {
		s.partialFailure(ctx, workflowReject, "notify student", review.TaskID, review.CompanyID, app.UserID, err)
		return storeError("notify student", err)
	}

	s.publish(ctx, events.NewApplicationEvent(events.EventApplicationRejected, review.CompanyID, app.ID, review.TaskID, app.UserID))
	s.logger.Info("Application rejected",
		zap.String("application_id", app.ID),
		zap.String("company_id", review.CompanyID),
	)
	return nil
}

// ===============================
// LISTING
// ===============================

func (s *applicationService) ListTaskApplications(ctx context.Context, taskID string) ([]*models.Application, error) {
	apps, err := s.applications.ListByTask(ctx, taskID)
	if err != nil {
		return nil, storeError("list applications", err)
	}
	return apps, nil
}

func (s *applicationService) SubscribeTaskApplications(ctx context.Context, taskID string) (*store.Stream[[]*models.Application], error) {
	stream, err := s.applications.SubscribeByTask(ctx, taskID)
	if err != nil {
		return nil, storeError("subscribe to applications", err)
	}
	return stream, nil
}

// ListAppliedTasks joins the student's applications with their tasks.
// Applications whose task was deleted are skipped.
func (s *applicationService) ListAppliedTasks(ctx context.Context, studentID string) ([]*models.AppliedTask, error) {
	apps, err := s.applications.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, storeError("list applications", err)
	}

	out := make([]*models.AppliedTask, 0, len(apps))
	for _, app := range apps {
		task, err := s.tasks.GetByID(ctx, app.TaskID)
		if err != nil {
			return nil, storeError("get task", err)
		}
		if task == nil {
			continue
		}
		out = append(out, &models.AppliedTask{
			Task:              *task,
			ApplicationStatus: app.Status,
			AppliedAt:         app.AppliedAt,
		})
	}
	return out, nil
}

// ===============================
// HELPERS
// ===============================

// snapshot returns the request's student snapshot, loading the profile
// when none was supplied
func (s *applicationService) snapshot(ctx context.Context, req *ApplyRequest) (models.StudentSnapshot, error) {
	if req.Snapshot != nil {
		return *req.Snapshot, nil
	}
	user, err := s.users.GetByID(ctx, req.StudentID)
	if err != nil {
		return models.StudentSnapshot{}, storeError("get student", err)
	}
	switch u := user.(type) {
	case *models.Student:
		return models.SnapshotOf(u), nil
	case *models.Company:
		return models.StudentSnapshot{}, NewPermissionDeniedError("only students can apply to tasks")
	default:
		return models.StudentSnapshot{}, EntityNotFoundError("student", req.StudentID)
	}
}

// loadReview loads the application and its task. The task always comes
// from the application; a taskId in the request must name the same task.
// A company may only review applications to its own tasks.
func (s *applicationService) loadReview(ctx context.Context, req *ReviewRequest, action string) (*models.Application, ReviewRequest, error) {
	if req == nil {
		return nil, ReviewRequest{}, NewValidationError("review is required", nil)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, ReviewRequest{}, validationFailed("invalid review", err)
	}
	review := *req

	app, err := s.applications.GetByID(ctx, review.ApplicationID)
	if err != nil {
		return nil, review, storeError("get application", err)
	}
	if app == nil {
		return nil, review, EntityNotFoundError("application", review.ApplicationID)
	}
	if review.TaskID != "" && review.TaskID != app.TaskID {
		return nil, review, NewDetailedValidationError("invalid review", []FieldError{{
			Field: "taskId", Message: "taskId does not match the application", Code: "mismatch",
		}})
	}
	review.TaskID = app.TaskID

	task, err := s.tasks.GetByID(ctx, app.TaskID)
	if err != nil {
		return nil, review, storeError("get task", err)
	}
	if task == nil {
		return nil, review, EntityNotFoundError("task", app.TaskID)
	}
	if task.CompanyID != review.CompanyID {
		return nil, review, NotOwnerError(action, "applications", review.CompanyID)
	}

	review.TaskTitle = task.Title
	if review.CompanyName == "" {
		review.CompanyName = task.Company
	}
	if review.CompanyName == "" {
		if company, err := s.users.GetByID(ctx, review.CompanyID); err == nil && company != nil {
			review.CompanyName = company.DisplayName()
		}
	}
	return app, review, nil
}

func (s *applicationService) resolveRoom(ctx context.Context, app *models.Application, review ReviewRequest) (string, error) {
	id, _, err := ensureRoom(ctx, s.chats, app, review.TaskTitle, review.CompanyID, review.CompanyName)
	return id, err
}

// ensureRoom reuses the first room for the triple or creates one under
// the deterministic id, so repeated approvals converge on one room. The
// bool reports whether a room was created.
func ensureRoom(ctx context.Context, chats repositories.ChatRepository, app *models.Application, taskTitle, companyID, companyName string) (string, bool, error) {
	room, err := chats.FindRoom(ctx, app.TaskID, companyID, app.UserID)
	if err != nil {
		return "", false, err
	}
	if room != nil {
		return room.ID, false, nil
	}

	room = &models.ChatRoom{
		ID:          models.ChatRoomID(app.TaskID, companyID, app.UserID),
		TaskID:      app.TaskID,
		TaskTitle:   taskTitle,
		CompanyID:   companyID,
		CompanyName: companyName,
		StudentID:   app.UserID,
		StudentName: app.Name,
	}
	if err := chats.CreateRoom(ctx, room); err != nil {
		return "", false, err
	}
	return room.ID, true, nil
}

func (s *applicationService) notify(ctx context.Context, n *models.Notification) error {
	return s.retry.Do(ctx, s.logger, "write notification", func(ctx context.Context) error {
		_, err := s.notifications.Create(ctx, n)
		return err
	})
}

// partialFailure reports a workflow that stopped after its first write
func (s *applicationService) partialFailure(ctx context.Context, workflow, step, taskID, companyID, studentID string, cause error) {
	s.logger.Error("Workflow left partially applied",
		zap.String("workflow", workflow),
		zap.String("step", step),
		zap.String("task_id", taskID),
		zap.String("student_id", studentID),
		zap.Error(cause),
	)
	s.publish(context.WithoutCancel(ctx), events.NewWorkflowPartialFailureEvent(workflow, step, taskID, companyID, studentID, cause))
}

func (s *applicationService) publish(ctx context.Context, event events.Event) {
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
