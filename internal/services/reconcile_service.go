package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bridgeus/internal/events"
	"bridgeus/internal/models"
	"bridgeus/internal/repositories"

	"go.uber.org/zap"
)

const (
	fieldApplicantCount = "applicantCount"
	fieldChatRoom       = "chatRoom"
)

type reconcileService struct {
	tasks        repositories.TaskRepository
	applications repositories.ApplicationRepository
	users        repositories.UserRepository
	chats        repositories.ChatRepository
	logger       *zap.Logger
}

// NewReconcileService creates the counter and approval repair service
func NewReconcileService(repos *repositories.Collection, logger *zap.Logger) ReconcileService {
	return &reconcileService{
		tasks:        repos.Task,
		applications: repos.Application,
		users:        repos.User,
		chats:        repos.Chat,
		logger:       logger,
	}
}

// ReconcileTask recomputes applicantCount from the task's applications
func (s *reconcileService) ReconcileTask(ctx context.Context, taskID string) (*ReconcileResult, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, storeError("get task", err)
	}
	if task == nil {
		return nil, EntityNotFoundError("task", taskID)
	}
	return s.reconcileTask(ctx, task)
}

func (s *reconcileService) reconcileTask(ctx context.Context, task *models.Task) (*ReconcileResult, error) {
	n, err := s.applications.CountByTask(ctx, task.ID)
	if err != nil {
		return nil, storeError("count applications", err)
	}

	result := &ReconcileResult{Kind: "task", ID: task.ID, Field: fieldApplicantCount, Before: task.ApplicantCount, After: n}
	if n == task.ApplicantCount {
		return result, nil
	}
	if err := s.tasks.SetApplicantCount(ctx, task.ID, n); err != nil {
		return nil, storeError("repair applicant count", err)
	}
	result.Changed = true

	s.logger.Info("Repaired applicant count",
		zap.String("task_id", task.ID),
		zap.Int("before", task.ApplicantCount),
		zap.Int("after", n),
	)
	return result, nil
}

// ReconcileCompany recomputes publishedTaskCount from the company's tasks
func (s *reconcileService) ReconcileCompany(ctx context.Context, companyID string) (*ReconcileResult, error) {
	user, err := s.users.GetByID(ctx, companyID)
	if err != nil {
		return nil, storeError("get company", err)
	}
	company, ok := user.(*models.Company)
	if !ok {
		return nil, EntityNotFoundError("company", companyID)
	}
	return s.reconcileCompany(ctx, company)
}

func (s *reconcileService) reconcileCompany(ctx context.Context, company *models.Company) (*ReconcileResult, error) {
	tasks, err := s.tasks.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, storeError("list company tasks", err)
	}
	published := 0
	for _, t := range tasks {
		if t.Status == models.TaskStatusPublished {
			published++
		}
	}

	result := &ReconcileResult{Kind: "company", ID: company.ID, Field: counterPublishedTasks, Before: company.PublishedTaskCount, After: published}
	if published == company.PublishedTaskCount {
		return result, nil
	}
	if err := s.users.SetCounter(ctx, company.ID, counterPublishedTasks, published); err != nil {
		return nil, storeError("repair published task count", err)
	}
	result.Changed = true

	s.logger.Info("Repaired published task count",
		zap.String("company_id", company.ID),
		zap.Int("before", company.PublishedTaskCount),
		zap.Int("after", published),
	)
	return result, nil
}

// ReconcileApproval recreates the chat room of an approved application
// when the approval stopped before the room was written. After is 1 when
// the room exists. Applications that are not approved are left alone.
func (s *reconcileService) ReconcileApproval(ctx context.Context, applicationID string) (*ReconcileResult, error) {
	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, storeError("get application", err)
	}
	if app == nil {
		return nil, EntityNotFoundError("application", applicationID)
	}

	result := &ReconcileResult{Kind: "application", ID: app.ID, Field: fieldChatRoom}
	if app.Status != models.ApplicationStatusApproved {
		return result, nil
	}

	task, err := s.tasks.GetByID(ctx, app.TaskID)
	if err != nil {
		return nil, storeError("get task", err)
	}
	if task == nil {
		return nil, EntityNotFoundError("task", app.TaskID)
	}

	roomID, created, err := ensureRoom(ctx, s.chats, app, task.Title, task.CompanyID, task.Company)
	if err != nil {
		return nil, storeError("open chat room", err)
	}
	result.After = 1
	if !created {
		result.Before = 1
		return result, nil
	}
	result.Changed = true

	s.logger.Info("Recreated chat room for approved application",
		zap.String("application_id", app.ID),
		zap.String("chat_room_id", roomID),
	)
	return result, nil
}

// ReconcileAll checks every task and company. It stops at the first failure.
func (s *reconcileService) ReconcileAll(ctx context.Context) (*ReconcileReport, error) {
	start := time.Now()
	report := &ReconcileReport{}

	tasks, err := s.tasks.ListAll(ctx)
	if err != nil {
		return nil, storeError("list tasks", err)
	}
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r, err := s.reconcileTask(ctx, t)
		if err != nil {
			return report, fmt.Errorf("task %s: %w", t.ID, err)
		}
		report.Tasks = append(report.Tasks, r)
		if r.Changed {
			report.Repaired++
		}
	}

	companies, err := s.users.ListCompanies(ctx)
	if err != nil {
		return report, storeError("list companies", err)
	}
	for _, c := range companies {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r, err := s.reconcileCompany(ctx, c)
		if err != nil {
			return report, fmt.Errorf("company %s: %w", c.ID, err)
		}
		report.Companies = append(report.Companies, r)
		if r.Changed {
			report.Repaired++
		}
	}

	report.Duration = time.Since(start)
	s.logger.Info("Reconciliation finished",
		zap.Int("tasks", len(report.Tasks)),
		zap.Int("companies", len(report.Companies)),
		zap.Int("repaired", report.Repaired),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// ===============================
// EVENT HANDLER
// ===============================

// PartialFailureHandler repairs the counters named by workflow partial
// failure events, and the chat room of an interrupted approval
func PartialFailureHandler(svc ReconcileService, logger *zap.Logger) events.EventHandler {
	return events.EventHandlerFunc{
		ID: "reconcile.partial_failure",
		Func: func(ctx context.Context, event events.Event) error {
			e, ok := event.(*events.WorkflowPartialFailureEvent)
			if !ok {
				return nil
			}
			logger.Info("Reconciling after partial workflow failure",
				zap.String("workflow", e.Workflow),
				zap.String("step", e.Step),
				zap.String("task_id", e.TaskID),
			)

			var errs []error
			if e.Workflow == workflowApprove && e.TaskID != "" && e.StudentID != "" {
				if _, err := svc.ReconcileApproval(ctx, models.ApplicationID(e.StudentID, e.TaskID)); err != nil && !IsNotFoundError(err) {
					errs = append(errs, err)
				}
			}
			if e.TaskID != "" {
				if _, err := svc.ReconcileTask(ctx, e.TaskID); err != nil && !IsNotFoundError(err) {
					errs = append(errs, err)
				}
			}
			if e.CompanyID != "" {
				if _, err := svc.ReconcileCompany(ctx, e.CompanyID); err != nil && !IsNotFoundError(err) {
					errs = append(errs, err)
				}
			}
			if len(errs) > 0 {
				return fmt.Errorf("reconcile after %s: %w", e.Workflow, errors.Join(errs...))
			}
			return nil
		},
	}
}
