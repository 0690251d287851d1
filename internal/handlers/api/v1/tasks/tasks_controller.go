// ===============================
// FILE: internal/handlers/api/v1/tasks/tasks_controller.go
// ===============================

package tasks

import (
	"net/http"

	"bridgeus/internal/handlers/api/v1/common"
	"bridgeus/internal/middleware"
	"bridgeus/internal/models"
	"bridgeus/internal/response"
	"bridgeus/internal/services"

	"go.uber.org/zap"
)

// TaskController handles task, application and favorite endpoints
type TaskController struct {
	serviceCollection *services.ServiceCollection
	logger            *zap.Logger
	responseBuilder   *response.Builder
}

// NewTaskController creates a new task controller
func NewTaskController(
	serviceCollection *services.ServiceCollection,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *TaskController {
	return &TaskController{
		serviceCollection: serviceCollection,
		logger:            logger,
		responseBuilder:   responseBuilder,
	}
}

type statusRequest struct {
	Status models.TaskStatus `json:"status" validate:"required,task_status"`
}

// ApplicantCountResponse is the live applicant count of a task
type ApplicantCountResponse struct {
	TaskID string `json:"taskId"`
	Count  int    `json:"count"`
}

// ===============================
// COMPANY TASK LIFECYCLE
// ===============================

// CreateTask handles POST /api/v1/tasks
func (c *TaskController) CreateTask(w http.ResponseWriter, r *http.Request) {
	companyID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	var req services.TaskInput
	if err := common.DecodeJSON(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	task, err := c.serviceCollection.TaskService.CreateTask(r.Context(), companyID, &req)
	if err != nil {
		c.handleServiceError(w, r, err, "create task")
		return
	}

	middleware.GetRequestLogger(r.Context()).Info("Task created via API",
		zap.String("task_id", task.ID),
		zap.String("status", string(task.Status)),
	)
	c.responseBuilder.WriteCreated(w, r, task)
}

// UpdateTask handles PATCH /api/v1/tasks/{taskId}
func (c *TaskController) UpdateTask(w http.ResponseWriter, r *http.Request) {
	companyID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	taskID, err := common.PathParam(r, "taskId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	var req services.TaskUpdateInput
	if err := common.DecodeJSON(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	task, err := c.serviceCollection.TaskService.UpdateTask(r.Context(), taskID, companyID, &req)
	if err != nil {
		c.handleServiceError(w, r, err, "update task")
		return
	}
	c.responseBuilder.WriteSuccess(w, r, task)
}

// SetTaskStatus handles PUT /api/v1/tasks/{taskId}/status
func (c *TaskController) SetTaskStatus(w http.ResponseWriter, r *http.Request) {
	companyID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	taskID, err := common.PathParam(r, "taskId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	var req statusRequest
	if err := common.Bind(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	task, err := c.serviceCollection.TaskService.SetTaskStatus(r.Context(), taskID, companyID, req.Status)
	if err != nil {
		c.handleServiceError(w, r, err, "set task status")
		return
	}
	c.responseBuilder.WriteSuccess(w, r, task)
}

// DeleteTask handles DELETE /api/v1/tasks/{taskId}
func (c *TaskController) DeleteTask(w http.ResponseWriter, r *http.Request) {
	companyID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	taskID, err := common.PathParam(r, "taskId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	if err := c.serviceCollection.TaskService.DeleteTask(r.Context(), taskID, companyID); err != nil {
		c.handleServiceError(w, r, err, "delete task")
		return
	}
	c.responseBuilder.WriteNoContent(w, r)
}

// ListCompanyTasks handles GET /api/v1/companies/me/tasks
func (c *TaskController) ListCompanyTasks(w http.ResponseWriter, r *http.Request) {
	companyID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := c.serviceCollection.TaskService.ListCompanyTasks(r.Context(), companyID)
	if err != nil {
		c.handleServiceError(w, r, err, "list company tasks")
		return
	}
	c.responseBuilder.WriteList(w, r, tasks, len(tasks))
}

// ===============================
// TASK BROWSING
// ===============================

// ListTasks handles GET /api/v1/tasks?category=&search=
func (c *TaskController) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	filter := models.TaskFilter{
		Category: common.QueryParam(r, "category"),
		Search:   common.QueryParam(r, "search"),
	}
	tasks, err := c.serviceCollection.TaskService.ListVisibleTasks(r.Context(), userID, filter)
	if err != nil {
		c.handleServiceError(w, r, err, "list tasks")
		return
	}
	c.responseBuilder.WriteList(w, r, tasks, len(tasks))
}

// GetTask handles GET /api/v1/tasks/{taskId}
func (c *TaskController) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	taskID, err := common.PathParam(r, "taskId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	task, err := c.serviceCollection.TaskService.GetTask(r.Context(), taskID, userID)
	if err != nil {
		c.handleServiceError(w, r, err, "get task")
		return
	}
	c.responseBuilder.WriteSuccess(w, r, task)
}

// GetApplicantCount handles GET /api/v1/tasks/{taskId}/applicant-count
func (c *TaskController) GetApplicantCount(w http.ResponseWriter, r *http.Request) {
	taskID, err := common.PathParam(r, "taskId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	count, err := c.serviceCollection.TaskService.GetApplicantCount(r.Context(), taskID)
	if err != nil {
		c.handleServiceError(w, r, err, "count applicants")
		return
	}
	c.responseBuilder.WriteSuccess(w, r, ApplicantCountResponse{TaskID: taskID, Count: count})
}

// ===============================
// ERROR HANDLING
// ===============================

// handleServiceError logs unexpected failures with the operation name and
// writes the error envelope
func (c *TaskController) handleServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	serviceErr := services.GetServiceError(err)
	if serviceErr.Type == services.ErrTypeInternal || serviceErr.Type == services.ErrTypeNetwork {
		c.logger.Error("Task operation failed",
			zap.String("operation", operation),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("user_id", middleware.GetUserID(r.Context())),
			zap.Error(err),
		)
	}
	c.responseBuilder.WriteError(w, r, err)
}
