package tasks

import (
	"net/http"

	"bridgeus/internal/handlers/api/v1/common"
	"bridgeus/internal/middleware"
	"bridgeus/internal/models"
	"bridgeus/internal/services"

	"go.uber.org/zap"
)

type applyRequest struct {
	Message string `json:"message,omitempty"`
}

// ApprovalResponse carries the chat room opened by an approval
type ApprovalResponse struct {
	ApplicationID string `json:"applicationId"`
	ChatRoomID    string `json:"chatRoomId"`
}

// ===============================
// STUDENT APPLICATIONS
// ===============================

// Apply handles POST /api/v1/tasks/{taskId}/application. The snapshot is
// built from the profile loaded by the student-only middleware.
func (c *TaskController) Apply(w http.ResponseWriter, r *http.Request) {
	studentID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	taskID, err := common.PathParam(r, "taskId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	var body applyRequest
	if err := common.DecodeJSON(r, &body); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	req := &services.ApplyRequest{
		StudentID: studentID,
		TaskID:    taskID,
		Message:   body.Message,
	}
	if student, ok := middleware.GetUser(r.Context()).(*models.Student); ok {
		snapshot := models.SnapshotOf(student)
		req.Snapshot = &snapshot
	}

	app, err := c.serviceCollection.ApplicationService.Apply(r.Context(), req)
	if err != nil {
		c.handleServiceError(w, r, err, "apply")
		return
	}

	middleware.GetRequestLogger(r.Context()).Info("Application submitted",
		zap.String("application_id", app.ID),
		zap.String("task_id", taskID),
	)
	c.responseBuilder.WriteCreated(w, r, app)
}

// Unapply handles DELETE /api/v1/tasks/{taskId}/application
func (c *TaskController) Unapply(w http.ResponseWriter, r *http.Request) {
	studentID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	taskID, err := common.PathParam(r, "taskId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	if err := c.serviceCollection.ApplicationService.Unapply(r.Context(), studentID, taskID); err != nil {
		c.handleServiceError(w, r, err, "unapply")
		return
	}
	c.responseBuilder.WriteNoContent(w, r)
}

// ListAppliedTasks handles GET /api/v1/students/me/applications
func (c *TaskController) ListAppliedTasks(w http.ResponseWriter, r *http.Request) {
	studentID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := c.serviceCollection.ApplicationService.ListAppliedTasks(r.Context(), studentID)
	if err != nil {
		c.handleServiceError(w, r, err, "list applied tasks")
		return
	}
	c.responseBuilder.WriteList(w, r, tasks, len(tasks))
}

// ===============================
// COMPANY REVIEW
// ===============================

// ListTaskApplications handles GET /api/v1/tasks/{taskId}/applications for
// the owning company
func (c *TaskController) ListTaskApplications(w http.ResponseWriter, r *http.Request) {
	companyID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	taskID, err := common.PathParam(r, "taskId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	task, err := c.serviceCollection.TaskService.GetTask(r.Context(), taskID, "")
	if err != nil {
		c.handleServiceError(w, r, err, "get task")
		return
	}
	if task.CompanyID != companyID {
		c.responseBuilder.WriteError(w, r, services.NotOwnerError("view applications of", "task", companyID))
		return
	}

	apps, err := c.serviceCollection.ApplicationService.ListTaskApplications(r.Context(), taskID)
	if err != nil {
		c.handleServiceError(w, r, err, "list task applications")
		return
	}
	c.responseBuilder.WriteList(w, r, apps, len(apps))
}

// Approve handles POST /api/v1/applications/{applicationId}/approve
func (c *TaskController) Approve(w http.ResponseWriter, r *http.Request) {
	req, ok := c.reviewRequest(w, r)
	if !ok {
		return
	}

	roomID, err := c.serviceCollection.ApplicationService.Approve(r.Context(), req)
	if err != nil {
		c.handleServiceError(w, r, err, "approve application")
		return
	}

	middleware.GetRequestLogger(r.Context()).Info("Application approved",
		zap.String("application_id", req.ApplicationID),
		zap.String("chat_room_id", roomID),
	)
	c.responseBuilder.WriteSuccess(w, r, ApprovalResponse{ApplicationID: req.ApplicationID, ChatRoomID: roomID})
}

// Reject handles POST /api/v1/applications/{applicationId}/reject
func (c *TaskController) Reject(w http.ResponseWriter, r *http.Request) {
	req, ok := c.reviewRequest(w, r)
	if !ok {
		return
	}

	if err := c.serviceCollection.ApplicationService.Reject(r.Context(), req); err != nil {
		c.handleServiceError(w, r, err, "reject application")
		return
	}
	c.responseBuilder.WriteNoContent(w, r)
}

// reviewRequest reads the review body and fills the caller as company. A
// company name from the body is ignored in favor of the loaded profile.
func (c *TaskController) reviewRequest(w http.ResponseWriter, r *http.Request) (*services.ReviewRequest, bool) {
	companyID, ok := common.RequireUserID(w, r)
	if !ok {
		return nil, false
	}
	applicationID, err := common.PathParam(r, "applicationId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return nil, false
	}

	var req services.ReviewRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return nil, false
	}
	req.ApplicationID = applicationID
	req.CompanyID = companyID
	req.CompanyName = ""
	if company, ok := middleware.GetUser(r.Context()).(*models.Company); ok {
		req.CompanyName = company.CompanyName
	}
	return &req, true
}
