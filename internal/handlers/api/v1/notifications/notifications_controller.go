package notifications

import (
	"net/http"

	"bridgeus/internal/handlers/api/v1/common"
	"bridgeus/internal/response"
	"bridgeus/internal/services"

	"go.uber.org/zap"
)

// NotificationController serves the caller's notification inbox
type NotificationController struct {
	serviceCollection *services.ServiceCollection
	logger            *zap.Logger
	responseBuilder   *response.Builder
}

// NewNotificationController creates a new notification controller
func NewNotificationController(
	serviceCollection *services.ServiceCollection,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *NotificationController {
	return &NotificationController{
		serviceCollection: serviceCollection,
		logger:            logger,
		responseBuilder:   responseBuilder,
	}
}

// MarkAllResponse reports how many notifications changed
type MarkAllResponse struct {
	Updated int `json:"updated"`
}

// ListNotifications handles GET /api/v1/notifications, newest first. The
// unread count is returned in meta.
func (c *NotificationController) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	items, err := c.serviceCollection.NotificationService.ListNotifications(r.Context(), userID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	resp := c.responseBuilder.List(r.Context(), items, len(items))
	resp.Meta.Extra = map[string]interface{}{"unread": unread}
	c.responseBuilder.WriteJSON(w, r, resp, http.StatusOK)
}

// MarkRead handles POST /api/v1/notifications/{notificationId}/read
func (c *NotificationController) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	notificationID, err := common.PathParam(r, "notificationId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	if err := c.serviceCollection.NotificationService.MarkAsRead(r.Context(), notificationID, userID); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteNoContent(w, r)
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (c *NotificationController) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	n, err := c.serviceCollection.NotificationService.MarkAllAsRead(r.Context(), userID)
	if err != nil {
		c.logger.Warn("Mark all notifications read failed", zap.String("user_id", userID), zap.Error(err))
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, MarkAllResponse{Updated: n})
}
