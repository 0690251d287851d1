// ===============================
// FILE: internal/handlers/api/v1/chat/chat_controller.go
// ===============================

package chat

import (
	"net/http"

	"bridgeus/internal/handlers/api/v1/common"
	"bridgeus/internal/middleware"
	"bridgeus/internal/response"
	"bridgeus/internal/services"

	"go.uber.org/zap"
)

// ChatController handles chat room and message endpoints. Every room
// operation requires the caller to be a participant.
type ChatController struct {
	serviceCollection *services.ServiceCollection
	logger            *zap.Logger
	responseBuilder   *response.Builder
}

// NewChatController creates a new chat controller
func NewChatController(
	serviceCollection *services.ServiceCollection,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *ChatController {
	return &ChatController{
		serviceCollection: serviceCollection,
		logger:            logger,
		responseBuilder:   responseBuilder,
	}
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// UnreadResponse is the caller's unread chat count
type UnreadResponse struct {
	Unread int `json:"unread"`
}

// ListRooms handles GET /api/v1/chats
func (c *ChatController) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	rooms, err := c.serviceCollection.ChatService.ListRooms(r.Context(), userID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	resp := c.responseBuilder.List(r.Context(), rooms, len(rooms))
	resp.Meta.Extra = map[string]interface{}{
		"unread": services.UnreadChatCount(rooms, userID),
	}
	c.responseBuilder.WriteJSON(w, r, resp, http.StatusOK)
}

// GetRoom handles GET /api/v1/chats/{roomId}
func (c *ChatController) GetRoom(w http.ResponseWriter, r *http.Request) {
	userID, roomID, ok := c.roomRequest(w, r)
	if !ok {
		return
	}

	room, err := c.serviceCollection.ChatService.GetRoom(r.Context(), roomID, userID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, room)
}

// ListMessages handles GET /api/v1/chats/{roomId}/messages
func (c *ChatController) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, roomID, ok := c.roomRequest(w, r)
	if !ok {
		return
	}

	msgs, err := c.serviceCollection.ChatService.ListMessages(r.Context(), roomID, userID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteList(w, r, msgs, len(msgs))
}

// SendMessage handles POST /api/v1/chats/{roomId}/messages
func (c *ChatController) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, roomID, ok := c.roomRequest(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	msg, err := c.serviceCollection.ChatService.SendMessage(r.Context(), roomID, userID, req.Text)
	if err != nil {
		if !services.IsValidationError(err) && !services.IsPermissionDeniedError(err) && !services.IsNotFoundError(err) {
			c.logger.Error("Failed to send message",
				zap.String("room_id", roomID),
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.Error(err),
			)
		}
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteCreated(w, r, msg)
}

// MarkRead handles POST /api/v1/chats/{roomId}/read
func (c *ChatController) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, roomID, ok := c.roomRequest(w, r)
	if !ok {
		return
	}

	if err := c.serviceCollection.ChatService.MarkRoomRead(r.Context(), roomID, userID); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteNoContent(w, r)
}

func (c *ChatController) roomRequest(w http.ResponseWriter, r *http.Request) (userID, roomID string, ok bool) {
	userID, ok = common.RequireUserID(w, r)
	if !ok {
		return "", "", false
	}
	roomID, err := common.PathParam(r, "roomId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return "", "", false
	}
	return userID, roomID, true
}
