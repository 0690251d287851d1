// file: internal/services/chat_service.go
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"bridgeus/internal/events"
	"bridgeus/internal/models"
	"bridgeus/internal/repositories"
	"bridgeus/internal/store"

	"go.uber.org/zap"
)

// MaxMessageLength bounds a chat message in characters
const MaxMessageLength = 2000

type chatService struct {
	chats  repositories.ChatRepository
	events events.EventBus
	logger *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(repos *repositories.Collection, bus events.EventBus, logger *zap.Logger) ChatService {
	return &chatService{
		chats:  repos.Chat,
		events: bus,
		logger: logger,
	}
}

// SendMessage appends a message to a room the sender participates in
func (s *chatService) SendMessage(ctx context.Context, roomID, senderID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, NewDetailedValidationError("invalid message", []FieldError{{
			Field: "text", Message: "text is required", Code: "required",
		}})
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, NewDetailedValidationError("invalid message", []FieldError{{
			Field: "text", Message: "message is too long", Code: "max",
		}})
	}

	room, err := s.room(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}

	msg, err := s.chats.AddMessage(ctx, room, senderID, text)
	if err != nil {
		return nil, storeError("send message", err)
	}

	if s.events != nil {
		event := events.NewMessageSentEvent(senderID, roomID, msg.ID, room.OtherParticipant(senderID))
		if err := s.events.PublishAsync(ctx, event); err != nil {
			s.logger.Warn("Failed to publish message event", zap.Error(err))
		}
	}
	return msg, nil
}

// MarkRoomRead zeroes the caller's unread counter
func (s *chatService) MarkRoomRead(ctx context.Context, roomID, userID string) error {
	if _, err := s.room(ctx, roomID, userID); err != nil {
		return err
	}
	if err := s.chats.MarkRead(ctx, roomID, userID); err != nil {
		return storeError("mark chat room read", err)
	}
	return nil
}

func (s *chatService) GetRoom(ctx context.Context, roomID, userID string) (*models.ChatRoom, error) {
	return s.room(ctx, roomID, userID)
}

func (s *chatService) ListRooms(ctx context.Context, userID string) ([]*models.ChatRoom, error) {
	rooms, err := s.chats.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, storeError("list chat rooms", err)
	}
	return rooms, nil
}

func (s *chatService) ListMessages(ctx context.Context, roomID, userID string) ([]*models.Message, error) {
	if _, err := s.room(ctx, roomID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.chats.ListMessages(ctx, roomID)
	if err != nil {
		return nil, storeError("list messages", err)
	}
	return msgs, nil
}

func (s *chatService) SubscribeMessages(ctx context.Context, roomID, userID string) (*store.Stream[[]*models.Message], error) {
	if _, err := s.room(ctx, roomID, userID); err != nil {
		return nil, err
	}
	stream, err := s.chats.SubscribeMessages(ctx, roomID)
	if err != nil {
		return nil, storeError("subscribe to messages", err)
	}
	return stream, nil
}

func (s *chatService) SubscribeChatRooms(ctx context.Context, userID string) (*store.Stream[[]*models.ChatRoom], error) {
	stream, err := s.chats.SubscribeRoomsForUser(ctx, userID)
	if err != nil {
		return nil, storeError("subscribe to chat rooms", err)
	}
	return stream, nil
}

// SubscribeUnreadChatCount sums the user's unread counters over every room
func (s *chatService) SubscribeUnreadChatCount(ctx context.Context, userID string) (*store.Stream[int], error) {
	rooms, err := s.SubscribeChatRooms(ctx, userID)
	if err != nil {
		return nil, err
	}
	return store.Map(ctx, rooms, s.logger, func(_ context.Context, rooms []*models.ChatRoom) (int, error) {
		return UnreadChatCount(rooms, userID), nil
	}), nil
}

// UnreadChatCount sums userID's unread counters
func UnreadChatCount(rooms []*models.ChatRoom, userID string) int {
	total := 0
	for _, r := range rooms {
		total += r.UnreadCountByUser[userID]
	}
	return total
}

// room loads a room and checks membership
func (s *chatService) room(ctx context.Context, roomID, userID string) (*models.ChatRoom, error) {
	room, err := s.chats.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeError("get chat room", err)
	}
	if room == nil {
		return nil, EntityNotFoundError("chat room", roomID)
	}
	if !room.HasParticipant(userID) {
		return nil, NewPermissionDeniedError("not a participant of this chat room")
	}
	return room, nil
}
