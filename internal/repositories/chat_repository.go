// file: internal/repositories/chat_repository.go
package repositories

import (
	"context"
	"fmt"

	"bridgeus/internal/models"
	"bridgeus/internal/store"

	"go.uber.org/zap"
)

type chatRepository struct {
	*BaseRepository
}

// NewChatRepository creates a new instance of ChatRepository
func NewChatRepository(s store.Store, logger *zap.Logger) ChatRepository {
	return &chatRepository{
		BaseRepository: NewBaseRepository(s, logger),
	}
}

// ===============================
// ROOMS
// ===============================

// FindRoom returns the first room for the triple, or nil
func (r *chatRepository) FindRoom(ctx context.Context, taskID, companyID, studentID string) (*models.ChatRoom, error) {
	q := store.NewQuery(CollectionChatRooms).
		Where("taskId", store.OpEqual, taskID).
		Where("companyId", store.OpEqual, companyID).
		Where("studentId", store.OpEqual, studentID).
		WithLimit(1)
	docs, err := r.QueryDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to look up chat room: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeChatRoom(docs[0])
}

// CreateRoom writes a room seeded with its denormalized names. An empty id
// becomes models.ChatRoomID of the triple.
func (r *chatRepository) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	if room.ID == "" {
		room.ID = models.ChatRoomID(room.TaskID, room.CompanyID, room.StudentID)
	}
	room.Participants = []string{room.CompanyID, room.StudentID}

	data := map[string]interface{}{
		"participants": room.Participants,
		"taskId":       room.TaskID,
		"taskTitle":    room.TaskTitle,
		"companyId":    room.CompanyID,
		"companyName":  room.CompanyName,
		"studentId":    room.StudentID,
		"studentName":  room.StudentName,
		"unreadCountByUser": map[string]interface{}{
			room.CompanyID: 0,
			room.StudentID: 0,
		},
		"createdAt": store.ServerTimestamp(),
		"updatedAt": store.ServerTimestamp(),
	}
	if err := r.store.Set(ctx, CollectionChatRooms, room.ID, data); err != nil {
		r.logger.Error("Failed to create chat room",
			zap.String("room_id", room.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to create chat room: %w", err)
	}

	r.logger.Info("Chat room created",
		zap.String("room_id", room.ID),
		zap.String("task_id", room.TaskID),
	)
	return nil
}

func (r *chatRepository) GetRoom(ctx context.Context, id string) (*models.ChatRoom, error) {
	doc, err := r.GetDocument(ctx, CollectionChatRooms, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat room: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeChatRoom(doc)
}

func userRoomsQuery(userID string) store.Query {
	return store.NewQuery(CollectionChatRooms).
		Where("participants", store.OpArrayContains, userID).
		Order("lastMessageAt", store.Desc)
}

func (r *chatRepository) ListRoomsForUser(ctx context.Context, userID string) ([]*models.ChatRoom, error) {
	docs, err := r.QueryDocuments(ctx, userRoomsQuery(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list chat rooms: %w", err)
	}
	return decodeAll(r.logger, docs, decodeChatRoom), nil
}

func (r *chatRepository) SubscribeRoomsForUser(ctx context.Context, userID string) (*store.Stream[[]*models.ChatRoom], error) {
	return subscribeDecoded(ctx, r.BaseRepository, userRoomsQuery(userID), decodeChatRoom)
}

// ===============================
// MESSAGES
// ===============================

// AddMessage appends a message and updates the room summary in one batch.
// The other participant's unread counter is incremented.
func (r *chatRepository) AddMessage(ctx context.Context, room *models.ChatRoom, senderID, text string) (*models.Message, error) {
	id := store.NewID()
	collection := MessagesCollection(room.ID)

	roomUpdate := map[string]interface{}{
		"lastMessage":   text,
		"lastMessageAt": store.ServerTimestamp(),
		"updatedAt":     store.ServerTimestamp(),
	}
	if other := room.OtherParticipant(senderID); other != "" {
		roomUpdate["unreadCountByUser."+other] = store.Increment(1)
	}

	err := r.store.Batch().
		Set(collection, id, map[string]interface{}{
			"text":      text,
			"roomId":    room.ID,
			"senderId":  senderID,
			"createdAt": store.ServerTimestamp(),
		}).
		Update(CollectionChatRooms, room.ID, roomUpdate).
		Commit(ctx)
	if err != nil {
		r.logger.Error("Failed to send message",
			zap.String("room_id", room.ID),
			zap.String("sender_id", senderID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	doc, err := r.GetDocument(ctx, collection, id)
	if err != nil || doc == nil {
		return &models.Message{ID: id, Text: text, RoomID: room.ID, SenderID: senderID}, err
	}
	return decodeMessage(doc)
}

// MarkRead zeroes userID's unread counter
func (r *chatRepository) MarkRead(ctx context.Context, roomID, userID string) error {
	err := r.store.Update(ctx, CollectionChatRooms, roomID, map[string]interface{}{
		"unreadCountByUser." + userID: 0,
	})
	if err != nil {
		return fmt.Errorf("failed to mark chat room read: %w", err)
	}
	return nil
}

func roomMessagesQuery(roomID string) store.Query {
	return store.NewQuery(MessagesCollection(roomID)).Order("createdAt", store.Desc)
}

func (r *chatRepository) ListMessages(ctx context.Context, roomID string) ([]*models.Message, error) {
	docs, err := r.QueryDocuments(ctx, roomMessagesQuery(roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return decodeAll(r.logger, docs, decodeMessage), nil
}

func (r *chatRepository) SubscribeMessages(ctx context.Context, roomID string) (*store.Stream[[]*models.Message], error) {
	return subscribeDecoded(ctx, r.BaseRepository, roomMessagesQuery(roomID), decodeMessage)
}
