// file: internal/repositories/interfaces.go
package repositories

import (
	"context"
	"time"

	"bridgeus/internal/models"
	"bridgeus/internal/store"
)

// ===============================
// MARKETPLACE REPOSITORY INTERFACES
// ===============================

// TaskUpdate carries the task fields to change. Nil fields are left as is.
type TaskUpdate struct {
	Title       *string
	Description *string
	Deadline    *string
	Reward      *string
	Categories  []string
	Status      *models.TaskStatus
}

// TaskRepository defines the contract for task data operations.
// Reads return normalized tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, id string, update TaskUpdate) error
	Delete(ctx context.Context, id string) error

	ListAll(ctx context.Context) ([]*models.Task, error)
	ListByCompany(ctx context.Context, companyID string) ([]*models.Task, error)
	SubscribeAll(ctx context.Context) (*store.Stream[[]*models.Task], error)
	SubscribeByCompany(ctx context.Context, companyID string) (*store.Stream[[]*models.Task], error)

	IncrementApplicantCount(ctx context.Context, id string, delta int64) error
	SetApplicantCount(ctx context.Context, id string, count int) error
}

// ApplicationRepository defines the contract for application data operations
type ApplicationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Application, error)
	Put(ctx context.Context, app *models.Application) error
	UpdateReview(ctx context.Context, id string, status models.ApplicationStatus, reviewNote string) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, studentID, taskID string) (bool, error)

	ListByTask(ctx context.Context, taskID string) ([]*models.Application, error)
	ListByStudent(ctx context.Context, studentID string) ([]*models.Application, error)
	SubscribeByTask(ctx context.Context, taskID string) (*store.Stream[[]*models.Application], error)
	CountByTask(ctx context.Context, taskID string) (int, error)
}

// FavoriteRepository defines the contract for favorite data operations
type FavoriteRepository interface {
	Add(ctx context.Context, studentID, taskID string) error
	Remove(ctx context.Context, studentID, taskID string) error
	Exists(ctx context.Context, studentID, taskID string) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]*models.Favorite, error)
}

// ChatRepository defines the contract for chat rooms and messages
type ChatRepository interface {
	FindRoom(ctx context.Context, taskID, companyID, studentID string) (*models.ChatRoom, error)
	CreateRoom(ctx context.Context, room *models.ChatRoom) error
	GetRoom(ctx context.Context, id string) (*models.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]*models.ChatRoom, error)
	SubscribeRoomsForUser(ctx context.Context, userID string) (*store.Stream[[]*models.ChatRoom], error)

	AddMessage(ctx context.Context, room *models.ChatRoom, senderID, text string) (*models.Message, error)
	MarkRead(ctx context.Context, roomID, userID string) error
	ListMessages(ctx context.Context, roomID string) ([]*models.Message, error)
	SubscribeMessages(ctx context.Context, roomID string) (*store.Stream[[]*models.Message], error)
}

// NotificationRepository defines the contract for notification data operations
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (string, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Notification, error)
	SubscribeByUser(ctx context.Context, userID string) (*store.Stream[[]*models.Notification], error)
}

// UserRepository defines the contract for profile documents
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	ListCompanies(ctx context.Context) ([]*models.Company, error)

	IncrementCounter(ctx context.Context, id, field string, delta int64) error
	SetCounter(ctx context.Context, id, field string, value int) error
}

// ===============================
// AUTH REPOSITORY INTERFACES
// ===============================

// AuthRepository defines credential and password reset operations
type AuthRepository interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateAccount(ctx context.Context, id string, fields map[string]interface{}) error

	CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error
	GetPasswordReset(ctx context.Context, id string) (*models.PasswordReset, error)
	DeletePasswordReset(ctx context.Context, id string) error
}

// SessionRepository defines the contract for issued token sessions
type SessionRepository interface {
	Create(ctx context.Context, session *models.AuthSession) error
	GetByID(ctx context.Context, id string) (*models.AuthSession, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
	// Subscribe delivers the session, or nil once it is revoked
	Subscribe(ctx context.Context, id string) (*store.Stream[*models.AuthSession], error)
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}
