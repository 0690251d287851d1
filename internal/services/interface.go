// file: internal/services/interfaces.go
package services

import (
	"context"

	"bridgeus/internal/models"
	"bridgeus/internal/store"
	"bridgeus/internal/utils"
)

// ===============================
// MARKETPLACE SERVICE INTERFACES
// ===============================

// TaskService covers the company-side task lifecycle and the student task list
type TaskService interface {
	CreateTask(ctx context.Context, companyID string, req *TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, taskID, companyID string, req *TaskUpdateInput) (*models.Task, error)
	SetTaskStatus(ctx context.Context, taskID, companyID string, status models.TaskStatus) (*models.Task, error)
	DeleteTask(ctx context.Context, taskID, companyID string) error

	GetTask(ctx context.Context, taskID, studentID string) (*models.TaskView, error)
	GetApplicantCount(ctx context.Context, taskID string) (int, error)
	ListCompanyTasks(ctx context.Context, companyID string) ([]*models.Task, error)
	SubscribeCompanyTasks(ctx context.Context, companyID string) (*store.Stream[[]*models.Task], error)

	// Visibility filter
	ListVisibleTasks(ctx context.Context, studentID string, filter models.TaskFilter) ([]*models.TaskView, error)
	SubscribeVisibleTasks(ctx context.Context, studentID string, filter models.TaskFilter) (*store.Stream[[]*models.TaskView], error)
}

// ApplicationService runs the apply and review workflows
type ApplicationService interface {
	Apply(ctx context.Context, req *ApplyRequest) (*models.Application, error)
	Unapply(ctx context.Context, studentID, taskID string) error
	Approve(ctx context.Context, req *ReviewRequest) (string, error)
	Reject(ctx context.Context, req *ReviewRequest) error

	ListTaskApplications(ctx context.Context, taskID string) ([]*models.Application, error)
	SubscribeTaskApplications(ctx context.Context, taskID string) (*store.Stream[[]*models.Application], error)
	ListAppliedTasks(ctx context.Context, studentID string) ([]*models.AppliedTask, error)
}

// FavoriteService manages saved tasks
type FavoriteService interface {
	AddFavorite(ctx context.Context, studentID, taskID string) error
	RemoveFavorite(ctx context.Context, studentID, taskID string) error
	ListFavoriteTasks(ctx context.Context, studentID string) ([]*models.TaskView, error)
}

// ChatService manages messages inside chat rooms
type ChatService interface {
	SendMessage(ctx context.Context, roomID, senderID, text string) (*models.Message, error)
	MarkRoomRead(ctx context.Context, roomID, userID string) error
	GetRoom(ctx context.Context, roomID, userID string) (*models.ChatRoom, error)
	ListRooms(ctx context.Context, userID string) ([]*models.ChatRoom, error)
	ListMessages(ctx context.Context, roomID, userID string) ([]*models.Message, error)

	SubscribeMessages(ctx context.Context, roomID, userID string) (*store.Stream[[]*models.Message], error)
	SubscribeChatRooms(ctx context.Context, userID string) (*store.Stream[[]*models.ChatRoom], error)
	SubscribeUnreadChatCount(ctx context.Context, userID string) (*store.Stream[int], error)
}

// NotificationService manages a user's notification inbox
type NotificationService interface {
	ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error)
	MarkAsRead(ctx context.Context, notificationID, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	SubscribeNotifications(ctx context.Context, userID string) (*store.Stream[[]*models.Notification], error)
	SubscribeUnreadCount(ctx context.Context, userID string) (*store.Stream[int], error)
}

// UserService manages profile documents
type UserService interface {
	CreateProfile(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, userID string) (models.User, error)
	GetCompanyProfile(ctx context.Context, companyID string) (*models.Company, error)
	UpdateStudentProfile(ctx context.Context, studentID string, req *UpdateStudentProfileRequest) (*models.Student, error)
	UpdateCompanyProfile(ctx context.Context, companyID string, req *UpdateCompanyProfileRequest) (*models.Company, error)
	UploadAvatar(ctx context.Context, userID string, upload *utils.ImageUpload) (models.User, error)
}

// ReconcileService repairs denormalized counters and interrupted approvals
type ReconcileService interface {
	ReconcileTask(ctx context.Context, taskID string) (*ReconcileResult, error)
	ReconcileCompany(ctx context.Context, companyID string) (*ReconcileResult, error)
	ReconcileApproval(ctx context.Context, applicationID string) (*ReconcileResult, error)
	ReconcileAll(ctx context.Context) (*ReconcileReport, error)
}

// ===============================
// AUTH SERVICE INTERFACE
// ===============================

// AuthService is the authentication client: accounts, tokens and sessions
type AuthService interface {
	CreateAccount(ctx context.Context, req *SignUpRequest) (*AuthResult, error)
	SignIn(ctx context.Context, req *SignInRequest) (*AuthResult, error)
	GoogleAuthURL(state string) (string, error)
	SignInWithGoogle(ctx context.Context, req *GoogleSignInRequest) (*AuthResult, error)
	SignOut(ctx context.Context, token string) error

	VerifyToken(ctx context.Context, token string) (*TokenClaims, error)
	// ObserveSession streams the auth state behind token until it ends
	ObserveSession(ctx context.Context, token string) (*store.Stream[*AuthState], error)

	UpdateDisplayName(ctx context.Context, userID, displayName string) error
	SendPasswordResetEmail(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, req *ConfirmPasswordResetRequest) error
	ListSignInMethods(ctx context.Context, email string) ([]string, error)
}

// ===============================
// INFRASTRUCTURE INTERFACES
// ===============================

//go:generate mockgen -typed -source=./interface.go -destination=../mocks/mock_services.go -package=mocks EmailService,ImageUploader

// EmailService handles email operations
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, to, resetURL string) error
}

// ImageUploader stores profile images
type ImageUploader interface {
	UploadImage(ctx context.Context, upload *utils.ImageUpload) (*utils.UploadResult, error)
	DeleteImage(ctx context.Context, publicID string) error
}

// HealthChecker interface for service health checks
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	ServiceName() string
}
