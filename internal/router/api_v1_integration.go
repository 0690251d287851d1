// ===============================
// FILE: internal/router/api_v1_integration.go
// ===============================

package router

import (
	"net/http"

	"bridgeus/internal/device"
	"bridgeus/internal/handlers/api/v1/auth"
	"bridgeus/internal/handlers/api/v1/chat"
	"bridgeus/internal/handlers/api/v1/notifications"
	"bridgeus/internal/handlers/api/v1/tasks"
	"bridgeus/internal/handlers/api/v1/users"
	"bridgeus/internal/middleware"
	"bridgeus/internal/models"
	"bridgeus/internal/response"
	"bridgeus/internal/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// APIDependencies are shared by every v1 controller
type APIDependencies struct {
	Services        *services.ServiceCollection
	Preferences     *device.Preferences
	AuthMiddleware  *middleware.AuthMiddleware
	APIRateLimiter  *middleware.RateLimiter
	AuthRateLimiter *middleware.RateLimiter
	ResponseBuilder *response.Builder
	Logger          *zap.Logger
}

// AddAPIv1Routes mounts the v1 endpoints on api, which is rooted at /api/v1
func AddAPIv1Routes(api *mux.Router, deps *APIDependencies) {
	sc, logger, rb := deps.Services, deps.Logger, deps.ResponseBuilder

	authController := auth.NewAuthController(sc, logger, rb)
	taskController := tasks.NewTaskController(sc, logger, rb)
	chatController := chat.NewChatController(sc, logger, rb)
	notificationController := notifications.NewNotificationController(sc, logger, rb)
	userController := users.NewUserController(sc, deps.Preferences, logger, rb)

	am := deps.AuthMiddleware
	student := am.RequireUserType(models.UserTypeStudent)
	company := am.RequireUserType(models.UserTypeCompany)

	// public endpoints are limited per client address
	public := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, deps.AuthRateLimiter.Middleware())
	}
	// authenticated endpoints are limited per user
	authed := func(h http.HandlerFunc, extra ...func(http.Handler) http.Handler) http.Handler {
		chain := append([]func(http.Handler) http.Handler{am.RequireAuth(), deps.APIRateLimiter.Middleware()}, extra...)
		return middleware.Chain(h, chain...)
	}

	// ===============================
	// AUTH
	// ===============================

	api.Handle("/auth/register", public(authController.Register)).Methods(http.MethodPost)
	api.Handle("/auth/login", public(authController.Login)).Methods(http.MethodPost)
	api.Handle("/auth/google/url", public(authController.GoogleURL)).Methods(http.MethodGet)
	api.Handle("/auth/google", public(authController.GoogleSignIn)).Methods(http.MethodPost)
	api.Handle("/auth/password-reset", public(authController.RequestPasswordReset)).Methods(http.MethodPost)
	api.Handle("/auth/password-reset/confirm", public(authController.ConfirmPasswordReset)).Methods(http.MethodPost)
	api.Handle("/auth/sign-in-methods", public(authController.SignInMethods)).Methods(http.MethodGet)

	api.Handle("/auth/logout", authed(authController.Logout)).Methods(http.MethodPost)
	api.Handle("/auth/me", authed(authController.Me)).Methods(http.MethodGet)
	api.Handle("/auth/me", authed(authController.UpdateMe)).Methods(http.MethodPatch)

	// ===============================
	// TASKS
	// ===============================

	api.Handle("/tasks", authed(taskController.ListTasks)).Methods(http.MethodGet)
	api.Handle("/tasks", authed(taskController.CreateTask, company)).Methods(http.MethodPost)
	api.Handle("/tasks/{taskId}", authed(taskController.GetTask)).Methods(http.MethodGet)
	api.Handle("/tasks/{taskId}", authed(taskController.UpdateTask, company)).Methods(http.MethodPatch)
	api.Handle("/tasks/{taskId}", authed(taskController.DeleteTask, company)).Methods(http.MethodDelete)
	api.Handle("/tasks/{taskId}/status", authed(taskController.SetTaskStatus, company)).Methods(http.MethodPut)
	api.Handle("/tasks/{taskId}/applicant-count", authed(taskController.GetApplicantCount)).Methods(http.MethodGet)
	api.Handle("/companies/me/tasks", authed(taskController.ListCompanyTasks, company)).Methods(http.MethodGet)

	// ===============================
	// APPLICATIONS AND FAVORITES
	// ===============================

	api.Handle("/tasks/{taskId}/application", authed(taskController.Apply, student)).Methods(http.MethodPost)
	api.Handle("/tasks/{taskId}/application", authed(taskController.Unapply, student)).Methods(http.MethodDelete)
	api.Handle("/tasks/{taskId}/applications", authed(taskController.ListTaskApplications, company)).Methods(http.MethodGet)
	api.Handle("/applications/{applicationId}/approve", authed(taskController.Approve, company)).Methods(http.MethodPost)
	api.Handle("/applications/{applicationId}/reject", authed(taskController.Reject, company)).Methods(http.MethodPost)
	api.Handle("/students/me/applications", authed(taskController.ListAppliedTasks, student)).Methods(http.MethodGet)

	api.Handle("/tasks/{taskId}/favorite", authed(taskController.AddFavorite, student)).Methods(http.MethodPut)
	api.Handle("/tasks/{taskId}/favorite", authed(taskController.RemoveFavorite, student)).Methods(http.MethodDelete)
	api.Handle("/students/me/favorites", authed(taskController.ListFavorites, student)).Methods(http.MethodGet)

	// ===============================
	// CHAT AND NOTIFICATIONS
	// ===============================

	api.Handle("/chats", authed(chatController.ListRooms)).Methods(http.MethodGet)
	api.Handle("/chats/{roomId}", authed(chatController.GetRoom)).Methods(http.MethodGet)
	api.Handle("/chats/{roomId}/messages", authed(chatController.ListMessages)).Methods(http.MethodGet)
	api.Handle("/chats/{roomId}/messages", authed(chatController.SendMessage)).Methods(http.MethodPost)
	api.Handle("/chats/{roomId}/read", authed(chatController.MarkRead)).Methods(http.MethodPost)

	api.Handle("/notifications", authed(notificationController.ListNotifications)).Methods(http.MethodGet)
	api.Handle("/notifications/read-all", authed(notificationController.MarkAllRead)).Methods(http.MethodPost)
	api.Handle("/notifications/{notificationId}/read", authed(notificationController.MarkRead)).Methods(http.MethodPost)

	// ===============================
	// PROFILES AND DEVICE PREFERENCES
	// ===============================

	api.Handle("/students/me", authed(userController.UpdateStudentProfile, student)).Methods(http.MethodPatch)
	api.Handle("/companies/me", authed(userController.UpdateCompanyProfile, company)).Methods(http.MethodPatch)
	api.Handle("/companies/{companyId}", authed(userController.GetCompany)).Methods(http.MethodGet)
	api.Handle("/users/me/avatar", authed(userController.UploadAvatar)).Methods(http.MethodPost)
	api.Handle("/users/{userId}", authed(userController.GetUser)).Methods(http.MethodGet)

	api.Handle("/client-config", public(func(w http.ResponseWriter, r *http.Request) {
		rb.WriteSuccess(w, r, sc.Config.Backend)
	})).Methods(http.MethodGet)
	api.Handle("/onboarding", public(userController.GetOnboarding)).Methods(http.MethodGet)
	api.Handle("/onboarding", public(userController.SetOnboarding)).Methods(http.MethodPut)

	logger.Info("API v1 routes registered")
}
