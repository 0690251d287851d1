package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bridgeus/internal/handlers/api/v1/apitest"
	"bridgeus/internal/middleware"
	"bridgeus/internal/models"
	"bridgeus/internal/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sessionPayload struct {
	Token    string          `json:"token"`
	UserType models.UserType `json:"userType"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	sc := apitest.NewServices(t)

	opts := DefaultOptions(sc.Config)
	opts.Response = response.DevelopmentConfig()
	opts.APIRateLimit.Limit = 10000
	opts.AuthRateLimit.Limit = 10000
	opts.RequestTimeout = 5 * time.Second
	return SetupRouter(sc, opts, zap.NewNop())
}

func register(t *testing.T, h http.Handler, body map[string]interface{}) sessionPayload {
	t.Helper()
	rec := apitest.Do(t, h, http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var payload sessionPayload
	apitest.Decode(t, rec, &payload)
	require.NotEmpty(t, payload.Token)
	return payload
}

func registerCompany(t *testing.T, h http.Handler) string {
	return register(t, h, map[string]interface{}{
		"type":               "company",
		"email":              "hr@acme.example",
		"password":           "secret123",
		"companyName":        "Acme",
		"representativeName": "Jane Doe",
	}).Token
}

func registerStudent(t *testing.T, h http.Handler) string {
	return register(t, h, map[string]interface{}{
		"type":        "student",
		"email":       "aiko@uni.example",
		"password":    "secret123",
		"displayName": "Aiko",
		"university":  "Tokyo University",
		"year":        3,
	}).Token
}

func createTask(t *testing.T, h http.Handler, token, title string) models.Task {
	t.Helper()
	rec := apitest.Do(t, h, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"title":      title,
		"categories": []string{models.CategoryTranslation},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var task models.Task
	apitest.Decode(t, rec, &task)
	return task
}

// ===============================
// SYSTEM ROUTES
// ===============================

func TestHealth(t *testing.T) {
	h := newTestRouter(t)

	rec := apitest.Do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestUnknownRoute(t *testing.T) {
	h := newTestRouter(t)

	rec := apitest.Do(t, h, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := apitest.Decode(t, rec, nil)
	assert.False(t, env.Success)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestRouter(t)

	for _, path := range []string{"/api/v1/tasks", "/api/v1/chats", "/api/v1/notifications", "/api/v1/auth/me"} {
		t.Run(path, func(t *testing.T) {
			rec := apitest.Do(t, h, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	rec := apitest.Do(t, h, http.MethodGet, "/api/v1/tasks", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ===============================
// AUTH ROUTES
// ===============================

func TestRegisterValidation(t *testing.T) {
	h := newTestRouter(t)

	rec := apitest.Do(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"type":     "admin",
		"email":    "not-an-email",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := apitest.Decode(t, rec, nil)
	require.NotNil(t, env.Error)
	assert.NotEmpty(t, env.Error.Fields)
}

func TestLoginAndMe(t *testing.T) {
	h := newTestRouter(t)
	registerStudent(t, h)

	rec := apitest.Do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "aiko@uni.example",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login sessionPayload
	apitest.Decode(t, rec, &login)
	assert.Equal(t, models.UserTypeStudent, login.UserType)

	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = apitest.Do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "aiko@uni.example",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newTestRouter(t)
	token := registerStudent(t, h)

	rec := apitest.Do(t, h, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ===============================
// MARKETPLACE FLOW
// ===============================

func TestUserTypeGuards(t *testing.T) {
	h := newTestRouter(t)
	studentToken := registerStudent(t, h)
	companyToken := registerCompany(t, h)

	rec := apitest.Do(t, h, http.MethodPost, "/api/v1/tasks", studentToken, map[string]string{"title": "nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	task := createTask(t, h, companyToken, "Translate a landing page")
	rec = apitest.Do(t, h, http.MethodPost, "/api/v1/tasks/"+task.ID+"/application", companyToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApplyApproveChatFlow(t *testing.T) {
	h := newTestRouter(t)
	companyToken := registerCompany(t, h)
	studentToken := registerStudent(t, h)

	task := createTask(t, h, companyToken, "Translate a landing page")
	assert.Equal(t, models.TaskStatusPublished, task.Status)

	// the student sees the published task
	rec := apitest.Do(t, h, http.MethodGet, "/api/v1/tasks?category="+models.CategoryAll, studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var visible []models.TaskView
	apitest.Decode(t, rec, &visible)
	require.Len(t, visible, 1)
	assert.False(t, visible[0].Applied)

	// apply
	rec = apitest.Do(t, h, http.MethodPost, "/api/v1/tasks/"+task.ID+"/application", studentToken, map[string]string{
		"message": "I can do this",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var app models.Application
	apitest.Decode(t, rec, &app)
	require.NotEmpty(t, app.ID)

	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/tasks/"+task.ID+"/applicant-count", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count struct {
		Count int `json:"count"`
	}
	apitest.Decode(t, rec, &count)
	assert.Equal(t, 1, count.Count)

	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/students/me/applications", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := apitest.Decode(t, rec, nil)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Count)

	// the company reviews
	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/tasks/"+task.ID+"/applications", companyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = apitest.Do(t, h, http.MethodPost, "/api/v1/applications/"+app.ID+"/approve", companyToken, map[string]string{
		"reviewNote": "Welcome",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approval struct {
		ChatRoomID string `json:"chatRoomId"`
	}
	apitest.Decode(t, rec, &approval)
	require.NotEmpty(t, approval.ChatRoomID)

	// chat
	rec = apitest.Do(t, h, http.MethodPost, "/api/v1/chats/"+approval.ChatRoomID+"/messages", studentToken, map[string]string{
		"text": "Thank you!",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/chats", companyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env = apitest.Decode(t, rec, nil)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Count)
	assert.EqualValues(t, 1, env.Meta.Extra["unread"])

	rec = apitest.Do(t, h, http.MethodPost, "/api/v1/chats/"+approval.ChatRoomID+"/read", companyToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/chats/"+approval.ChatRoomID+"/messages", companyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []models.Message
	apitest.Decode(t, rec, &msgs)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Thank you!", msgs[0].Text)

	// the student was notified of the approval
	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/notifications", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notes []models.Notification
	apitest.Decode(t, rec, &notes)
	var approved *models.Notification
	for i := range notes {
		if notes[i].Type == models.NotificationApplicationApproved {
			approved = &notes[i]
		}
	}
	require.NotNil(t, approved)
	assert.Equal(t, approval.ChatRoomID, approved.ChatID)

	rec = apitest.Do(t, h, http.MethodPost, "/api/v1/notifications/"+approved.ID+"/read", studentToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = apitest.Do(t, h, http.MethodPost, "/api/v1/notifications/read-all", studentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestChatRoomIsPrivate(t *testing.T) {
	h := newTestRouter(t)
	companyToken := registerCompany(t, h)
	studentToken := registerStudent(t, h)
	outsider := register(t, h, map[string]interface{}{
		"type":        "student",
		"email":       "ken@uni.example",
		"password":    "secret123",
		"displayName": "Ken",
	}).Token

	task := createTask(t, h, companyToken, "Survey")
	rec := apitest.Do(t, h, http.MethodPost, "/api/v1/tasks/"+task.ID+"/application", studentToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var app models.Application
	apitest.Decode(t, rec, &app)

	rec = apitest.Do(t, h, http.MethodPost, "/api/v1/applications/"+app.ID+"/approve", companyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approval struct {
		ChatRoomID string `json:"chatRoomId"`
	}
	apitest.Decode(t, rec, &approval)

	rec = apitest.Do(t, h, http.MethodPost, "/api/v1/chats/"+approval.ChatRoomID+"/messages", outsider, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestFavorites(t *testing.T) {
	h := newTestRouter(t)
	companyToken := registerCompany(t, h)
	studentToken := registerStudent(t, h)
	task := createTask(t, h, companyToken, "Data entry")

	rec := apitest.Do(t, h, http.MethodPut, "/api/v1/tasks/"+task.ID+"/favorite", studentToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/tasks/"+task.ID, studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.TaskView
	apitest.Decode(t, rec, &view)
	assert.True(t, view.Favorited)

	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/students/me/favorites", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var favorites []models.TaskView
	apitest.Decode(t, rec, &favorites)
	require.Len(t, favorites, 1)

	rec = apitest.Do(t, h, http.MethodDelete, "/api/v1/tasks/"+task.ID+"/favorite", studentToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func TestTaskOwnership(t *testing.T) {
	h := newTestRouter(t)
	owner := registerCompany(t, h)
	other := register(t, h, map[string]interface{}{
		"type":        "company",
		"email":       "hr@globex.example",
		"password":    "secret123",
		"companyName": "Globex",
	}).Token
	task := createTask(t, h, owner, "Write a blog post")

	rec := apitest.Do(t, h, http.MethodPatch, "/api/v1/tasks/"+task.ID, other, map[string]string{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/tasks/"+task.ID+"/applications", other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = apitest.Do(t, h, http.MethodPut, "/api/v1/tasks/"+task.ID+"/status", owner, map[string]string{"status": "closed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = apitest.Do(t, h, http.MethodDelete, "/api/v1/tasks/"+task.ID, owner, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = apitest.Do(t, h, http.MethodGet, "/api/v1/companies/me/tasks", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := apitest.Decode(t, rec, nil)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 0, env.Meta.Count)
}

func TestOnboardingRequiresDeviceID(t *testing.T) {
	h := newTestRouter(t)

	rec := apitest.Do(t, h, http.MethodGet, "/api/v1/onboarding", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	put := apitest.Request(t, http.MethodPut, "/api/v1/onboarding", "", map[string]bool{"completed": true})
	put.Header.Set(middleware.HeaderDeviceID, "device-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, put)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	get := apitest.Request(t, http.MethodGet, "/api/v1/onboarding", "", nil)
	get.Header.Set(middleware.HeaderDeviceID, "device-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Completed bool `json:"completed"`
	}
	apitest.Decode(t, rec, &status)
	assert.True(t, status.Completed)
}
