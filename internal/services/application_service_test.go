package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bridgeus/internal/events"
	"bridgeus/internal/models"
	"bridgeus/internal/repositories"
	"bridgeus/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingBus keeps published events; other methods are unused
type recordingBus struct {
	events.EventBus
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) PublishAsync(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) ofType(eventType string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.GetEventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// failingCounter rejects applicant count updates
type failingCounter struct {
	repositories.TaskRepository
}

func (failingCounter) IncrementApplicantCount(context.Context, string, int64) error {
	return store.ErrUnavailable
}

func TestApplicationService_ApplyAndUnapply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.student(t, "s1", "山田太郎")
	task := env.task(t, "c1", "ロゴデザイン作成", "", models.CategoryDesign)

	app, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: task.ID, Message: " よろしくお願いします "})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationID("s1", task.ID), app.ID)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	assert.Equal(t, "よろしくお願いします", app.Message)
	assert.Equal(t, "山田太郎", app.Name)
	assert.Equal(t, "東京大学", app.University)
	assert.Equal(t, 1, env.applicantCount(t, task.ID))

	inbox, err := env.notifications.ListNotifications(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationNewApplication, inbox[0].Type)
	assert.Equal(t, task.ID, inbox[0].TaskID)
	assert.Contains(t, inbox[0].Body, "ロゴデザイン作成")

	applied, err := env.applications.ListAppliedTasks(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, models.ApplicationStatusPending, applied[0].ApplicationStatus)

	require.NoError(t, env.applications.Unapply(ctx, "s1", task.ID))
	assert.Equal(t, 0, env.applicantCount(t, task.ID))

	exists, err := env.repos.Application.Exists(ctx, "s1", task.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	// withdrawing twice leaves the counter alone
	require.NoError(t, env.applications.Unapply(ctx, "s1", task.ID))
	assert.Equal(t, 0, env.applicantCount(t, task.ID))

	inbox, err = env.notifications.ListNotifications(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, inbox, 1, "unapply sends no notification")
}

func TestApplicationService_ApplyCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	task := env.task(t, "c1", "アンケート集計", "", models.CategoryResearch)

	for _, id := range []string{"s1", "s2", "s3"} {
		env.student(t, id, "学生"+id)
		_, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: id, TaskID: task.ID})
		require.NoError(t, err)
	}
	require.NoError(t, env.applications.Unapply(ctx, "s2", task.ID))

	assert.Equal(t, 2, env.applicantCount(t, task.ID))
	n, err := env.tasks.GetApplicantCount(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestApplicationService_ApplyErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	task := env.task(t, "c1", "ロゴデザイン作成", "")

	_, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: "missing"})
	assert.True(t, IsNotFoundError(err))

	_, err = env.applications.Apply(ctx, &ApplyRequest{StudentID: "c1", TaskID: task.ID})
	assert.True(t, IsPermissionDeniedError(err), "companies cannot apply")

	_, err = env.applications.Apply(ctx, &ApplyRequest{TaskID: task.ID})
	assert.True(t, IsValidationError(err))

	assert.Equal(t, 0, env.applicantCount(t, task.ID))
}

func TestApplicationService_ApproveIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs 株式会社")
	env.student(t, "s1", "山田太郎")
	task := env.task(t, "c1", "ロゴデザイン作成", "", models.CategoryDesign)

	app, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: task.ID})
	require.NoError(t, err)

	roomID, err := env.applications.Approve(ctx, &ReviewRequest{ApplicationID: app.ID, CompanyID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, models.ChatRoomID(task.ID, "c1", "s1"), roomID)

	again, err := env.applications.Approve(ctx, &ReviewRequest{ApplicationID: app.ID, CompanyID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, roomID, again, "approving twice reuses the room")

	rooms, err := env.chats.ListRooms(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "山田太郎", rooms[0].StudentName)
	assert.Equal(t, "BridgeUs 株式会社", rooms[0].CompanyName)
	assert.ElementsMatch(t, []string{"c1", "s1"}, rooms[0].Participants)

	stored, err := env.repos.Application.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, stored.Status)

	inbox, err := env.notifications.ListNotifications(ctx, "s1")
	require.NoError(t, err)
	require.NotEmpty(t, inbox)
	assert.Equal(t, models.NotificationApplicationApproved, inbox[0].Type)
	assert.Equal(t, roomID, inbox[0].ChatID)
	assert.Equal(t, "BridgeUs 株式会社", inbox[0].CompanyName)
}

func TestApplicationService_Reject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.company(t, "c2", "Other")
	env.student(t, "s1", "山田太郎")
	task := env.task(t, "c1", "ロゴデザイン作成", "")

	app, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: task.ID})
	require.NoError(t, err)

	err = env.applications.Reject(ctx, &ReviewRequest{ApplicationID: app.ID, CompanyID: "c2"})
	assert.True(t, IsPermissionDeniedError(err), "only the owner reviews")

	require.NoError(t, env.applications.Reject(ctx, &ReviewRequest{ApplicationID: app.ID, CompanyID: "c1", ReviewNote: "今回は見送り"}))

	stored, err := env.repos.Application.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, stored.Status)
	assert.Equal(t, "今回は見送り", stored.ReviewNote)

	inbox, err := env.notifications.ListNotifications(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationApplicationRejected, inbox[0].Type)
	assert.Empty(t, inbox[0].ChatID)

	rooms, err := env.chats.ListRooms(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rooms)

	// re-applying after rejection resets the application to pending
	_, err = env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: task.ID})
	require.NoError(t, err)
	stored, err = env.repos.Application.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, stored.Status)

	err = env.applications.Reject(ctx, &ReviewRequest{ApplicationID: "missing", CompanyID: "c1"})
	assert.True(t, IsNotFoundError(err))
}

func TestApplicationService_PartialFailureIsReported(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.student(t, "s1", "山田太郎")
	task := env.task(t, "c1", "ロゴデザイン作成", "")

	bus := &recordingBus{}
	broken := *env.repos
	broken.Task = failingCounter{TaskRepository: env.repos.Task}
	svc := NewApplicationService(&broken, bus, NoRetry(), zap.NewNop())

	_, err := svc.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: task.ID})
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))

	// the application was written but the counter was not
	exists, err := env.repos.Application.Exists(ctx, "s1", task.ID)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 0, env.applicantCount(t, task.ID))

	reported := bus.ofType(events.EventWorkflowPartial)
	require.Len(t, reported, 1)
	partial := reported[0].(*events.WorkflowPartialFailureEvent)
	assert.Equal(t, "apply", partial.Workflow)
	assert.Equal(t, task.ID, partial.TaskID)

	// the reconcile handler repairs the counter
	handler := PartialFailureHandler(env.reconcile, zap.NewNop())
	require.NoError(t, handler.Handle(ctx, partial))
	assert.Equal(t, 1, env.applicantCount(t, task.ID))
}

func TestRetryPolicy_RetriesTransientErrors(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialInterval: 1, MaxElapsed: 0}

	calls := 0
	err := policy.Do(context.Background(), zap.NewNop(), "flaky", func(context.Context) error {
		calls++
		if calls < 3 {
			return store.ErrUnavailable
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	permanent := errors.New("bad input")
	err = policy.Do(context.Background(), zap.NewNop(), "permanent", func(context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "permanent errors are not retried")
}

func TestApplicationService_ReviewRequiresTaskOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.company(t, "c2", "Other")
	env.student(t, "s1", "山田太郎")
	task := env.task(t, "c1", "ロゴデザイン作成", "")
	otherTask := env.task(t, "c2", "SNS投稿の作成", "")

	app, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: task.ID})
	require.NoError(t, err)

	tests := []struct {
		name   string
		review ReviewRequest
		check  func(error) bool
	}{
		{"other company", ReviewRequest{CompanyID: "c2"}, IsPermissionDeniedError},
		{"other company with its own task", ReviewRequest{CompanyID: "c2", TaskID: otherTask.ID}, IsValidationError},
		{"unknown task id", ReviewRequest{CompanyID: "c2", TaskID: "nope"}, IsValidationError},
		{"owner with another task id", ReviewRequest{CompanyID: "c1", TaskID: otherTask.ID}, IsValidationError},
		{"no company", ReviewRequest{}, IsValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			review := tt.review
			review.ApplicationID = app.ID
			_, err := env.applications.Approve(ctx, &review)
			assert.True(t, tt.check(err), "approve: %v", err)

			review = tt.review
			review.ApplicationID = app.ID
			err = env.applications.Reject(ctx, &review)
			assert.True(t, tt.check(err), "reject: %v", err)
		})
	}

	stored, err := env.repos.Application.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, stored.Status)

	for _, id := range []string{"s1", "c2"} {
		rooms, err := env.chats.ListRooms(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, rooms)
	}
	inbox, err := env.notifications.ListNotifications(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, inbox)

	// the owner may name the application's own task
	roomID, err := env.applications.Approve(ctx, &ReviewRequest{ApplicationID: app.ID, CompanyID: "c1", TaskID: task.ID, TaskTitle: "別のタイトル"})
	require.NoError(t, err)
	assert.Equal(t, models.ChatRoomID(task.ID, "c1", "s1"), roomID)

	room, err := env.chats.GetRoom(ctx, roomID, "s1")
	require.NoError(t, err)
	assert.Equal(t, "ロゴデザイン作成", room.TaskTitle, "the stored task title wins")
}

func TestApplicationService_ReviewOfDeletedTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.student(t, "s1", "山田太郎")
	task := env.task(t, "c1", "ロゴデザイン作成", "")

	app, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: task.ID})
	require.NoError(t, err)
	require.NoError(t, env.tasks.DeleteTask(ctx, task.ID, "c1"))

	_, err = env.applications.Approve(ctx, &ReviewRequest{ApplicationID: app.ID, CompanyID: "c1"})
	assert.True(t, IsNotFoundError(err))
	err = env.applications.Reject(ctx, &ReviewRequest{ApplicationID: app.ID, CompanyID: "c1"})
	assert.True(t, IsNotFoundError(err))
}

// failingRooms rejects chat room creation
type failingRooms struct {
	repositories.ChatRepository
}

func (failingRooms) CreateRoom(context.Context, *models.ChatRoom) error {
	return store.ErrUnavailable
}

func TestApplicationService_InterruptedApprovalIsRepaired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.company(t, "c1", "BridgeUs")
	env.student(t, "s1", "山田太郎")
	task := env.task(t, "c1", "ロゴデザイン作成", "")

	app, err := env.applications.Apply(ctx, &ApplyRequest{StudentID: "s1", TaskID: task.ID})
	require.NoError(t, err)

	bus := &recordingBus{}
	broken := *env.repos
	broken.Chat = failingRooms{ChatRepository: env.repos.Chat}
	svc := NewApplicationService(&broken, bus, NoRetry(), zap.NewNop())

	_, err = svc.Approve(ctx, &ReviewRequest{ApplicationID: app.ID, CompanyID: "c1"})
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))

	rooms, err := env.chats.ListRooms(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rooms)

	reported := bus.ofType(events.EventWorkflowPartial)
	require.Len(t, reported, 1)
	partial := reported[0].(*events.WorkflowPartialFailureEvent)
	assert.Equal(t, "approve", partial.Workflow)
	assert.Equal(t, "s1", partial.StudentID)

	handler := PartialFailureHandler(env.reconcile, zap.NewNop())
	require.NoError(t, handler.Handle(ctx, partial))

	rooms, err = env.chats.ListRooms(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, models.ChatRoomID(task.ID, "c1", "s1"), rooms[0].ID)
	assert.Equal(t, "ロゴデザイン作成", rooms[0].TaskTitle)

	// a second pass finds the room
	result, err := env.reconcile.ReconcileApproval(ctx, app.ID)
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, 1, result.After)

	// a later approval reuses the recreated room
	roomID, err := env.applications.Approve(ctx, &ReviewRequest{ApplicationID: app.ID, CompanyID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, rooms[0].ID, roomID)
}
